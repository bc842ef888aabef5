package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"btp/internal/domain"
)

var envVariable = regexp.MustCompile(`\$\{env:([^}]+)\}`)

// Targets builds one target per configured binary, with paths expanded and
// made absolute, ids de-duplicated and environments resolved.
func (c *Config) Targets() ([]*domain.Target, error) {
	targets := make([]*domain.Target, 0, len(c.Binaries))
	used := make(map[string]int)

	for i, b := range c.Binaries {
		path := c.resolve(c.expand(b.Path))

		id := b.ID
		if id == "" {
			id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		used[id]++
		if n := used[id]; n > 1 {
			id = id + "-" + strconv.Itoa(n)
		}

		env, err := c.resolveEnv(b)
		if err != nil {
			return nil, fmt.Errorf("binaries[%d]: %w", i, err)
		}

		targets = append(targets, &domain.Target{
			ID:           id,
			Path:         path,
			Cwd:          c.resolve(c.expand(b.Cwd)),
			DebugProfile: b.DebugLaunchProfile,
			SourcePrefix: c.resolve(c.expand(b.SourcePrefix)),
			Env:          env,
		})
	}
	return targets, nil
}

// resolveEnv merges the env file with the inline entries. Inline entries win,
// and later inline entries override earlier ones.
func (c *Config) resolveEnv(b BinaryConfig) ([]domain.EnvVar, error) {
	var env []domain.EnvVar
	index := make(map[string]int)
	set := func(name, value string) {
		if i, ok := index[name]; ok {
			env[i].Value = value
			return
		}
		index[name] = len(env)
		env = append(env, domain.EnvVar{Name: name, Value: value})
	}

	if b.EnvFile != "" {
		path := c.resolve(c.expand(b.EnvFile))
		fileEnv, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("read env file %s: %w", path, err)
		}
		names := make([]string, 0, len(fileEnv))
		for name := range fileEnv {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			set(name, fileEnv[name])
		}
	}
	for _, v := range b.Env {
		set(v.Name, c.expand(v.Value))
	}
	return env, nil
}

// expand substitutes the workspace variables supported in path-like fields.
func (c *Config) expand(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	root := c.projectRoot()
	s = strings.NewReplacer(
		"${workspaceFolder}", root,
		"${workspaceRoot}", root,
		"${workspaceFolderBasename}", filepath.Base(root),
		"${pathSeparator}", string(os.PathSeparator),
		"${/}", string(os.PathSeparator),
	).Replace(s)
	return envVariable.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(envVariable.FindStringSubmatch(m)[1])
	})
}

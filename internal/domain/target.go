package domain

import (
	"path/filepath"
)

// EnvVar is a single environment variable passed to a target process.
type EnvVar struct {
	Name  string `json:"name" mapstructure:"name" yaml:"name"`
	Value string `json:"value" mapstructure:"value" yaml:"value"`
}

// Target is one configured test executable.
type Target struct {
	ID           string
	Path         string
	Cwd          string
	DebugProfile string
	SourcePrefix string
	Env          []EnvVar
	Tree         *Tree
}

// WorkDir returns the directory the binary runs in.
func (t *Target) WorkDir() string {
	if t.Cwd != "" {
		return t.Cwd
	}
	return filepath.Dir(t.Path)
}

// ResolveSource turns a path reported by the binary into an absolute path.
// Relative paths are re-rooted under the source prefix, or the working directory
// when no prefix is configured.
func (t *Target) ResolveSource(file string) string {
	if file == "" || filepath.IsAbs(file) {
		return file
	}
	base := t.SourcePrefix
	if base == "" {
		base = t.WorkDir()
	}
	return filepath.Join(base, file)
}

// EnvList renders the environment as NAME=VALUE pairs.
func (t *Target) EnvList() []string {
	env := make([]string, 0, len(t.Env))
	for _, v := range t.Env {
		env = append(env, v.Name+"="+v.Value)
	}
	return env
}

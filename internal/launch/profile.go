// Package launch prepares named debug launch profiles for an external debugger host.
package launch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"btp/internal/domain"
)

// Profile is one launch configuration. Unknown fields are preserved.
type Profile map[string]any

// Name returns the profile name.
func (p Profile) Name() string {
	name, _ := p["name"].(string)
	return name
}

// Prepare overwrites the fields the debugger host needs to start a binary.
func (p Profile) Prepare(program string, args []string, cwd string, env []domain.EnvVar) {
	p["program"] = program
	p["args"] = args
	if cwd != "" {
		p["cwd"] = cwd
	}
	p["outputCapture"] = "std"
	environment := make([]map[string]string, 0, len(env))
	for _, v := range env {
		environment = append(environment, map[string]string{"name": v.Name, "value": v.Value})
	}
	p["environment"] = environment
}

// File is a launch profile file with a "configurations" array.
type File struct {
	Path string
	doc  map[string]any
}

// Load reads a launch profile file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read launch profiles: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse launch profiles %s: %w", path, err)
	}
	return &File{Path: path, doc: doc}, nil
}

// Profile returns the profile with exactly the given name.
func (f *File) Profile(name string) (Profile, error) {
	configs, _ := f.doc["configurations"].([]any)
	for _, c := range configs {
		m, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if p := Profile(m); p.Name() == name {
			return p, nil
		}
	}
	return nil, &domain.ProfileNotFoundError{Name: name, File: f.Path}
}

// Save writes the file back, including any profile changes.
func (f *File) Save() error {
	data, err := json.MarshalIndent(f.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal launch profiles: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return fmt.Errorf("create launch profile dir: %w", err)
	}
	return os.WriteFile(f.Path, data, 0644)
}

// Launcher hands a prepared profile to the external debugger host.
type Launcher interface {
	Launch(ctx context.Context, file *File, profile Profile) error
}

// FileLauncher persists the prepared profile so the debugger host can start it.
type FileLauncher struct{}

// Launch writes the mutated profile back into its file.
func (FileLauncher) Launch(_ context.Context, file *File, _ Profile) error {
	return file.Save()
}

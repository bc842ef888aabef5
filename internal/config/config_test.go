package config

import (
	"os"
	"path/filepath"
	"testing"

	"btp/internal/domain"
)

func TestConfig_GetOutputPath(t *testing.T) {
	cfg := &Config{ProjectPath: "/project", OutputJSONDir: ".btp", OutputJSONFile: "last-run.json"}
	expected := "/project/.btp/last-run.json"
	if got := cfg.GetOutputPath(); got != expected {
		t.Errorf("expected %s, got %s", expected, got)
	}
}

func TestConfig_GetConfigPath(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		expected string
	}{
		{
			name:     "default config file",
			config:   &Config{ProjectPath: "/project", ConfigFile: DefaultConfigFile},
			expected: "/project/btp.yaml",
		},
		{
			name:     "absolute config file",
			config:   &Config{ProjectPath: "/project", ConfigFile: "/etc/btp.yaml"},
			expected: "/etc/btp.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.config.GetConfigPath()
			if result != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		binaries []BinaryConfig
		wantErr  bool
	}{
		{name: "no binaries", wantErr: true},
		{name: "missing path", binaries: []BinaryConfig{{ID: "a"}}, wantErr: true},
		{name: "id with slash", binaries: []BinaryConfig{{ID: "a/b", Path: "bin/a"}}, wantErr: true},
		{name: "reserved id", binaries: []BinaryConfig{{ID: "*", Path: "bin/a"}}, wantErr: true},
		{name: "valid", binaries: []BinaryConfig{{Path: "bin/a"}}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			cfg.Binaries = tt.binaries
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfig_Load(t *testing.T) {
	dir := t.TempDir()
	content := `processors: 2
results:
  file: runs.json
binaries:
  - path: build/unit_tests
    cwd: ${workspaceFolder}/build
    debugLaunchProfile: Debug tests
    sourcePrefix: src
    env:
      - name: A
        value: "1"
  - path: build/unit_tests
`
	if err := os.WriteFile(filepath.Join(dir, "btp.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg := New()
	cfg.ProjectPath = dir
	if err := cfg.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Processors != 2 {
		t.Errorf("expected 2 processors, got %d", cfg.Processors)
	}
	if cfg.OutputJSONFile != "runs.json" {
		t.Errorf("expected runs.json, got %s", cfg.OutputJSONFile)
	}
	if len(cfg.Binaries) != 2 {
		t.Fatalf("expected 2 binaries, got %d", len(cfg.Binaries))
	}
	if cfg.Binaries[0].DebugLaunchProfile != "Debug tests" {
		t.Errorf("expected debug profile to be loaded, got %q", cfg.Binaries[0].DebugLaunchProfile)
	}

	targets, err := cfg.Targets()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if targets[0].ID != "unit_tests" || targets[1].ID != "unit_tests-2" {
		t.Errorf("expected de-duplicated ids, got %s and %s", targets[0].ID, targets[1].ID)
	}
	if targets[0].Path != filepath.Join(dir, "build", "unit_tests") {
		t.Errorf("unexpected path %s", targets[0].Path)
	}
	if targets[0].Cwd != filepath.Join(dir, "build") {
		t.Errorf("unexpected cwd %s", targets[0].Cwd)
	}
	if targets[0].SourcePrefix != filepath.Join(dir, "src") {
		t.Errorf("unexpected source prefix %s", targets[0].SourcePrefix)
	}
}

func TestConfig_ResolveEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envFile, []byte("A=from-file\nB=from-file\n"), 0644); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}

	cfg := New()
	cfg.ProjectPath = dir
	env, err := cfg.resolveEnv(BinaryConfig{
		EnvFile: "test.env",
		Env: []domain.EnvVar{
			{Name: "B", Value: "inline"},
			{Name: "C", Value: "first"},
			{Name: "C", Value: "second"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := make(map[string]string)
	for _, v := range env {
		got[v.Name] = v.Value
	}
	expected := map[string]string{"A": "from-file", "B": "inline", "C": "second"}
	if len(got) != len(expected) {
		t.Fatalf("expected %d variables, got %d: %v", len(expected), len(got), env)
	}
	for name, value := range expected {
		if got[name] != value {
			t.Errorf("expected %s=%s, got %s", name, value, got[name])
		}
	}
}

func TestConfig_Expand(t *testing.T) {
	t.Setenv("BTP_TEST_DIR", "/opt/tests")
	cfg := &Config{ProjectPath: "/work/proj"}

	if got := cfg.expand("${workspaceFolder}/bin"); got != "/work/proj/bin" {
		t.Errorf("unexpected expansion %s", got)
	}
	if got := cfg.expand("${workspaceFolderBasename}"); got != "proj" {
		t.Errorf("unexpected expansion %s", got)
	}
	if got := cfg.expand("${env:BTP_TEST_DIR}/unit"); got != "/opt/tests/unit" {
		t.Errorf("unexpected expansion %s", got)
	}
}

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.ProjectPath != DefaultProjectPath {
		t.Errorf("expected ProjectPath %s, got %s", DefaultProjectPath, cfg.ProjectPath)
	}

	if cfg.Processors != DefaultProcessors {
		t.Errorf("expected Processors %d, got %d", DefaultProcessors, cfg.Processors)
	}
}

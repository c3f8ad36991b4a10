package interpret

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "interpreter.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	return path
}

func TestLoadProfile(t *testing.T) {
	path := writeProfile(t, `
version = 1

[pool]
size = 4
transport = "process"

[worker]
program = "ballotscan"
args = ["worker"]

[thresholds]
marginal = 0.1
definite = 0.3
`)

	profile, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile() error = %v", err)
	}
	if profile.Pool.Size != 4 {
		t.Fatalf("pool.size = %d, want 4", profile.Pool.Size)
	}
	if profile.Pool.Transport != TransportProcess {
		t.Fatalf("pool.transport = %s, want %s", profile.Pool.Transport, TransportProcess)
	}
	if profile.Worker.Program != "ballotscan" || len(profile.Worker.Args) != 1 {
		t.Fatalf("worker = %+v", profile.Worker)
	}
	if profile.Thresholds.Marginal != 0.1 || profile.Thresholds.Definite != 0.3 {
		t.Fatalf("thresholds = %+v", profile.Thresholds)
	}
}

func TestLoadProfileDefaults(t *testing.T) {
	path := writeProfile(t, "version = 1\n")

	profile, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile() error = %v", err)
	}
	if profile.Pool.Size != 2 {
		t.Fatalf("pool.size = %d, want default 2", profile.Pool.Size)
	}
	if profile.Pool.Transport != TransportInProcess {
		t.Fatalf("pool.transport = %s, want default %s", profile.Pool.Transport, TransportInProcess)
	}
	if profile.Thresholds.Marginal != 0.12 || profile.Thresholds.Definite != 0.25 {
		t.Fatalf("thresholds = %+v, want defaults", profile.Thresholds)
	}
}

func TestLoadProfileValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing version", "[pool]\nsize = 2\n", "version = 1"},
		{"bad transport", "version = 1\n[pool]\ntransport = \"carrier-pigeon\"\n", "pool.transport"},
		{"process without program", "version = 1\n[pool]\ntransport = \"process\"\n", "worker.program"},
		{"inverted thresholds", "version = 1\n[thresholds]\nmarginal = 0.5\ndefinite = 0.2\n", "marginal"},
		{"threshold out of range", "version = 1\n[thresholds]\nmarginal = 0.1\ndefinite = 1.5\n", "within [0, 1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadProfile(writeProfile(t, tt.content))
			if err == nil {
				t.Fatalf("LoadProfile() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("LoadProfile() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("LoadProfile() error = nil, want error for missing file")
	}
	if _, err := LoadProfile(""); err == nil {
		t.Fatal("LoadProfile() error = nil, want error for empty path")
	}
}

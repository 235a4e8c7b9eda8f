package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zepo-dev/zepo/internal/errtypes"
	"github.com/zepo-dev/zepo/internal/reflectbind"
	"github.com/zepo-dev/zepo/internal/token"
)

func TestLoadPackageManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "package.json")
	src := `{
		"name": "widget",
		"version": "1.2.3",
		"dependencies": {"gadget": "^2.0.0"},
		"devDependencies": {"test-tool": "~1.0.0"},
		"zepo": {"entry": "build.js", "packageNames": {"gadget": "Gadget"}},
		"license": "MIT"
	}`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m, err := LoadPackageManifest(path)
	if err != nil {
		t.Fatalf("LoadPackageManifest: %v", err)
	}
	if m.Name != "widget" || m.Version != "1.2.3" {
		t.Errorf("got Name=%q Version=%q", m.Name, m.Version)
	}
	if m.Dependencies["gadget"] != "^2.0.0" {
		t.Errorf("Dependencies[gadget] = %q", m.Dependencies["gadget"])
	}
	if m.DevDependencies["test-tool"] != "~1.0.0" {
		t.Errorf("DevDependencies[test-tool] = %q", m.DevDependencies["test-tool"])
	}
	if m.Zepo == nil || m.Zepo.Entry != "build.js" || m.Zepo.PackageNames["gadget"] != "Gadget" {
		t.Errorf("Zepo = %+v", m.Zepo)
	}
	if _, ok := m.Extra["license"]; !ok {
		t.Error("expected license to land in Extra")
	}
}

func TestLoadPackageManifest_MissingFile(t *testing.T) {
	_, err := LoadPackageManifest(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("expected error for a missing package.json")
	}
	var manifestErr *errtypes.ManifestError
	if !errors.As(err, &manifestErr) {
		t.Errorf("expected *errtypes.ManifestError, got %T", err)
	}
}

func TestLoadPackageManifest_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "package.json")
	if err := os.WriteFile(path, []byte("{not valid"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := LoadPackageManifest(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoadConfiguration_ExecDirTakesPrecedence(t *testing.T) {
	execDir := t.TempDir()
	zepoHome := t.TempDir()

	execCfg := `{"registry": "https://exec-dir.example/registry"}`
	homeCfg := `{"registry": "https://zepo-home.example/registry"}`
	if err := os.WriteFile(filepath.Join(execDir, "config.json"), []byte(execCfg), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(zepoHome, "config.json"), []byte(homeCfg), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfiguration(execDir, zepoHome)
	if err != nil {
		t.Fatalf("LoadConfiguration: %v", err)
	}
	if cfg.Registry != "https://exec-dir.example/registry" {
		t.Errorf("Registry = %q, want the exec-dir config to win", cfg.Registry)
	}
}

func TestLoadConfiguration_FallsBackToZepoHome(t *testing.T) {
	execDir := t.TempDir()
	zepoHome := t.TempDir()

	homeCfg := `{"registry": "https://zepo-home.example/registry"}`
	if err := os.WriteFile(filepath.Join(zepoHome, "config.json"), []byte(homeCfg), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfiguration(execDir, zepoHome)
	if err != nil {
		t.Fatalf("LoadConfiguration: %v", err)
	}
	if cfg.Registry != "https://zepo-home.example/registry" {
		t.Errorf("Registry = %q, want the zepo-home config", cfg.Registry)
	}
}

func TestLoadConfiguration_DefaultsWhenNeitherExists(t *testing.T) {
	execDir := t.TempDir()
	zepoHome := t.TempDir()

	cfg, err := LoadConfiguration(execDir, zepoHome)
	if err != nil {
		t.Fatalf("LoadConfiguration: %v", err)
	}
	if cfg.Registry != DefaultRegistry {
		t.Errorf("Registry = %q, want default %q", cfg.Registry, DefaultRegistry)
	}
	if cfg.AuthUsername != nil || cfg.AuthPassword != nil {
		t.Error("expected no auth credentials in the default configuration")
	}
}

func TestLoadConfiguration_AuthCredentials(t *testing.T) {
	execDir := t.TempDir()
	zepoHome := t.TempDir()

	cfg := `{"registry": "https://private.example/registry", "authUsername": "alice", "authPassword": "hunter2"}`
	if err := os.WriteFile(filepath.Join(execDir, "config.json"), []byte(cfg), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loaded, err := LoadConfiguration(execDir, zepoHome)
	if err != nil {
		t.Fatalf("LoadConfiguration: %v", err)
	}
	if loaded.AuthUsername == nil || *loaded.AuthUsername != "alice" {
		t.Errorf("AuthUsername = %v", loaded.AuthUsername)
	}
	if loaded.AuthPassword == nil || *loaded.AuthPassword != "hunter2" {
		t.Errorf("AuthPassword = %v", loaded.AuthPassword)
	}
}

func TestOutputPathCollection_ThreeShapes(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"null", `null`, nil},
		{"single string", `"include"`, []string{"include"}},
		{"array", `["include","lib"]`, []string{"include", "lib"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tok, err := token.ParseString(c.in)
			if err != nil {
				t.Fatalf("ParseString: %v", err)
			}
			var coll OutputPathCollection
			if err := coll.ParseToken(tok); err != nil {
				t.Fatalf("ParseToken: %v", err)
			}
			if len(coll.Paths) != len(c.want) {
				t.Fatalf("Paths = %v, want %v", coll.Paths, c.want)
			}
			for i := range c.want {
				if coll.Paths[i] != c.want[i] {
					t.Errorf("Paths[%d] = %q, want %q", i, coll.Paths[i], c.want[i])
				}
			}
		})
	}
}

func TestOutputPathCollection_RejectsNonStringArrayElement(t *testing.T) {
	tok, _ := token.ParseString(`[1, 2]`)
	var coll OutputPathCollection
	if err := coll.ParseToken(tok); err == nil {
		t.Fatal("expected error for a non-string array element")
	}
}

func TestOutputPathCollection_WriteTokenRoundTrip(t *testing.T) {
	coll := OutputPathCollection{Paths: []string{"include", "lib"}}
	tok, err := coll.WriteToken()
	if err != nil {
		t.Fatalf("WriteToken: %v", err)
	}
	var back OutputPathCollection
	if err := back.ParseToken(tok); err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if len(back.Paths) != 2 || back.Paths[0] != "include" || back.Paths[1] != "lib" {
		t.Errorf("round trip = %v", back.Paths)
	}
}

func TestBuildReport_BindsThroughReflectbind(t *testing.T) {
	src := `{"type":"library","paths":{"include":["include"],"lib":"lib/widget.a"}}`
	tok, err := token.ParseString(src)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	var report BuildReport
	if err := reflectbind.Parse(tok, &report); err != nil {
		t.Fatalf("reflectbind.Parse: %v", err)
	}
	if report.Type != "library" {
		t.Errorf("Type = %q", report.Type)
	}
	if len(report.Paths["include"].Paths) != 1 || report.Paths["include"].Paths[0] != "include" {
		t.Errorf("Paths[include] = %+v", report.Paths["include"])
	}
	if len(report.Paths["lib"].Paths) != 1 || report.Paths["lib"].Paths[0] != "lib/widget.a" {
		t.Errorf("Paths[lib] = %+v", report.Paths["lib"])
	}
}

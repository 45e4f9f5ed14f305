package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("BUGWALL_TEST_NAME", "wall")
	p := writeConfig(t, "name: ${BUGWALL_TEST_NAME}\n")

	cfg := sample{Port: 8080}
	if err := Load(p, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "wall" || cfg.Port != 8080 {
		t.Errorf("got %+v", cfg)
	}
}

func TestLoad_Validates(t *testing.T) {
	p := writeConfig(t, "port: -1\n")
	cfg := sample{}
	err := Load(p, &cfg)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	p := writeConfig(t, "port: [1\n")
	cfg := sample{Port: 1}
	if err := Load(p, &cfg); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg := sample{Port: 9000}
	loaded, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"), &cfg)
	if err != nil || loaded {
		t.Fatalf("loaded=%v err=%v", loaded, err)
	}
	if cfg.Port != 9000 {
		t.Errorf("defaults changed: %+v", cfg)
	}

	bad := sample{}
	if _, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"), &bad); err == nil {
		t.Error("invalid defaults accepted")
	}
}

func TestLoadOrDefault_PresentFile(t *testing.T) {
	p := writeConfig(t, "debug: true\n")
	cfg := sample{Port: 1}
	loaded, err := LoadOrDefault(p, &cfg)
	if err != nil || !loaded || !cfg.Debug {
		t.Fatalf("loaded=%v err=%v cfg=%+v", loaded, err, cfg)
	}
}

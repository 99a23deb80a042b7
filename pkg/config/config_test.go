package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

func (s *sample) Validate() error {
	if s.Count < 0 {
		return errors.New("count must not be negative")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "from-env")
	path := writeFile(t, "name: ${SAMPLE_NAME}\ncount: 3\n")

	s := sample{}
	if err := Load(path, &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "from-env" || s.Count != 3 {
		t.Errorf("loaded %+v", s)
	}
}

func TestLoad_Validates(t *testing.T) {
	path := writeFile(t, "count: -1\n")
	if err := Load(path, &sample{}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadOptional_MissingKeepsDefaults(t *testing.T) {
	s := sample{Name: "default", Count: 1}
	found, err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &s)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("found = true for a missing file")
	}
	if s.Name != "default" || s.Count != 1 {
		t.Errorf("defaults changed: %+v", s)
	}
}

func TestLoadOptional_OverlaysFile(t *testing.T) {
	path := writeFile(t, "count: 7\n")
	s := sample{Name: "default", Count: 1}
	found, err := LoadOptional(path, &s)
	if err != nil {
		t.Fatal(err)
	}
	if !found || s.Name != "default" || s.Count != 7 {
		t.Errorf("found=%v loaded %+v", found, s)
	}
}

func TestLoadOptional_ValidatesDefaults(t *testing.T) {
	s := sample{Count: -5}
	if _, err := LoadOptional("", &s); err == nil {
		t.Fatal("expected validation error for invalid defaults")
	}
}

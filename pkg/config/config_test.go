package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	Fails bool   `yaml:"fails"`
}

func (s *sample) Validate() error {
	if s.Fails {
		return errors.New("fails")
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

func TestExpand(t *testing.T) {
	t.Setenv("FEEDWISE_SET", "value")
	t.Setenv("FEEDWISE_EMPTY", "")

	cases := map[string]string{
		"${FEEDWISE_SET}":             "value",
		"$FEEDWISE_SET":               "value",
		"${FEEDWISE_UNSET_XYZ}":       "",
		"${FEEDWISE_UNSET_XYZ:-8080}": "8080",
		"${FEEDWISE_EMPTY:-dflt}":     "dflt",
		"${FEEDWISE_SET:-dflt}":       "value",
		"plain":                       "plain",
	}
	for in, want := range cases {
		if got := Expand(in); got != want {
			t.Errorf("Expand(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	t.Setenv("FEEDWISE_PORT", "9000")
	path := writeFile(t, "port: ${FEEDWISE_PORT}\n")

	s := sample{Name: "default"}
	if err := Load(path, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "default" || s.Port != 9000 {
		t.Errorf("unexpected config %+v", s)
	}
}

func TestLoadValidates(t *testing.T) {
	path := writeFile(t, "fails: true\n")
	var s sample
	if err := Load(path, &s); err == nil {
		t.Error("expected validation error")
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := writeFile(t, "port: [unterminated\n")
	var s sample
	if err := Load(path, &s); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadOptional(t *testing.T) {
	s := sample{Port: 1}
	found, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), &s)
	if err != nil || found {
		t.Fatalf("missing file: found=%v err=%v", found, err)
	}
	if s.Port != 1 {
		t.Errorf("defaults changed: %+v", s)
	}

	path := writeFile(t, "port: 2\n")
	found, err = LoadOptional(path, &s)
	if err != nil || !found || s.Port != 2 {
		t.Errorf("present file: found=%v err=%v cfg=%+v", found, err, s)
	}
}

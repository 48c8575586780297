package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func TestDecode_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("CONFIG_TEST_NAME", "folio")
	cfg := sample{Port: 8080}
	if err := Decode(strings.NewReader("name: ${CONFIG_TEST_NAME}\n"), &cfg); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Name != "folio" || cfg.Port != 8080 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestDecode_RejectsUnknownKeys(t *testing.T) {
	cfg := sample{Port: 1}
	if err := Decode(strings.NewReader("nmae: typo\n"), &cfg); err == nil {
		t.Fatal("unknown key should fail")
	}
}

func TestDecode_EmptyDocumentValidatesDefaults(t *testing.T) {
	cfg := sample{}
	err := Decode(strings.NewReader(""), &cfg)
	if err == nil || !strings.Contains(err.Error(), "port must be positive") {
		t.Errorf("err = %v, want validation failure", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg := sample{Port: 1}
	if err := Load(filepath.Join(t.TempDir(), "absent.yaml"), &cfg); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}

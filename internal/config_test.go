package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/folio/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestContentConfig_LayoutValidated(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Content.Layout.DraftsDir = cfg.Content.Layout.PostsDir
	if err := cfg.Validate(); err == nil {
		t.Fatal("shared posts and drafts dir should fail validation")
	}

	cfg = NewDefaultConfig()
	cfg.Content.Layout.RecycleDir = "../outside"
	if err := cfg.Validate(); err == nil {
		t.Fatal("recycle dir outside the root should fail validation")
	}
}

func TestEditorConfig_Bounds(t *testing.T) {
	cases := []struct {
		name string
		cfg  EditorConfig
		ok   bool
	}{
		{"defaults", EditorConfig{Debounce: time.Second, MaxSuffix: 100}, true},
		{"zero debounce", EditorConfig{MaxSuffix: 100}, false},
		{"debounce too long", EditorConfig{Debounce: time.Hour, MaxSuffix: 100}, false},
		{"suffix too small", EditorConfig{Debounce: time.Second, MaxSuffix: 1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err == nil) != tc.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tc.ok)
			}
		})
	}
}

func TestLoadConfig_FromYAML(t *testing.T) {
	t.Setenv("FOLIO_TEST_ROOT", "/srv/blog/source")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `app:
  log_level: debug
  http:
    port: 9090
content:
  root: ${FOLIO_TEST_ROOT}
  posts_dir: _posts
  drafts_dir: _drafts
  pages_dir: pages
  recycle_dir: _discarded
sqlite:
  path: ./folio.db
editor:
  debounce: 250ms
  derive_slug: false
  max_suffix: 20
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.LogLevel != slog.LevelDebug || cfg.App.HTTP.Port != 9090 {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Content.Root != "/srv/blog/source" || cfg.Content.Layout.PagesDir != "pages" {
		t.Errorf("content = %+v", cfg.Content)
	}
	if cfg.Editor.Debounce != 250*time.Millisecond || cfg.Editor.DeriveSlug || cfg.Editor.MaxSuffix != 20 {
		t.Errorf("editor = %+v", cfg.Editor)
	}
	if cfg.Auth.Mode != AuthModeDisabled {
		t.Errorf("auth mode = %q", cfg.Auth.Mode)
	}
}

package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/weft/pkg/config"
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
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestCorpusConfig_Scheme(t *testing.T) {
	tests := []struct {
		scheme string
		ok     bool
	}{
		{"weft", true},
		{"jot+v2", true},
		{"", false},
		{"Weft", false},
		{"2weft", false},
		{"we ft", false},
	}
	for _, tt := range tests {
		cfg := CorpusConfig{Path: "./corpus", Scheme: tt.scheme}
		if err := cfg.Validate(); (err == nil) != tt.ok {
			t.Errorf("scheme %q: err = %v, want ok=%v", tt.scheme, err, tt.ok)
		}
	}
}

func TestIndexConfig_SQLitePathRequiredWhenPersisting(t *testing.T) {
	cfg := IndexConfig{Persist: true}
	if err := cfg.Validate(); err == nil {
		t.Error("persist without sqlite path should fail")
	}
	cfg.Persist = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("no persistence needs no path: %v", err)
	}
}

func TestIndexConfig_NegativeDuration(t *testing.T) {
	cfg := IndexConfig{RebuildInterval: -time.Second}
	if err := cfg.Validate(); err == nil {
		t.Error("negative rebuild interval should fail")
	}
}

func TestConfig_LoadTOML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "weft.toml")
	content := `
[app]
log_level = "debug"

[app.http]
port = 9090

[corpus]
path = "/srv/corpus"
scheme = "jot"

[index]
sqlite_path = "/srv/weft.db"
persist = true
max_snapshot_age = "2h"
rebuild_interval = "0s"
`
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(p, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.LogLevel != slog.LevelDebug || cfg.App.HTTP.Port != 9090 {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Corpus.Scheme != "jot" || cfg.Index.MaxSnapshotAge != 2*time.Hour || cfg.Index.RebuildInterval != 0 {
		t.Errorf("corpus = %+v, index = %+v", cfg.Corpus, cfg.Index)
	}
	if cfg.Index.RebuildMinInterval != 10*time.Second {
		t.Error("unset keys should keep their defaults")
	}
}

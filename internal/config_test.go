package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zalando/go-keyring"

	pkgconfig "github.com/starford/feedwise/pkg/config"
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

func TestAuthConfig_KeyringMode(t *testing.T) {
	keyring.MockInit()

	cfg := AuthConfig{Mode: AuthModeKeyring}
	if err := cfg.Validate(); err == nil {
		t.Fatal("keyring mode without user should fail")
	}

	cfg.KeyringUser = "api"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("keyring mode with user should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("keyring mode should be enabled")
	}
	if err := cfg.ResolveToken(); err == nil {
		t.Fatal("resolving a missing keyring entry should fail")
	}

	if err := StoreToken("api", "from-keyring"); err != nil {
		t.Fatalf("StoreToken: %v", err)
	}
	if err := cfg.ResolveToken(); err != nil {
		t.Fatalf("ResolveToken: %v", err)
	}
	if cfg.Token != "from-keyring" {
		t.Errorf("token = %q", cfg.Token)
	}
}

func TestAuthConfig_ResolveTokenNoop(t *testing.T) {
	cfg := AuthConfig{Mode: AuthModeToken, Token: "static"}
	if err := cfg.ResolveToken(); err != nil {
		t.Fatal(err)
	}
	if cfg.Token != "static" {
		t.Errorf("token changed to %q", cfg.Token)
	}
}

func TestStoreToken_Empty(t *testing.T) {
	keyring.MockInit()
	if err := StoreToken("", "x"); err == nil {
		t.Error("empty user should fail")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestAppConfig_InvalidLanguage(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.App.Language = "not a tag!"
	if err := cfg.Validate(); err == nil {
		t.Error("bad language tag should fail")
	}
}

func TestScheduleConfig_TooShort(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Schedule.RefreshInterval = time.Millisecond
	if err := cfg.Validate(); err == nil {
		t.Error("sub-second refresh should fail")
	}
}

func TestDataConfig_SameDirs(t *testing.T) {
	cfg := DataConfig{InboxPath: "./data", BackupPath: "./data"}
	if err := cfg.Validate(); err == nil {
		t.Error("shared inbox and backup dir should fail")
	}
	cfg = DataConfig{InboxPath: "./inbox", BackupPath: "./backups", BackupKeep: -1}
	if err := cfg.Validate(); err == nil {
		t.Error("negative backup_keep should fail")
	}
}

func TestNotificationsConfig_NegativeVibrate(t *testing.T) {
	cfg := NotificationsConfig{Vibrate: []int{200, -1}}
	if err := cfg.Validate(); err == nil {
		t.Error("negative vibrate step should fail")
	}
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("FEEDWISE_TEST_TOKEN", "env-secret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `app:
  log_level: DEBUG
  language: fa
  http:
    port: 9090
sqlite:
  path: /tmp/feedwise.db
auth:
  mode: token
  token: ${FEEDWISE_TEST_TOKEN}
notifications:
  sse: true
  websocket: false
  vibrate: [100, 50]
data:
  inbox_path: ./in
  backup_path: ""
schedule:
  refresh_interval: 30s
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.LogLevel != slog.LevelDebug || cfg.App.Language != "fa" || cfg.App.HTTP.Port != 9090 {
		t.Errorf("unexpected app config %+v", cfg.App)
	}
	if cfg.Auth.Token != "env-secret" {
		t.Errorf("token = %q, want env expansion", cfg.Auth.Token)
	}
	if cfg.Notifications.WebSocket || len(cfg.Notifications.Vibrate) != 2 {
		t.Errorf("unexpected notifications %+v", cfg.Notifications)
	}
	if cfg.Notifications.Icon != "/icon-192.png" {
		t.Errorf("icon default lost: %q", cfg.Notifications.Icon)
	}
	if cfg.Data.BackupPath != "" {
		t.Errorf("backup path = %q", cfg.Data.BackupPath)
	}
	if cfg.Schedule.RefreshInterval != 30*time.Second {
		t.Errorf("refresh = %v", cfg.Schedule.RefreshInterval)
	}
}

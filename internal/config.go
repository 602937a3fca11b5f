package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/zalando/go-keyring"
	"golang.org/x/text/language"

	"github.com/starford/feedwise/internal/reminder"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
	AuthModeKeyring  = "keyring"
)

// KeyringService is the OS keyring service name the API token is stored under.
const KeyringService = "feedwise"

// Config represents the application configuration.
type Config struct {
	App           ApplicationConfig   `yaml:"app"`
	SQLite        SQLiteConfig        `yaml:"sqlite"`
	Auth          AuthConfig          `yaml:"auth"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Data          DataConfig          `yaml:"data"`
	Schedule      ScheduleConfig      `yaml:"schedule"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Notifications.Validate(); err != nil {
		return err
	}
	if err := c.Data.Validate(); err != nil {
		return err
	}
	return c.Schedule.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	Language string     `yaml:"language"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Language, validation.By(validLanguage)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

func validLanguage(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := language.Parse(s); err != nil {
		return errors.New("must be a BCP 47 language tag")
	}
	return nil
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
//   - "keyring": Bearer token authentication; the token is read from the OS
//     keyring entry of KeyringUser by ResolveToken.
type AuthConfig struct {
	Mode        string `yaml:"mode"`
	Token       string `yaml:"token"`
	KeyringUser string `yaml:"keyring_user"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken, AuthModeKeyring)),
		validation.Field(&c.KeyringUser, validation.When(c.Mode == AuthModeKeyring, validation.Required)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken || c.Mode == AuthModeKeyring
}

// ResolveToken loads the token from the OS keyring in keyring mode. Other
// modes are left untouched.
func (c *AuthConfig) ResolveToken() error {
	if c.Mode != AuthModeKeyring {
		return nil
	}
	token, err := keyring.Get(KeyringService, c.KeyringUser)
	if err != nil {
		return fmt.Errorf("auth: read token of %q from keyring: %w", c.KeyringUser, err)
	}
	if token == "" {
		return fmt.Errorf("auth: keyring token of %q is empty", c.KeyringUser)
	}
	c.Token = token
	return nil
}

// StoreToken saves token in the OS keyring for user.
func StoreToken(user, token string) error {
	if user == "" || token == "" {
		return errors.New("auth: user and token are required")
	}
	if err := keyring.Set(KeyringService, user, token); err != nil {
		return fmt.Errorf("auth: store token in keyring: %w", err)
	}
	return nil
}

// NotificationsConfig selects the notification sinks and the payload
// defaults of every reminder.
type NotificationsConfig struct {
	SSE       bool   `yaml:"sse"`
	WebSocket bool   `yaml:"websocket"`
	Icon      string `yaml:"icon"`
	Vibrate   []int  `yaml:"vibrate"`
}

// Validate validates the notifications configuration.
func (c *NotificationsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Vibrate, validation.Each(validation.Min(0), validation.Max(10000))),
	)
}

// DataConfig holds the import inbox and backup directories. An empty path
// disables the feature. BackupKeep bounds the number of stored backups; zero
// keeps every backup.
type DataConfig struct {
	InboxPath  string `yaml:"inbox_path"`
	BackupPath string `yaml:"backup_path"`
	BackupKeep int    `yaml:"backup_keep"`
}

// Validate validates the data configuration.
func (c *DataConfig) Validate() error {
	if c.InboxPath != "" && c.InboxPath == c.BackupPath {
		return errors.New("data: inbox_path and backup_path must differ")
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.BackupKeep, validation.Min(0)),
	)
}

// ScheduleConfig holds the periodic schedule refresh settings.
type ScheduleConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// Validate validates the schedule configuration.
func (c *ScheduleConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RefreshInterval, validation.Required, validation.Min(time.Second)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			Language: "en",
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./feedwise.db",
		},
		Auth: AuthConfig{
			Mode:        AuthModeDisabled,
			KeyringUser: "api",
		},
		Notifications: NotificationsConfig{
			SSE:       true,
			WebSocket: true,
			Icon:      reminder.DefaultIcon,
			Vibrate:   append([]int(nil), reminder.DefaultVibrate...),
		},
		Data: DataConfig{
			InboxPath:  "./data/inbox",
			BackupPath: "./data/backups",
			BackupKeep: 30,
		},
		Schedule: ScheduleConfig{
			RefreshInterval: time.Minute,
		},
	}
}

package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

var schemeRe = regexp.MustCompile(`^[a-z][a-z0-9+.-]*$`)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app" toml:"app"`
	Corpus CorpusConfig      `yaml:"corpus" toml:"corpus"`
	Index  IndexConfig       `yaml:"index" toml:"index"`
	Auth   AuthConfig        `yaml:"auth" toml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Corpus.Validate(); err != nil {
		return err
	}
	if err := c.Index.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" toml:"log_level"`
	HTTP     HTTPConfig `yaml:"http" toml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" toml:"port"`
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

// CorpusConfig locates the document corpus and names the stable link scheme.
type CorpusConfig struct {
	Path   string `yaml:"path" toml:"path"`
	Scheme string `yaml:"scheme" toml:"scheme"`
}

// Validate validates the corpus configuration.
func (c *CorpusConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Scheme, validation.Required, validation.Match(schemeRe)),
	)
}

// IndexConfig controls snapshot persistence and rebuild scheduling.
//
// MaxSnapshotAge bounds how old a persisted snapshot may be before startup
// triggers a background rebuild. RebuildInterval schedules periodic full
// rebuilds (0 disables them). RebuildMinInterval throttles manual rebuild
// requests over HTTP (0 disables throttling).
type IndexConfig struct {
	SQLitePath         string        `yaml:"sqlite_path" toml:"sqlite_path"`
	Persist            bool          `yaml:"persist" toml:"persist"`
	MaxSnapshotAge     time.Duration `yaml:"max_snapshot_age" toml:"max_snapshot_age"`
	RebuildInterval    time.Duration `yaml:"rebuild_interval" toml:"rebuild_interval"`
	RebuildMinInterval time.Duration `yaml:"rebuild_min_interval" toml:"rebuild_min_interval"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SQLitePath, validation.When(c.Persist, validation.Required)),
		validation.Field(&c.MaxSnapshotAge, validation.Min(time.Duration(0))),
		validation.Field(&c.RebuildInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.RebuildMinInterval, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" toml:"mode"`
	Token string `yaml:"token" toml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
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
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Corpus: CorpusConfig{
			Path:   "./corpus",
			Scheme: "weft",
		},
		Index: IndexConfig{
			SQLitePath:         "./weft.db",
			Persist:            true,
			MaxSnapshotAge:     24 * time.Hour,
			RebuildInterval:    time.Hour,
			RebuildMinInterval: 10 * time.Second,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Overlay backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Remote modes.
const (
	RemoteModeMarvel  = "marvel"
	RemoteModeFixture = "fixture"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Auth    AuthConfig        `yaml:"auth"`
	Overlay OverlayConfig     `yaml:"overlay"`
	Remote  RemoteConfig      `yaml:"remote"`
	Catalog CatalogConfig     `yaml:"catalog"`
	Events  EventsConfig      `yaml:"events"`
	MCP     MCPConfig         `yaml:"mcp"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    interface{ Validate() error }
	}{
		{"app", &c.App},
		{"auth", &c.Auth},
		{"overlay", &c.Overlay},
		{"remote", &c.Remote},
		{"catalog", &c.Catalog},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
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

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
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

// OverlayConfig selects where local characters, tombstones and saved
// sessions are kept. Path is a directory for "file" and a database file
// for "sqlite"; "memory" keeps nothing across restarts.
type OverlayConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	// Watch reloads the file backend when it's edited outside the process.
	Watch bool `yaml:"watch"`
}

// Validate validates the overlay configuration.
func (c *OverlayConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendFile, BackendSQLite, BackendMemory)),
		validation.Field(&c.Path, validation.When(c.Backend != BackendMemory, validation.Required)),
	)
}

// RemoteConfig configures the read-only character source.
type RemoteConfig struct {
	Mode          string        `yaml:"mode"`
	BaseURL       string        `yaml:"base_url"`
	PublicKey     string        `yaml:"public_key"`
	PrivateKey    string        `yaml:"private_key"`
	FixturePath   string        `yaml:"fixture_path"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
}

// Validate validates the remote configuration.
func (c *RemoteConfig) Validate() error {
	marvel := c.Mode == RemoteModeMarvel
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(RemoteModeMarvel, RemoteModeFixture)),
		validation.Field(&c.BaseURL, is.URL),
		validation.Field(&c.PublicKey, validation.When(marvel, validation.Required)),
		validation.Field(&c.PrivateKey, validation.When(marvel, validation.Required)),
		validation.Field(&c.FixturePath, validation.When(c.Mode == RemoteModeFixture, validation.Required)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.RatePerSecond, validation.Min(0.0)),
		validation.Field(&c.Burst, validation.Min(0)),
	)
}

// CatalogConfig tunes the reconciliation engine and image URLs.
type CatalogConfig struct {
	PageSize          int           `yaml:"page_size"`
	SimulatedLatency  time.Duration `yaml:"simulated_latency"`
	ThumbnailVariant  string        `yaml:"thumbnail_variant"`
	ThumbnailFallback string        `yaml:"thumbnail_fallback"`
}

// Validate validates the catalog configuration.
func (c *CatalogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PageSize, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.SimulatedLatency, validation.Min(time.Duration(0)), validation.Max(10*time.Second)),
	)
}

// EventsConfig configures the SSE stream.
type EventsConfig struct {
	// ChangedThrottle is the minimum gap between catalog.changed events.
	ChangedThrottle time.Duration `yaml:"changed_throttle"`
}

// MCPConfig controls the MCP stdio server.
type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
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
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Overlay: OverlayConfig{
			Backend: BackendFile,
			Path:    "./data",
			Watch:   true,
		},
		Remote: RemoteConfig{
			Mode:          RemoteModeMarvel,
			Timeout:       10 * time.Second,
			RatePerSecond: 5,
			Burst:         5,
		},
		Catalog: CatalogConfig{
			PageSize: 20,
		},
		Events: EventsConfig{
			ChangedThrottle: 2 * time.Second,
		},
		MCP: MCPConfig{
			Enabled: true,
		},
	}
}

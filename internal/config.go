package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/ghostwriter/internal/ghost"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Vault   VaultConfig       `yaml:"vault"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Ghost   GhostConfig       `yaml:"ghost"`
	Publish PublishConfig     `yaml:"publish"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Ghost.Validate(); err != nil {
		return err
	}
	return c.Publish.Validate()
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

// VaultConfig holds the path to the Markdown vault directory and the
// folder attachments are looked up in first.
type VaultConfig struct {
	Path          string `yaml:"path"`
	AttachmentDir string `yaml:"attachment_dir"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
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
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
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
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./ghostwriter.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Ghost: GhostConfig{
			APIVersion: ghost.DefaultVersion,
		},
		Publish: PublishConfig{
			FirstAsFeatured:   true,
			Enrich:            true,
			EnrichTimeout:     10 * time.Second,
			EnrichConcurrency: 4,
			UploadConcurrency: 4,
		},
	}
}

var adminKeyRe = regexp.MustCompile(`^[0-9a-fA-F]+:[0-9a-fA-F]+$`)

// GhostConfig holds the Ghost site and Admin API credentials.
//
// AdminKey is the "id:secret" pair of a custom integration. BaseURL is the
// public prefix notes link to each other under; it defaults to URL.
type GhostConfig struct {
	URL        string `yaml:"url"`
	AdminKey   string `yaml:"admin_key"`
	BaseURL    string `yaml:"base_url"`
	APIVersion string `yaml:"api_version"`
}

// Validate validates the Ghost configuration. An empty section is valid;
// commands that talk to Ghost check Configured.
func (c *GhostConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, is.URL),
		validation.Field(&c.BaseURL, is.URL),
		validation.Field(&c.AdminKey, validation.Match(adminKeyRe).Error("must be id:secret in hex")),
		validation.Field(&c.APIVersion, validation.Match(regexp.MustCompile(`^(v\d+(\.\d+)?)?$`))),
	)
}

// Configured reports whether the site URL and admin key are both set.
func (c *GhostConfig) Configured() bool {
	return c.URL != "" && c.AdminKey != ""
}

// LinkBase returns the prefix used for links between published notes.
func (c *GhostConfig) LinkBase() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return c.URL
}

// PublishConfig holds pipeline and publish behaviour.
type PublishConfig struct {
	FirstAsFeatured   bool          `yaml:"first_as_featured"`
	UploadAssets      bool          `yaml:"upload_assets"`
	OpenBrowser       bool          `yaml:"open_browser"`
	Enrich            bool          `yaml:"enrich"`
	EnrichTimeout     time.Duration `yaml:"enrich_timeout"`
	EnrichConcurrency int           `yaml:"enrich_concurrency"`
	UploadConcurrency int           `yaml:"upload_concurrency"`
}

// Validate validates the publish configuration.
func (c *PublishConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.EnrichTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.EnrichConcurrency, validation.Min(1), validation.Max(64)),
		validation.Field(&c.UploadConcurrency, validation.Min(1), validation.Max(64)),
	)
}

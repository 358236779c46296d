package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dossier/internal/dossier"
	"github.com/starford/dossier/internal/kv"
	"github.com/starford/dossier/internal/summary"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig       `yaml:"app"`
	Storage    StorageConfig           `yaml:"storage"`
	Autosave   AutosaveConfig          `yaml:"autosave"`
	Evidence   summary.Thresholds      `yaml:"evidence"`
	Completion map[string]summary.Rule `yaml:"completion"`
	Reviewer   ReviewerConfig          `yaml:"reviewer"`
	Auth       AuthConfig              `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Autosave.Validate(); err != nil {
		return err
	}
	if err := validateThresholds(&c.Evidence); err != nil {
		return err
	}
	for id, rule := range c.Completion {
		if !dossier.KnownStep(id) {
			return fmt.Errorf("completion: unknown step %q", id)
		}
		for _, check := range rule.AnyOf {
			if err := validation.ValidateStruct(&check,
				validation.Field(&check.Field, validation.Required),
				validation.Field(&check.Kind, validation.Required,
					validation.In(summary.CheckText, summary.CheckPositive, summary.CheckAnyTrue)),
			); err != nil {
				return fmt.Errorf("completion: step %s: %w", id, err)
			}
		}
	}
	return c.Auth.Validate()
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

// StorageConfig selects the key/value backend that holds dossiers.
//
// Path is the directory of the fs backend or the database file of the
// sqlite backend. RedisURL and RedisPrefix apply to the redis backend.
type StorageConfig struct {
	Backend     string `yaml:"backend"`
	Namespace   string `yaml:"namespace"`
	Path        string `yaml:"path"`
	RedisURL    string `yaml:"redis_url"`
	RedisPrefix string `yaml:"redis_prefix"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = kv.BackendMemory
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required,
			validation.In(kv.BackendMemory, kv.BackendFS, kv.BackendSQLite, kv.BackendRedis)),
		validation.Field(&c.Namespace, validation.Required),
		validation.Field(&c.Path,
			validation.When(c.Backend == kv.BackendFS || c.Backend == kv.BackendSQLite, validation.Required)),
		validation.Field(&c.RedisURL,
			validation.When(c.Backend == kv.BackendRedis, validation.Required)),
	)
}

// KVOptions converts the section into backend options.
func (c *StorageConfig) KVOptions() kv.Options {
	return kv.Options{
		Backend:     c.Backend,
		Path:        c.Path,
		RedisURL:    c.RedisURL,
		RedisPrefix: c.RedisPrefix,
	}
}

// AutosaveConfig holds the debounce windows of pending writes.
type AutosaveConfig struct {
	Debounce       time.Duration `yaml:"debounce"`
	ReviewDebounce time.Duration `yaml:"review_debounce"`
}

// Validate validates the autosave configuration.
func (c *AutosaveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Required, validation.Max(time.Minute)),
		validation.Field(&c.ReviewDebounce, validation.Required, validation.Max(time.Minute)),
	)
}

func validateThresholds(th *summary.Thresholds) error {
	err := validation.ValidateStruct(th,
		validation.Field(&th.MinSessions, validation.Min(0)),
		validation.Field(&th.MinQuotes, validation.Min(0)),
		validation.Field(&th.MinWorkarounds, validation.Min(0)),
		validation.Field(&th.MinBaselineSignals, validation.Min(0)),
		validation.Field(&th.TopPains, validation.Min(1)),
	)
	if err != nil {
		return fmt.Errorf("evidence: %w", err)
	}
	return nil
}

// ReviewerConfig holds the shared reviewer key. An empty key leaves the
// reviewer gate unconfigured.
type ReviewerConfig struct {
	Key string `yaml:"key"`
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			Backend:     kv.BackendFS,
			Namespace:   "rhs",
			Path:        "./data",
			RedisPrefix: "dossier:",
		},
		Autosave: AutosaveConfig{
			Debounce:       300 * time.Millisecond,
			ReviewDebounce: 350 * time.Millisecond,
		},
		Evidence: summary.DefaultThresholds(),
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

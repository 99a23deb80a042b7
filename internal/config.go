package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/specmon/internal/params"
	"github.com/starford/specmon/internal/producer"
	"github.com/starford/specmon/internal/render"
	"github.com/starford/specmon/internal/scheduler"
	"github.com/starford/specmon/internal/storage"
	"github.com/starford/specmon/internal/trace"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Store     StoreConfig       `yaml:"store"`
	Render    RenderConfig      `yaml:"render"`
	Params    ParamsConfig      `yaml:"params"`
	History   HistoryConfig     `yaml:"history"`
	Snapshots SnapshotsConfig   `yaml:"snapshots"`
	Auth      AuthConfig        `yaml:"auth"`
	Producer  ProducerConfig    `yaml:"producer"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Render.Validate(); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := c.Params.Validate(); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	if err := c.History.Validate(); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if err := c.Snapshots.Validate(); err != nil {
		return fmt.Errorf("snapshots: %w", err)
	}
	if err := c.Producer.Validate(); err != nil {
		return fmt.Errorf("producer: %w", err)
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

// StoreConfig locates the frame artifacts.
type StoreConfig struct {
	Dir        string `yaml:"dir"`
	Layout     string `yaml:"layout"`
	Descriptor string `yaml:"descriptor"`
	Payload    string `yaml:"payload"`
	Envelope   string `yaml:"envelope"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.Layout, validation.In(storage.LayoutPair, storage.LayoutEnvelope)),
	)
}

// Options converts the section to storage options.
func (c *StoreConfig) Options() storage.Options {
	return storage.Options{
		Dir:        c.Dir,
		Layout:     c.Layout,
		Descriptor: c.Descriptor,
		Payload:    c.Payload,
		Envelope:   c.Envelope,
	}
}

// RenderConfig controls the scheduler and image output.
type RenderConfig struct {
	Mode           string        `yaml:"mode"`
	Period         time.Duration `yaml:"period"`
	MaxTraces      int           `yaml:"max_traces"`
	FallbackWidth  int           `yaml:"fallback_width"`
	FallbackHeight int           `yaml:"fallback_height"`
	Colormap       string        `yaml:"colormap"`
	ImageWidth     int           `yaml:"image_width"`
}

// Validate validates the render configuration.
func (c *RenderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required,
			validation.In(string(scheduler.ModeHeatmap), string(scheduler.ModeTrace))),
		validation.Field(&c.Period, validation.Required, validation.Min(10*time.Millisecond)),
		validation.Field(&c.MaxTraces, validation.Required, validation.Min(1)),
		validation.Field(&c.FallbackWidth, validation.Required, validation.Min(1)),
		validation.Field(&c.FallbackHeight, validation.Required, validation.Min(1)),
		validation.Field(&c.Colormap, validation.In(anySlice(render.Colormaps())...)),
		validation.Field(&c.ImageWidth, validation.Min(render.MinImageWidth), validation.Max(render.MaxImageWidth)),
	)
}

// Scheduler converts the section to a scheduler configuration.
func (c *RenderConfig) Scheduler() scheduler.Config {
	return scheduler.Config{
		Mode:           scheduler.Mode(c.Mode),
		Period:         c.Period,
		MaxTraces:      c.MaxTraces,
		FallbackWidth:  c.FallbackWidth,
		FallbackHeight: c.FallbackHeight,
	}
}

// ParamsConfig holds the initial contrast controls and an optional file
// that overrides them live.
type ParamsConfig struct {
	Gain   float64 `yaml:"gain"`
	Offset float64 `yaml:"offset"`
	File   string  `yaml:"file"`
}

// Validate validates the params configuration.
func (c *ParamsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Gain, validation.Min(params.MinGain), validation.Max(params.MaxGain)),
		validation.Field(&c.Offset, validation.Min(params.MinOffset), validation.Max(params.MaxOffset)),
	)
}

// Initial returns the starting parameters.
func (c *ParamsConfig) Initial() params.Params {
	return params.Params{Gain: c.Gain, Offset: c.Offset}
}

// HistoryConfig holds the render history database configuration.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Retain  int    `yaml:"retain"`
}

// Validate validates the history configuration.
func (c *HistoryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.Retain, validation.Min(0)),
	)
}

// SnapshotsConfig holds the snapshot output directory.
type SnapshotsConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the snapshots configuration.
func (c *SnapshotsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// ProducerConfig controls the built-in synthetic producer.
type ProducerConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Width     int           `yaml:"width"`
	Height    int           `yaml:"height"`
	Period    time.Duration `yaml:"period"`
	TornDelay time.Duration `yaml:"torn_delay"`
}

// Validate validates the producer configuration.
func (c *ProducerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Width, validation.Min(1)),
		validation.Field(&c.Height, validation.Min(1)),
		validation.Field(&c.Period, validation.Min(10*time.Millisecond)),
		validation.Field(&c.TornDelay, validation.Min(time.Duration(0))),
	)
}

// Producer converts the section to a producer configuration.
func (c *ProducerConfig) Producer() producer.Config {
	return producer.Config{
		Width:     c.Width,
		Height:    c.Height,
		Period:    c.Period,
		TornDelay: c.TornDelay,
		VaryShape: c.TornDelay > 0,
	}
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
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

func anySlice(names []string) []any {
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
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
		Store: StoreConfig{
			Dir:    "./frames",
			Layout: storage.LayoutPair,
		},
		Render: RenderConfig{
			Mode:           string(scheduler.ModeHeatmap),
			Period:         scheduler.DefaultPeriod,
			MaxTraces:      trace.DefaultMaxTraces,
			FallbackWidth:  scheduler.DefaultFallbackWidth,
			FallbackHeight: scheduler.DefaultFallbackHeight,
			Colormap:       "viridis",
			ImageWidth:     render.DefaultImageWidth,
		},
		Params: ParamsConfig{
			Gain:   params.DefaultGain,
			Offset: params.DefaultOffset,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "./specmon.db",
			Retain:  10000,
		},
		Snapshots: SnapshotsConfig{
			Dir: "./snapshots",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Producer: ProducerConfig{
			Width:  producer.DefaultWidth,
			Height: producer.DefaultHeight,
			Period: producer.DefaultPeriod,
		},
	}
}

package config

import (
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/global-bar/bar-web/internal/errors"
	"github.com/global-bar/bar-web/pkg/collision"
	"github.com/global-bar/bar-web/pkg/pacing"
	"github.com/global-bar/bar-web/pkg/protocol"
	"github.com/global-bar/bar-web/pkg/session"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "bar.json"

	DefaultBaseURL   = "http://localhost:8080"
	DefaultRoom      = "bar"
	DefaultHeartbeat = "15s"
	DefaultFPS       = 60
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	maxFPS = 240
)

// Config represents bar.json.
type Config struct {
	// BaseURL is the room server, e.g. "http://localhost:8080".
	BaseURL string `json:"baseUrl,omitempty"`

	// Room is the room id to join.
	Room string `json:"room,omitempty"`

	// Nickname is the display name. Empty means the CLI picks one.
	Nickname string `json:"nickname,omitempty"`

	Avatar protocol.Avatar `json:"avatar,omitempty"`

	Reconnect ReconnectConfig `json:"reconnect,omitempty"`

	// HeartbeatInterval is the ping period, e.g. "15s". "0s" disables it.
	HeartbeatInterval string `json:"heartbeatInterval,omitempty"`

	Map MapConfig `json:"map,omitempty"`

	Render RenderConfig `json:"render,omitempty"`

	Log LogConfig `json:"log,omitempty"`

	Debug DebugConfig `json:"debug,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ReconnectConfig is the reconnect policy.
type ReconnectConfig struct {
	Base        string `json:"base,omitempty"`
	Max         string `json:"max,omitempty"`
	MaxAttempts int    `json:"maxAttempts,omitempty"`
}

// MapConfig locates the collision map.
type MapConfig struct {
	// Source is a file path, "s3://bucket/key", or "builtin:bar".
	// Empty disables movement prediction.
	Source string `json:"source,omitempty"`

	S3 S3Config `json:"s3,omitempty"`
}

// S3Config configures the object store client for s3:// map sources.
type S3Config struct {
	Region          string `json:"region,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
	UsePathStyle    bool   `json:"usePathStyle,omitempty"`
	AccessKeyID     string `json:"accessKeyId,omitempty"`
	SecretAccessKey string `json:"secretAccessKey,omitempty"`
}

// RenderConfig tunes interpolation.
type RenderConfig struct {
	FPS      int     `json:"fps,omitempty"`
	MaxAlpha float64 `json:"maxAlpha,omitempty"`
	DeadZone float64 `json:"deadZone,omitempty"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty"`
}

// DebugConfig configures the debug HTTP listener.
type DebugConfig struct {
	// Addr is the listen address. Empty disables the listener.
	Addr string `json:"addr,omitempty"`
}

// New creates a Config with default values.
func New() *Config {
	defaults := session.DefaultBackoff()
	smoothing := pacing.DefaultSmoothing()
	return &Config{
		BaseURL: DefaultBaseURL,
		Room:    DefaultRoom,
		Avatar:  protocol.Avatar{Skin: "default", Color: "cyan"},
		Reconnect: ReconnectConfig{
			Base:        defaults.Base.String(),
			Max:         defaults.Cap.String(),
			MaxAttempts: defaults.MaxAttempts,
		},
		HeartbeatInterval: DefaultHeartbeat,
		Map:               MapConfig{Source: collision.BuiltinBar},
		Render: RenderConfig{
			FPS:      DefaultFPS,
			MaxAlpha: smoothing.MaxAlpha,
			DeadZone: smoothing.DeadZone,
		},
		Log: LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}

// Load reads bar.json from dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from path. Fields absent from the file keep
// their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E100").
				WithDetail("No " + filepath.Base(path) + " found in " + filepath.Dir(path)).
				WithSuggestion("Run 'bar config init' to write one with defaults")
		}
		return nil, errors.New("E100").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		be := errors.New("E100").Wrap(err).WithSuggestion("Check that " + filepath.Base(path) + " is valid JSON")
		var syn *json.SyntaxError
		var typ *json.UnmarshalTypeError
		switch {
		case stderrors.As(err, &syn):
			be.WithOffset(path, data, syn.Offset)
		case stderrors.As(err, &typ):
			be.WithOffset(path, data, typ.Offset)
		}
		return nil, be
	}

	cfg.configPath = path
	cfg.applyDefaults()
	return cfg, nil
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E104").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New("E104").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	def := New()
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	if c.Room == "" {
		c.Room = def.Room
	}
	if c.Avatar.Skin == "" {
		c.Avatar.Skin = def.Avatar.Skin
	}
	if c.Avatar.Color == "" {
		c.Avatar.Color = def.Avatar.Color
	}
	if c.Reconnect.Base == "" {
		c.Reconnect.Base = def.Reconnect.Base
	}
	if c.Reconnect.Max == "" {
		c.Reconnect.Max = def.Reconnect.Max
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = def.Reconnect.MaxAttempts
	}
	if c.HeartbeatInterval == "" {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.Render.FPS == 0 {
		c.Render.FPS = def.Render.FPS
	}
	if c.Render.MaxAlpha == 0 {
		c.Render.MaxAlpha = def.Render.MaxAlpha
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// ApplyEnv overrides fields from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set("BAR_BASE_URL", &c.BaseURL)
	set("BAR_ROOM", &c.Room)
	set("BAR_NICKNAME", &c.Nickname)
	set("BAR_LOG_LEVEL", &c.Log.Level)
	set("BAR_MAP", &c.Map.Source)
}

// Validate checks that the configuration can be used to connect.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("E101").WithDetail("baseUrl is empty")
	}
	if c.Room == "" {
		return errors.New("E101").WithDetail("room is empty")
	}
	if _, err := c.Backoff(); err != nil {
		return err
	}
	if _, err := c.Heartbeat(); err != nil {
		return err
	}
	if c.Reconnect.MaxAttempts < 0 {
		return errors.New("E103").WithDetail("reconnect.maxAttempts must not be negative")
	}
	if c.Render.FPS < 1 || c.Render.FPS > maxFPS {
		return errors.New("E103").WithDetail("render.fps must be between 1 and 240")
	}
	if c.Render.MaxAlpha <= 0 || c.Render.MaxAlpha >= 1 {
		return errors.New("E103").WithDetail("render.maxAlpha must lie strictly between 0 and 1")
	}
	if c.Render.DeadZone < 0 {
		return errors.New("E103").WithDetail("render.deadZone must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.New("E103").WithDetail("log.level must be debug, info, warn or error, not " + c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New("E103").WithDetail("log.format must be text or json, not " + c.Log.Format)
	}
	return nil
}

// =============================================================================
// Accessors
// =============================================================================

func parseDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, errors.New("E102").
			WithDetail(field + " is " + `"` + value + `"`).
			WithSuggestion(`Use a duration such as "500ms" or "15s"`)
	}
	return d, nil
}

// Backoff returns the reconnect policy.
func (c *Config) Backoff() (session.Backoff, error) {
	base, err := parseDuration("reconnect.base", c.Reconnect.Base)
	if err != nil {
		return session.Backoff{}, err
	}
	capDelay, err := parseDuration("reconnect.max", c.Reconnect.Max)
	if err != nil {
		return session.Backoff{}, err
	}
	return session.Backoff{Base: base, Cap: capDelay, MaxAttempts: c.Reconnect.MaxAttempts}, nil
}

// Heartbeat returns the ping period. Zero disables the heartbeat.
func (c *Config) Heartbeat() (time.Duration, error) {
	return parseDuration("heartbeatInterval", c.HeartbeatInterval)
}

// FrameInterval returns the render frame period.
func (c *Config) FrameInterval() time.Duration {
	fps := c.Render.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	return time.Second / time.Duration(fps)
}

// Smoothing returns the interpolation settings.
func (c *Config) Smoothing() pacing.Smoothing {
	s := pacing.DefaultSmoothing()
	if c.Render.MaxAlpha > 0 {
		s.MaxAlpha = c.Render.MaxAlpha
	}
	s.DeadZone = c.Render.DeadZone
	return s
}

// S3Options returns the object store client settings.
func (c *Config) S3Options() collision.S3Options {
	return collision.S3Options{
		Region:          c.Map.S3.Region,
		Endpoint:        c.Map.S3.Endpoint,
		UsePathStyle:    c.Map.S3.UsePathStyle,
		AccessKeyID:     c.Map.S3.AccessKeyID,
		SecretAccessKey: c.Map.S3.SecretAccessKey,
	}
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/john/emoterain/internal/catalog"
	"github.com/john/emoterain/internal/emote"
	"github.com/john/emoterain/internal/kick"
)

// Config holds the application configuration
type Config struct {
	Twitch   TwitchConfig   `yaml:"twitch"`
	Kick     KickConfig     `yaml:"kick"`
	Emotes   EmotesConfig   `yaml:"emotes"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Server   ServerConfig   `yaml:"server"`
	Overlay  OverlayConfig  `yaml:"overlay"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Log      LogConfig      `yaml:"log"`
}

// TwitchConfig holds Twitch-specific configuration.
// Leaving both username and oauth empty connects anonymously.
type TwitchConfig struct {
	Username string   `yaml:"username"`
	OAuth    string   `yaml:"oauth"`
	Channels []string `yaml:"channels"`
}

// KickConfig holds Kick-specific configuration
type KickConfig struct {
	Enabled  bool                 `yaml:"enabled"`
	Channels []kick.ChannelConfig `yaml:"channels"`
}

// EmotesConfig holds per-message emote limits. Limits are pointers so an
// explicit 0 can be told apart from an omitted key.
type EmotesConfig struct {
	MaximumEmoteLimit       *int     `yaml:"maximum_emote_limit"`
	MaximumEmoteLimitPleb   *int     `yaml:"maximum_emote_limit_pleb"`
	DuplicateEmoteLimit     *int     `yaml:"duplicate_emote_limit"`
	DuplicateEmoteLimitPleb *int     `yaml:"duplicate_emote_limit_pleb"`
	PlatformEmotes          []string `yaml:"platform_emotes"`
}

// CatalogConfig holds community emote catalog configuration
type CatalogConfig struct {
	ServiceURL       string   `yaml:"service_url"`
	AssetURLTemplate string   `yaml:"asset_url_template"`
	RefreshMinutes   int      `yaml:"refresh_minutes"` // 0 fetches once at startup
	TimeoutSeconds   int      `yaml:"timeout_seconds"`
	S3               S3Config `yaml:"s3"`
}

// S3Config holds the optional catalog mirror configuration
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	Endpoint        string `yaml:"endpoint"`          // For S3-compatible services
	RoleARN         string `yaml:"role_arn"`          // IAM role ARN for OIDC authentication
	AccessKeyID     string `yaml:"access_key_id"`     // Legacy: static credentials
	SecretAccessKey string `yaml:"secret_access_key"` // Legacy: static credentials
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// OverlayConfig holds websocket overlay configuration
type OverlayConfig struct {
	MaxBatchesPerSecond float64 `yaml:"max_batches_per_second"`
	Burst               int     `yaml:"burst"`
	ClientBuffer        int     `yaml:"client_buffer"`
}

// PipelineConfig holds message pipeline configuration
type PipelineConfig struct {
	BufferSize int `yaml:"buffer_size"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if oauth := os.Getenv("TWITCH_OAUTH"); oauth != "" {
		c.Twitch.OAuth = oauth
	}
	if serviceURL := os.Getenv("CATALOG_SERVICE_URL"); serviceURL != "" {
		c.Catalog.ServiceURL = serviceURL
	}
	if roleARN := os.Getenv("AWS_ROLE_ARN"); roleARN != "" {
		c.Catalog.S3.RoleARN = roleARN
	}
	if keyID := os.Getenv("S3_ACCESS_KEY_ID"); keyID != "" {
		c.Catalog.S3.AccessKeyID = keyID
	}
	if secretKey := os.Getenv("S3_SECRET_ACCESS_KEY"); secretKey != "" {
		c.Catalog.S3.SecretAccessKey = secretKey
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		c.Log.Format = format
	}
}

func (c *Config) applyDefaults() {
	if len(c.Twitch.Channels) == 0 {
		c.Twitch.Channels = []string{"moonmoon"}
	}
	if c.Emotes.MaximumEmoteLimit == nil {
		c.Emotes.MaximumEmoteLimit = intPtr(5)
	}
	if c.Emotes.DuplicateEmoteLimit == nil {
		c.Emotes.DuplicateEmoteLimit = intPtr(1)
	}
	if c.Catalog.ServiceURL == "" {
		c.Catalog.ServiceURL = catalog.DefaultServiceURL
	}
	if c.Catalog.AssetURLTemplate == "" {
		c.Catalog.AssetURLTemplate = emote.DefaultCatalogURLTemplate
	}
	if c.Catalog.TimeoutSeconds == 0 {
		c.Catalog.TimeoutSeconds = 10
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Overlay.Burst == 0 {
		c.Overlay.Burst = 1
	}
	if c.Overlay.ClientBuffer == 0 {
		c.Overlay.ClientBuffer = 16
	}
	if c.Pipeline.BufferSize == 0 {
		c.Pipeline.BufferSize = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks the loaded configuration for values the service cannot run with.
func (c *Config) Validate() error {
	limits := map[string]*int{
		"emotes.maximum_emote_limit":        c.Emotes.MaximumEmoteLimit,
		"emotes.maximum_emote_limit_pleb":   c.Emotes.MaximumEmoteLimitPleb,
		"emotes.duplicate_emote_limit":      c.Emotes.DuplicateEmoteLimit,
		"emotes.duplicate_emote_limit_pleb": c.Emotes.DuplicateEmoteLimitPleb,
	}
	for key, v := range limits {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must not be negative, got %d", key, *v)
		}
	}

	if (c.Twitch.Username == "") != (c.Twitch.OAuth == "") {
		return fmt.Errorf("twitch.username and twitch.oauth must be set together (or set TWITCH_OAUTH env var)")
	}
	if c.Kick.Enabled && len(c.Kick.Channels) == 0 {
		return fmt.Errorf("at least one kick channel is required when kick is enabled")
	}
	if strings.Count(c.Catalog.AssetURLTemplate, "%s") != 1 {
		return fmt.Errorf("catalog.asset_url_template must contain exactly one %%s")
	}
	if c.Catalog.RefreshMinutes < 0 {
		return fmt.Errorf("catalog.refresh_minutes must not be negative")
	}

	if s3 := c.Catalog.S3; s3.Bucket != "" {
		if s3.Region == "" {
			return fmt.Errorf("catalog.s3.region is required when a bucket is set")
		}
		// Either OIDC role or static credentials required
		if s3.RoleARN == "" && s3.AccessKeyID == "" {
			return fmt.Errorf("either catalog.s3.role_arn (OIDC) or catalog.s3.access_key_id is required")
		}
		if s3.AccessKeyID != "" && s3.SecretAccessKey == "" {
			return fmt.Errorf("catalog.s3.secret_access_key is required when using access_key_id")
		}
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Limits returns the per-tier emote limits, falling back to the subscriber
// values for any pleb limit left unset. Call it on a loaded config.
func (c *Config) Limits() emote.Limits {
	sub := emote.Tier{
		MaxEmotes:      *c.Emotes.MaximumEmoteLimit,
		DuplicateLimit: *c.Emotes.DuplicateEmoteLimit,
	}
	pleb := sub
	if c.Emotes.MaximumEmoteLimitPleb != nil {
		pleb.MaxEmotes = *c.Emotes.MaximumEmoteLimitPleb
	}
	if c.Emotes.DuplicateEmoteLimitPleb != nil {
		pleb.DuplicateLimit = *c.Emotes.DuplicateEmoteLimitPleb
	}
	return emote.Limits{Subscriber: sub, Pleb: pleb}
}

// RefreshInterval returns how often catalogs are re-fetched; 0 means never.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Catalog.RefreshMinutes) * time.Minute
}

// FetchTimeout returns the per-request catalog timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Catalog.TimeoutSeconds) * time.Second
}

func intPtr(v int) *int { return &v }

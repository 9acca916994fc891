package config

import (
	"os"
	"regexp"
	"time"

	"github.com/bloopsocial/bloop/pkg/helper"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file name looked up when none is given.
const DefaultFile = "bloop.yaml"

type (
	// Config is the root configuration of the bloop server
	Config struct {
		Server   ServerConfig   `yaml:"server"`
		Logger   LoggerConfig   `yaml:"logger"`
		Database DatabaseConfig `yaml:"database"`
		JWT      JWTConfig      `yaml:"jwt"`
		Realtime RealtimeConfig `yaml:"realtime"`
		Cache    CacheConfig    `yaml:"cache"`
		Metrics  MetricsConfig  `yaml:"metrics"`
		Tracing  TracingConfig  `yaml:"tracing"`
		I18n     I18nConfig     `yaml:"i18n"`
	}

	// ServerConfig represents the HTTP listener configuration
	ServerConfig struct {
		Port            int           `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		AllowedOrigins  []string      `yaml:"allowed_origins"` // empty allows any origin
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`    // whether to compress backup files
		Color      bool   `yaml:"color"`       // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
		TimeZone   string `yaml:"time_zone"`   // time zone for log timestamps, e.g., "UTC", default is local
		TimeFormat string `yaml:"time_format"` // time format for log timestamps, default is "2006-01-02 15:04:05"
	}

	// JWTConfig configures the credential verifier used by sockets and the HTTP API
	JWTConfig struct {
		SecretKey string        `yaml:"secret_key"`
		Duration  time.Duration `yaml:"duration"`
	}

	// RealtimeConfig tunes the websocket transport and presence policy
	RealtimeConfig struct {
		// AllowAnonymous keeps connections without a valid credential open
		// so they can follow public post rooms.
		AllowAnonymous    *bool         `yaml:"allow_anonymous"`
		VerifyTimeout     time.Duration `yaml:"verify_timeout"`
		UnreadPushTimeout time.Duration `yaml:"unread_push_timeout"`
		SendBuffer        int           `yaml:"send_buffer"`
		WriteWait         time.Duration `yaml:"write_wait"`
		PongWait          time.Duration `yaml:"pong_wait"`
		PingPeriod        time.Duration `yaml:"ping_period"`
		MaxMessageSize    int64         `yaml:"max_message_size"`
	}

	// CacheConfig selects the unread counter cache backend
	CacheConfig struct {
		Type  string           `yaml:"type"` // "memory" or "redis"
		TTL   time.Duration    `yaml:"ttl"`
		Redis CacheRedisConfig `yaml:"redis"`
	}

	// CacheRedisConfig represents the Redis configuration for the cache
	CacheRedisConfig struct {
		Addr     string `yaml:"addr"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	}

	// MetricsConfig configures the prometheus registry
	MetricsConfig struct {
		Enabled   bool      `yaml:"enabled"`
		Namespace string    `yaml:"namespace"`
		Path      string    `yaml:"path"`
		Buckets   []float64 `yaml:"buckets"`
	}

	// TracingConfig represents OpenTelemetry tracing configuration
	TracingConfig struct {
		Enabled     bool              `yaml:"enabled"`
		ServiceName string            `yaml:"service_name"`
		Endpoint    string            `yaml:"endpoint"`     // e.g. localhost:4317 or http://localhost:4318
		Protocol    string            `yaml:"protocol"`     // grpc or http
		Insecure    bool              `yaml:"insecure"`     // allow insecure connection
		SamplerRate float64           `yaml:"sampler_rate"` // 0.0~1.0
		Environment string            `yaml:"environment"`  // env tag: dev/staging/prod
		Headers     map[string]string `yaml:"headers"`
	}

	// I18nConfig represents the internationalization configuration
	I18nConfig struct {
		DefaultLanguage string `yaml:"default_language"` // "es" or "en"
	}
)

// AnonymousAllowed reports whether unauthenticated connections stay open.
func (c RealtimeConfig) AnonymousAllowed() bool {
	return c.AllowAnonymous == nil || *c.AllowAnonymous
}

// LoadConfig loads configuration from a YAML file with environment variable support
func LoadConfig(filename string) (*Config, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	if filename == "" {
		filename = DefaultFile
	}
	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	data = resolveEnv(data)
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, err
	}

	cfg.SetDefaults()
	return &cfg, cfgPath, nil
}

// SetDefaults fills zero or out-of-range values with their defaults
func (c *Config) SetDefaults() {
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type == "sqlite" && c.Database.DBName == "" {
		c.Database.DBName = "data/bloop.db"
	}

	if c.JWT.Duration <= 0 {
		c.JWT.Duration = 7 * 24 * time.Hour
	}

	rt := &c.Realtime
	if rt.VerifyTimeout <= 0 {
		rt.VerifyTimeout = 5 * time.Second
	}
	if rt.UnreadPushTimeout <= 0 {
		rt.UnreadPushTimeout = 5 * time.Second
	}
	if rt.SendBuffer <= 0 {
		rt.SendBuffer = 128
	}
	if rt.WriteWait <= 0 {
		rt.WriteWait = 10 * time.Second
	}
	if rt.PongWait <= 0 {
		rt.PongWait = 60 * time.Second
	}
	if rt.PingPeriod <= 0 || rt.PingPeriod >= rt.PongWait {
		rt.PingPeriod = rt.PongWait * 9 / 10
	}
	if rt.MaxMessageSize <= 0 {
		rt.MaxMessageSize = 64 * 1024
	}

	if c.Cache.Type == "" {
		c.Cache.Type = "memory"
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 5 * time.Minute
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "bloop"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "bloop"
	}

	if c.I18n.DefaultLanguage == "" {
		c.I18n.DefaultLanguage = "es"
	}
}

// resolveEnv replaces environment variable placeholders in YAML content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}

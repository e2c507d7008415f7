// Package config loads the service configuration from defaults, an
// optional YAML file, a .env file and STOREFRONT_* environment variables,
// in increasing order of precedence.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/storefront"
	"github.com/MrEthical07/storefront/internal/logger"
	"github.com/MrEthical07/storefront/internal/store/mongostore"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "STOREFRONT"

type Config struct {
	// Dev runs against an embedded Redis and the in-memory store.
	Dev bool `mapstructure:"dev"`

	Logging logger.Config `mapstructure:"logging"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Mail    MailConfig    `mapstructure:"mail"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TLSCertFile     string        `mapstructure:"tls_cert_file"`
	TLSKeyFile      string        `mapstructure:"tls_key_file"`
	BodyLimit       int64         `mapstructure:"body_limit"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	// RateLimit is the number of requests one IP may make per
	// RateLimitWindow. Zero disables the limit.
	RateLimit       int           `mapstructure:"rate_limit"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
	UploadDir       string        `mapstructure:"upload_dir"`
}

// TLS reports whether the server terminates TLS itself.
func (c HTTPConfig) TLS() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// Store returns the settings in the form mongostore.Connect takes.
func (c MongoConfig) Store() mongostore.Config {
	return mongostore.Config{
		URI:            c.URI,
		Database:       c.Database,
		ConnectTimeout: c.ConnectTimeout,
	}
}

type AuthConfig struct {
	JWTSecret          string        `mapstructure:"jwt_secret"`
	Issuer             string        `mapstructure:"issuer"`
	AccessTTL          time.Duration `mapstructure:"access_ttl"`
	RefreshTTL         time.Duration `mapstructure:"refresh_ttl"`
	ValidationMode     string        `mapstructure:"validation_mode"`
	RedisPrefix        string        `mapstructure:"redis_prefix"`
	MaxSessionsPerUser int           `mapstructure:"max_sessions_per_user"`
	RequireVerified    bool          `mapstructure:"require_verified"`
	LoginHistoryLimit  int           `mapstructure:"login_history_limit"`
}

type MailConfig struct {
	FrontendURL  string `mapstructure:"frontend_url"`
	From         string `mapstructure:"from"`
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUsername string `mapstructure:"smtp_username"`
	SMTPPassword string `mapstructure:"smtp_password"`
}

// SMTPEnabled reports whether mail goes out over SMTP. Otherwise messages
// are only logged.
func (c MailConfig) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

func defaults() map[string]any {
	return map[string]any{
		"dev": false,

		"logging.level":       "info",
		"logging.development": false,

		"http.addr":              ":5000",
		"http.read_timeout":      "10s",
		"http.write_timeout":     "15s",
		"http.idle_timeout":      "60s",
		"http.shutdown_timeout":  "10s",
		"http.tls_cert_file":     "",
		"http.tls_key_file":      "",
		"http.body_limit":        10 << 20,
		"http.cors_origins":      []string{"*"},
		"http.rate_limit":        100,
		"http.rate_limit_window": "15m",
		"http.upload_dir":        "uploads",

		"redis.addr":     "localhost:6379",
		"redis.password": "",
		"redis.db":       0,

		"mongo.uri":             "mongodb://localhost:27017",
		"mongo.database":        "storefront",
		"mongo.connect_timeout": "10s",

		"auth.jwt_secret":            "",
		"auth.issuer":                "storefront",
		"auth.access_ttl":            "15m",
		"auth.refresh_ttl":           "168h",
		"auth.validation_mode":       "jwt_only",
		"auth.redis_prefix":          "sf",
		"auth.max_sessions_per_user": 0,
		"auth.require_verified":      true,
		"auth.login_history_limit":   10,

		"mail.frontend_url":  "http://localhost:3000",
		"mail.from":          "Storefront <no-reply@localhost>",
		"mail.smtp_host":     "",
		"mail.smtp_port":     587,
		"mail.smtp_username": "",
		"mail.smtp_password": "",
	}
}

// Unprefixed variable names kept for existing deployments.
var envAliases = map[string]string{
	"mongo.uri":         "MONGO_URI",
	"mail.frontend_url": "FRONTEND_URL",
	"http.upload_dir":   "UPLOAD_DIR",
	"auth.jwt_secret":   "JWT_SECRET",
}

type Options struct {
	// Path is an optional YAML file.
	Path string
	// EnvFiles are loaded into the process environment before reading.
	// Missing files are ignored. Nil means ".env".
	EnvFiles []string
	Dev      bool
}

// Load reads and validates the configuration.
func Load(opts Options) (*Config, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	v := viper.New()
	for key, val := range defaults() {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if opts.Path != "" {
		v.SetConfigFile(opts.Path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %q: %w", opts.Path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if opts.Dev {
		cfg.Dev = true
	}
	if cfg.Dev {
		cfg.Logging.Development = true
		if cfg.Auth.JWTSecret == "" {
			secret, err := randomSecret()
			if err != nil {
				return nil, err
			}
			cfg.Auth.JWTSecret = secret
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.HTTP.BodyLimit <= 0 {
		return errors.New("http.body_limit must be > 0")
	}
	if c.HTTP.RateLimit < 0 {
		return errors.New("http.rate_limit must be >= 0")
	}
	if c.HTTP.RateLimit > 0 && c.HTTP.RateLimitWindow <= 0 {
		return errors.New("http.rate_limit_window must be > 0")
	}
	if (c.HTTP.TLSCertFile == "") != (c.HTTP.TLSKeyFile == "") {
		return errors.New("http.tls_cert_file and http.tls_key_file must be set together")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 bytes")
	}
	if _, err := validationMode(c.Auth.ValidationMode); err != nil {
		return err
	}
	if !c.Dev {
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required")
		}
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return errors.New("mongo.uri and mongo.database are required")
		}
	}
	u, err := url.Parse(c.Mail.FrontendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("mail.frontend_url %q is not an absolute URL", c.Mail.FrontendURL)
	}
	if c.Mail.SMTPEnabled() && (c.Mail.SMTPPort <= 0 || c.Mail.From == "") {
		return errors.New("mail.smtp_port and mail.from are required with mail.smtp_host")
	}
	return nil
}

// Engine maps the auth settings onto the engine defaults. The result still
// goes through storefront.Config.Validate when the engine is built.
func (c *Config) Engine() storefront.Config {
	ec := storefront.DefaultConfig()
	ec.JWT.PrivateKey = []byte(c.Auth.JWTSecret)
	ec.JWT.Issuer = c.Auth.Issuer
	if c.Auth.AccessTTL > 0 {
		ec.JWT.AccessTTL = c.Auth.AccessTTL
	}
	if c.Auth.RefreshTTL > 0 {
		ec.JWT.RefreshTTL = c.Auth.RefreshTTL
	}
	ec.ValidationMode, _ = validationMode(c.Auth.ValidationMode)
	if c.Auth.RedisPrefix != "" {
		ec.Session.RedisPrefix = c.Auth.RedisPrefix
	}
	ec.Session.MaxSessionsPerUser = c.Auth.MaxSessionsPerUser
	ec.EmailVerification.RequireForLogin = c.Auth.RequireVerified
	if c.Auth.LoginHistoryLimit > 0 {
		ec.LoginHistoryLimit = c.Auth.LoginHistoryLimit
	}
	return ec
}

func validationMode(s string) (storefront.ValidationMode, error) {
	switch strings.ToLower(s) {
	case "", "jwt_only":
		return storefront.ModeJWTOnly, nil
	case "strict":
		return storefront.ModeStrict, nil
	default:
		return 0, fmt.Errorf("auth.validation_mode %q must be jwt_only or strict", s)
	}
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("config: generate dev secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

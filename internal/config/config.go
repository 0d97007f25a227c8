package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Credentials is one upstream consumer key pair.
type Credentials struct {
	Key    string `mapstructure:"key"`
	Secret string `mapstructure:"secret"`
}

// Configured reports whether both halves of the pair are present.
func (c Credentials) Configured() bool { return c.Key != "" && c.Secret != "" }

// Config holds all configuration (file + env overrides)
type Config struct {
	Server struct {
		Addr           string `mapstructure:"addr"`
		LogLevel       string `mapstructure:"log_level"`
		LogFile        string `mapstructure:"log_file"`
		LogMaxSizeMB   int    `mapstructure:"log_max_size_mb"`
		LogMaxBackups  int    `mapstructure:"log_max_backups"`
		LogMaxAgeDays  int    `mapstructure:"log_max_age_days"`
		RequestTimeout int    `mapstructure:"request_timeout_seconds"`
	} `mapstructure:"server"`

	Postgres struct {
		Host         string `mapstructure:"host"`
		Port         int    `mapstructure:"port"`
		User         string `mapstructure:"user"`
		Password     string `mapstructure:"password"`
		DBName       string `mapstructure:"db_name"`
		SSLMode      string `mapstructure:"ssl_mode"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
		MaxIdleConns int    `mapstructure:"max_idle_conns"`
	} `mapstructure:"postgres"`

	Upstream struct {
		BaseURL        string      `mapstructure:"base_url"`
		TimeoutSeconds int         `mapstructure:"timeout_seconds"`
		Generic        Credentials `mapstructure:"generic"`
		Social         Credentials `mapstructure:"social"`
	} `mapstructure:"upstream"`

	Auth struct {
		JWTSecret  string `mapstructure:"jwt_secret"`
		AdminEmail string `mapstructure:"admin_email"`
	} `mapstructure:"auth"`

	Listener struct {
		Channel          string `mapstructure:"channel"`
		ReconnectSeconds int    `mapstructure:"reconnect_seconds"`
	} `mapstructure:"listener"`
}

// keys lists every leaf so AutomaticEnv can see values that are absent from the file.
var keys = []string{
	"server.addr", "server.log_level", "server.log_file", "server.log_max_size_mb",
	"server.log_max_backups", "server.log_max_age_days", "server.request_timeout_seconds",
	"postgres.host", "postgres.port", "postgres.user", "postgres.password", "postgres.db_name",
	"postgres.ssl_mode", "postgres.max_open_conns", "postgres.max_idle_conns",
	"upstream.base_url", "upstream.timeout_seconds",
	"upstream.generic.key", "upstream.generic.secret",
	"upstream.social.key", "upstream.social.secret",
	"auth.jwt_secret", "auth.admin_email",
	"listener.channel", "listener.reconnect_seconds",
}

func Load() Config {
	_ = godotenv.Load() // .env is optional

	v := viper.New()
	v.SetConfigName("application")
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	_ = v.ReadInConfig() // optional; env can fully configure

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("unable to decode config: %w", err))
	}
	validate(&cfg)
	return cfg
}

func validate(c *Config) {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = 30
	}
	if c.Server.LogMaxSizeMB <= 0 {
		c.Server.LogMaxSizeMB = 100
	}
	if c.Server.LogMaxBackups <= 0 {
		c.Server.LogMaxBackups = 3
	}
	if c.Server.LogMaxAgeDays <= 0 {
		c.Server.LogMaxAgeDays = 28
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "disable"
	}
	if c.Postgres.MaxOpenConns == 0 {
		c.Postgres.MaxOpenConns = 10
	}
	if c.Postgres.MaxIdleConns == 0 {
		c.Postgres.MaxIdleConns = 2
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = "https://api.publisher.tonic.com"
	}
	if c.Upstream.TimeoutSeconds <= 0 {
		c.Upstream.TimeoutSeconds = 20
	}
	if c.Auth.AdminEmail == "" {
		c.Auth.AdminEmail = "admin@admin.com"
	}
	if c.Listener.Channel == "" {
		c.Listener.Channel = "session_events"
	}
	if c.Listener.ReconnectSeconds <= 0 {
		c.Listener.ReconnectSeconds = 5
	}
	c.Upstream.BaseURL = strings.TrimRight(c.Upstream.BaseURL, "/")
}

// UsePostgres reports whether a database was configured; otherwise the in-memory store is used.
func (c Config) UsePostgres() bool { return c.Postgres.Host != "" }

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.DBName,
		c.Postgres.SSLMode,
	)
}

func (c Config) Backoff() time.Duration {
	return time.Duration(c.Listener.ReconnectSeconds) * time.Second
}

func (c Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutSeconds) * time.Second
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeout) * time.Second
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

const envPrefix = "BOOKING"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Log        LogConfig        `mapstructure:"log"`
	Ticket     TicketConfig     `mapstructure:"ticket"`
	Captcha    CaptchaConfig    `mapstructure:"captcha"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Retention  RetentionConfig  `mapstructure:"retention"`
	LiveQueue  LiveQueueConfig  `mapstructure:"live_queue"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// SeedDoctors fills the doctor directory of the memory driver.
	SeedDoctors []DoctorSeed `mapstructure:"seed_doctors"`
	// DoctorCacheTTL bounds how long account to doctor lookups are cached.
	DoctorCacheTTL time.Duration `mapstructure:"doctor_cache_ttl"`
}

type DoctorSeed struct {
	ID             string `mapstructure:"id"`
	AccountID      string `mapstructure:"account_id"`
	Name           string `mapstructure:"name"`
	Speciality     string `mapstructure:"speciality"`
	Available      bool   `mapstructure:"available"`
	MaxAppointment int    `mapstructure:"max_appointment"`
}

type RedisConfig struct {
	// An empty URL selects the in-process broker.
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	Issuer      string `mapstructure:"issuer"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type TicketConfig struct {
	HashKey string `mapstructure:"hash_key"`
	QRSize  int    `mapstructure:"qr_size"`
}

type CaptchaConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	VerifyURL string        `mapstructure:"verify_url"`
	Secret    string        `mapstructure:"secret"`
	MinScore  float64       `mapstructure:"min_score"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type SMTPConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	GlobalRequests int           `mapstructure:"global_requests"`
	GlobalWindow   time.Duration `mapstructure:"global_window"`
	OTPRequests    int           `mapstructure:"otp_requests"`
	OTPWindow      time.Duration `mapstructure:"otp_window"`
}

type RetentionConfig struct {
	QueueDays   int           `mapstructure:"queue_days"`
	BookingDays int           `mapstructure:"booking_days"`
	Interval    time.Duration `mapstructure:"interval"`
	// RunInAPI starts the sweep inside the API process.
	RunInAPI bool `mapstructure:"run_in_api"`
}

type LiveQueueConfig struct {
	Topic        string        `mapstructure:"topic"`
	ClientBuffer int           `mapstructure:"client_buffer"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

type MonitoringConfig struct {
	Namespace  string `mapstructure:"namespace"`
	HealthPort int    `mapstructure:"health_port"`
}

// Secrets are only ever read from the environment.
type Secrets struct {
	DatabasePassword string `envconfig:"DB_PASSWORD"`
	JWTSecret        string `envconfig:"JWT_SECRET"`
	RecaptchaSecret  string `envconfig:"RECAPTCHA_SECRET"`
	SMTPPassword     string `envconfig:"SMTP_PASSWORD"`
	TicketHashKey    string `envconfig:"TICKET_HASH_KEY"`
	RedisURL         string `envconfig:"REDIS_URL"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "queue_db")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.doctor_cache_ttl", 5*time.Minute)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "queue-api")
	v.SetDefault("jwt.expiry_hours", 24)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("ticket.hash_key", "")
	v.SetDefault("ticket.qr_size", 256)

	v.SetDefault("captcha.enabled", false)
	v.SetDefault("captcha.verify_url", "https://www.google.com/recaptcha/api/siteverify")
	v.SetDefault("captcha.secret", "")
	v.SetDefault("captcha.min_score", 0.4)
	v.SetDefault("captcha.timeout", 5*time.Second)

	v.SetDefault("smtp.enabled", false)
	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "no-reply@example.com")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.global_requests", 1000)
	v.SetDefault("rate_limit.global_window", time.Hour)
	v.SetDefault("rate_limit.otp_requests", 10)
	v.SetDefault("rate_limit.otp_window", 30*time.Minute)

	v.SetDefault("retention.queue_days", 30)
	v.SetDefault("retention.booking_days", 60)
	v.SetDefault("retention.interval", time.Hour)
	v.SetDefault("retention.run_in_api", false)

	v.SetDefault("live_queue.topic", "live-queue")
	v.SetDefault("live_queue.client_buffer", 16)
	v.SetDefault("live_queue.ping_interval", 30*time.Second)

	v.SetDefault("monitoring.namespace", "queue_api")
	v.SetDefault("monitoring.health_port", 8081)
}

// LoadConfig reads config.yaml from the given directories (or the
// defaults), applies BOOKING_* environment overrides and then the
// secrets from the environment.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "/app/config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var secrets Secrets
	if err := envconfig.Process(envPrefix, &secrets); err != nil {
		return nil, fmt.Errorf("failed to read secrets: %w", err)
	}
	config.applySecrets(secrets)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applySecrets(s Secrets) {
	if s.DatabasePassword != "" {
		c.Database.Password = s.DatabasePassword
	}
	if s.JWTSecret != "" {
		c.JWT.Secret = s.JWTSecret
	}
	if s.RecaptchaSecret != "" {
		c.Captcha.Secret = s.RecaptchaSecret
	}
	if s.SMTPPassword != "" {
		c.SMTP.Password = s.SMTPPassword
	}
	if s.TicketHashKey != "" {
		c.Ticket.HashKey = s.TicketHashKey
	}
	if s.RedisURL != "" {
		c.Redis.URL = s.RedisURL
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if c.Captcha.Enabled && c.Captcha.Secret == "" {
		return fmt.Errorf("captcha secret is required when captcha is enabled")
	}
	if c.SMTP.Enabled && c.SMTP.Host == "" {
		return fmt.Errorf("smtp host is required when smtp is enabled")
	}
	return nil
}

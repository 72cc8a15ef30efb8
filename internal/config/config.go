package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Name        string   `yaml:"name"`
	Port        string   `yaml:"port"`
	Env         string   `yaml:"env"`
	LogLevel    string   `yaml:"log_level"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	RetryInterval   time.Duration `yaml:"retry_interval"`
}

// DSN returns a pgx key=value connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	BootstrapUser string        `yaml:"bootstrap_user"`
	BootstrapPass string        `yaml:"bootstrap_password"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	Inbox    string `yaml:"inbox"`
}

type TranslateConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type Config struct {
	App        AppConfig       `yaml:"app"`
	Postgres   PostgresConfig  `yaml:"postgres"`
	Auth       AuthConfig      `yaml:"auth"`
	SMTP       SMTPConfig      `yaml:"smtp"`
	Translate  TranslateConfig `yaml:"translate"`
	Kafka      KafkaConfig     `yaml:"kafka"`
	Cloudinary string          `yaml:"cloudinary_url"`
	// Firebase service account JSON; empty disables the Firebase user count.
	FirebaseCredentials string `yaml:"firebase_credentials"`
	OtelEndpoint        string `yaml:"otel_endpoint"`
}

func defaults() *Config {
	cfg := &Config{}
	cfg.App.Name = "boutique-api"
	cfg.App.Port = "5000"
	cfg.App.Env = "development"
	cfg.App.LogLevel = "debug"
	cfg.App.CORSOrigins = []string{"http://localhost:5173"}
	cfg.Postgres.Port = "5432"
	cfg.Postgres.SSLMode = "disable"
	cfg.Postgres.MaxConns = 10
	cfg.Postgres.MinConns = 2
	cfg.Postgres.MaxConnLifetime = 30 * time.Minute
	cfg.Postgres.RetryInterval = 5 * time.Second
	cfg.Auth.TokenTTL = 30 * 24 * time.Hour
	cfg.SMTP.Host = "smtp.gmail.com"
	cfg.SMTP.Port = 587
	cfg.Translate.Timeout = 10 * time.Second
	cfg.Kafka.Topic = "boutique.orders"
	return cfg
}

// Load builds the configuration from defaults, an optional YAML file, an
// optional .env file and finally the process environment, in that order.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.App.Port, "PORT")
	setString(&cfg.App.Env, "APP_ENV")
	setString(&cfg.App.LogLevel, "LOG_LEVEL")
	setList(&cfg.App.CORSOrigins, "CORS_ORIGINS")

	setString(&cfg.Postgres.Host, "DB_HOST")
	setString(&cfg.Postgres.Port, "DB_PORT")
	setString(&cfg.Postgres.User, "DB_USER")
	setString(&cfg.Postgres.Password, "DB_PASSWORD")
	setString(&cfg.Postgres.DBName, "DB_NAME")
	setString(&cfg.Postgres.SSLMode, "DB_SSLMODE")
	if err := setDuration(&cfg.Postgres.RetryInterval, "DB_RETRY_INTERVAL"); err != nil {
		return err
	}

	setString(&cfg.Auth.JWTSecret, "JWT_SECRET_KEY")
	if err := setDuration(&cfg.Auth.TokenTTL, "JWT_TTL"); err != nil {
		return err
	}
	setString(&cfg.Auth.BootstrapUser, "ADMIN_USERNAME")
	setString(&cfg.Auth.BootstrapPass, "ADMIN_PASSWORD")

	setString(&cfg.SMTP.Host, "SMTP_HOST")
	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SMTP_PORT %q: %w", v, err)
		}
		cfg.SMTP.Port = port
	}
	setString(&cfg.SMTP.Username, "EMAIL_USER")
	setString(&cfg.SMTP.Password, "EMAIL_PASS")
	setString(&cfg.SMTP.From, "EMAIL_FROM")
	setString(&cfg.SMTP.Inbox, "EMAIL_INBOX")
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}
	if cfg.SMTP.Inbox == "" {
		cfg.SMTP.Inbox = cfg.SMTP.Username
	}

	setString(&cfg.Translate.URL, "TRANSLATE_URL")
	setString(&cfg.Translate.APIKey, "TRANSLATE_API_KEY")

	setList(&cfg.Kafka.Brokers, "KAFKA_BROKERS")
	setString(&cfg.Kafka.Topic, "KAFKA_TOPIC")

	setString(&cfg.Cloudinary, "CLOUDINARY_URL")
	setString(&cfg.FirebaseCredentials, "FIREBASE_ADMIN_KEY")
	setString(&cfg.OtelEndpoint, "OTEL_ENDPOINT")

	return nil
}

func (c *Config) validate() error {
	var missing []string
	if c.Postgres.Host == "" {
		missing = append(missing, "DB_HOST")
	}
	if c.Postgres.User == "" {
		missing = append(missing, "DB_USER")
	}
	if c.Postgres.DBName == "" {
		missing = append(missing, "DB_NAME")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

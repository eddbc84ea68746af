package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pearleseed/device-hub-sub001/db"
)

// Config is read from an optional YAML file (CONFIG_FILE), then overridden
// by the environment. Anything left empty takes its default.
type Config struct {
	Port string `yaml:"port"`

	DBDriver    string `yaml:"db_driver"`
	DatabaseURL string `yaml:"database_url"`
	DBHost      string `yaml:"db_host"`
	DBUser      string `yaml:"db_user"`
	DBPassword  string `yaml:"db_password"`
	DBName      string `yaml:"db_name"`
	DBPort      string `yaml:"db_port"`
	SQLitePath  string `yaml:"sqlite_path"`

	// RedisAddr empty selects the in-memory store for sessions and counters.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	WebOrigin   string        `yaml:"web_origin"`
	AdminEmails []string      `yaml:"admin_emails"`
	SessionTTL  time.Duration `yaml:"session_ttl"`

	MQTTBrokerURL   string `yaml:"mqtt_broker_url"`
	MQTTClientID    string `yaml:"mqtt_client_id"`
	MQTTTopicPrefix string `yaml:"mqtt_topic_prefix"`
	MQTTQoS         int    `yaml:"mqtt_qos"`

	TxMaxAttempts      int           `yaml:"tx_max_attempts"`
	TxBaseDelay        time.Duration `yaml:"tx_base_delay"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func defaultConfig() Config {
	return Config{
		Port:               "3001",
		DBDriver:           db.DriverPostgres,
		DBHost:             "127.0.0.1",
		DBUser:             "postgres",
		DBName:             "devicehub",
		DBPort:             "5432",
		SQLitePath:         "devicehub.db",
		WebOrigin:          "http://localhost:5173",
		SessionTTL:         24 * time.Hour,
		MQTTClientID:       "devicehub",
		MQTTTopicPrefix:    "devicehub",
		MQTTQoS:            1,
		TxMaxAttempts:      5,
		TxBaseDelay:        20 * time.Millisecond,
		RateLimitPerMinute: 60,
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// LoadConfig loads .env when present, then the YAML file, then the
// environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	str := func(k string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			*dst = v
		}
	}
	num := func(k string, dst *int) {
		if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k))); err == nil {
			*dst = n
		}
	}
	dur := func(k string, dst *time.Duration) {
		if d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(k))); err == nil {
			*dst = d
		}
	}

	str("PORT", &cfg.Port)
	str("DB_DRIVER", &cfg.DBDriver)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("DB_HOST", &cfg.DBHost)
	str("DB_USER", &cfg.DBUser)
	str("DB_PASSWORD", &cfg.DBPassword)
	str("DB_NAME", &cfg.DBName)
	str("DB_PORT", &cfg.DBPort)
	str("SQLITE_PATH", &cfg.SQLitePath)
	str("REDIS_ADDR", &cfg.RedisAddr)
	str("REDIS_PASSWORD", &cfg.RedisPassword)
	num("REDIS_DB", &cfg.RedisDB)
	str("WEB_ORIGIN", &cfg.WebOrigin)
	dur("SESSION_TTL", &cfg.SessionTTL)
	str("MQTT_BROKER_URL", &cfg.MQTTBrokerURL)
	str("MQTT_CLIENT_ID", &cfg.MQTTClientID)
	str("MQTT_TOPIC_PREFIX", &cfg.MQTTTopicPrefix)
	num("MQTT_QOS", &cfg.MQTTQoS)
	num("TX_MAX_ATTEMPTS", &cfg.TxMaxAttempts)
	dur("TX_BASE_DELAY", &cfg.TxBaseDelay)
	num("RATE_LIMIT_PER_MINUTE", &cfg.RateLimitPerMinute)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)

	if v := os.Getenv("ADMIN_EMAILS"); v != "" {
		cfg.AdminEmails = splitList(v)
	} else {
		cfg.AdminEmails = splitList(strings.Join(cfg.AdminEmails, ","))
	}
}

// splitList parses "a@x.com, B@x.com" into lower-cased entries.
func splitList(csv string) []string {
	var out []string
	for _, s := range strings.Split(csv, ",") {
		if t := strings.ToLower(strings.TrimSpace(s)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case db.DriverPostgres, db.DriverSQLite:
	default:
		return fmt.Errorf("config: unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.MQTTQoS < 0 || c.MQTTQoS > 2 {
		return fmt.Errorf("config: MQTT_QOS must be 0, 1 or 2, got %d", c.MQTTQoS)
	}
	if c.TxMaxAttempts <= 0 {
		return fmt.Errorf("config: TX_MAX_ATTEMPTS must be positive, got %d", c.TxMaxAttempts)
	}
	return nil
}

func (c Config) DBConfig() db.Config {
	return db.Config{
		Driver:          c.DBDriver,
		DSN:             c.DatabaseURL,
		Host:            c.DBHost,
		User:            c.DBUser,
		Password:        c.DBPassword,
		Name:            c.DBName,
		Port:            c.DBPort,
		SQLitePath:      c.SQLitePath,
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// IsAdminEmail reports whether username is listed in ADMIN_EMAILS.
func (c Config) IsAdminEmail(username string) bool {
	u := strings.ToLower(strings.TrimSpace(username))
	for _, a := range c.AdminEmails {
		if a == u {
			return true
		}
	}
	return false
}

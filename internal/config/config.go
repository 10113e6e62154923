package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/subtrack/service-subscription/internal/platform/database"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// KafkaConfig holds broker settings for the digest publisher.
type KafkaConfig struct {
	Brokers     []string
	DigestTopic string
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// DigestConfig controls the scheduled daily digest.
type DigestConfig struct {
	Enabled  bool
	Schedule string
}

// ServiceConfig holds all configuration for the subscription service.
type ServiceConfig struct {
	Port            string
	AppEnv          string
	StoreDriver     string
	DBConfig        database.PostgresConfig
	MigrationsDir   string
	JWTSecret       string
	AdminPin        string
	KafkaConfig     KafkaConfig
	DigestConfig    DigestConfig
	CodeMaxAttempts int
}

// IsDevelopment reports whether the service runs in development mode.
func (c *ServiceConfig) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Load reads configuration from the environment and an optional config file.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := &ServiceConfig{
		Port:          normalizePort(v.GetString("SERVICE_PORT")),
		AppEnv:        v.GetString("APP_ENV"),
		StoreDriver:   strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
		DBConfig:      loadDatabaseConfig(v),
		MigrationsDir: v.GetString("MIGRATIONS_DIR"),
		JWTSecret:     v.GetString("JWT_SECRET"),
		AdminPin:      strings.TrimSpace(v.GetString("APP_ADMIN_PIN")),
		KafkaConfig:   loadKafkaConfig(v),
		DigestConfig: DigestConfig{
			Enabled:  v.GetBool("DIGEST_ENABLED"),
			Schedule: v.GetString("DIGEST_SCHEDULE"),
		},
		CodeMaxAttempts: v.GetInt("CODE_MAX_ATTEMPTS"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SERVICE_PORT", ":8080")
	v.SetDefault("STORE_DRIVER", StorePostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "subscriptions")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("KAFKA_DIGEST_TOPIC", "subscription.notifications")
	v.SetDefault("DIGEST_ENABLED", false)
	v.SetDefault("DIGEST_SCHEDULE", "0 7 * * *")
	v.SetDefault("CODE_MAX_ATTEMPTS", 1000)
}

func (c *ServiceConfig) validate() error {
	if c.StoreDriver != StorePostgres && c.StoreDriver != StoreMemory {
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWTSecret == "" && !c.IsDevelopment() {
		return errors.New("JWT_SECRET is required outside development")
	}
	if c.CodeMaxAttempts <= 0 {
		return errors.New("CODE_MAX_ATTEMPTS must be positive")
	}
	if c.DigestConfig.Enabled && !c.KafkaConfig.Enabled() {
		return errors.New("DIGEST_ENABLED requires KAFKA_BROKERS")
	}
	return nil
}

func loadDatabaseConfig(v *viper.Viper) database.PostgresConfig {
	return database.PostgresConfig{
		Host:     v.GetString("DB_HOST"),
		Port:     v.GetString("DB_PORT"),
		User:     v.GetString("DB_USER"),
		Password: v.GetString("DB_PASSWORD"),
		DBName:   v.GetString("DB_NAME"),
		SSLMode:  v.GetString("DB_SSLMODE"),
	}
}

func loadKafkaConfig(v *viper.Viper) KafkaConfig {
	var brokers []string
	for _, b := range strings.Split(v.GetString("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return KafkaConfig{
		Brokers:     brokers,
		DigestTopic: v.GetString("KAFKA_DIGEST_TOPIC"),
	}
}

func normalizePort(port string) string {
	if port != "" && !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}

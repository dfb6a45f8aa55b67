// Package config loads application settings from an optional config.yaml
// and CREDITTASKS_-prefixed environment variables, then validates them.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const EnvPrefix = "CREDITTASKS"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	Execution ExecutionConfig `mapstructure:"execution" validate:"required"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel       string   `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig selects the store. An empty URL runs on the in-memory store.
type DatabaseConfig struct {
	URL      string `mapstructure:"url" validate:"omitempty,url"`
	MaxConns int32  `mapstructure:"max_conns" validate:"gte=0"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" validate:"gt=0"`
	Issuer    string        `mapstructure:"issuer"`
	Audience  string        `mapstructure:"audience"`
}

type ExecutionConfig struct {
	// MaxWorkers bounds concurrent finalize jobs in the River queue.
	MaxWorkers       int           `mapstructure:"max_workers" validate:"gt=0"`
	FinalizeGrace    time.Duration `mapstructure:"finalize_grace" validate:"gte=0"`
	RecoveryInterval time.Duration `mapstructure:"recovery_interval" validate:"gt=0"`
	MaxAttempts      int           `mapstructure:"max_attempts" validate:"gt=0,lte=20"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 0)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.issuer", "credittasks")
	v.SetDefault("auth.audience", "credittasks-api")
	v.SetDefault("execution.max_workers", 10)
	v.SetDefault("execution.finalize_grace", "30s")
	v.SetDefault("execution.recovery_interval", "1m")
	v.SetDefault("execution.max_attempts", 5)
}

// Load reads configuration. configPath may be empty, in which case
// ./config.yaml is used if present. Environment variables win over the file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Conventional platform variables are honoured as fallbacks.
	_ = v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT")
	_ = v.BindEnv("auth.jwt_secret", EnvPrefix+"_AUTH_JWT_SECRET", "JWT_SECRET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

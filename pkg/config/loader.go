// Package config provides configuration loading and validation utilities.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/<APP_ENV>.yaml plus environment overrides, validates it, and returns the resulting Config.
func Load() (*Config, *viper.Viper, error) {
	// .env files are optional; real deployments inject the environment directly.
	_ = godotenv.Load(".env.local", ".env")

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	return LoadFile(fmt.Sprintf("./configs/%s.yaml", env), env)
}

// LoadFile loads the configuration from an explicit file path.
func LoadFile(path, env string) (*Config, *viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	bindSecrets(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.AppEnv = env
	cfg.applyDefaults()

	if err := Validate(&cfg); err != nil {
		return nil, nil, err
	}

	return &cfg, v, nil
}

// Validate checks struct constraints on cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("validate config: nil config")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	return nil
}

// OnLogLevelChange watches the config file and invokes fn with the new logger.level value.
func OnLogLevelChange(v *viper.Viper, fn func(level string)) {
	if v == nil || fn == nil {
		return
	}

	current := v.GetString("logger.level")
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		level := v.GetString("logger.level")
		if level == current {
			return
		}
		current = level
		fn(level)
	})
	v.WatchConfig()
}

// Secrets usually arrive through the environment only, so AutomaticEnv alone
// would not surface them during Unmarshal when the YAML omits the key.
func bindSecrets(v *viper.Viper) {
	for _, key := range []string{
		"bot.token",
		"bot.webhook_url",
		"clerk.secret_key",
		"database.password",
		"redis.password",
		"sentry.dsn",
		"services.payment_api.base_url",
	} {
		_ = v.BindEnv(key)
	}
}

package main

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lomoval/plannr/internal/logger"
	"github.com/lomoval/plannr/internal/rabbit"
	"github.com/lomoval/plannr/internal/reminder"
	"github.com/lomoval/plannr/internal/storagebuilder"
	"github.com/spf13/viper"
)

const envConfigPrefix = "$env:"

type AccountConfig struct {
	Email string `validate:"omitempty,email"`
}

type Config struct {
	Logger    logger.Config
	Rabbit    rabbit.Config
	Storage   storagebuilder.Config
	Scheduler reminder.Config
	Account   AccountConfig
}

func NewConfig(configFile string) (Config, error) {
	config := Config{}
	viper.SetConfigFile(configFile)

	viper.SetDefault("rabbit.host", "127.0.0.1")
	viper.SetDefault("rabbit.port", "5672")
	viper.SetDefault("rabbit.user", "user")
	viper.SetDefault("rabbit.password", "pass")
	viper.SetDefault("rabbit.queue", "plannr.reminders")
	viper.SetDefault("logger.level", "WARN")
	viper.SetDefault("storage.storageType", "sql")
	viper.SetDefault("storage.database.driver", "sqlite")
	viper.SetDefault("storage.database.path", "./plannr.db")
	viper.SetDefault("scheduler.interval", "1m")
	viper.SetDefault("scheduler.notifyBefore", "24h")

	err := viper.ReadInConfig()
	if err != nil {
		return config, fmt.Errorf("failed to read config %q: %w", configFile, err)
	}
	keys := viper.AllKeys()
	for _, key := range keys {
		env := viper.GetString(key)
		if strings.HasPrefix(env, envConfigPrefix) {
			err := viper.BindEnv(key, env[len(envConfigPrefix):])
			if err != nil {
				return config, fmt.Errorf("failed to prepare config: %w", err)
			}
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return config, fmt.Errorf("unable to decode into config struct: %w", err)
	}
	if err := validator.New().Struct(config); err != nil {
		return config, fmt.Errorf("invalid config: %w", err)
	}
	// A memory store is private to this process and never holds the classes
	// committed by the service.
	if config.Storage.StorageType != "sql" {
		return config, fmt.Errorf("invalid config: storage type %q cannot be shared with the service", config.Storage.StorageType)
	}
	return config, nil
}

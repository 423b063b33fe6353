package main

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lomoval/plannr/internal/backend"
	"github.com/lomoval/plannr/internal/logger"
	internalhttp "github.com/lomoval/plannr/internal/server/http"
	"github.com/lomoval/plannr/internal/storagebuilder"
	"github.com/spf13/viper"
)

const envConfigPrefix = "$env:"

type AccountConfig struct {
	// Email is used when a request carries no account header.
	Email string `validate:"omitempty,email"`
}

type ExportConfig struct {
	Dir string `validate:"required"`
}

type Config struct {
	HTTPServer internalhttp.Config
	Logger     logger.Config
	Backend    backend.Config
	Account    AccountConfig
	Storage    storagebuilder.Config
	Export     ExportConfig
}

func NewConfig(configFile string) (Config, error) {
	config := Config{}
	viper.SetConfigFile(configFile)

	viper.SetDefault("httpServer.host", "127.0.0.1")
	viper.SetDefault("httpServer.port", "8005")
	viper.SetDefault("logger.level", "WARN")
	viper.SetDefault("logger.format", "text")
	viper.SetDefault("backend.baseURL", "http://127.0.0.1:8000")
	viper.SetDefault("backend.timeout", "60s")
	viper.SetDefault("storage.storageType", "memory")
	viper.SetDefault("export.dir", "./exports")

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
				return Config{}, fmt.Errorf("failed to prepare config: %w", err)
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
	return config, nil
}

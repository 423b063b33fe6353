package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNewConfig(t *testing.T) {
	t.Run("defaults and env binding", func(t *testing.T) {
		viper.Reset()
		t.Setenv("TEST_PLANNR_EMAIL", "student@test.edu")
		path := writeConfig(t, `
backend:
  baseURL: http://localhost:8000
account:
  email: $env:TEST_PLANNR_EMAIL
storage:
  storageType: sql
  database:
    driver: sqlite
    path: ./plannr.db
`)
		config, err := NewConfig(path)
		require.NoError(t, err)
		require.Equal(t, "127.0.0.1", config.HTTPServer.Host)
		require.Equal(t, 8005, config.HTTPServer.Port)
		require.Equal(t, 60*time.Second, config.Backend.Timeout)
		require.Equal(t, "student@test.edu", config.Account.Email)
		require.Equal(t, "sqlite", config.Storage.Database.Driver)
		require.Equal(t, "./exports", config.Export.Dir)
	})

	t.Run("invalid values", func(t *testing.T) {
		viper.Reset()
		path := writeConfig(t, `
backend:
  baseURL: not a url
storage:
  storageType: disk
`)
		_, err := NewConfig(path)
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		viper.Reset()
		_, err := NewConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})
}

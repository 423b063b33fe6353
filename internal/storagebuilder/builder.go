package storagebuilder

import (
	"context"
	"fmt"
	"time"

	"github.com/lomoval/plannr/internal/storage"
	memorystorage "github.com/lomoval/plannr/internal/storage/memory"
	sqlstorage "github.com/lomoval/plannr/internal/storage/sql"
)

type Config struct {
	StorageType string `validate:"oneof=memory sql"`
	Database    sqlstorage.Config
}

func New(config Config) (storage.Storage, error) {
	switch config.StorageType {
	case "memory":
		return memorystorage.New(), nil
	case "sql":
		s := sqlstorage.New(config.Database)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := s.Connect(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s database %s: %w", config.Database.Driver, target(config.Database), err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage type %s", config.StorageType)
	}
}

func target(c sqlstorage.Config) string {
	if c.Driver == sqlstorage.DriverSQLite {
		return c.Path
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

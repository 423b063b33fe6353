package sqlstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/lomoval/plannr/internal/storage"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

var ErrConnectionFailed = errors.New("failed to connect")

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultTable = "blobs"
)

type Config struct {
	Driver   string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	// Path is the database file when Driver is "sqlite".
	Path  string
	Table string
}

type Storage struct {
	driver string
	dsn    string
	table  string
	db     *sqlx.DB
}

func New(config Config) *Storage {
	driver := config.Driver
	if driver == "" {
		driver = DriverPostgres
	}
	table := config.Table
	if table == "" {
		table = defaultTable
	}

	dsn := config.Path
	if driver == DriverPostgres {
		dsn = fmt.Sprintf(
			"sslmode=disable host=%s port=%d dbname=%s user=%s password=%s",
			config.Host, config.Port, config.Database, config.Username, config.Password)
	}
	return &Storage{driver: driver, dsn: dsn, table: pq.QuoteIdentifier(table)}
}

func (s *Storage) Connect(ctx context.Context) error {
	db, err := sqlx.ConnectContext(ctx, s.driver, s.dsn)
	if err != nil {
		log.Errorf("failed to connect: %v", err)
		return ErrConnectionFailed
	}

	blobType := "BYTEA"
	if s.driver == DriverSQLite {
		blobType = "BLOB"
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, data %s NOT NULL, updated_at TIMESTAMP NOT NULL)",
		s.table, blobType))
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	s.db = db
	return nil
}

func (s *Storage) Close(_ context.Context) error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data, s.db.Rebind("SELECT data FROM "+s.table+" WHERE name = ?"), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get %q: %w", key, storage.ErrNotFoundKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return data, nil
}

func (s *Storage) Put(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return storage.ErrEmptyKey
	}
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(
		ctx,
		s.db.Rebind("INSERT INTO "+s.table+" (name, data, updated_at) VALUES (?, ?, ?) "+
			"ON CONFLICT (name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at"),
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to put %q: %w", key, err)
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM "+s.table+" WHERE name = ?"), key)
	if err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("failed to delete %q: %w", key, storage.ErrNotFoundKey)
	}
	return nil
}

package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// APIKeySetting is the settings key the assistant reads its credential from.
const APIKeySetting = "openai_api_key"

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT
)
`

const upsertSql = `
INSERT INTO settings (key, value)
VALUES ($1, $2)
ON CONFLICT (key)
DO UPDATE SET value = excluded.value
`

// Store reads and writes application settings.
type Store interface {
	// APIKey returns the stored assistant credential, or "" if unset.
	APIKey(ctx context.Context) (string, error)

	// SetAPIKey stores the assistant credential.
	SetAPIKey(ctx context.Context, key string) error
}

type Config struct {
	// Path is the location of the shared SQLite data store
	Path string `conf:"path"`
}

// SQLiteStore keeps settings in the shared SQLite data store.
type SQLiteStore struct {
	db  *sqlx.DB
	log *zap.Logger
}

var _ Store = (*SQLiteStore)(nil)

// Open opens (or creates) the data store at path and creates the
// settings table.
func Open(path string, log *zap.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("no data store path provided")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open data store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create settings table: %w", err)
	}

	log = log.Named("settings")
	log.Debug("opened data store", zap.String("path", path))

	return &SQLiteStore{db: db, log: log}, nil
}

type StoreParams struct {
	fx.In

	Config Config
	Log    *zap.Logger
}

// NewLifecycleStore opens the store and closes it when the application stops.
func NewLifecycleStore(params StoreParams, lc fx.Lifecycle) (Store, error) {
	s, err := Open(params.Config.Path, params.Log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return s.Close()
		},
	})

	return s, nil
}

func (s *SQLiteStore) APIKey(ctx context.Context) (string, error) {
	return s.get(ctx, APIKeySetting)
}

func (s *SQLiteStore) SetAPIKey(ctx context.Context, key string) error {
	return s.set(ctx, APIKeySetting, key)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) get(ctx context.Context, key string) (string, error) {
	var value sql.NullString

	err := s.db.GetContext(ctx, &value, "SELECT value FROM settings WHERE key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}

	return value.String, nil
}

func (s *SQLiteStore) set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, upsertSql, key, value); err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}

	s.log.Debug("updated setting", zap.String("key", key))

	return nil
}

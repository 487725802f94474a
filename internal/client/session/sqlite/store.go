// Package sqlite provides SQLite-backed session persistence.
//
// A single-row table keeps the signed-in identity and token pair across
// process restarts. Only durable fields are stored; transient client state
// never reaches disk.
package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/campushq/campushq/internal/platform/storage/sqlitemigrate"

	"github.com/campushq/campushq/internal/client/session"
	"github.com/campushq/campushq/internal/client/session/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store implements session persistence over SQLite.
type Store struct {
	sqlDB *sql.DB
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens the session SQLite store and applies bundled migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := sqlitemigrate.Apply(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Load restores the persisted session, reporting false when none exists.
func (s *Store) Load() (session.Session, bool, error) {
	row := s.sqlDB.QueryRow(`
SELECT user_id, user_name, user_email, user_role, access_token, refresh_token
FROM session
WHERE id = 1;
`)

	var restored session.Session
	var role string
	err := row.Scan(
		&restored.User.ID,
		&restored.User.Name,
		&restored.User.Email,
		&role,
		&restored.AccessToken,
		&restored.RefreshToken,
	)
	if err == sql.ErrNoRows {
		return session.Session{}, false, nil
	}
	if err != nil {
		return session.Session{}, false, fmt.Errorf("load session: %w", err)
	}
	restored.User.Role = session.Role(role)
	return restored, true, nil
}

// Save writes the session record, replacing any previous one.
func (s *Store) Save(value session.Session) error {
	_, err := s.sqlDB.Exec(`
INSERT OR REPLACE INTO session (id, user_id, user_name, user_email, user_role, access_token, refresh_token, updated_at)
VALUES (1, ?, ?, ?, ?, ?, ?, ?);
`,
		value.User.ID,
		value.User.Name,
		value.User.Email,
		string(value.User.Role),
		value.AccessToken,
		value.RefreshToken,
		toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes the persisted session record.
func (s *Store) Delete() error {
	if _, err := s.sqlDB.Exec(`DELETE FROM session WHERE id = 1;`); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

package cache

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"mentorstream/internal/domain"
)

// SQLite is a persistent result cache backed by a single-writer SQLite
// database. Survives restarts, which matters because regenerating a course
// page is the expensive path this cache exists to avoid.
type SQLite struct {
	db     *sql.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewSQLite opens (or creates) the database at path, runs migrations, and
// returns a ready cache. ttl of 0 disables expiry.
func NewSQLite(path string, ttl time.Duration, logger *slog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, domain.NewDomainError("Cache.Open", domain.ErrCacheStore, err.Error())
	}

	// SQLite write safety: single writer.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, domain.NewDomainError("Cache.Open", domain.ErrCacheStore, err.Error())
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS content_cache (
	key          TEXT PRIMARY KEY,
	subject_id   TEXT NOT NULL,
	content_id   TEXT NOT NULL,
	mode         TEXT NOT NULL,
	version      TEXT NOT NULL,
	persona_hash TEXT NOT NULL DEFAULT '',
	content      TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	expires_at   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_content_cache_expires ON content_cache(expires_at);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, domain.NewDomainError("Cache.Migrate", domain.ErrCacheStore, err.Error())
	}

	return &SQLite{db: db, ttl: ttl, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Get returns the cached document for key, if present and unexpired.
func (s *SQLite) Get(ctx context.Context, key domain.ContentKey) (string, bool, error) {
	var content string
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT content, expires_at FROM content_cache WHERE key = ?`,
		key.Fingerprint(),
	).Scan(&content, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, domain.NewDomainError("Cache.Get", domain.ErrCacheStore, err.Error())
	}
	if expiresAt > 0 && time.Now().Unix() >= expiresAt {
		return "", false, nil
	}
	return content, true, nil
}

// Set stores content under key. The key components are stored alongside the
// fingerprint so operators can inspect what a row belongs to.
func (s *SQLite) Set(ctx context.Context, key domain.ContentKey, content string) error {
	now := time.Now()
	var expiresAt int64
	if s.ttl > 0 {
		expiresAt = now.Add(s.ttl).Unix()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO content_cache
		 (key, subject_id, content_id, mode, version, persona_hash, content, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key.Fingerprint(), key.SubjectID, key.ContentID, string(key.Mode),
		key.Version, key.PersonaHash, content, now.Unix(), expiresAt,
	)
	if err != nil {
		return domain.NewDomainError("Cache.Set", domain.ErrCacheStore, err.Error())
	}
	return nil
}

// Clear removes the entry for key, if any.
func (s *SQLite) Clear(ctx context.Context, key domain.ContentKey) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM content_cache WHERE key = ?`, key.Fingerprint()); err != nil {
		return domain.NewDomainError("Cache.Clear", domain.ErrCacheStore, err.Error())
	}
	return nil
}

// Sweep deletes expired rows and reports how many were dropped.
func (s *SQLite) Sweep(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM content_cache WHERE expires_at > 0 AND expires_at <= ?`,
		time.Now().Unix(),
	)
	if err != nil {
		return 0, domain.NewDomainError("Cache.Sweep", domain.ErrCacheStore, err.Error())
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

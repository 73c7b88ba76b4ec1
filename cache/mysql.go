package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/apex/log"
)

// MySQLStore keeps the dedup/rate-limit state in a single MySQL table.
// Every operation is one statement, so atomicity comes from the server's
// row locking and nothing here ever spans requests.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore wraps an open connection pool.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

// CreateTable creates the cache table if it doesn't exist.
func (s *MySQLStore) CreateTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		cache_key VARCHAR(128) NOT NULL PRIMARY KEY,
		cache_value TEXT NOT NULL,
		expires_at DATETIME NOT NULL,
		INDEX idx_expires_at (expires_at)
	)`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create cache_entries table: %w", err)
	}
	return nil
}

func (s *MySQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT cache_value FROM cache_entries WHERE cache_key = ? AND expires_at > NOW()",
		key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cache key %q: %w", key, err)
	}
	return value, true, nil
}

func (s *MySQLStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (cache_key, cache_value, expires_at)
		VALUES (?, ?, DATE_ADD(NOW(), INTERVAL ? SECOND))
		ON DUPLICATE KEY UPDATE
			cache_value = VALUES(cache_value),
			expires_at = VALUES(expires_at)`,
		key, value, int64(ttl.Seconds()))
	if err != nil {
		return fmt.Errorf("failed to write cache key %q: %w", key, err)
	}
	return nil
}

// IncrementOrCreate uses the LAST_INSERT_ID(expr) upsert so the new count
// comes back from the same statement that produced it.
func (s *MySQLStore) IncrementOrCreate(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (cache_key, cache_value, expires_at)
		VALUES (?, LAST_INSERT_ID(1), DATE_ADD(NOW(), INTERVAL ? SECOND))
		ON DUPLICATE KEY UPDATE
			cache_value = LAST_INSERT_ID(IF(expires_at > NOW(), CAST(cache_value AS SIGNED) + 1, 1)),
			expires_at = IF(expires_at > NOW(), expires_at, DATE_ADD(NOW(), INTERVAL ? SECOND))`,
		key, int64(ttl.Seconds()), int64(ttl.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("failed to increment cache key %q: %w", key, err)
	}
	count, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read counter for cache key %q: %w", key, err)
	}
	return count, nil
}

// CleanupExpired removes rows whose TTL has elapsed. Reads already filter
// on expires_at, this only keeps the table from growing unbounded.
func (s *MySQLStore) CleanupExpired(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE expires_at <= NOW()")
	if err != nil {
		return fmt.Errorf("failed to clean up expired cache entries: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.Infof("Cleaned up %d expired cache entries", n)
	}
	return nil
}

// Package db provides PostgreSQL-backed durable storage for ban patterns.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/course-illustrator/internal/ban"
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database.
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// SaveBan persists a ban pattern.
func (db *DB) SaveBan(ctx context.Context, p ban.Pattern) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO ban_patterns (exact_url, substring, course_id, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (exact_url, substring, course_id) DO NOTHING`,
		p.ExactURL, p.Substring, p.CourseID, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save ban pattern: %w", err)
	}
	return nil
}

// ListBans returns all persisted ban patterns, oldest first.
func (db *DB) ListBans(ctx context.Context) ([]ban.Pattern, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT exact_url, substring, course_id, created_at
		 FROM ban_patterns
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ban patterns: %w", err)
	}
	defer rows.Close()

	var patterns []ban.Pattern
	for rows.Next() {
		var p ban.Pattern
		if err := rows.Scan(&p.ExactURL, &p.Substring, &p.CourseID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ban pattern: %w", err)
		}
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ban patterns: %w", err)
	}
	return patterns, nil
}

// DeleteBansMatching removes persisted patterns whose substring or exact URL
// contains the given text. Returns the number of rows deleted.
func (db *DB) DeleteBansMatching(ctx context.Context, text string) (int, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM ban_patterns
		 WHERE substring ILIKE '%' || $1 || '%' OR exact_url ILIKE '%' || $1 || '%'`,
		text,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete ban patterns: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

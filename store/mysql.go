package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"rssmerge/types"
)

const (
	listSourcesSQL = `SELECT id, mp_name, mp_intro FROM feeds WHERE status = 1`

	recentRecordsSQL = `SELECT id, mp_id, title, url, content, description, publish_time
		FROM articles
		WHERE mp_id = ? AND publish_time >= ? AND publish_time < ? AND status = 1
		ORDER BY publish_time DESC`
)

// MySQL implements SourceStore over a MySQL connection pool.
type MySQL struct {
	db *sql.DB
}

// OpenMySQL opens a connection pool for the given DSN and verifies it with
// a ping. The caller owns the returned store and must Close it.
func OpenMySQL(ctx context.Context, dsn string) (*MySQL, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	return &MySQL{db: db}, nil
}

// NewMySQL wraps an existing pool, mainly for tests.
func NewMySQL(db *sql.DB) *MySQL {
	return &MySQL{db: db}
}

// Close releases the underlying connection pool.
func (m *MySQL) Close() error {
	return m.db.Close()
}

// ListActiveSources returns every feed with status = 1.
func (m *MySQL) ListActiveSources(ctx context.Context) ([]types.Source, error) {
	rows, err := m.db.QueryContext(ctx, listSourcesSQL)
	if err != nil {
		return nil, fmt.Errorf("query feeds: %w", err)
	}
	defer rows.Close()

	var sources []types.Source
	for rows.Next() {
		var s types.Source
		var name, intro sql.NullString
		if err := rows.Scan(&s.ID, &name, &intro); err != nil {
			return nil, fmt.Errorf("scan feed: %w", err)
		}
		s.Name = name.String
		s.Intro = intro.String
		s.Active = true
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feeds: %w", err)
	}

	return sources, nil
}

// RecentRecords returns the active articles of one feed published in
// [start, end), newest first. Timestamps are compared in Unix seconds.
func (m *MySQL) RecentRecords(ctx context.Context, sourceID string, start, end time.Time) ([]types.Record, error) {
	rows, err := m.db.QueryContext(ctx, recentRecordsSQL, sourceID, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("query articles for %s: %w", sourceID, err)
	}
	defer rows.Close()

	var records []types.Record
	for rows.Next() {
		var r types.Record
		var title, url, content, description sql.NullString
		if err := rows.Scan(&r.ID, &r.SourceID, &title, &url, &content, &description, &r.PublishTime); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		r.Title = title.String
		r.URL = url.String
		r.Content = content.String
		r.Description = description.String
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}

	return records, nil
}

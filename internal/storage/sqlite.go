package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"forum_bot/internal/model"
	"forum_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// RecordAnnouncement inserts an archive row for an announced post and
// populates its ID and SentAt. Re-announcing the same post for the same
// author is a no-op that leaves the announcement untouched.
func (s *SQLite) RecordAnnouncement(ctx context.Context, a *model.Announcement) error {
	now := time.Now().UTC()
	var created string
	if !a.CreatedAt.IsZero() {
		created = a.CreatedAt.UTC().Format(timeLayout)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO announcements (author, post_id, discussion_id, link, created_at, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.Author, a.PostID, a.DiscussionID, a.Link, created, now.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert announcement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		// Duplicate (author, post_id): the insert was ignored, so there
		// is no row of our own to report.
		return nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	a.ID = id
	a.SentAt = now
	return nil
}

// ListRecent returns the most recently archived announcements, newest
// first.
func (s *SQLite) ListRecent(ctx context.Context, limit int) ([]model.Announcement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, author, post_id, discussion_id, link, created_at, sent_at
		 FROM announcements ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query announcements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var anns []model.Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, err
		}
		anns = append(anns, a)
	}
	return anns, rows.Err()
}

func scanAnnouncement(rows *sql.Rows) (model.Announcement, error) {
	var a model.Announcement
	var created, sent sql.NullString
	err := rows.Scan(&a.ID, &a.Author, &a.PostID, &a.DiscussionID, &a.Link, &created, &sent)
	if err != nil {
		return a, fmt.Errorf("scan announcement: %w", err)
	}
	if created.Valid && created.String != "" {
		a.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	if sent.Valid {
		a.SentAt, _ = time.Parse(timeLayout, sent.String)
	}
	return a, nil
}

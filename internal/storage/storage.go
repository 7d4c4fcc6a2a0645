// Package storage defines the persistence interface for the
// announcement archive and its implementations.
package storage

import (
	"context"

	"forum_bot/internal/model"
)

// Storage is the interface for the announcement archive.
type Storage interface {
	RecordAnnouncement(ctx context.Context, a *model.Announcement) error
	ListRecent(ctx context.Context, limit int) ([]model.Announcement, error)

	Close() error
}

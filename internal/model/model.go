// Package model defines the domain types used across the application.
package model

import "time"

// Post is a single forum comment extracted from the posts API response.
type Post struct {
	ID           string
	ContentHTML  string
	CreatedAt    time.Time
	CreatedAtOK  bool
	DiscussionID string
	Slug         string
	Number       int
}

// HasDiscussion reports whether the post carries a discussion reference.
func (p *Post) HasDiscussion() bool {
	return p.DiscussionID != ""
}

// Announcement is a rendered message for one new post, ready for delivery.
type Announcement struct {
	ID           int64
	Author       string
	PostID       string
	DiscussionID string
	Link         string
	Text         string
	CreatedAt    time.Time
	SentAt       time.Time
}

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"forum_bot/internal/model"
)

var ignoreSentAt = cmpopts.IgnoreFields(model.Announcement{}, "SentAt")

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAnnouncement(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	a := model.Announcement{
		Author:       "ann",
		PostID:       "101",
		DiscussionID: "42",
		Link:         "https://forum.example/d/42-test/5",
		Text:         "message text",
		CreatedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := s.RecordAnnouncement(ctx, &a); err != nil {
		t.Fatalf("record: %v", err)
	}
	if a.ID == 0 {
		t.Fatal("expected non-zero ID")
	}
	if a.SentAt.IsZero() {
		t.Fatal("expected SentAt to be set")
	}

	got, err := s.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	want := []model.Announcement{{
		ID:           a.ID,
		Author:       "ann",
		PostID:       "101",
		DiscussionID: "42",
		Link:         "https://forum.example/d/42-test/5",
		CreatedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}}
	if diff := cmp.Diff(want, got, ignoreSentAt); diff != "" {
		t.Errorf("ListRecent mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordAnnouncementDuplicateIgnored(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	first := model.Announcement{Author: "ann", PostID: "101"}
	if err := s.RecordAnnouncement(ctx, &first); err != nil {
		t.Fatalf("record: %v", err)
	}
	dup := model.Announcement{Author: "ann", PostID: "101"}
	if err := s.RecordAnnouncement(ctx, &dup); err != nil {
		t.Fatalf("record duplicate: %v", err)
	}
	if dup.ID != 0 {
		t.Errorf("ignored insert set ID = %d, want 0", dup.ID)
	}
	if !dup.SentAt.IsZero() {
		t.Errorf("ignored insert set SentAt = %v, want zero", dup.SentAt)
	}

	got, err := s.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 archived row, got %d", len(got))
	}

	// Same post by a different author is a distinct archive row.
	other := model.Announcement{Author: "bob", PostID: "101"}
	if err := s.RecordAnnouncement(ctx, &other); err != nil {
		t.Fatalf("record other author: %v", err)
	}
	got, err = s.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 archived rows, got %d", len(got))
	}
}

func TestListRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	for _, id := range []string{"1", "2", "3"} {
		a := model.Announcement{Author: "ann", PostID: id}
		if err := s.RecordAnnouncement(ctx, &a); err != nil {
			t.Fatalf("record %s: %v", id, err)
		}
	}

	got, err := s.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	var gotIDs []string
	for _, a := range got {
		gotIDs = append(gotIDs, a.PostID)
	}
	if diff := cmp.Diff([]string{"3", "2"}, gotIDs); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestListRecentMissingCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	a := model.Announcement{Author: "ann", PostID: "1"}
	if err := s.RecordAnnouncement(ctx, &a); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := s.ListRecent(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got))
	}
	if !got[0].CreatedAt.IsZero() {
		t.Errorf("expected zero CreatedAt, got %v", got[0].CreatedAt)
	}
}

// Ensure the Storage interface is satisfied.
var _ Storage = (*SQLite)(nil)

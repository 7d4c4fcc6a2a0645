// Package scheduler drives the periodic polling of tracked authors.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"forum_bot/internal/config"
	"forum_bot/internal/forum"
	"forum_bot/internal/state"
	"forum_bot/internal/storage"
)

// Broadcaster is the interface for dispatching a batch of announcement
// messages to the delivery channels.
type Broadcaster interface {
	Broadcast(ctx context.Context, messages []string)
}

// Scheduler polls the forum for each tracked author on a fixed interval
// and hands new announcements to the Broadcaster.
type Scheduler struct {
	ledger *state.Ledger
	store  storage.Storage
	client *forum.Client
	sender Broadcaster
	cfg    *config.Config
	log    *slog.Logger
	busy   atomic.Bool
}

// New creates a Scheduler.
func New(ledger *state.Ledger, store storage.Storage, client *forum.Client, sender Broadcaster, cfg *config.Config, log *slog.Logger) *Scheduler {
	return &Scheduler{
		ledger: ledger,
		store:  store,
		client: client,
		sender: sender,
		cfg:    cfg,
		log:    log,
	}
}

// Run polls once immediately, then on every tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.PollOnce(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.PollOnce(ctx)
		}
	}
}

// PollOnce processes all tracked authors sequentially. A run that is
// still in flight when the next tick fires causes the new run to be
// rejected rather than overlapped.
func (s *Scheduler) PollOnce(ctx context.Context) {
	if !s.busy.CompareAndSwap(false, true) {
		s.log.Warn("previous poll run still in flight, skipping this tick")
		return
	}
	defer s.busy.Store(false)

	s.log.Debug("polling forum for new posts")

	var messages []string
	anyNew := false
	now := time.Now()

	for i, author := range s.ledger.Authors() {
		if ctx.Err() != nil {
			return
		}
		if i > 0 {
			if err := sleep(ctx, s.cfg.AuthorDelay); err != nil {
				return
			}
		}

		resp, err := s.client.FetchPosts(ctx, author)
		if err != nil {
			s.log.Error("fetch posts", "author", author, "error", err)
			continue
		}

		anns, newIDs := forum.BuildAnnouncements(resp, s.ledger.KnownIDs(author), forum.Options{
			BaseURL:       s.cfg.ForumBaseURL,
			DisplayName:   author,
			MaxSnippetLen: s.cfg.MaxSnippetLen,
			StaleCutoff:   s.cfg.StaleCutoff,
			Now:           now,
		})

		for j := range anns {
			messages = append(messages, anns[j].Text)
			if err := s.store.RecordAnnouncement(ctx, &anns[j]); err != nil {
				s.log.Error("archive announcement", "author", author, "post_id", anns[j].PostID, "error", err)
			}
		}
		if len(newIDs) > 0 {
			s.ledger.RecordSeen(author, newIDs)
			anyNew = true
			s.log.Info("new posts", "author", author, "count", len(newIDs), "announced", len(anns))
		}
	}

	if anyNew {
		if err := s.ledger.Save(); err != nil {
			s.log.Error("save state", "error", err)
		}
	}
	if len(messages) > 0 {
		s.sender.Broadcast(ctx, messages)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package scheduler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"forum_bot/internal/config"
	"forum_bot/internal/forum"
	"forum_bot/internal/state"
	"forum_bot/internal/storage"
)

// --- mocks ---

type mockHTTPClient struct {
	mu    sync.Mutex
	body  string
	err   error
	calls int
}

func (m *mockHTTPClient) Do(_ *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func (m *mockHTTPClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockBroadcaster struct {
	mu      sync.Mutex
	batches [][]string
}

func (m *mockBroadcaster) Broadcast(_ context.Context, messages []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, append([]string(nil), messages...))
}

func (m *mockBroadcaster) all() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("../../testdata/posts.json")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return string(data)
}

type testEnv struct {
	sched     *Scheduler
	http      *mockHTTPClient
	sender    *mockBroadcaster
	ledger    *state.Ledger
	store     *storage.SQLite
	statePath string
}

func newTestScheduler(t *testing.T, httpBody string, httpErr error, authors ...string) *testEnv {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	statePath := filepath.Join(t.TempDir(), "state.json")
	ledger := state.New(statePath, 10, authors, discardLogger())

	httpClient := &mockHTTPClient{body: httpBody, err: httpErr}
	client := forum.NewClient(httpClient, "https://forum.example", 5)
	client.RetryDelay = time.Millisecond
	sender := &mockBroadcaster{}

	cfg := &config.Config{
		ForumBaseURL:  "https://forum.example",
		MaxSnippetLen: 1000,
		StaleCutoff:   0,
	}

	return &testEnv{
		sched:     New(ledger, store, client, sender, cfg, discardLogger()),
		http:      httpClient,
		sender:    sender,
		ledger:    ledger,
		store:     store,
		statePath: statePath,
	}
}

// --- tests ---

func TestPollOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestScheduler(t, loadFixture(t), nil, "tester")

	env.sched.PollOnce(ctx)

	batches := env.sender.all()
	if len(batches) != 1 {
		t.Fatalf("expected 1 broadcast batch, got %d", len(batches))
	}
	if len(batches[0]) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(batches[0]))
	}

	// Oldest first, regardless of fixture order.
	if diff := cmp.Diff([]string{"101", "102", "103"}, env.ledger.History("tester")); diff != "" {
		t.Errorf("history (-want +got):\n%s", diff)
	}

	if _, err := os.Stat(env.statePath); err != nil {
		t.Errorf("state file not written: %v", err)
	}

	anns, err := env.store.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list archive: %v", err)
	}
	if len(anns) != 3 {
		t.Errorf("expected 3 archived rows, got %d", len(anns))
	}
}

func TestPollOnceSecondRunIsQuiet(t *testing.T) {
	ctx := context.Background()
	env := newTestScheduler(t, loadFixture(t), nil, "tester")

	env.sched.PollOnce(ctx)
	env.sched.PollOnce(ctx)

	if n := len(env.sender.all()); n != 1 {
		t.Errorf("expected 1 broadcast batch across both runs, got %d", n)
	}
	if diff := cmp.Diff([]string{"101", "102", "103"}, env.ledger.History("tester")); diff != "" {
		t.Errorf("history (-want +got):\n%s", diff)
	}
}

func TestPollOnceRejectsOverlappingRun(t *testing.T) {
	ctx := context.Background()
	env := newTestScheduler(t, loadFixture(t), nil, "tester")

	env.sched.busy.Store(true)
	env.sched.PollOnce(ctx)

	if n := env.http.callCount(); n != 0 {
		t.Errorf("expected no fetches while busy, got %d", n)
	}
	if n := len(env.sender.all()); n != 0 {
		t.Errorf("expected no broadcasts while busy, got %d", n)
	}

	env.sched.busy.Store(false)
	env.sched.PollOnce(ctx)
	if n := len(env.sender.all()); n != 1 {
		t.Errorf("expected a broadcast once unblocked, got %d", n)
	}
}

func TestPollOnceFetchErrorLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	env := newTestScheduler(t, "", io.ErrUnexpectedEOF, "tester")

	env.sched.PollOnce(ctx)

	if n := len(env.sender.all()); n != 0 {
		t.Errorf("expected no broadcasts, got %d", n)
	}
	if h := env.ledger.History("tester"); len(h) != 0 {
		t.Errorf("expected empty history, got %v", h)
	}
	if _, err := os.Stat(env.statePath); !os.IsNotExist(err) {
		t.Errorf("state file should not be written on a failed run")
	}
}

func TestPollOnceFetchesEveryTrackedAuthor(t *testing.T) {
	ctx := context.Background()
	env := newTestScheduler(t, loadFixture(t), nil, "tester", "other")

	env.sched.PollOnce(ctx)

	if n := env.http.callCount(); n != 2 {
		t.Errorf("expected 2 fetches, got %d", n)
	}
	if diff := cmp.Diff([]string{"101", "102", "103"}, env.ledger.History("other")); diff != "" {
		t.Errorf("history (-want +got):\n%s", diff)
	}
}

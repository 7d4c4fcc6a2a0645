// Package state persists the tracked-author list and the per-author
// history of already-announced post IDs.
package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Ledger is the durable record of which posts have already been
// announced, plus the tracked-author list. One mutex guards both, since
// they are mutated from the poll loop and from command handlers.
type Ledger struct {
	mu      sync.Mutex
	path    string
	cap     int
	log     *slog.Logger
	authors []string
	seen    map[string][]string // author -> post IDs, oldest first
}

// persistedState is the on-disk JSON shape.
type persistedState struct {
	LastSeenByAuthor map[string][]string `json:"lastSeenByAuthor"`
	Authors          []string            `json:"authors"`
}

// New creates a Ledger backed by the file at path. historyCap bounds the
// per-author ID history. defaultAuthors is used until Load finds a
// persisted author list.
func New(path string, historyCap int, defaultAuthors []string, log *slog.Logger) *Ledger {
	authors := make([]string, len(defaultAuthors))
	copy(authors, defaultAuthors)
	return &Ledger{
		path:    path,
		cap:     historyCap,
		log:     log,
		authors: authors,
		seen:    make(map[string][]string),
	}
}

// Load reads the state file. A missing file is a clean first run. A
// legacy plain-array file carries no per-author data and is ignored.
// Invalid entries are skipped field by field; a file that is not JSON at
// all results in fresh state.
func (l *Ledger) Load() {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.log.Warn("could not load state, starting fresh", "path", l.path, "error", err)
		}
		return
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		// Old format: plain array of IDs with no per-author structure.
		l.log.Debug("legacy state file format ignored", "path", l.path)
		return
	}

	var doc struct {
		LastSeenByAuthor json.RawMessage `json:"lastSeenByAuthor"`
		Authors          json.RawMessage `json:"authors"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		l.log.Warn("could not parse state, starting fresh", "path", l.path, "error", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// A bad value in one field must not block loading the others.
	var byAuthor map[string]json.RawMessage
	if err := json.Unmarshal(doc.LastSeenByAuthor, &byAuthor); err == nil {
		for author, rawIDs := range byAuthor {
			ids := decodeStrings(rawIDs)
			if len(ids) > l.cap {
				ids = ids[:l.cap]
			}
			if len(ids) > 0 {
				l.seen[author] = ids
			}
		}
	}

	if authors := decodeStrings(doc.Authors); len(authors) > 0 {
		l.authors = authors
	}
}

// Save writes the full state to disk, via a temp file renamed into
// place so a failed write leaves the previous file intact.
func (l *Ledger) Save() error {
	l.mu.Lock()
	st := persistedState{
		LastSeenByAuthor: make(map[string][]string, len(l.seen)),
		Authors:          append([]string(nil), l.authors...),
	}
	for author, ids := range l.seen {
		st.LastSeenByAuthor[author] = append([]string(nil), ids...)
	}
	l.mu.Unlock()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// RecordSeen appends ids to the author's history in order and trims the
// oldest entries once the history exceeds its cap. Callers are expected
// to pass only IDs not already in the history.
func (l *Ledger) RecordSeen(author string, ids []string) {
	if len(ids) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	list := append(l.seen[author], ids...)
	if len(list) > l.cap {
		list = list[len(list)-l.cap:]
	}
	l.seen[author] = list
}

// KnownIDs returns the author's history as a set.
func (l *Ledger) KnownIDs(author string) map[string]struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	set := make(map[string]struct{}, len(l.seen[author]))
	for _, id := range l.seen[author] {
		set[id] = struct{}{}
	}
	return set
}

// History returns a copy of the author's ID history, oldest first.
func (l *Ledger) History(author string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.seen[author]...)
}

// Authors returns a copy of the tracked-author list in insertion order.
func (l *Ledger) Authors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.authors...)
}

// AddAuthor appends name to the tracked list. Returns false if it is
// already tracked.
func (l *Ledger) AddAuthor(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range l.authors {
		if a == name {
			return false
		}
	}
	l.authors = append(l.authors, name)
	return true
}

// RemoveAuthor removes name from the tracked list. Returns false if it
// was not tracked. The author's seen history is kept, so re-adding the
// author does not re-announce old posts.
func (l *Ledger) RemoveAuthor(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, a := range l.authors {
		if a == name {
			l.authors = append(l.authors[:i], l.authors[i+1:]...)
			return true
		}
	}
	return false
}

// decodeStrings keeps the string members of a JSON array, skipping
// anything that is not an array or not a string.
func decodeStrings(raw json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var out []string
	for _, r := range items {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out = append(out, s)
		}
	}
	return out
}

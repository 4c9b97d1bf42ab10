// Package journal keeps the bot's rolling journal: a short list of recent
// thoughts stored in the key-value store and fed back into prompts so
// consecutive posts do not repeat themselves.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/macrilege/gpt-enduser/internal/kv"
)

const (
	storeKey = "journal:entries"

	// DefaultMaxEntries caps the rolling window.
	DefaultMaxEntries = 10
	// DefaultTTL ages the whole journal out if the bot stops posting.
	DefaultTTL = 7 * 24 * time.Hour
)

// Journal is a rolling window of recent entries.
type Journal struct {
	store      kv.Store
	maxEntries int
	ttl        time.Duration
}

// New creates a journal over the given store.
func New(store kv.Store) *Journal {
	return &Journal{store: store, maxEntries: DefaultMaxEntries, ttl: DefaultTTL}
}

// Append adds an entry, trimming the window to the newest entries.
func (j *Journal) Append(ctx context.Context, entry string) error {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return nil
	}
	entries, err := j.Entries(ctx)
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	if len(entries) > j.maxEntries {
		entries = entries[len(entries)-j.maxEntries:]
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal journal: %w", err)
	}
	if err := j.store.Put(ctx, storeKey, string(data), j.ttl); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// Entries returns the rolling window, oldest first.
func (j *Journal) Entries(ctx context.Context) ([]string, error) {
	val, ok, err := j.store.Get(ctx, storeKey)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var entries []string
	if err := json.Unmarshal([]byte(val), &entries); err != nil {
		return nil, fmt.Errorf("decode journal: %w", err)
	}
	return entries, nil
}

// Summary renders the window as a bullet list for prompt templating. Empty
// when there are no entries.
func (j *Journal) Summary(ctx context.Context) (string, error) {
	entries, err := j.Entries(ctx)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString("- ")
		b.WriteString(e)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

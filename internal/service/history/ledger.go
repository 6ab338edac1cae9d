// Package history keeps the bounded, most-recent-first list of past analyses.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/kapu/lead-analyzer-go/internal/constants"
	"github.com/kapu/lead-analyzer-go/internal/domain"
	"github.com/kapu/lead-analyzer-go/internal/store"
	"github.com/kapu/lead-analyzer-go/internal/util"
	"go.uber.org/zap"
)

// Ledger holds at most constants.HistoryConfig.MaxEntries entries, newest first.
// Every change rewrites the whole list in the store.
type Ledger struct {
	kv      store.KV
	logger  *zap.Logger
	max     int
	now     func() time.Time
	clock   func() int64
	mu      sync.RWMutex
	entries []domain.HistoryEntry
	lastID  int64
}

// NewLedger loads the persisted list. A missing, blank or unreadable value starts empty.
func NewLedger(ctx context.Context, kv store.KV, logger *zap.Logger) (*Ledger, error) {
	l := &Ledger{
		kv:      kv,
		logger:  util.OrNop(logger),
		max:     constants.HistoryConfig.MaxEntries,
		now:     time.Now,
		clock:   util.UnixMilli,
		entries: []domain.HistoryEntry{},
	}

	var loaded []domain.HistoryEntry
	ok, err := store.GetJSON(ctx, kv, constants.StoreKeys.History, &loaded)
	switch {
	case err != nil:
		l.logger.Warn("Stored history unreadable, starting empty", zap.Error(err))
	case ok:
		l.setEntries(loaded)
	}

	l.logger.Debug("History loaded", zap.Int("entries", len(l.entries)))
	return l, nil
}

// Append records result at the head and evicts beyond the cap.
func (l *Ledger) Append(ctx context.Context, result domain.AnalysisResult) (domain.HistoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := domain.NewHistoryEntry(l.nextID(), result, l.now())

	prev, prevID := l.entries, l.lastID
	next := make([]domain.HistoryEntry, 0, len(l.entries)+1)
	next = append(next, entry)
	next = append(next, l.entries...)
	if len(next) > l.max {
		next = next[:l.max]
	}
	l.entries = next
	l.lastID = entry.ID

	if err := l.persist(ctx); err != nil {
		l.entries, l.lastID = prev, prevID
		return domain.HistoryEntry{}, err
	}

	l.logger.Info("History entry added",
		zap.Int64("id", entry.ID),
		zap.String("username", entry.Username),
		zap.Int("size", len(l.entries)),
	)
	return entry, nil
}

func (l *Ledger) Get(id int64) (domain.HistoryEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, e := range l.entries {
		if e.ID == id {
			return e, true
		}
	}
	return domain.HistoryEntry{}, false
}

// FindByUsername returns the most recent entry for username.
func (l *Ledger) FindByUsername(username string) (domain.HistoryEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if i := l.indexOf(username); i >= 0 {
		return l.entries[i], true
	}
	return domain.HistoryEntry{}, false
}

// AttachConversation overwrites the thread on the most recent entry for
// username. It reports false without error when no entry matches.
func (l *Ledger) AttachConversation(ctx context.Context, username string, thread []domain.ThreadMessage) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(username)
	if i < 0 {
		return false, nil
	}

	prev := l.entries[i]
	now := l.now()
	updated := prev
	updated.Conversation = append([]domain.ThreadMessage(nil), thread...)
	updated.LastInteraction = &now
	l.entries[i] = updated

	if err := l.persist(ctx); err != nil {
		l.entries[i] = prev
		return false, err
	}
	return true, nil
}

// List returns a copy, newest first.
func (l *Ledger) List() []domain.HistoryEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.HistoryEntry{}, l.entries...)
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Ledger) Clear(ctx context.Context) error {
	return l.Replace(ctx, nil)
}

// Replace swaps in entries as given (used by import), keeping only the first max.
func (l *Ledger) Replace(ctx context.Context, entries []domain.HistoryEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev, prevID := l.entries, l.lastID
	l.setEntries(entries)

	if err := l.persist(ctx); err != nil {
		l.entries, l.lastID = prev, prevID
		return err
	}
	return nil
}

// must be called with lock held
func (l *Ledger) setEntries(entries []domain.HistoryEntry) {
	if len(entries) > l.max {
		entries = entries[:l.max]
	}
	l.entries = append([]domain.HistoryEntry{}, entries...)
	for _, e := range l.entries {
		if e.ID > l.lastID {
			l.lastID = e.ID
		}
	}
}

// nextID is wall-clock milliseconds, bumped when needed to stay strictly increasing.
func (l *Ledger) nextID() int64 {
	id := l.clock()
	if id <= l.lastID {
		id = l.lastID + 1
	}
	return id
}

func (l *Ledger) indexOf(username string) int {
	for i, e := range l.entries {
		if e.Username == username {
			return i
		}
	}
	return -1
}

func (l *Ledger) persist(ctx context.Context) error {
	return store.SetJSON(ctx, l.kv, constants.StoreKeys.History, l.entries)
}

package session

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/macmilm-mfc/csv-contact-manager-agent/core/logger"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/contact"
)

const janitorInterval = time.Minute

// Store maps session ids to their review state. Safe for concurrent access
// from independent sessions; per-session events are serialized via the
// session's own action slot.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	idleTimeout time.Duration
}

// NewStore builds a store that evicts sessions idle longer than idleTimeout.
func NewStore(idleTimeout time.Duration) *Store {
	return &Store{
		sessions:    make(map[string]*Session),
		idleTimeout: idleTimeout,
	}
}

// Create allocates a new session with cursor 0 and all outcomes pending.
// parseSkipped is the count of upload rows dropped before review began.
func (st *Store) Create(rows []contact.Record, parseSkipped int) *Session {
	owned := make([]contact.Record, len(rows))
	copy(owned, rows)

	results := make([]Outcome, len(owned))
	for i := range results {
		results[i] = Pending()
	}

	s := &Session{
		id:           uuid.NewString(),
		parseSkipped: parseSkipped,
		rows:         owned,
		results:      results,
		lastActive:   time.Now(),
	}

	st.mu.Lock()
	st.sessions[s.id] = s
	st.mu.Unlock()

	logger.SESS.Info("session created",
		slog.String("event", "create"),
		slog.String("session_id", s.id),
		slog.Int("rows", len(owned)),
	)
	return s
}

// Get returns the session or a NotFoundError for unknown/evicted ids.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{SessionID: id}
	}
	return s, nil
}

// Record sets the outcome for the current cursor row. Any other index fails
// with InvalidStateError and leaves state unchanged.
func (st *Store) Record(id string, rowIndex int, out Outcome) error {
	s, err := st.Get(id)
	if err != nil {
		return err
	}
	return s.record(rowIndex, out)
}

// Advance increments the session cursor. Past the last row it is a no-op.
// It returns the new cursor and whether the session is complete.
func (st *Store) Advance(id string) (int, bool, error) {
	s, err := st.Get(id)
	if err != nil {
		return 0, false, err
	}
	cursor, done := s.advance()
	return cursor, done, nil
}

// Evict removes the session. Evicting an unknown id is a no-op.
func (st *Store) Evict(id string) {
	st.mu.Lock()
	_, existed := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if existed {
		logger.SESS.Info("session evicted",
			slog.String("event", "evict"),
			slog.String("session_id", id),
		)
	}
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// StartJanitor sweeps idle sessions until ctx is done. Sessions with an
// action in flight are never evicted mid-action.
func (st *Store) StartJanitor(ctx context.Context) {
	if st.idleTimeout <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				st.sweep(now)
			}
		}
	}()
}

func (st *Store) sweep(now time.Time) {
	st.mu.RLock()
	var stale []string
	for id, s := range st.sessions {
		if s.idleSince(now, st.idleTimeout) {
			stale = append(stale, id)
		}
	}
	st.mu.RUnlock()

	for _, id := range stale {
		st.mu.Lock()
		s, ok := st.sessions[id]
		// Re-check under the write lock; an action may have started meanwhile.
		if ok && s.idleSince(now, st.idleTimeout) {
			delete(st.sessions, id)
		} else {
			ok = false
		}
		st.mu.Unlock()
		if ok {
			logger.SESS.Info("idle session evicted",
				slog.String("event", "evict.idle"),
				slog.String("session_id", id),
			)
		}
	}
}

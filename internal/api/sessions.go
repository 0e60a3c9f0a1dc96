// sessions.go - In-memory review sessions with expiry

package api

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/bosocmputer/khata_ocr/internal/khata"
)

var (
	ErrSessionNotFound = errors.New("session not found or expired")
	ErrSessionBusy     = errors.New("session is still processing")
)

type sessionEntry struct {
	mu      sync.Mutex
	session *khata.Session
	touched time.Time
}

// SessionStore keeps sessions for ttl after their last use. Each session has
// its own lock so one teacher's commit does not block another's edits.
type SessionStore struct {
	mu      sync.RWMutex
	entries map[string]*sessionEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewSessionStore creates an empty store
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		entries: make(map[string]*sessionEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put stores a copy of s
func (st *SessionStore) Put(s *khata.Session) {
	st.mu.Lock()
	entry, ok := st.entries[s.ID]
	if !ok {
		entry = &sessionEntry{}
		st.entries[s.ID] = entry
	}
	st.mu.Unlock()

	entry.mu.Lock()
	entry.session = s.Clone()
	entry.touched = st.now()
	entry.mu.Unlock()
}

func (st *SessionStore) entry(id string) (*sessionEntry, error) {
	st.mu.RLock()
	entry, ok := st.entries[id]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return entry, nil
}

func (st *SessionStore) expired(e *sessionEntry) bool {
	return st.ttl > 0 && st.now().Sub(e.touched) > st.ttl
}

// Get returns a copy of the session
func (st *SessionStore) Get(id string) (*khata.Session, error) {
	entry, err := st.entry(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.session == nil || st.expired(entry) {
		return nil, ErrSessionNotFound
	}
	return entry.session.Clone(), nil
}

// Update runs fn on a copy of the session under its lock and stores the
// result. Sessions in processing are refused with ErrSessionBusy.
func (st *SessionStore) Update(id string, fn func(*khata.Session) error) (*khata.Session, error) {
	entry, err := st.entry(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.session == nil || st.expired(entry) {
		return nil, ErrSessionNotFound
	}
	if entry.session.State == khata.StateProcessing {
		return nil, ErrSessionBusy
	}

	working := entry.session.Clone()
	fnErr := fn(working)
	entry.session = working
	entry.touched = st.now()
	return working.Clone(), fnErr
}

// Sweep drops expired sessions and returns how many went
func (st *SessionStore) Sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for id, entry := range st.entries {
		entry.mu.Lock()
		stale := st.expired(entry)
		entry.mu.Unlock()
		if stale {
			delete(st.entries, id)
			removed++
		}
	}
	return removed
}

// Len counts stored sessions, expired or not
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.entries)
}

// RunJanitor sweeps every interval until ctx is done
func (st *SessionStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := st.Sweep(); n > 0 {
				log.Printf("🧹 Removed %d expired review sessions", n)
			}
		}
	}
}

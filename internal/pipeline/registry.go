package pipeline

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	apperrors "github.com/youruser/tokenizer/internal/errors"
)

// Registry holds the open sessions of the HTTP shell by ID.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{sessions: map[string]*Session{}, now: time.Now}
}

// Add registers s.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

// Get returns the session with id and marks it as used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "session "+id+" not found")
	}
	s.touch(r.now())
	return s, nil
}

// Remove unregisters and closes the session with id.
func (r *Registry) Remove(id string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.close()
	}
	return s, ok
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes and removes sessions idle for longer than idle.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)
	r.mu.Lock()
	var stale []*Session
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.close()
	}
	return len(stale)
}

// StartSweeper runs Sweep on a cron schedule until stop is called.
func (r *Registry) StartSweeper(schedule string, idle time.Duration) (stop func(), err error) {
	c := cron.New()
	_, err = c.AddFunc(schedule, func() {
		if n := r.Sweep(idle); n > 0 {
			log.Printf("session sweep: closed %d idle session(s)", n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("session sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	return func() { <-c.Stop().Done() }, nil
}

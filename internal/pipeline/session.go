package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/youruser/tokenizer/internal/actors"
	apperrors "github.com/youruser/tokenizer/internal/errors"
	imagepkg "github.com/youruser/tokenizer/internal/image"
)

// View names one of the two composites of a session.
type View string

const (
	ViewAvatar View = "avatar"
	ViewToken  View = "token"
)

// ParseView validates a view name.
func ParseView(s string) (View, error) {
	switch View(s) {
	case ViewAvatar, ViewToken:
		return View(s), nil
	default:
		return "", apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("unknown view %q", s))
	}
}

// Notice levels.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Notice is a message the hosting UI should show to the user.
type Notice struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Targets are the filenames a submit would write.
type Targets struct {
	Avatar string `json:"avatar"`
	Token  string `json:"token"`
	// TokenPattern is set for wildcard actors.
	TokenPattern string `json:"token_pattern,omitempty"`
}

// Session is one open editing form.
type Session struct {
	ID      string
	Actor   actors.Actor
	Avatar  *imagepkg.Composite
	Token   *imagepkg.Composite
	Targets Targets

	mu       sync.Mutex
	closed   bool
	tail     chan struct{}
	notices  []Notice
	lastUsed time.Time
}

func newSession(id string, actor actors.Actor, now time.Time) *Session {
	tail := make(chan struct{})
	close(tail)
	return &Session{ID: id, Actor: actor, tail: tail, lastUsed: now}
}

// View returns the composite named v.
func (s *Session) View(v View) (*imagepkg.Composite, error) {
	switch v {
	case ViewAvatar:
		return s.Avatar, nil
	case ViewToken:
		return s.Token, nil
	default:
		return nil, apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("unknown view %q", v))
	}
}

// Notices returns a copy of the notices recorded so far.
func (s *Session) Notices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notice, len(s.notices))
	copy(out, s.notices)
	return out
}

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) notify(level, msg string, at time.Time) {
	log.Printf("session %s [%s]: %s", s.ID, level, msg)
	s.mu.Lock()
	s.notices = append(s.notices, Notice{Level: level, Message: msg, At: at})
	s.mu.Unlock()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// enqueue reserves the next slot in the layer order. prev is closed once
// every earlier request has been applied or dropped; the caller must close
// done when finished with its own slot.
func (s *Session) enqueue() (prev <-chan struct{}, done chan struct{}, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil, apperrors.New(apperrors.CodeSessionClosed, "session "+s.ID+" is closed")
	}
	prev = s.tail
	done = make(chan struct{})
	s.tail = done
	return prev, done, nil
}

// drain waits until every request issued so far has finished.
func (s *Session) drain(ctx context.Context) error {
	s.mu.Lock()
	tail := s.tail
	s.mu.Unlock()
	select {
	case <-tail:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// addLayer applies a layer unless the session has been closed meanwhile.
func (s *Session) addLayer(v View, b imagepkg.Bitmap, mask imagepkg.MaskKind) error {
	comp, err := s.View(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.New(apperrors.CodeSessionClosed, "session "+s.ID+" closed before the image arrived")
	}
	return comp.AddLayer(b, mask)
}

func (s *Session) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}

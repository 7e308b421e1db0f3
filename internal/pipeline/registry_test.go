package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/youruser/tokenizer/internal/actors"
	apperrors "github.com/youruser/tokenizer/internal/errors"
)

func TestRegistryGetAndRemove(t *testing.T) {
	r := NewRegistry()
	s := newSession("s1", actors.Actor{ID: "a"}, testNow)
	r.Add(s)

	got, err := r.Get("s1")
	if err != nil || got != s {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if _, err := r.Get("missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want not found", err)
	}

	if _, ok := r.Remove("s1"); !ok {
		t.Fatal("expected Remove to find the session")
	}
	if !s.Closed() {
		t.Fatal("expected removed session to be closed")
	}
	if r.Len() != 0 {
		t.Fatalf("Len = %d, want 0", r.Len())
	}
}

func TestRegistrySweepClosesIdleSessions(t *testing.T) {
	now := testNow
	r := NewRegistry()
	r.now = func() time.Time { return now }

	idle := newSession("idle", actors.Actor{}, now.Add(-time.Hour))
	fresh := newSession("fresh", actors.Actor{}, now.Add(-time.Minute))
	r.Add(idle)
	r.Add(fresh)

	if n := r.Sweep(30 * time.Minute); n != 1 {
		t.Fatalf("Sweep = %d, want 1", n)
	}
	if !idle.Closed() || fresh.Closed() {
		t.Fatalf("closed: idle=%v fresh=%v", idle.Closed(), fresh.Closed())
	}
	if _, err := r.Get("fresh"); err != nil {
		t.Fatalf("fresh session missing: %v", err)
	}
}

func TestStartSweeperRejectsBadSchedule(t *testing.T) {
	r := NewRegistry()
	if _, err := r.StartSweeper("not a schedule", time.Minute); err == nil {
		t.Fatal("expected schedule error")
	}
	stop, err := r.StartSweeper("@every 1h", time.Minute)
	if err != nil {
		t.Fatalf("start sweeper: %v", err)
	}
	stop()
}

func TestParseView(t *testing.T) {
	if v, err := ParseView("token"); err != nil || v != ViewToken {
		t.Fatalf("ParseView(token) = %v, %v", v, err)
	}
	if _, err := ParseView("banner"); !errors.Is(err, apperrors.ErrInvalidArg) {
		t.Fatalf("ParseView(banner) error = %v, want invalid argument", err)
	}
}

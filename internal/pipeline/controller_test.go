package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/youruser/tokenizer/internal/actors"
	apperrors "github.com/youruser/tokenizer/internal/errors"
	"github.com/youruser/tokenizer/internal/naming"
)

var allCaps = Capabilities{CanUpload: true, CanBrowse: true}

func aria() actors.Actor {
	return actors.Actor{
		ID:          "aria",
		Name:        "Aria Shadowtide",
		Kind:        actors.KindCharacter,
		PortraitURL: "portraits/aria.png",
		Token:       actors.Token{ImageURL: "tokens/aria.png"},
	}
}

func gob() actors.Actor {
	return actors.Actor{
		ID:          "gob",
		Name:        "Gob",
		Kind:        "npc",
		PortraitURL: "portraits/gob.png",
		Token:       actors.Token{ImageURL: "tokens/gob.png", IsWildcard: true},
	}
}

func TestOpenNonWildcardLoadsArtAndFrame(t *testing.T) {
	h := newHarness(t, nil, allCaps, aria())
	h.loader.images["portraits/aria.png"] = bitmap(300, 200)
	h.loader.images["tokens/aria.png"] = bitmap(50, 50)
	h.loader.images["frames/pc.png"] = bitmap(80, 80)

	s, err := h.ctrl.Open(context.Background(), "aria")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Avatar.Size() != 300 {
		t.Fatalf("avatar size = %d, want 300", s.Avatar.Size())
	}
	if s.Token.Size() != 64 {
		t.Fatalf("token size = %d, want 64", s.Token.Size())
	}
	if s.Avatar.Len() != 1 {
		t.Fatalf("avatar layers = %d, want 1", s.Avatar.Len())
	}
	layers := s.Token.Layers()
	if len(layers) != 2 {
		t.Fatalf("token layers = %d, want 2", len(layers))
	}
	if layers[0].Bitmap.Width() != 50 || layers[1].Bitmap.Width() != 80 {
		t.Fatalf("token layer order = %d,%d, want token then frame", layers[0].Bitmap.Width(), layers[1].Bitmap.Width())
	}
	if layers[1].Mask.String() != "circle" {
		t.Fatalf("frame mask = %v, want circle", layers[1].Mask)
	}
	if s.Targets.Avatar != "aria_shadowtide.Avatar.png" || s.Targets.Token != "aria_shadowtide.Token.png" {
		t.Fatalf("targets = %+v", s.Targets)
	}
	if n := len(s.Notices()); n != 0 {
		t.Fatalf("notices = %v, want none", s.Notices())
	}
}

func TestOpenWildcardStartsWithFrameOnly(t *testing.T) {
	lister := fakeLister{files: []string{"gob.Token-001.png"}}
	h := newHarness(t, lister, allCaps, gob())
	h.loader.images["portraits/gob.png"] = bitmap(120, 120)
	h.loader.images["tokens/gob.png"] = bitmap(10, 10)
	h.loader.images["frames/npc.png"] = bitmap(64, 64)

	s, err := h.ctrl.Open(context.Background(), "gob")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	layers := s.Token.Layers()
	if len(layers) != 1 || layers[0].Bitmap.Width() != 64 {
		t.Fatalf("token layers = %+v, want frame only", layers)
	}
	if s.Targets.TokenPattern != "gob.Token-*.png" || s.Targets.Token != "gob.Token-002.png" {
		t.Fatalf("targets = %+v", s.Targets)
	}
}

func TestOpenRecordsLoadFailuresAsNotices(t *testing.T) {
	h := newHarness(t, nil, allCaps, aria())
	h.loader.images["tokens/aria.png"] = bitmap(50, 50)

	s, err := h.ctrl.Open(context.Background(), "aria")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Avatar.Size() != 64 {
		t.Fatalf("avatar size = %d, want token size fallback 64", s.Avatar.Size())
	}
	if s.Avatar.Len() != 0 {
		t.Fatalf("avatar layers = %d, want 0", s.Avatar.Len())
	}
	notices := s.Notices()
	if len(notices) != 2 {
		t.Fatalf("notices = %+v, want portrait and frame failures", notices)
	}
	for _, n := range notices {
		if n.Level != LevelError {
			t.Fatalf("notice level = %q, want %q", n.Level, LevelError)
		}
	}
}

func TestOpenUnknownActor(t *testing.T) {
	h := newHarness(t, nil, allCaps)
	if _, err := h.ctrl.Open(context.Background(), "ghost"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("Open error = %v, want not found", err)
	}
}

func TestAddSourceDownloadAndFailure(t *testing.T) {
	h := newHarness(t, nil, allCaps, aria())
	h.loader.images["portraits/aria.png"] = bitmap(100, 100)
	h.loader.images["https://img/extra.png"] = bitmap(40, 20)
	s, _ := h.ctrl.Open(context.Background(), "aria")
	ctx := context.Background()

	if err := h.ctrl.AddSource(ctx, s, ViewAvatar, Download("https://img/extra.png")); err != nil {
		t.Fatalf("add source: %v", err)
	}
	if s.Avatar.Len() != 2 {
		t.Fatalf("avatar layers = %d, want 2", s.Avatar.Len())
	}

	before := len(s.Notices())
	err := h.ctrl.AddSource(ctx, s, ViewAvatar, Download("https://img/missing.png"))
	if !errors.Is(err, apperrors.ErrLoad) {
		t.Fatalf("AddSource error = %v, want load error", err)
	}
	if s.Avatar.Len() != 2 {
		t.Fatalf("avatar layers = %d, want unchanged 2", s.Avatar.Len())
	}
	if len(s.Notices()) != before+1 {
		t.Fatalf("expected failure notice")
	}
}

func TestAddSourceValidation(t *testing.T) {
	h := newHarness(t, nil, Capabilities{}, aria())
	s, _ := h.ctrl.Open(context.Background(), "aria")
	ctx := context.Background()

	if err := h.ctrl.AddSource(ctx, s, ViewToken, Upload("a.png", []byte("x"))); !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("upload without permission error = %v, want forbidden", err)
	}
	if err := h.ctrl.AddSource(ctx, s, View("banner"), Download("x")); !errors.Is(err, apperrors.ErrInvalidArg) {
		t.Fatalf("unknown view error = %v, want invalid argument", err)
	}
	if err := h.ctrl.AddSource(ctx, s, ViewToken, Download("")); !errors.Is(err, apperrors.ErrInvalidArg) {
		t.Fatalf("empty url error = %v, want invalid argument", err)
	}
}

func TestAddSourceUpload(t *testing.T) {
	h := newHarness(t, nil, allCaps, aria())
	h.loader.images["me.png"] = bitmap(30, 30)
	s, _ := h.ctrl.Open(context.Background(), "aria")
	if err := h.ctrl.AddSource(context.Background(), s, ViewToken, Upload("me.png", []byte("raw"))); err != nil {
		t.Fatalf("add upload: %v", err)
	}
	if s.Token.Len() != 1 {
		t.Fatalf("token layers = %d, want 1", s.Token.Len())
	}
}

func TestAddSourceAvatarReusesRenderedAvatar(t *testing.T) {
	h := newHarness(t, nil, allCaps, aria())
	h.loader.images["portraits/aria.png"] = bitmap(90, 90)
	s, _ := h.ctrl.Open(context.Background(), "aria")

	if err := h.ctrl.AddSource(context.Background(), s, ViewToken, Avatar()); err != nil {
		t.Fatalf("add avatar: %v", err)
	}
	layers := s.Token.Layers()
	if len(layers) != 1 || layers[0].Bitmap.Width() != 90 {
		t.Fatalf("token layers = %+v, want the 90px avatar", layers)
	}
}

func TestAddSourceAppliesInIssueOrder(t *testing.T) {
	h := newHarness(t, nil, allCaps, aria())
	h.loader.images["slow"] = bitmap(11, 11)
	h.loader.images["fast"] = bitmap(22, 22)
	s, _ := h.ctrl.Open(context.Background(), "aria")
	ctx := context.Background()

	started, release := h.loader.hold("slow")
	slowDone := make(chan error, 1)
	go func() { slowDone <- h.ctrl.AddSource(ctx, s, ViewToken, Download("slow")) }()
	<-started

	fastDone := make(chan error, 1)
	go func() { fastDone <- h.ctrl.AddSource(ctx, s, ViewToken, Download("fast")) }()

	select {
	case err := <-fastDone:
		t.Fatalf("fast load applied before the earlier slow load (err=%v)", err)
	case <-time.After(50 * time.Millisecond):
	}

	release()
	if err := <-slowDone; err != nil {
		t.Fatalf("slow: %v", err)
	}
	if err := <-fastDone; err != nil {
		t.Fatalf("fast: %v", err)
	}
	layers := s.Token.Layers()
	if len(layers) != 2 || layers[0].Bitmap.Width() != 11 || layers[1].Bitmap.Width() != 22 {
		t.Fatalf("layer order = %d,%d, want 11,22", layers[0].Bitmap.Width(), layers[1].Bitmap.Width())
	}
}

func TestAddSourceAfterCloseIsDiscarded(t *testing.T) {
	h := newHarness(t, nil, allCaps, aria())
	h.loader.images["late"] = bitmap(10, 10)
	s, _ := h.ctrl.Open(context.Background(), "aria")

	started, release := h.loader.hold("late")
	done := make(chan error, 1)
	go func() { done <- h.ctrl.AddSource(context.Background(), s, ViewToken, Download("late")) }()
	<-started

	h.ctrl.Close(s)
	release()

	if err := <-done; !errors.Is(err, apperrors.ErrSessionClosed) {
		t.Fatalf("AddSource error = %v, want session closed", err)
	}
	if s.Token.Len() != 0 {
		t.Fatalf("token layers = %d, want 0", s.Token.Len())
	}
	if err := h.ctrl.AddSource(context.Background(), s, ViewToken, Download("late")); !errors.Is(err, apperrors.ErrSessionClosed) {
		t.Fatalf("AddSource after close error = %v, want session closed", err)
	}
}

func TestSubmitNonWildcard(t *testing.T) {
	h := newHarness(t, nil, allCaps, aria())
	h.loader.images["portraits/aria.png"] = bitmap(100, 80)
	h.loader.images["https://img/aria-hd.png"] = bitmap(400, 400)
	ctx := context.Background()
	s, _ := h.ctrl.Open(ctx, "aria")
	if err := h.ctrl.AddSource(ctx, s, ViewAvatar, Download("https://img/aria-hd.png")); err != nil {
		t.Fatalf("add source: %v", err)
	}

	res, err := h.ctrl.Submit(ctx, s)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	wantOrder := []string{"aria_shadowtide.Avatar.png", "aria_shadowtide.Token.png"}
	if strings.Join(h.uploader.order, ",") != strings.Join(wantOrder, ",") {
		t.Fatalf("uploads = %v, want %v", h.uploader.order, wantOrder)
	}
	if res.AvatarURL != "mem://aria_shadowtide.Avatar.png?1700000000000" {
		t.Fatalf("avatar url = %q", res.AvatarURL)
	}
	if res.TokenURL != "mem://aria_shadowtide.Token.png?1700000000000" {
		t.Fatalf("token url = %q", res.TokenURL)
	}
	if res.TokenPattern != "" {
		t.Fatalf("token pattern = %q, want empty", res.TokenPattern)
	}

	got, _ := h.actors.Get(ctx, "aria")
	if got.PortraitURL != res.AvatarURL || got.Token.ImageURL != res.TokenURL {
		t.Fatalf("actor = %+v, want both urls patched", got)
	}
	if h.actors.updates != 1 {
		t.Fatalf("updates = %d, want 1", h.actors.updates)
	}
}

func TestSubmitWildcardStoresPattern(t *testing.T) {
	lister := fakeLister{files: []string{"gob.Token-001.png", "gob.Token-002.png", "other/gob.Token-003.png", "gob.Avatar.png"}}
	h := newHarness(t, lister, allCaps, gob())
	h.loader.images["portraits/gob.png"] = bitmap(64, 64)
	ctx := context.Background()
	s, _ := h.ctrl.Open(ctx, "gob")

	res, err := h.ctrl.Submit(ctx, s)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.TokenFile != "gob.Token-003.png" {
		t.Fatalf("token file = %q, want %q", res.TokenFile, "gob.Token-003.png")
	}
	if _, ok := h.uploader.uploads["gob.Token-003.png"]; !ok {
		t.Fatalf("uploads = %v, want gob.Token-003.png", h.uploader.order)
	}
	got, _ := h.actors.Get(ctx, "gob")
	if got.Token.ImageURL != "gob.Token-*.png" {
		t.Fatalf("token field = %q, want pattern", got.Token.ImageURL)
	}
	if !strings.HasSuffix(got.PortraitURL, "gob.Avatar.png?1700000000000") {
		t.Fatalf("portrait = %q", got.PortraitURL)
	}

	var wildcarded bool
	for _, n := range s.Notices() {
		if strings.Contains(n.Message, "Wildcarding token image to gob.Token-*.png") {
			wildcarded = true
		}
	}
	if !wildcarded {
		t.Fatalf("notices = %+v, want wildcarding notice", s.Notices())
	}
}

func TestSubmitWildcardReusesExistingPattern(t *testing.T) {
	a := gob()
	a.Token.ImageURL = "custom/goblins-*.png"
	lister := fakeLister{files: []string{"custom/goblins-001.png"}}
	h := newHarness(t, lister, allCaps, a)
	ctx := context.Background()
	s, _ := h.ctrl.Open(ctx, "gob")

	res, err := h.ctrl.Submit(ctx, s)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.TokenFile != "custom/goblins-002.png" || res.TokenURL != "custom/goblins-*.png" {
		t.Fatalf("result = %+v", res)
	}
	for _, n := range s.Notices() {
		if strings.Contains(n.Message, "Wildcarding") {
			t.Fatalf("unexpected wildcarding notice for an existing pattern")
		}
	}
}

func TestSubmitUploadFailureLeavesActorUntouched(t *testing.T) {
	h := newHarness(t, nil, allCaps, aria())
	h.uploader.failOn = "aria_shadowtide.Token.png"
	ctx := context.Background()
	s, _ := h.ctrl.Open(ctx, "aria")

	_, err := h.ctrl.Submit(ctx, s)
	if !errors.Is(err, apperrors.ErrUpload) {
		t.Fatalf("Submit error = %v, want upload error", err)
	}
	if h.actors.updates != 0 {
		t.Fatalf("updates = %d, want 0", h.actors.updates)
	}
	got, _ := h.actors.Get(ctx, "aria")
	if got != aria() {
		t.Fatalf("actor changed: %+v", got)
	}
}

func TestSubmitActorUpdateFailure(t *testing.T) {
	h := newHarness(t, nil, allCaps, aria())
	h.actors.updateErr = errors.New("database is locked")
	ctx := context.Background()
	s, _ := h.ctrl.Open(ctx, "aria")

	if _, err := h.ctrl.Submit(ctx, s); !errors.Is(err, apperrors.ErrActorUpdate) {
		t.Fatalf("Submit error = %v, want actor update error", err)
	}
}

func TestSubmitExhaustedIndex(t *testing.T) {
	var files []string
	for i := 1; i <= 999; i++ {
		files = append(files, naming.Candidate("gob.Token-*.png", i))
	}
	h := newHarness(t, fakeLister{files: files}, allCaps, gob())
	ctx := context.Background()
	s, _ := h.ctrl.Open(ctx, "gob")

	if _, err := h.ctrl.Submit(ctx, s); !errors.Is(err, apperrors.ErrIndexExhausted) {
		t.Fatalf("Submit error = %v, want index exhausted", err)
	}
	if len(h.uploader.order) != 0 || h.actors.updates != 0 {
		t.Fatalf("uploads = %v updates = %d, want none", h.uploader.order, h.actors.updates)
	}
}

func TestSubmitClosedSession(t *testing.T) {
	h := newHarness(t, nil, allCaps, aria())
	s, _ := h.ctrl.Open(context.Background(), "aria")
	h.ctrl.Close(s)
	if _, err := h.ctrl.Submit(context.Background(), s); !errors.Is(err, apperrors.ErrSessionClosed) {
		t.Fatalf("Submit error = %v, want session closed", err)
	}
}

func TestNewControllerValidates(t *testing.T) {
	if _, err := NewController(Deps{}, Settings{TokenSize: 0}, allCaps); !errors.Is(err, apperrors.ErrInvalidArg) {
		t.Fatalf("NewController error = %v, want invalid argument", err)
	}
	if _, err := NewController(Deps{}, Settings{TokenSize: 10}, allCaps); err == nil {
		t.Fatal("expected error without transports")
	}
}

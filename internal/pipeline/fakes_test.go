package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"github.com/youruser/tokenizer/internal/actors"
	apperrors "github.com/youruser/tokenizer/internal/errors"
	imagepkg "github.com/youruser/tokenizer/internal/image"
)

var testNow = time.UnixMilli(1700000000000)

func bitmap(w, h int) imagepkg.Bitmap {
	return imagepkg.NewBitmap(imaging.New(w, h, color.NRGBA{R: uint8(w), G: uint8(h), A: 255}))
}

type fakeLoader struct {
	mu      sync.Mutex
	images  map[string]imagepkg.Bitmap
	gates   map[string]chan struct{}
	started map[string]chan struct{}
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		images:  map[string]imagepkg.Bitmap{},
		gates:   map[string]chan struct{}{},
		started: map[string]chan struct{}{},
	}
}

// hold makes loads of key block until the returned release func is called.
func (f *fakeLoader) hold(key string) (started <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	st := make(chan struct{})
	f.gates[key] = gate
	f.started[key] = st
	return st, func() { close(gate) }
}

func (f *fakeLoader) Load(ctx context.Context, src imagepkg.Source) (imagepkg.Bitmap, error) {
	key := src.URL
	if src.Data != nil {
		key = src.Name
	}
	f.mu.Lock()
	bm, ok := f.images[key]
	gate := f.gates[key]
	st := f.started[key]
	delete(f.started, key)
	f.mu.Unlock()

	if st != nil {
		close(st)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return imagepkg.Bitmap{}, ctx.Err()
		}
	}
	if !ok {
		return imagepkg.Bitmap{}, apperrors.New(apperrors.CodeLoad, "fetch "+key+": not found")
	}
	return bm, nil
}

type fakeUploader struct {
	mu      sync.Mutex
	uploads map[string][]byte
	order   []string
	failOn  string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{uploads: map[string][]byte{}}
}

func (f *fakeUploader) Upload(_ context.Context, data []byte, target string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if target == f.failOn {
		return "", errors.New("disk full")
	}
	f.uploads[target] = data
	f.order = append(f.order, target)
	return "mem://" + target, nil
}

type fakeLister struct {
	files []string
	err   error
}

// ListFiles returns the files matching pattern, like a directory listing.
func (f fakeLister) ListFiles(_ context.Context, pattern string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []string
	for _, name := range f.files {
		if ok, _ := path.Match(pattern, name); ok {
			out = append(out, name)
		}
	}
	return out, nil
}

type fakeActors struct {
	mu        sync.Mutex
	actors    map[string]actors.Actor
	updates   int
	updateErr error
}

func newFakeActors(list ...actors.Actor) *fakeActors {
	f := &fakeActors{actors: map[string]actors.Actor{}}
	for _, a := range list {
		f.actors[a.ID] = a
	}
	return f
}

func (f *fakeActors) Get(_ context.Context, id string) (actors.Actor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.actors[id]
	if !ok {
		return actors.Actor{}, apperrors.New(apperrors.CodeNotFound, "actor "+id+" not found")
	}
	return a, nil
}

func (f *fakeActors) Update(_ context.Context, id string, p actors.Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates++
	f.actors[id] = p.Apply(f.actors[id])
	return nil
}

type harness struct {
	ctrl     *Controller
	loader   *fakeLoader
	uploader *fakeUploader
	actors   *fakeActors
}

func newHarness(t *testing.T, lister Lister, caps Capabilities, list ...actors.Actor) *harness {
	t.Helper()
	h := &harness{
		loader:   newFakeLoader(),
		uploader: newFakeUploader(),
		actors:   newFakeActors(list...),
	}
	if lister == nil {
		lister = fakeLister{}
	}
	ctrl, err := NewController(Deps{
		Loader:   h.loader,
		Uploader: h.uploader,
		Lister:   lister,
		Actors:   h.actors,
	}, Settings{
		TokenSize:     64,
		DefaultFrames: map[string]string{"pc": "frames/pc.png", "npc": "frames/npc.png"},
	}, caps)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	ctrl.now = func() time.Time { return testNow }
	n := 0
	ctrl.newID = func() string {
		n++
		return fmt.Sprintf("session-%d", n)
	}
	h.ctrl = ctrl
	return h
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/youruser/tokenizer/internal/actors"
	apperrors "github.com/youruser/tokenizer/internal/errors"
	imagepkg "github.com/youruser/tokenizer/internal/image"
	"github.com/youruser/tokenizer/internal/naming"
)

// Loader decodes images from a source.
type Loader interface {
	Load(ctx context.Context, src imagepkg.Source) (imagepkg.Bitmap, error)
}

// Uploader stores a blob under target and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, target string) (string, error)
}

// BatchUploader is an Uploader that can store several blobs so that either
// all targets are replaced or none. Submit uses it when available.
type BatchUploader interface {
	UploadAll(ctx context.Context, blobs map[string][]byte) (map[string]string, error)
}

// Lister returns the existing files matching a wildcard pattern.
type Lister interface {
	ListFiles(ctx context.Context, pattern string) ([]string, error)
}

// ActorStore reads actor records and applies partial updates atomically.
type ActorStore interface {
	Get(ctx context.Context, id string) (actors.Actor, error)
	Update(ctx context.Context, id string, p actors.Patch) error
}

// Settings are read-only values fixed at construction.
type Settings struct {
	TokenSize int
	// DefaultFrames maps "pc" and "npc" to a frame path; empty means none.
	DefaultFrames map[string]string
	UploadDir     string
	Background    color.NRGBA
}

// Capabilities of the user driving the sessions.
type Capabilities struct {
	CanUpload bool `json:"can_upload"`
	CanBrowse bool `json:"can_browse"`
}

// Deps are the transports the controller calls.
type Deps struct {
	Loader   Loader
	Uploader Uploader
	Lister   Lister
	Actors   ActorStore
}

// Controller implements open, addSource, submit and close for editing
// sessions.
type Controller struct {
	deps     Deps
	settings Settings
	caps     Capabilities
	now      func() time.Time
	newID    func() string
}

// NewController returns a Controller. TokenSize must be positive.
func NewController(deps Deps, settings Settings, caps Capabilities) (*Controller, error) {
	if settings.TokenSize <= 0 {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("token size must be positive, got %d", settings.TokenSize))
	}
	if deps.Loader == nil || deps.Uploader == nil || deps.Lister == nil || deps.Actors == nil {
		return nil, errors.New("pipeline: all transports are required")
	}
	settings.UploadDir = naming.StorePath(settings.UploadDir)
	return &Controller{
		deps:     deps,
		settings: settings,
		caps:     caps,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}, nil
}

// Capabilities returns the capabilities the controller was built with.
func (c *Controller) Capabilities() Capabilities {
	return c.caps
}

// Result describes a successful submit.
type Result struct {
	AvatarFile string `json:"avatar_file"`
	TokenFile  string `json:"token_file"`
	AvatarURL  string `json:"avatar_url"`
	// TokenURL is the value written to the token field: a cache-busted URL,
	// or the wildcard pattern for wildcard actors.
	TokenURL     string `json:"token_url"`
	TokenPattern string `json:"token_pattern,omitempty"`
}

// Open starts a session for actorID. Failures to load the actor's current
// art or the default frame do not abort the session; they are recorded as
// notices.
func (c *Controller) Open(ctx context.Context, actorID string) (*Session, error) {
	actor, err := c.deps.Actors.Get(ctx, actorID)
	if err != nil {
		return nil, err
	}
	s := newSession(c.newID(), actor, c.now())

	framePath := c.frameFor(actor.Kind)
	loadToken := !actor.Token.IsWildcard && actor.Token.ImageURL != ""
	var (
		portrait, token, frame          imagepkg.Bitmap
		portraitErr, tokenErr, frameErr error
	)
	var g errgroup.Group
	if actor.PortraitURL != "" {
		g.Go(func() error {
			portrait, portraitErr = c.deps.Loader.Load(ctx, imagepkg.URLSource(actor.PortraitURL))
			return nil
		})
	}
	if loadToken {
		g.Go(func() error {
			token, tokenErr = c.deps.Loader.Load(ctx, imagepkg.URLSource(actor.Token.ImageURL))
			return nil
		})
	}
	if framePath != "" {
		g.Go(func() error {
			frame, frameErr = c.deps.Loader.Load(ctx, imagepkg.URLSource(framePath))
			return nil
		})
	}
	_ = g.Wait()

	avatarSize := c.settings.TokenSize
	if portraitErr != nil {
		s.notify(LevelError, portraitErr.Error(), c.now())
	} else if !portrait.Empty() {
		avatarSize = portrait.MaxDimension()
	}
	if s.Avatar, err = imagepkg.NewComposite(avatarSize, imagepkg.WithBackground(c.settings.Background)); err != nil {
		return nil, err
	}
	if s.Token, err = imagepkg.NewComposite(c.settings.TokenSize, imagepkg.WithBackground(c.settings.Background)); err != nil {
		return nil, err
	}

	if !portrait.Empty() {
		c.report(s, s.Avatar.AddLayer(portrait, imagepkg.MaskNone))
	}
	if loadToken {
		if tokenErr != nil {
			s.notify(LevelError, tokenErr.Error(), c.now())
		} else {
			c.report(s, s.Token.AddLayer(token, imagepkg.MaskNone))
		}
	}
	if framePath != "" {
		if frameErr != nil {
			s.notify(LevelError, frameErr.Error(), c.now())
		} else {
			c.report(s, s.Token.AddLayer(frame, imagepkg.MaskCircle))
		}
	}

	targets, err := c.Targets(ctx, actor)
	if err != nil {
		s.notify(LevelWarn, "could not compute token filename: "+err.Error(), c.now())
	}
	s.Targets = targets

	log.Printf("session %s: opened for actor %s (avatar %dpx, token %dpx, wildcard=%v)",
		s.ID, actor.ID, s.Avatar.Size(), s.Token.Size(), actor.Token.IsWildcard)
	return s, nil
}

// AddSource loads src and puts it on top of view. Layers are applied in the
// order AddSource was called, even when loads finish out of order. A failed
// load leaves the view unchanged; the failure is returned and recorded as a
// notice. Results arriving after Close are dropped.
func (c *Controller) AddSource(ctx context.Context, s *Session, view View, src Source) error {
	if err := src.validate(); err != nil {
		return err
	}
	if src.Kind == SourceUpload && !c.caps.CanUpload {
		return apperrors.New(apperrors.CodeForbidden, "uploading files is not permitted")
	}
	if _, err := s.View(view); err != nil {
		return err
	}
	s.touch(c.now())

	prev, done, err := s.enqueue()
	if err != nil {
		return err
	}

	var bm imagepkg.Bitmap
	var loadErr error
	if src.Kind != SourceAvatar {
		bm, loadErr = c.deps.Loader.Load(ctx, src.image())
	}

	select {
	case <-prev:
	case <-ctx.Done():
		// keep later requests behind the ones still in flight
		go func() {
			<-prev
			close(done)
		}()
		return ctx.Err()
	}
	defer close(done)

	if src.Kind == SourceAvatar {
		bm = s.Avatar.Bitmap()
	}
	if loadErr == nil {
		loadErr = s.addLayer(view, bm, src.Mask)
	}
	if loadErr != nil {
		if !errors.Is(loadErr, apperrors.ErrSessionClosed) {
			s.notify(LevelError, fmt.Sprintf("%s: %v", src, loadErr), c.now())
		}
		return loadErr
	}
	return nil
}

// Targets computes the filenames a submit for actor would write.
func (c *Controller) Targets(ctx context.Context, actor actors.Actor) (Targets, error) {
	slug := naming.Slug(actor.Name)
	t := Targets{
		Avatar: naming.StorePath(path.Join(c.settings.UploadDir, naming.Filename(slug, naming.AvatarSuffix))),
		Token:  naming.StorePath(path.Join(c.settings.UploadDir, naming.Filename(slug, naming.TokenSuffix))),
	}
	if !actor.Token.IsWildcard {
		return t, nil
	}
	t.TokenPattern = naming.BuildTemplate(c.settings.UploadDir, slug, actor.Token.ImageURL)
	files, err := c.deps.Lister.ListFiles(ctx, t.TokenPattern)
	if err != nil {
		return t, fmt.Errorf("list %s: %w", t.TokenPattern, err)
	}
	t.Token, err = naming.Resolve(t.TokenPattern, naming.FileSet(files...))
	if err != nil {
		return t, err
	}
	return t, nil
}

// Submit exports both composites, uploads them and updates the actor record.
// The record is written once with both fields, or not at all. With a
// BatchUploader a failed upload also leaves both stored files untouched.
func (c *Controller) Submit(ctx context.Context, s *Session) (Result, error) {
	if s.Closed() {
		return Result{}, apperrors.New(apperrors.CodeSessionClosed, "session "+s.ID+" is closed")
	}
	s.touch(c.now())
	if err := s.drain(ctx); err != nil {
		return Result{}, err
	}
	actor, err := c.deps.Actors.Get(ctx, s.Actor.ID)
	if err != nil {
		return Result{}, err
	}

	var avatarPNG, tokenPNG []byte
	var g errgroup.Group
	g.Go(func() (err error) {
		avatarPNG, err = s.Avatar.Export()
		return err
	})
	g.Go(func() (err error) {
		tokenPNG, err = s.Token.Export()
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("export: %w", err)
	}

	targets, err := c.Targets(ctx, actor)
	if err != nil {
		return Result{}, err
	}

	urls, err := c.uploadAll(ctx, []string{targets.Avatar, targets.Token}, map[string][]byte{
		targets.Avatar: avatarPNG,
		targets.Token:  tokenPNG,
	})
	if err != nil {
		return Result{}, err
	}
	avatarURL, tokenURL := urls[targets.Avatar], urls[targets.Token]

	stamp := "?" + strconv.FormatInt(c.now().UnixMilli(), 10)
	res := Result{
		AvatarFile:   targets.Avatar,
		TokenFile:    targets.Token,
		AvatarURL:    avatarURL + stamp,
		TokenURL:     tokenURL + stamp,
		TokenPattern: targets.TokenPattern,
	}
	if actor.Token.IsWildcard {
		res.TokenURL = targets.TokenPattern
	}
	patch := actors.Patch{PortraitURL: &res.AvatarURL, TokenImageURL: &res.TokenURL}
	if err := c.deps.Actors.Update(ctx, actor.ID, patch); err != nil {
		if !errors.Is(err, apperrors.ErrActorUpdate) {
			err = apperrors.Wrap(apperrors.CodeActorUpdate, "update actor "+actor.ID, err)
		}
		return Result{}, err
	}

	if actor.Token.IsWildcard && !naming.IsWildcard(actor.Token.ImageURL) {
		s.notify(LevelInfo, "Wildcarding token image to "+targets.TokenPattern, c.now())
	}
	log.Printf("session %s: submitted %s and %s for actor %s", s.ID, targets.Avatar, targets.Token, actor.ID)
	return res, nil
}

// Close ends the session. Loads still in flight are discarded when they
// resolve.
func (c *Controller) Close(s *Session) {
	if s.close() {
		log.Printf("session %s: closed", s.ID)
	}
}

// uploadAll stores blobs in one batch when the uploader supports it, else one
// by one in the order of targets.
func (c *Controller) uploadAll(ctx context.Context, targets []string, blobs map[string][]byte) (map[string]string, error) {
	if b, ok := c.deps.Uploader.(BatchUploader); ok {
		urls, err := b.UploadAll(ctx, blobs)
		if err != nil {
			if !errors.Is(err, apperrors.ErrUpload) {
				err = apperrors.Wrap(apperrors.CodeUpload, "upload", err)
			}
			return nil, err
		}
		return urls, nil
	}
	urls := make(map[string]string, len(targets))
	for _, t := range targets {
		u, err := c.upload(ctx, blobs[t], t)
		if err != nil {
			return nil, err
		}
		urls[t] = u
	}
	return urls, nil
}

func (c *Controller) upload(ctx context.Context, data []byte, target string) (string, error) {
	u, err := c.deps.Uploader.Upload(ctx, data, target)
	if err != nil {
		if !errors.Is(err, apperrors.ErrUpload) {
			err = apperrors.Wrap(apperrors.CodeUpload, "upload "+target, err)
		}
		return "", err
	}
	return u, nil
}

func (c *Controller) frameFor(kind string) string {
	key := "npc"
	if kind == actors.KindCharacter {
		key = "pc"
	}
	return c.settings.DefaultFrames[key]
}

func (c *Controller) report(s *Session, err error) {
	if err != nil {
		s.notify(LevelError, err.Error(), c.now())
	}
}

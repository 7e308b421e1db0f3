// Package app wires configuration, storage and the editing pipeline into an
// HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/youruser/tokenizer/internal/actors"
	"github.com/youruser/tokenizer/internal/api"
	"github.com/youruser/tokenizer/internal/config"
	imagepkg "github.com/youruser/tokenizer/internal/image"
	"github.com/youruser/tokenizer/internal/pipeline"
	"github.com/youruser/tokenizer/internal/storage"
	"github.com/youruser/tokenizer/internal/util"
)

// App is a configured tokenizer server.
type App struct {
	cfg        config.Config
	actors     *actors.Store
	files      *storage.FileStore
	controller *pipeline.Controller
	sessions   *pipeline.Registry
}

// New opens the stores and builds the controller.
func New(cfg config.Config) (*App, error) {
	bg, err := cfg.BackgroundColor()
	if err != nil {
		return nil, err
	}
	if err := util.EnsureDir(filepath.Dir(cfg.DBPath)); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	store, err := actors.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	files, err := storage.NewFileStore(cfg.DataDir, cfg.BaseURL)
	if err != nil {
		store.Close()
		return nil, err
	}

	fetcher := util.NewFetcher(cfg.FetchTimeout, files.FS(), cfg.BaseURL)
	ctrl, err := pipeline.NewController(pipeline.Deps{
		Loader:   imagepkg.NewLoader(fetcher),
		Uploader: files,
		Lister:   files,
		Actors:   store,
	}, pipeline.Settings{
		TokenSize:     cfg.TokenSize,
		DefaultFrames: cfg.DefaultFrames(),
		UploadDir:     cfg.UploadDir,
		Background:    bg,
	}, pipeline.Capabilities{
		CanUpload: cfg.CanUpload,
		CanBrowse: cfg.CanBrowse,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &App{
		cfg:        cfg,
		actors:     store,
		files:      files,
		controller: ctrl,
		sessions:   pipeline.NewRegistry(),
	}, nil
}

// SeedActors loads the configured CSV into the actor store. A missing file
// is not an error.
func (a *App) SeedActors(ctx context.Context) (int, error) {
	if a.cfg.SeedCSV == "" {
		return 0, nil
	}
	list, err := actors.LoadActorsCSV(a.cfg.SeedCSV)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if err := a.actors.Seed(ctx, list); err != nil {
		return 0, err
	}
	return len(list), nil
}

// Router returns the gin engine serving the API and the stored files.
func (a *App) Router() *gin.Engine {
	r := gin.Default()
	api.RegisterRoutes(r, &api.Handler{
		Controller: a.controller,
		Sessions:   a.sessions,
		Actors:     a.actors,
		Files:      a.files,
	})
	r.Static("/files", a.files.Root())
	return r
}

// Run serves HTTP until ctx is done, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	stop, err := a.sessions.StartSweeper(a.cfg.SweepSchedule, a.cfg.SessionIdleTTL)
	if err != nil {
		return err
	}
	defer stop()

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(a.cfg.Port),
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Println("starting server on http://localhost:" + strconv.Itoa(a.cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Println("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// Serve builds the app from cfg, seeds actors best-effort and serves until ctx
// is done. The actor store is closed before Serve returns.
func Serve(ctx context.Context, cfg config.Config) error {
	a, err := New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// Load actors at startup (best-effort)
	if n, err := a.SeedActors(ctx); err != nil {
		log.Println("Warning: failed to load actors CSV at startup:", err)
	} else if n > 0 {
		log.Printf("seeded %d actors from %s", n, cfg.SeedCSV)
	}
	return a.Run(ctx)
}

// Close releases the actor store.
func (a *App) Close() error {
	return a.actors.Close()
}

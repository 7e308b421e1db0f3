// Package storage keeps uploaded images in a local directory tree that is
// served publicly under a base URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/youruser/tokenizer/internal/errors"
	"github.com/youruser/tokenizer/internal/naming"
	"github.com/youruser/tokenizer/internal/util"
)

// FileStore is an upload and listing transport backed by a directory.
type FileStore struct {
	root    string
	baseURL string
}

// NewFileStore creates root if needed. baseURL is the public URL of root.
func NewFileStore(root, baseURL string) (*FileStore, error) {
	if err := util.EnsureDir(root); err != nil {
		return nil, fmt.Errorf("create file store root: %w", err)
	}
	return &FileStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root returns the directory backing the store.
func (s *FileStore) Root() string {
	return s.root
}

// FS exposes the stored files read-only.
func (s *FileStore) FS() fs.FS {
	return os.DirFS(s.root)
}

// URL returns the public URL for a store path.
func (s *FileStore) URL(target string) string {
	parts := strings.Split(target, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.baseURL + "/" + strings.Join(parts, "/")
}

// Upload writes data to target (a slash separated path below the root) and
// returns its public URL. Existing files are replaced.
func (s *FileStore) Upload(ctx context.Context, data []byte, target string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperrors.Wrap(apperrors.CodeUpload, "upload "+target, err)
	}
	clean, err := cleanPath(target)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeUpload, "upload "+target, err)
	}
	if err := util.WriteFileAtomic(filepath.Join(s.root, filepath.FromSlash(clean)), data, 0o644); err != nil {
		return "", apperrors.Wrap(apperrors.CodeUpload, "upload "+target, err)
	}
	return s.URL(clean), nil
}

// UploadAll writes every blob (keyed by target path) before any of them
// becomes visible: all are staged next to their targets first and renamed
// into place only once every write succeeded. It returns the public URL per
// target.
func (s *FileStore) UploadAll(ctx context.Context, blobs map[string][]byte) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUpload, "upload", err)
	}
	targets := make([]string, 0, len(blobs))
	for t := range blobs {
		targets = append(targets, t)
	}
	sort.Strings(targets)

	clean := make([]string, len(targets))
	staged := make([]*util.StagedFile, 0, len(targets))
	defer func() {
		for _, f := range staged {
			f.Discard()
		}
	}()
	for i, t := range targets {
		c, err := cleanPath(t)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeUpload, "upload "+t, err)
		}
		f, err := util.StageFile(filepath.Join(s.root, filepath.FromSlash(c)), blobs[t], 0o644)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeUpload, "upload "+t, err)
		}
		clean[i] = c
		staged = append(staged, f)
	}

	urls := make(map[string]string, len(targets))
	for i, f := range staged {
		if err := f.Commit(); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeUpload, "upload "+targets[i], err)
		}
		urls[targets[i]] = s.URL(clean[i])
	}
	return urls, nil
}

// ListFiles returns the store paths of regular files matching pattern. Only
// the last path element may contain glob characters. A missing directory
// yields an empty listing.
func (s *FileStore) ListFiles(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := cleanPath(pattern)
	if err != nil {
		return nil, err
	}
	dir, base := path.Split(clean)
	dir = strings.TrimSuffix(dir, "/")
	if _, err := path.Match(base, ""); err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}

	entries, err := os.ReadDir(filepath.Join(s.root, filepath.FromSlash(dir)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if ok, _ := path.Match(base, e.Name()); ok {
			out = append(out, path.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func cleanPath(p string) (string, error) {
	c := naming.StorePath(p)
	if c == "" || !fs.ValidPath(c) {
		return "", fmt.Errorf("invalid store path %q", p)
	}
	return c, nil
}

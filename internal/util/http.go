package util

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// MaxFetchBytes caps the size of a fetched image.
const MaxFetchBytes = 32 << 20

// Fetcher reads images over HTTP(S), or from a local file tree for plain
// paths and for URLs under BaseURL.
type Fetcher struct {
	Client  *http.Client
	Local   fs.FS
	BaseURL string
}

// NewFetcher returns a Fetcher with the given HTTP timeout.
func NewFetcher(timeout time.Duration, local fs.FS, baseURL string) *Fetcher {
	return &Fetcher{
		Client:  &http.Client{Timeout: timeout},
		Local:   local,
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Fetch returns the bytes behind raw. Non-2xx responses are errors.
func (f *Fetcher) Fetch(ctx context.Context, raw string) ([]byte, error) {
	if f.BaseURL != "" && strings.HasPrefix(raw, f.BaseURL+"/") && f.Local != nil {
		return f.readLocal(strings.TrimPrefix(raw, f.BaseURL+"/"))
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https":
		return f.get(ctx, raw)
	case "":
		return f.readLocal(raw)
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}

// get performs a GET and returns the body.
func (f *Fetcher) get(ctx context.Context, raw string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 12 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("get %s: unexpected status %s", raw, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxFetchBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > MaxFetchBytes {
		return nil, fmt.Errorf("get %s: body exceeds %d bytes", raw, MaxFetchBytes)
	}
	return body, nil
}

func (f *Fetcher) readLocal(p string) ([]byte, error) {
	if f.Local == nil {
		return nil, fmt.Errorf("no local file tree for %q", p)
	}
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	p = path.Clean(strings.Trim(p, "/"))
	if !fs.ValidPath(p) {
		return nil, fmt.Errorf("invalid local path %q", p)
	}
	return fs.ReadFile(f.Local, p)
}

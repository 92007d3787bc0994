// Package fetch reads raw bytes from files, fs.FS entries and HTTP endpoints
// for the template loader and the remote data directive.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrHTTPDisabled is returned for URL fetches when HTTP support is off.
	ErrHTTPDisabled = errors.New("fetch: http support disabled")

	// ErrNoFS is returned for fs.FS reads when no file system was configured.
	ErrNoFS = errors.New("fetch: no file system configured")
)

// Options configure a Fetcher.
type Options struct {
	FileSystem fs.FS
	HTTPClient *http.Client
	AllowHTTP  bool
	Timeout    time.Duration
}

// Fetcher delegates to the file, fs.FS or HTTP strategy.
type Fetcher struct {
	fs        fs.FS
	http      *http.Client
	allowHTTP bool
	timeout   time.Duration
}

// New constructs a Fetcher from pre-resolved options.
func New(options Options) *Fetcher {
	timeout := options.Timeout

	var httpClient *http.Client
	switch {
	case options.HTTPClient != nil:
		clone := *options.HTTPClient
		if timeout > 0 && clone.Timeout == 0 {
			clone.Timeout = timeout
		}
		httpClient = &clone
	case options.AllowHTTP:
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Fetcher{
		fs:        options.FileSystem,
		http:      httpClient,
		allowHTTP: httpClient != nil,
		timeout:   timeout,
	}
}

// HasFS reports whether an fs.FS was configured.
func (f *Fetcher) HasFS() bool { return f.fs != nil }

// HTTPEnabled reports whether URL fetches are allowed.
func (f *Fetcher) HTTPEnabled() bool { return f.allowHTTP }

// File reads a template or data file from disk. Relative paths resolve
// against the working directory.
func (f *Fetcher) File(ctx context.Context, name string) ([]byte, error) {
	return readLocal(ctx, "file", name, func(name string) ([]byte, error) {
		abs, err := filepath.Abs(name)
		if err != nil {
			return nil, err
		}
		return os.ReadFile(abs)
	})
}

// FS reads name from the configured fs.FS. A leading slash is ignored and
// the cleaned name may not leave the root.
func (f *Fetcher) FS(ctx context.Context, name string) ([]byte, error) {
	if f.fs == nil {
		return nil, ErrNoFS
	}
	if name = strings.TrimPrefix(name, "/"); name != "" {
		name = path.Clean(name)
	}
	if name != "" && !fs.ValidPath(name) {
		return nil, fmt.Errorf("fetch: fs path %q escapes the root", name)
	}
	return readLocal(ctx, "fs", name, func(name string) ([]byte, error) {
		return fs.ReadFile(f.fs, name)
	})
}

func readLocal(ctx context.Context, kind, name string, read func(string) ([]byte, error)) ([]byte, error) {
	if name == "" {
		return nil, fmt.Errorf("fetch: %s path is required", kind)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := read(name)
	if err != nil {
		return nil, fmt.Errorf("fetch: read %s %q: %w", kind, name, err)
	}
	return data, nil
}

// Package models manages the on-disk model cache. The layout follows the
// Hugging Face hub convention so artefacts fetched by other tools are reused:
//
//	<dir>/models--<org>--<name>/snapshots/<revision>/<file>
package models

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the hub used for online loads.
	DefaultBaseURL = "https://huggingface.co"
	// DefaultRevision is the snapshot name used for downloaded files.
	DefaultRevision = "main"
)

var (
	// ErrNotCached is returned by offline resolution when the file is absent.
	ErrNotCached = errors.New("models: not present in local cache")
	// ErrInvalidRepo rejects repository identifiers not of the form org/name.
	ErrInvalidRepo = errors.New("models: invalid repository id")
)

// Cache resolves and downloads model artefacts.
type Cache struct {
	dir     string
	baseURL string
	client  *http.Client
	token   string
	log     *slog.Logger
}

// Option customises a Cache.
type Option func(*Cache)

// WithHTTPClient overrides the client used for downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Cache) {
		if client != nil {
			c.client = client
		}
	}
}

// WithToken sets the bearer token sent with downloads.
func WithToken(token string) Option {
	return func(c *Cache) {
		c.token = strings.TrimSpace(token)
	}
}

// NewCache returns a cache rooted at dir, creating it when needed.
func NewCache(dir, baseURL string, logger *slog.Logger, opts ...Option) (*Cache, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("models: cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("models: create cache dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Cache{
		dir:     dir,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Minute},
		log:     logger.With("component", "models.Cache", "cache_dir", dir),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	return c.dir
}

// Path returns where file from repo is stored, whether or not it exists.
func (c *Cache) Path(repo, file string) (string, error) {
	folder, err := repoFolder(repo)
	if err != nil {
		return "", err
	}
	file = strings.TrimSpace(file)
	if file == "" || strings.Contains(file, "..") || filepath.IsAbs(file) {
		return "", fmt.Errorf("models: invalid file name %q", file)
	}
	return filepath.Join(c.dir, folder, "snapshots", DefaultRevision, filepath.FromSlash(file)), nil
}

// Resolve returns the local path of file. Offline resolution never touches
// the network and fails with ErrNotCached; online resolution downloads the
// file when it is missing.
func (c *Cache) Resolve(ctx context.Context, repo, file string, offline bool) (string, error) {
	path, err := c.Path(repo, file)
	if err != nil {
		return "", err
	}
	if exists(path) {
		return path, nil
	}
	if offline {
		return "", fmt.Errorf("%w: %s/%s", ErrNotCached, repo, file)
	}
	return c.Download(ctx, repo, file)
}

// Entry describes a cached artefact.
type Entry struct {
	Repo     string
	File     string
	Path     string
	Size     int64
	Modified time.Time
}

// List enumerates cached artefacts sorted by repository and file name.
// Temporary download files are skipped.
func (c *Cache) List() ([]Entry, error) {
	roots, err := filepath.Glob(filepath.Join(c.dir, "models--*"))
	if err != nil {
		return nil, fmt.Errorf("models: list cache: %w", err)
	}
	var entries []Entry
	for _, root := range roots {
		repo, ok := repoFromFolder(filepath.Base(root))
		if !ok {
			continue
		}
		snapshots := filepath.Join(root, "snapshots")
		walkErr := filepath.WalkDir(snapshots, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if d.IsDir() || strings.HasSuffix(d.Name(), partialSuffix) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(snapshots, path)
			if err != nil {
				return err
			}
			// rel is <revision>/<file>
			parts := strings.SplitN(filepath.ToSlash(rel), "/", 2)
			if len(parts) != 2 {
				return nil
			}
			entries = append(entries, Entry{
				Repo:     repo,
				File:     parts[1],
				Path:     path,
				Size:     info.Size(),
				Modified: info.ModTime(),
			})
			return nil
		})
		if walkErr != nil {
			return nil, fmt.Errorf("models: walk %s: %w", root, walkErr)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Repo != entries[j].Repo {
			return entries[i].Repo < entries[j].Repo
		}
		return entries[i].File < entries[j].File
	})
	return entries, nil
}

func repoFolder(repo string) (string, error) {
	repo = strings.TrimSpace(repo)
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || strings.Contains(repo, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidRepo, repo)
	}
	return "models--" + parts[0] + "--" + parts[1], nil
}

func repoFromFolder(name string) (string, bool) {
	trimmed, ok := strings.CutPrefix(name, "models--")
	if !ok {
		return "", false
	}
	org, rest, ok := strings.Cut(trimmed, "--")
	if !ok || org == "" || rest == "" {
		return "", false
	}
	return org + "/" + rest, true
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

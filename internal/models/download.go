package models

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const (
	partialSuffix     = ".partial"
	lockRetryInterval = 250 * time.Millisecond
)

// Download fetches file from repo into the cache and returns its path.
// Concurrent downloads of the same repository, including from other
// processes, are serialised by a lock file; a file completed while waiting
// for the lock is not fetched again.
func (c *Cache) Download(ctx context.Context, repo, file string) (string, error) {
	path, err := c.Path(repo, file)
	if err != nil {
		return "", err
	}
	folder, _ := repoFolder(repo)

	lockDir := filepath.Join(c.dir, ".locks")
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return "", fmt.Errorf("models: create lock dir: %w", err)
	}
	lock := flock.New(filepath.Join(lockDir, folder+".lock"))
	locked, err := lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return "", fmt.Errorf("models: acquire download lock: %w", err)
	}
	if !locked {
		return "", fmt.Errorf("models: download lock for %s not acquired", repo)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			c.log.Warn("failed to release download lock", "error", err)
		}
	}()

	if exists(path) {
		return path, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("models: create snapshot dir: %w", err)
	}

	source := c.fileURL(repo, file)
	c.log.Info("downloading model", "repo", repo, "file", file, "url", source)
	start := time.Now()

	written, err := c.fetch(ctx, source, path)
	if err != nil {
		return "", err
	}

	c.log.Info("model downloaded",
		"repo", repo,
		"file", file,
		"bytes", written,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return path, nil
}

func (c *Cache) fileURL(repo, file string) string {
	segments := strings.Split(file, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s/resolve/%s/%s", c.baseURL, repo, DefaultRevision, strings.Join(segments, "/"))
}

func (c *Cache) fetch(ctx context.Context, source, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return 0, fmt.Errorf("models: build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("models: download %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("models: download %s: unexpected status %s", source, resp.Status)
	}

	tmp := dest + partialSuffix
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("models: create %s: %w", tmp, err)
	}
	written, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp)
		if copyErr != nil {
			return 0, fmt.Errorf("models: write %s: %w", tmp, copyErr)
		}
		return 0, fmt.Errorf("models: close %s: %w", tmp, closeErr)
	}
	if written == 0 {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("models: download %s: empty body", source)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("models: finalise %s: %w", dest, err)
	}
	return written, nil
}

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pscheid92/radiocast/internal/domain"
)

// Library resolves case-insensitive substring queries against the files of one directory.
type Library struct {
	dir      string
	notFound error

	mu       sync.RWMutex
	watching bool
	cached   []string
	version  uint64
}

var _ domain.FileResolver = (*Library)(nil)

// NewLibrary creates a library over dir. notFound is returned when a query has no match.
func NewLibrary(dir string, notFound error) *Library {
	return &Library{dir: dir, notFound: notFound}
}

// Dir returns the directory the library reads from.
func (l *Library) Dir() string {
	return l.dir
}

// List returns the names of the regular files in the directory, sorted.
func (l *Library) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	if l.watching && l.cached != nil {
		names := l.cached
		l.mu.RUnlock()
		return names, nil
	}
	version := l.version
	l.mu.RUnlock()

	names, err := l.readDir()
	if err != nil {
		return nil, err
	}

	// A change seen while listing means this result may already be stale.
	l.mu.Lock()
	if l.watching && l.version == version {
		l.cached = names
	}
	l.mu.Unlock()

	return names, nil
}

// Resolve returns the path of the first file, in name order, whose lower-cased name
// contains the lower-cased query.
func (l *Library) Resolve(ctx context.Context, query string) (string, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return "", fmt.Errorf("%w: empty name", l.notFound)
	}

	names, err := l.List(ctx)
	if err != nil {
		return "", err
	}

	for _, name := range names {
		if strings.Contains(strings.ToLower(name), q) {
			return filepath.Join(l.dir, name), nil
		}
	}
	return "", fmt.Errorf("%w: %q", l.notFound, query)
}

// Watch keeps the directory listing cached until ctx is done, dropping the cache whenever
// fsnotify reports a change. It returns once the watcher is installed.
func (l *Library) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(l.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", l.dir, err)
	}

	l.mu.Lock()
	l.watching = true
	l.cached = nil
	l.version++
	l.mu.Unlock()

	go func() {
		defer func() {
			_ = watcher.Close()
			l.mu.Lock()
			l.watching = false
			l.cached = nil
			l.mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op == fsnotify.Chmod {
					continue
				}
				l.invalidate()
				slog.Debug("Library changed", "dir", l.dir, "event", event.Op.String(), "file", event.Name)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.invalidate()
				slog.Warn("Library watcher error", "dir", l.dir, "error", err)
			}
		}
	}()

	return nil
}

func (l *Library) invalidate() {
	l.mu.Lock()
	l.cached = nil
	l.version++
	l.mu.Unlock()
}

func (l *Library) readDir() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", l.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

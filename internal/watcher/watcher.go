// Package watcher turns filesystem changes under the source root into build
// events on the queue.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pbaity/folio/internal/ignore"
	"github.com/pbaity/folio/internal/logger"
	"github.com/pbaity/folio/internal/queue"
	"github.com/pbaity/folio/pkg/models"
)

// Queue defines the interface required for enqueuing events.
type Queue interface {
	Enqueue(event models.BuildEvent) error
}

// Service watches the source tree recursively. Directories created while
// running are added as they appear.
type Service struct {
	sourceRoot string
	skipRoots  []string // output locations that must never trigger a rebuild
	ignore     *ignore.Matcher
	eventQueue Queue

	fsw    *fsnotify.Watcher
	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex // Protects fsw and cancel
}

// NewService creates a watcher for site that reports to eq.
func NewService(site models.SiteConfig, eq Queue) (*Service, error) {
	sourceRoot, err := filepath.Abs(site.SourceRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source_root '%s': %w", site.SourceRoot, err)
	}

	// An output location that encloses the source root cannot be skipped
	// wholesale; the relocated index page is skipped as a single file.
	var skip []string
	outputs := []string{site.OutputRoot}
	if site.IndexDir != "" {
		outputs = append(outputs, filepath.Join(site.IndexDir, "index.html"))
	}
	for _, p := range outputs {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve '%s': %w", p, err)
		}
		if !within(abs, sourceRoot) {
			skip = append(skip, abs)
		}
	}

	return &Service{
		sourceRoot: sourceRoot,
		skipRoots:  skip,
		ignore:     ignore.New(site.Ignore),
		eventQueue: eq,
	}, nil
}

// Start registers the source tree with fsnotify and begins forwarding events.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	if err := s.addTree(fsw, s.sourceRoot); err != nil {
		fsw.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.fsw = fsw
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx, fsw)
	logger.L().Info("Watcher service started", "source_root", s.sourceRoot, "watched_dirs", len(fsw.WatchList()))
	return nil
}

// Stop releases the filesystem observer and waits for the event loop to exit.
func (s *Service) Stop() error {
	s.mu.Lock()
	fsw, cancel := s.fsw, s.cancel
	s.fsw, s.cancel = nil, nil
	s.mu.Unlock()

	if fsw == nil {
		return nil
	}

	logger.L().Info("Stopping watcher service...")
	cancel()
	err := fsw.Close()
	s.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close filesystem watcher: %w", err)
	}
	logger.L().Info("Watcher service stopped")
	return nil
}

func (s *Service) run(ctx context.Context, fsw *fsnotify.Watcher) {
	defer s.wg.Done()
	l := logger.L()

	for {
		select {
		case <-ctx.Done():
			l.Debug("Watcher loop stopping due to context cancellation.")
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			s.handle(fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			l.Warn("Filesystem watcher error", "error", err)
		}
	}
}

func (s *Service) handle(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	kind, ok := changeKind(ev.Op)
	if !ok {
		return
	}
	rel, ok := s.relevant(ev.Name)
	if !ok {
		return
	}
	l := logger.L().With("path", rel, "kind", kind)

	if kind == models.ChangeCreated {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := s.addTree(fsw, ev.Name); err != nil {
				l.Warn("Failed to watch new directory", "error", err)
			}
		}
	}

	event := models.BuildEvent{
		Path:      rel,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	}
	if err := s.eventQueue.Enqueue(event); err != nil {
		if errors.Is(err, queue.ErrFull) {
			l.Debug("Rebuild already pending, change coalesced")
			return
		}
		l.Error("Failed to enqueue change event", "error", err)
		return
	}
	l.Debug("Change detected")
}

// relevant returns the slash separated path relative to the source root, or
// false when the path is ignored or belongs to the output.
func (s *Service) relevant(name string) (string, bool) {
	for _, root := range s.skipRoots {
		if within(root, name) {
			return "", false
		}
	}
	if !within(s.sourceRoot, name) {
		return "", false
	}
	rel, err := filepath.Rel(s.sourceRoot, name)
	if err != nil || rel == "." {
		return "", false
	}
	if s.ignore.Ignored(rel) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// addTree watches dir and every non-ignored directory below it. fsnotify is
// not recursive.
func (s *Service) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p != dir && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("failed to scan '%s': %w", p, err)
		}
		if !d.IsDir() {
			return nil
		}
		if p != s.sourceRoot {
			if _, ok := s.relevant(p); !ok {
				return fs.SkipDir
			}
		}
		if err := fsw.Add(p); err != nil {
			return fmt.Errorf("failed to watch '%s': %w", p, err)
		}
		return nil
	})
}

// changeKind maps an fsnotify operation to a change kind. Chmod alone is not a change.
func changeKind(op fsnotify.Op) (models.ChangeKind, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return models.ChangeCreated, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return models.ChangeDeleted, true
	case op.Has(fsnotify.Write):
		return models.ChangeModified, true
	default:
		return "", false
	}
}

func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

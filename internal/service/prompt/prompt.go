// Package prompt holds the secondary prompt sent with every turn. The text
// can be set directly or sourced from a file that is reloaded on change.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Source is safe for concurrent use.
type Source struct {
	path   string
	logger *zap.Logger

	mu        sync.RWMutex
	text      string
	listeners []func(string)
}

// New returns a source backed by path. An empty path means the prompt is
// only ever set through Set.
func New(path string, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{path: path, logger: logger}
}

// Path returns the backing file, if any.
func (s *Source) Path() string { return s.path }

// Get returns the current prompt text.
func (s *Source) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text
}

// Set replaces the prompt text until the file changes again.
func (s *Source) Set(text string) {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	changed := text != s.text
	s.text = text
	listeners := append(([]func(string))(nil), s.listeners...)
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(text)
	}
}

// OnChange registers fn for every subsequent change of the text.
func (s *Source) OnChange(fn func(string)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Load reads the backing file. A missing file clears the prompt.
func (s *Source) Load() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.Set("")
			return nil
		}
		return fmt.Errorf("read prompt file: %w", err)
	}
	s.Set(string(data))
	return nil
}

// Watch loads the file and reloads it whenever it is written, created or
// replaced, until ctx is done. The parent directory is watched so editors
// that save through a rename are picked up.
func (s *Source) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}
	if err := s.Load(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(s.path)
	if err != nil {
		return fmt.Errorf("resolve prompt path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := s.Load(); err != nil {
				s.logger.Warn("[prompt] reload failed", zap.String("path", abs), zap.Error(err))
				continue
			}
			s.logger.Debug("[prompt] reloaded", zap.String("path", abs))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("[prompt] watcher error", zap.Error(err))
		}
	}
}

// Package prefs provides durable client-side key/value storage for the user's
// preferences and session token. Values live in a small YAML file that
// survives restarts.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	gap "github.com/muesli/go-app-paths"
	"gopkg.in/yaml.v3"
)

// Well-known keys.
const (
	KeyEnableVoicePlayback = "enableVoicePlayback"
	KeyToken               = "token"
)

// Store is a file backed string map. It is safe for concurrent use.
type Store struct {
	path string

	mu     sync.RWMutex
	values map[string]string
}

// DefaultPath returns the preference file location in the user's data dir.
func DefaultPath() (string, error) {
	scope := gap.NewScope(gap.User, "aiknvm")
	p, err := scope.DataPath("preferences.yml")
	if err != nil {
		return "", fmt.Errorf("unable to resolve data dir: %w", err)
	}
	return p, nil
}

// Open loads the store at path. A missing file yields an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path, values: map[string]string{}}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Reload re-reads the backing file.
func (s *Store) Reload() error {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.mu.Lock()
		s.values = map[string]string{}
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("unable to read preferences: %w", err)
	}

	values := map[string]string{}
	if err := yaml.Unmarshal(b, &values); err != nil {
		return fmt.Errorf("unable to parse preferences %s: %w", s.path, err)
	}
	if values == nil {
		values = map[string]string{}
	}

	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key and persists the store.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.save()
}

// Delete removes key and persists the store.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.save()
}

// EnableVoicePlayback reports the persisted voice preference. Anything other
// than an explicit "false" means enabled.
func (s *Store) EnableVoicePlayback() bool {
	v, _ := s.Get(KeyEnableVoicePlayback)
	return v != "false"
}

// SetEnableVoicePlayback persists the voice preference.
func (s *Store) SetEnableVoicePlayback(enabled bool) error {
	return s.Set(KeyEnableVoicePlayback, strconv.FormatBool(enabled))
}

// save writes the store atomically. Callers hold s.mu.
func (s *Store) save() error {
	b, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("unable to encode preferences: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("unable to create preferences dir: %w", err)
	}

	f, err := os.CreateTemp(dir, ".preferences-*")
	if err != nil {
		return fmt.Errorf("unable to create preferences file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("unable to write preferences: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("unable to write preferences: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("unable to replace preferences: %w", err)
	}
	return nil
}

// Watch reloads the store whenever the backing file changes on disk and
// calls onChange after each successful reload. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create watcher: %w", err)
	}
	defer w.Close() //nolint:errcheck

	// Watch the directory: saves replace the file through a rename.
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("unable to create preferences dir: %w", err)
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("unable to watch %s: %w", dir, err)
	}

	name := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) {
				continue
			}
			if err := s.Reload(); err != nil {
				log.Warn("Could not reload preferences", "path", s.path, "err", err)
				continue
			}
			if onChange != nil {
				onChange()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Debug("Preferences watcher error", "err", err)
		}
	}
}

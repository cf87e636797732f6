// Package settings stores user preferences in settings.json, a flat key to
// value object shared with other tools. Keys this package does not know are
// kept exactly as found.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dreamunreal/ueman/internal/errs"
	"github.com/dreamunreal/ueman/internal/logging"
	"github.com/dreamunreal/ueman/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// KeyDefaultIDE names the IDE used to open project sources
const KeyDefaultIDE = "DefaultIDE"

// DefaultIDE is used when KeyDefaultIDE is unset
const DefaultIDE = "vscode"

// Store is the settings document
type Store struct {
	file   *store.File
	log    *logrus.Logger
	values map[string]json.RawMessage
	mu     sync.RWMutex
}

// Open loads settings from path. A missing or corrupt document starts empty.
func Open(fs afero.Fs, path string, log *logrus.Logger) (*Store, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	s := &Store{
		file:   store.NewFile(fs, path),
		log:    logging.OrDiscard(log),
		values: map[string]json.RawMessage{},
	}

	err := s.file.ReadJSON(&s.values)
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrNotFound):
	case errors.Is(err, errs.ErrParseDegraded):
		s.log.WithField("path", path).Warnf("settings unreadable, using defaults: %v", err)
		s.values = map[string]json.RawMessage{}
	default:
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if s.values == nil {
		s.values = map[string]json.RawMessage{}
	}
	return s, nil
}

// Get decodes the value stored under key into v. It reports false when the
// key is absent or holds a value of another type.
func (s *Store) Get(key string, v any) bool {
	s.mu.RLock()
	raw, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// GetString returns the string under key, or def
func (s *Store) GetString(key, def string) string {
	var v string
	if !s.Get(key, &v) {
		return def
	}
	return v
}

// Raw returns the stored JSON for key
func (s *Store) Raw(key string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.values[key]
	return append(json.RawMessage(nil), raw...), ok
}

// Set stores value under key and persists the whole document
func (s *Store) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode setting %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.values[key]
	s.values[key] = raw
	if err := s.file.WriteJSON(s.values); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

// Keys returns the stored keys in sorted order
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// DefaultIDE returns the configured IDE
func (s *Store) DefaultIDE() string {
	return s.GetString(KeyDefaultIDE, DefaultIDE)
}

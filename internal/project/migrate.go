package project

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/dreamunreal/ueman/internal/errs"
	"github.com/dreamunreal/ueman/internal/uproject"
	"github.com/spf13/afero"
)

// MigrateLegacy rebuilds projects.json from the legacy projects.txt list when
// the JSON store is missing or unreadable. Entries are separated by newlines
// or pipes; tokens that are not existing .uproject files are ignored. The
// legacy file is left in place and never read again once a store exists.
// It returns the number of migrated projects.
func (r *Registry) MigrateLegacy() (int, error) {
	if r.legacy == "" {
		return 0, nil
	}
	if r.file.Exists() {
		var doc document
		err := r.file.ReadJSON(&doc)
		if err == nil {
			return 0, nil
		}
		if !errors.Is(err, errs.ErrParseDegraded) {
			return 0, err
		}
	}

	data, err := afero.ReadFile(r.fs, r.legacy)
	if err != nil {
		return 0, nil
	}

	engines := r.validEngines()
	var records []Record
	for _, token := range legacyTokens(string(data)) {
		if !strings.EqualFold(filepath.Ext(token), uproject.Ext) || indexOfPath(records, token) >= 0 {
			continue
		}
		rec, ok := r.build(token, engines)
		if !ok {
			r.log.WithField("path", token).Debug("skipping missing legacy project")
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	prev := r.records
	r.records = records
	err = r.saveNoLock()
	r.records = prev
	r.mu.Unlock()
	if err != nil {
		return 0, err
	}

	r.log.WithField("path", r.legacy).Infof("migrated %d project(s) from legacy list", len(records))
	return len(records), nil
}

func legacyTokens(content string) []string {
	fields := strings.FieldsFunc(content, func(c rune) bool {
		return c == '|' || c == '\n' || c == '\r'
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

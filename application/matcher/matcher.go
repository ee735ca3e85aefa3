// Package matcher implements the three-stage fuzzy name-to-folder lookup
// described in spec §4.1.
package matcher

import (
	"strings"

	"github.com/foldershare/sharer/domain/model"
)

// Matcher resolves recipient names against a FolderMap loaded once at
// startup. It is deterministic in stages 1 and 2; stage 3 may return any
// entry satisfying the substring predicate when several would qualify.
type Matcher struct {
	folders model.FolderMap
}

// New builds a Matcher over folders. folders is never mutated afterward.
func New(folders model.FolderMap) *Matcher {
	return &Matcher{folders: folders}
}

// FindFolderID runs the three ordered stages, first hit wins:
//
//  1. exact normalized (lower-case, trim) lookup
//  2. whitespace-collapsed lookup
//  3. bidirectional substring scan over FolderMap in iteration order
func (m *Matcher) FindFolderID(name string) (string, bool) {
	normalized := model.Normalize(name)

	if id, ok := m.folders[normalized]; ok {
		return id, true
	}

	collapsed := model.Normalize(model.CollapseWhitespace(name))
	if id, ok := m.folders[collapsed]; ok {
		return id, true
	}

	for key, id := range m.folders {
		if strings.Contains(key, collapsed) || strings.Contains(collapsed, key) {
			return id, true
		}
	}

	return "", false
}

package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/foldershare/sharer/domain/model"
)

func TestFindFolderID_ExactNormalized(t *testing.T) {
	m := New(model.FolderMap{"alice": "f1", "bob": "f2"})

	id, ok := m.FindFolderID("  Alice  ")
	assert.True(t, ok)
	assert.Equal(t, "f1", id)
}

func TestFindFolderID_WhitespaceCollapsed(t *testing.T) {
	m := New(model.FolderMap{"alice smith": "f1"})

	id, ok := m.FindFolderID("Alice   Smith")
	assert.True(t, ok)
	assert.Equal(t, "f1", id)
}

func TestFindFolderID_SubstringBidirectional(t *testing.T) {
	m := New(model.FolderMap{"alice smith, s.e.": "f1"})

	id, ok := m.FindFolderID("Alice Smith")
	assert.True(t, ok)
	assert.Equal(t, "f1", id)
}

func TestFindFolderID_SubstringQueryWithinKey(t *testing.T) {
	m := New(model.FolderMap{"team bob the builder": "f9"})

	id, ok := m.FindFolderID("bob")
	assert.True(t, ok)
	assert.Equal(t, "f9", id)
}

func TestFindFolderID_NoMatch(t *testing.T) {
	m := New(model.FolderMap{"alice": "f1"})

	_, ok := m.FindFolderID("carol")
	assert.False(t, ok)
}

func TestFindFolderID_Deterministic(t *testing.T) {
	folders := model.FolderMap{"alice": "f1", "bob": "f2", "carol": "f3"}
	m := New(folders)

	first, ok1 := m.FindFolderID("Bob")
	second, ok2 := m.FindFolderID("Bob")
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, first, second)
}

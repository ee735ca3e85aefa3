package model

import "strings"

// FolderMap is a read-only mapping from normalized folder name (lower-cased,
// trimmed) to folder id. It is loaded once by the drive-walker cache and
// never mutated by the engine.
type FolderMap map[string]string

// Normalize lower-cases and trims a folder name the same way FolderMap keys
// are normalized, so callers can build consistent lookups.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CollapseWhitespace collapses internal runs of whitespace to a single
// space, used by Matcher's second lookup stage.
func CollapseWhitespace(name string) string {
	fields := strings.Fields(name)
	return strings.Join(fields, " ")
}

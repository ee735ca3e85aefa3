package eventstream

import "strings"

// maxFreeTextLen is the truncation length for free-text JSON fields, per
// spec §4.4.
const maxFreeTextLen = 100

// maxJSONPayloadBytes is the cap on a serialized JSON event payload.
const maxJSONPayloadBytes = 100 * 1024

const (
	lineSeparator      = ' '
	paragraphSeparator = ' '
	zeroWidthSpace     = '​'
	zeroWidthNonJoiner = '‌'
	zeroWidthJoiner    = '‍'
	byteOrderMark      = '﻿'
)

// Sanitize strips control characters, line/paragraph separators and
// zero-width characters from a free-text field, then truncates it to
// maxFreeTextLen runes.
func Sanitize(s string) string {
	var b strings.Builder
	count := 0
	for _, r := range s {
		if isStrippedRune(r) {
			continue
		}
		if count >= maxFreeTextLen {
			break
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}

func isStrippedRune(r rune) bool {
	switch r {
	case lineSeparator, paragraphSeparator, zeroWidthSpace, zeroWidthNonJoiner, zeroWidthJoiner, byteOrderMark:
		return true
	}
	if r < 0x20 {
		return true
	}
	if r == 0x7f {
		return true
	}
	return false
}

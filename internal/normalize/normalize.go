// Package normalize holds the canonical forms used for storage and comparison
// of client-supplied values.
package normalize

import "strings"

// PushToken returns a device token with surrounding whitespace removed.
// Token values are case sensitive and otherwise kept as sent.
func PushToken(t string) string {
	return strings.TrimSpace(t)
}

// Text trims surrounding whitespace from message text and captions.
func Text(s string) string {
	return strings.TrimSpace(s)
}

// Page converts a 1-based page and a page size into skip and limit values.
// Missing or out of range values fall back to page 1 and defaultSize, and the
// size is capped at maxSize.
func Page(page, size, defaultSize, maxSize int) (skip, limit int64) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultSize
	}
	if maxSize > 0 && size > maxSize {
		size = maxSize
	}
	return int64(page-1) * int64(size), int64(size)
}

package storage

import (
	"fmt"
	"strings"
	"time"
)

// ExportName builds a file name for a session export, e.g.
// 2025-07-16_1530_the-salt-road_82f06b15.json.
func ExportName(sessionID, title, ext string, now time.Time) string {
	shortID := sessionID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	return fmt.Sprintf("%s_%s_%s.%s", now.Format("2006-01-02_1504"), sanitizeForFilename(title, 30), shortID, strings.TrimPrefix(ext, "."))
}

// sanitizeForFilename lowercases s, turns separators into hyphens and drops
// anything else that is not a letter or digit.
func sanitizeForFilename(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '/', r == '\\', r == ':', r == '.':
			b.WriteByte('-')
		}
	}
	s = b.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")

	if len(s) > maxLen {
		s = strings.TrimRight(s[:maxLen], "-")
	}
	if s == "" {
		s = "session"
	}
	return s
}

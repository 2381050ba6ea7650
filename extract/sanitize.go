package extract

import (
	"regexp"
	"strings"
)

// maxKeyLen is the maximum grouping-key length in runes.
const maxKeyLen = 100

var (
	illegalKeyChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	underscoreRun   = regexp.MustCompile(`_{2,}`)
)

// SanitizeKey derives the filesystem/archive-safe grouping key from a
// record's reason: path-illegal characters and control characters become
// single underscores, underscore runs collapse, the result is trimmed and
// truncated to maxKeyLen runes. A reason that sanitizes to nothing (or to
// underscores only) falls back to a key derived from the defect code, so a
// record is never ungroupable. Sanitization is idempotent.
func SanitizeKey(reason, code string) string {
	key := illegalKeyChars.ReplaceAllString(reason, "_")
	key = underscoreRun.ReplaceAllString(key, "_")
	key = strings.TrimSpace(key)
	if r := []rune(key); len(r) > maxKeyLen {
		key = strings.TrimSpace(string(r[:maxKeyLen]))
	}
	if strings.Trim(key, "_") == "" {
		return "defect_" + code
	}
	return key
}

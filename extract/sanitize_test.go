package extract

import (
	"strings"
	"testing"
)

func TestSanitizeKeyReplacesIllegalChars(t *testing.T) {
	got := SanitizeKey(`Corroded<pipe>/weld`, "7")
	if got != "Corroded_pipe_weld" {
		t.Fatalf("expected Corroded_pipe_weld, got %q", got)
	}
}

func TestSanitizeKeyCollapsesUnderscoreRuns(t *testing.T) {
	got := SanitizeKey(`a\\\b`, "1")
	if got != "a_b" {
		t.Fatalf("expected a_b, got %q", got)
	}
}

func TestSanitizeKeyTrimsWhitespace(t *testing.T) {
	got := SanitizeKey("  rust on flange  ", "2")
	if got != "rust on flange" {
		t.Fatalf("expected trimmed key, got %q", got)
	}
}

func TestSanitizeKeyReplacesControlChars(t *testing.T) {
	got := SanitizeKey("bent\tframe\nmember", "3")
	if got != "bent_frame_member" {
		t.Fatalf("expected bent_frame_member, got %q", got)
	}
}

func TestSanitizeKeyTruncatesByRunes(t *testing.T) {
	got := SanitizeKey(strings.Repeat("ü", 150), "4")
	if n := len([]rune(got)); n != 100 {
		t.Fatalf("expected 100 runes, got %d", n)
	}
}

func TestSanitizeKeyFallsBackToCode(t *testing.T) {
	for _, reason := range []string{"", "///", "   ", "_", "<>:|?*"} {
		if got := SanitizeKey(reason, "12"); got != "defect_12" {
			t.Fatalf("reason %q: expected defect_12, got %q", reason, got)
		}
	}
}

func TestSanitizeKeyIdempotent(t *testing.T) {
	reasons := []string{
		"Corroded bracket",
		`slash/in\reason`,
		"  spaced  out  ",
		"///",
		strings.Repeat("long reason ", 20),
		"tab\tand\x01control",
	}
	for _, r := range reasons {
		once := SanitizeKey(r, "9")
		twice := SanitizeKey(once, "9")
		if once != twice {
			t.Fatalf("reason %q: sanitize not idempotent: %q != %q", r, once, twice)
		}
	}
}

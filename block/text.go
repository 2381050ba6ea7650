package block

import "strings"

// Flatten collapses a text block's nested line/span structure into a single
// normalized string: span texts joined with single spaces, runs of
// whitespace folded, leading/trailing whitespace trimmed. A malformed block
// (no lines, or lines with no spans) flattens to the empty string.
func Flatten(t TextBlock) string {
	var b strings.Builder
	for _, line := range t.Lines {
		for _, span := range line.Spans {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(span.Text)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

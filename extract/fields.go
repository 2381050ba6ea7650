package extract

import "strings"

// parseCaption applies the caption grammar to a full window. The code block
// is the second-to-last window element, the reason block the last. A
// non-empty why means the window was rejected (a negative match).
func (e *Extractor) parseCaption(win []string) (code, reason, why string) {
	codeBlock := win[len(win)-2]
	reasonBlock := win[len(win)-1]

	// Matching on the original string keeps byte offsets valid even when
	// case folding changes rune widths.
	loc := e.markerRe.FindStringIndex(codeBlock)
	if loc == nil {
		return "", "", "marker phrase not found in code block"
	}

	m := e.codeRe.FindStringSubmatch(codeBlock[loc[1]:])
	if m == nil {
		return "", "", "no defect code digits after marker phrase"
	}
	code = m[1]

	reason, why = e.parseReason(reasonBlock)
	if why != "" {
		return "", "", why
	}
	return code, reason, ""
}

// parseReason extracts the reason from the last window block.
//
// Primary rule: the longest leading substring immediately followed by
// whitespace and the keyword. Fallback: when the keyword appears but the
// primary rule does not match, split on the first whitespace+keyword
// occurrence and keep the text before it. Absent keyword: reject, or the
// placeholder in lenient mode.
func (e *Extractor) parseReason(s string) (string, string) {
	if m := e.reasonRe.FindStringSubmatch(s); m != nil {
		if r := strings.TrimSpace(m[1]); r != "" {
			return r, ""
		}
		return "", "empty reason before keyword"
	}

	if strings.Contains(strings.ToLower(s), e.keywordLow) {
		before := s
		if loc := e.splitRe.FindStringIndex(s); loc != nil {
			before = s[:loc[0]]
		}
		before = strings.TrimSpace(before)
		if before == "" {
			return "", "empty reason before keyword"
		}
		return before, ""
	}

	if e.cfg.Lenient {
		return UnknownReason, ""
	}
	return "", "reason keyword not found in reason block"
}

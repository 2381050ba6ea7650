// Package extract implements the defect-record extraction engine: candidate
// image selection, caption window scanning, caption grammar parsing, and
// record assembly. All functions are pure transformations of page state;
// pages can be processed in parallel with no shared mutable state.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fieldaudit/defectscan/block"
)

// OrderPolicy selects how a page's image blocks are ordered before the
// skip-first rule is applied.
type OrderPolicy string

const (
	// OrderStream keeps content-stream order.
	OrderStream OrderPolicy = "stream"
	// OrderVisual re-sorts image blocks by the top edge of their bounding
	// box, so "first" means topmost.
	OrderVisual OrderPolicy = "visual"
)

// Config carries the template policy parameters. The zero value is not
// usable; start from Default().
type Config struct {
	// Order is the candidate ordering policy. One policy applies to a whole
	// document; mixing policies within a document is rejected by
	// construction since an Extractor holds exactly one.
	Order OrderPolicy

	// SkipLeading is the number of leading image blocks (in policy order)
	// per page that are never candidates.
	SkipLeading int

	// WindowSize is the number of non-empty text blocks collected after a
	// candidate. The code block is the second-to-last element of the
	// window, the reason block the last.
	WindowSize int

	// Marker is the case-insensitive phrase that must appear in the code
	// block.
	Marker string

	// Keyword is the case-insensitive word terminating the reason text.
	Keyword string

	// Lenient substitutes UnknownReason when Keyword is absent from the
	// reason block instead of rejecting the window.
	Lenient bool
}

// UnknownReason is the placeholder reason used in lenient mode.
const UnknownReason = "Unknown Defect"

// Default returns the policy parameters of the standard report template.
func Default() Config {
	return Config{
		Order:       OrderStream,
		SkipLeading: 1,
		WindowSize:  6,
		Marker:      "defect code",
		Keyword:     "defect",
	}
}

// Record is one extracted defect record, ordered within its page by
// candidate-selection order.
type Record struct {
	Page      int    `json:"page"`
	Candidate int    `json:"candidate"`
	Code      string `json:"defect_code"`
	Reason    string `json:"reason"`
	GroupKey  string `json:"group_key"`
	ImageData []byte `json:"-"`
	ImageExt  string `json:"image_ext"`
}

// DiagKind classifies negative matches. None of these abort page
// processing; they explain why a candidate yielded no record.
type DiagKind string

const (
	DiagShortWindow     DiagKind = "short_window"
	DiagGrammarMismatch DiagKind = "grammar_mismatch"
	DiagUnresolvedImage DiagKind = "unresolved_image"
)

// Diagnostic reports a per-candidate negative match.
type Diagnostic struct {
	Page      int      `json:"page"`
	Candidate int      `json:"candidate"`
	Kind      DiagKind `json:"kind"`
	Detail    string   `json:"detail,omitempty"`
}

// Extractor applies the caption grammar under one fixed policy set.
type Extractor struct {
	cfg        Config
	markerRe   *regexp.Regexp // marker phrase, case-insensitive
	codeRe     *regexp.Regexp // digits after the marker phrase
	reasonRe   *regexp.Regexp // longest leading text before whitespace+keyword
	splitRe    *regexp.Regexp // first whitespace+keyword occurrence
	keywordLow string
}

// New validates the configuration and compiles the caption grammar.
func New(cfg Config) (*Extractor, error) {
	switch cfg.Order {
	case OrderStream, OrderVisual:
	default:
		return nil, fmt.Errorf("unknown order policy %q", cfg.Order)
	}
	if cfg.SkipLeading < 0 {
		return nil, fmt.Errorf("skip leading images must be >= 0, got %d", cfg.SkipLeading)
	}
	if cfg.WindowSize < 2 {
		return nil, fmt.Errorf("caption window size must be >= 2, got %d", cfg.WindowSize)
	}
	if cfg.Marker == "" || cfg.Keyword == "" {
		return nil, fmt.Errorf("marker phrase and reason keyword must be non-empty")
	}

	kw := regexp.QuoteMeta(cfg.Keyword)
	return &Extractor{
		cfg:        cfg,
		markerRe:   regexp.MustCompile(`(?i)` + regexp.QuoteMeta(cfg.Marker)),
		codeRe:     regexp.MustCompile(`^[\s:=]*([0-9]+)`),
		reasonRe:   regexp.MustCompile(`(?i)^(.+)\s+` + kw),
		splitRe:    regexp.MustCompile(`(?i)\s+` + kw),
		keywordLow: strings.ToLower(cfg.Keyword),
	}, nil
}

// ExtractPage walks one page and returns its defect records in
// candidate-selection order, plus diagnostics for candidates that yielded
// no record.
func (e *Extractor) ExtractPage(page *block.Page) ([]Record, []Diagnostic) {
	cands := e.selectCandidates(page)
	if len(cands) == 0 {
		return nil, nil
	}

	var (
		records []Record
		diags   []Diagnostic
		claimed = make(map[int]bool, len(page.Images))
	)

	for ci, cand := range cands {
		// Resolution happens per candidate at selection time: a candidate
		// claims its nearest image even when its caption is later rejected,
		// so a bad caption never hands that image to the next candidate.
		img, ok := resolveRendered(cand, page.Images, claimed)
		if !ok {
			diags = append(diags, Diagnostic{
				Page: page.Number, Candidate: ci, Kind: DiagUnresolvedImage,
				Detail: "no rendered image available for candidate",
			})
			continue
		}

		win, ok := captionWindow(page.Blocks, cand.StreamIndex, e.cfg.WindowSize)
		if !ok {
			diags = append(diags, Diagnostic{
				Page: page.Number, Candidate: ci, Kind: DiagShortWindow,
				Detail: fmt.Sprintf("only %d of %d text blocks before page end", len(win), e.cfg.WindowSize),
			})
			continue
		}

		code, reason, why := e.parseCaption(win)
		if why != "" {
			diags = append(diags, Diagnostic{
				Page: page.Number, Candidate: ci, Kind: DiagGrammarMismatch, Detail: why,
			})
			continue
		}

		records = append(records, Record{
			Page:      page.Number,
			Candidate: ci,
			Code:      code,
			Reason:    reason,
			GroupKey:  SanitizeKey(reason, code),
			ImageData: img.Data,
			ImageExt:  img.Ext,
		})
	}

	return records, diags
}

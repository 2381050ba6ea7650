package extract

import "testing"

func newTestExtractor(t *testing.T, mutate func(*Config)) *Extractor {
	t.Helper()
	cfg := Default()
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("creating extractor: %v", err)
	}
	return e
}

// window builds a full default-size caption window with the given code and
// reason blocks in the last two positions.
func window(codeBlock, reasonBlock string) []string {
	return []string{"filler 1", "filler 2", "filler 3", "filler 4", codeBlock, reasonBlock}
}

// ---------------------------------------------------------------------------
// Caption grammar: code block
// ---------------------------------------------------------------------------

func TestParseCaption(t *testing.T) {
	e := newTestExtractor(t, nil)

	code, reason, why := e.parseCaption(window("Defect Code: 17", "Cracked flange Defect"))
	if why != "" {
		t.Fatalf("unexpected rejection: %s", why)
	}
	if code != "17" {
		t.Fatalf("code = %q, want 17", code)
	}
	if reason != "Cracked flange" {
		t.Fatalf("reason = %q, want Cracked flange", reason)
	}
}

func TestParseCaptionTemplateCaption(t *testing.T) {
	e := newTestExtractor(t, nil)

	code, reason, why := e.parseCaption(window("Defect Code: 107", "Loose Bolt Defect Found"))
	if why != "" {
		t.Fatalf("unexpected rejection: %s", why)
	}
	if code != "107" || reason != "Loose Bolt" {
		t.Fatalf("got (%q, %q), want (107, Loose Bolt)", code, reason)
	}
}

func TestParseReasonTrailingText(t *testing.T) {
	e := newTestExtractor(t, nil)

	reason, why := e.parseReason("Surface Scratch defect noted on panel")
	if why != "" {
		t.Fatalf("unexpected rejection: %s", why)
	}
	if reason != "Surface Scratch" {
		t.Fatalf("reason = %q, want Surface Scratch", reason)
	}
}

func TestParseCaptionMarkerCaseInsensitive(t *testing.T) {
	e := newTestExtractor(t, nil)

	for _, codeBlock := range []string{"DEFECT CODE 0042", "Defect code=0042", "see defect code : 0042 above"} {
		code, _, why := e.parseCaption(window(codeBlock, "Loose bolt defect"))
		if why != "" {
			t.Fatalf("%q: unexpected rejection: %s", codeBlock, why)
		}
		if code != "0042" {
			t.Fatalf("%q: code = %q, want 0042", codeBlock, code)
		}
	}
}

func TestParseCaptionMultibyteTextBeforeMarker(t *testing.T) {
	e := newTestExtractor(t, nil)

	// Characters whose lowercase form has a different byte length must not
	// shift the slice taken after the marker phrase.
	cases := []struct {
		codeBlock string
		want      string
	}{
		{"Ⱥ defect code: 9", "9"},
		{"İİİİ defect code: 123", "123"},
		{"Şübhə DEFECT CODE = 55", "55"},
	}
	for _, tc := range cases {
		code, _, why := e.parseCaption(window(tc.codeBlock, "Loose bolt defect"))
		if why != "" {
			t.Fatalf("%q: unexpected rejection: %s", tc.codeBlock, why)
		}
		if code != tc.want {
			t.Fatalf("%q: code = %q, want %q", tc.codeBlock, code, tc.want)
		}
	}
}

func TestParseCaptionMarkerMissing(t *testing.T) {
	e := newTestExtractor(t, nil)

	_, _, why := e.parseCaption(window("Inspection item 17", "Cracked flange Defect"))
	if why == "" {
		t.Fatal("expected rejection when marker phrase is absent")
	}
}

func TestParseCaptionNoDigitsAfterMarker(t *testing.T) {
	e := newTestExtractor(t, nil)

	_, _, why := e.parseCaption(window("Defect Code: pending", "Cracked flange Defect"))
	if why == "" {
		t.Fatal("expected rejection when no digits follow the marker")
	}
}

// ---------------------------------------------------------------------------
// Caption grammar: reason block
// ---------------------------------------------------------------------------

func TestParseReasonGreedy(t *testing.T) {
	e := newTestExtractor(t, nil)

	// The keyword appears twice; the reason runs to the last occurrence.
	reason, why := e.parseReason("Weld defect near seam defect")
	if why != "" {
		t.Fatalf("unexpected rejection: %s", why)
	}
	if reason != "Weld defect near seam" {
		t.Fatalf("reason = %q, want Weld defect near seam", reason)
	}
}

func TestParseReasonKeywordCaseInsensitive(t *testing.T) {
	e := newTestExtractor(t, nil)

	reason, why := e.parseReason("Corroded bracket DEFECT")
	if why != "" || reason != "Corroded bracket" {
		t.Fatalf("got (%q, %q), want (Corroded bracket, \"\")", reason, why)
	}
}

func TestParseReasonEmbeddedKeywordKeepsWholeBlock(t *testing.T) {
	e := newTestExtractor(t, nil)

	// The keyword occurs with no whitespace before it, so the split rule
	// finds nothing to cut and the whole block stands as the reason.
	reason, why := e.parseReason("defective coating noted")
	if why != "" {
		t.Fatalf("unexpected rejection: %s", why)
	}
	if reason != "defective coating noted" {
		t.Fatalf("reason = %q, want whole block", reason)
	}
}

func TestParseReasonEmptyBeforeKeyword(t *testing.T) {
	e := newTestExtractor(t, nil)

	_, why := e.parseReason("  Defect in weld")
	if why == "" {
		t.Fatal("expected rejection when nothing precedes the keyword")
	}
}

func TestParseReasonKeywordAbsentStrict(t *testing.T) {
	e := newTestExtractor(t, nil)

	_, why := e.parseReason("General corrosion observed")
	if why == "" {
		t.Fatal("expected rejection when the keyword is absent")
	}
}

func TestParseReasonKeywordAbsentLenient(t *testing.T) {
	e := newTestExtractor(t, func(c *Config) { c.Lenient = true })

	reason, why := e.parseReason("General corrosion observed")
	if why != "" {
		t.Fatalf("unexpected rejection: %s", why)
	}
	if reason != UnknownReason {
		t.Fatalf("reason = %q, want %q", reason, UnknownReason)
	}
}

// ---------------------------------------------------------------------------
// Configuration validation
// ---------------------------------------------------------------------------

func TestNewRejectsBadConfig(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.Order = "spiral" },
		func(c *Config) { c.SkipLeading = -1 },
		func(c *Config) { c.WindowSize = 1 },
		func(c *Config) { c.Marker = "" },
		func(c *Config) { c.Keyword = "" },
	}
	for i, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if _, err := New(cfg); err == nil {
			t.Fatalf("case %d: expected config error", i)
		}
	}
}

package defectscan

import (
	"os"
	"path/filepath"

	"github.com/fieldaudit/defectscan/extract"
)

// Config holds all configuration for the defectscan engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.defectscan/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	// Defaults to "defectscan".
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath is not
	// explicitly set. Options: "home" (default) uses ~/.defectscan/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// OrderPolicy selects how image blocks are ordered before the skip-first
	// rule is applied: "stream" (content-stream order, default) or "visual"
	// (sorted by the top edge of the bounding box). One policy applies to a
	// whole document; they are never mixed.
	OrderPolicy string `json:"order_policy" yaml:"order_policy"`

	// SkipLeadingImages is the number of leading image blocks per page that
	// are never candidates. The report template places a logo/header photo
	// first on every page, hence the default of 1.
	SkipLeadingImages int `json:"skip_leading_images" yaml:"skip_leading_images"`

	// CaptionWindowSize is the number of non-empty text blocks scanned after
	// a candidate image. The template encodes the defect code in the
	// second-to-last block of the window and the reason in the last.
	CaptionWindowSize int `json:"caption_window_size" yaml:"caption_window_size"`

	// MarkerPhrase is the case-insensitive phrase that must appear in the
	// code block of the caption window.
	MarkerPhrase string `json:"marker_phrase" yaml:"marker_phrase"`

	// ReasonKeyword is the case-insensitive word that terminates the reason
	// text in the last window block.
	ReasonKeyword string `json:"reason_keyword" yaml:"reason_keyword"`

	// LenientReason substitutes a placeholder reason when the keyword is
	// absent from the reason block instead of rejecting the window.
	LenientReason bool `json:"lenient_reason" yaml:"lenient_reason"`

	// PageWorkers is the number of pages processed in parallel per document.
	PageWorkers int `json:"page_workers" yaml:"page_workers"`
}

// DefaultConfig returns a Config tuned for the standard inspection report
// template. Database is stored in ~/.defectscan/defectscan.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:            "defectscan",
		StorageDir:        "home",
		OrderPolicy:       string(extract.OrderStream),
		SkipLeadingImages: 1,
		CaptionWindowSize: 6,
		MarkerPhrase:      "defect code",
		ReasonKeyword:     "defect",
		PageWorkers:       4,
	}
}

// extractConfig maps the engine configuration onto the extractor's policy
// parameters.
func (c *Config) extractConfig() extract.Config {
	return extract.Config{
		Order:       extract.OrderPolicy(c.OrderPolicy),
		SkipLeading: c.SkipLeadingImages,
		WindowSize:  c.CaptionWindowSize,
		Marker:      c.MarkerPhrase,
		Keyword:     c.ReasonKeyword,
		Lenient:     c.LenientReason,
	}
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "defectscan"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		dir := filepath.Join(home, ".defectscan")
		return filepath.Join(dir, name+".db")
	}
}

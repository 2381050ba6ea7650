// Package output writes extracted defect records into a directory tree
// keyed by grouping key, the layout consumed by downstream packaging.
// Archive creation itself is out of scope here.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fieldaudit/defectscan"
)

// IndexEntry describes one written image in the JSON index.
type IndexEntry struct {
	Document string `json:"document"`
	Page     int    `json:"page"`
	Code     string `json:"defect_code"`
	Reason   string `json:"reason"`
	GroupKey string `json:"group_key"`
	Path     string `json:"path"`
}

// indexFilename is the JSON index written alongside the group directories.
const indexFilename = "extraction_results.json"

// Write lays records out as <dir>/<group_key>/defect_p<page>_code<code>.<ext>,
// suffixing _2, _3, ... on filename collisions within the output set, and
// writes a JSON index at the directory root. Returns the index entries in
// record order.
func Write(dir string, records []defectscan.DefectRecord) ([]IndexEntry, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	used := make(map[string]bool)
	entries := make([]IndexEntry, 0, len(records))

	for _, r := range records {
		groupDir := filepath.Join(dir, r.GroupKey)
		if err := os.MkdirAll(groupDir, 0755); err != nil {
			return nil, fmt.Errorf("creating group directory %q: %w", r.GroupKey, err)
		}

		base := fmt.Sprintf("defect_p%d_code%s", r.Page, r.Code)
		name := uniqueName(used, groupDir, base, r.ImageExt)
		path := filepath.Join(groupDir, name)

		if err := os.WriteFile(path, r.ImageData, 0644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", path, err)
		}

		entries = append(entries, IndexEntry{
			Document: r.Document,
			Page:     r.Page,
			Code:     r.Code,
			Reason:   r.Reason,
			GroupKey: r.GroupKey,
			Path:     path,
		})
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, indexFilename), data, 0644); err != nil {
		return nil, fmt.Errorf("writing index: %w", err)
	}

	return entries, nil
}

// uniqueName picks the first free filename for base within its group,
// numbering repeats: base.ext, base_2.ext, base_3.ext, ...
func uniqueName(used map[string]bool, groupDir, base, ext string) string {
	for i := 1; ; i++ {
		name := base
		if i > 1 {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		name += "." + ext
		key := filepath.Join(groupDir, name)
		if !used[key] {
			used[key] = true
			return name
		}
	}
}

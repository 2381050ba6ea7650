// Package report renders extracted defect records into an XLSX register.
package report

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/fieldaudit/defectscan"
)

const (
	defectsSheet = "Defects"
	summarySheet = "Summary"
)

// Workbook builds an XLSX register from records: a "Defects" sheet listing
// every record in extraction order and a "Summary" sheet with per-reason
// counts (most frequent first). Returns the workbook as bytes.
func Workbook(records []defectscan.DefectRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeDefects(f, records); err != nil {
		return nil, err
	}
	if err := writeSummary(f, records); err != nil {
		return nil, err
	}

	// Drop excelize's default sheet.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	idx, err := f.GetSheetIndex(defectsSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeDefects(f *excelize.File, records []defectscan.DefectRecord) error {
	if _, err := f.NewSheet(defectsSheet); err != nil {
		return err
	}

	headers := []string{"Document", "Page", "Defect Code", "Reason", "Group Key", "Image Format"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(defectsSheet, cell, h); err != nil {
			return err
		}
	}

	for row, r := range records {
		values := []any{r.Document, r.Page, r.Code, r.Reason, r.GroupKey, r.ImageExt}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(defectsSheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeSummary(f *excelize.File, records []defectscan.DefectRecord) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	type agg struct {
		reason string
		count  int
	}
	byKey := make(map[string]*agg)
	var keys []string
	for _, r := range records {
		a, ok := byKey[r.GroupKey]
		if !ok {
			a = &agg{reason: r.Reason}
			byKey[r.GroupKey] = a
			keys = append(keys, r.GroupKey)
		}
		a.count++
	}
	sort.SliceStable(keys, func(i, j int) bool {
		if byKey[keys[i]].count != byKey[keys[j]].count {
			return byKey[keys[i]].count > byKey[keys[j]].count
		}
		return keys[i] < keys[j]
	})

	for i, h := range []string{"Group Key", "Reason", "Defects"} {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(summarySheet, cell, h); err != nil {
			return err
		}
	}
	for row, k := range keys {
		values := []any{k, byKey[k].reason, byKey[k].count}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(summarySheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

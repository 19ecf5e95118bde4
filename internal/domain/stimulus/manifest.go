package stimulus

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/okian/listeval/internal/domain/model"
)

// Manifest errors.
var (
	ErrEmptyManifest  = errors.New("manifest has no systems")
	ErrDuplicateItem  = errors.New("duplicate item id in manifest")
	ErrManifestHeader = errors.New("manifest header has an empty system name")
)

// LoadManifest reads a prebuilt survey spreadsheet. See ReadManifest.
func LoadManifest(path string, firstIsReference bool) ([]model.ComparisonItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return ReadManifest(f, firstIsReference)
}

// ReadManifest parses the first sheet of an xlsx workbook laid out as one
// row per item and one column per system. The first column is the item
// index and the header row names the systems. When firstIsReference is set
// the first system column is the reference shown ahead of the candidates.
// Empty cells mean the system has no rendering for that item.
func ReadManifest(r io.Reader, firstIsReference bool) ([]model.ComparisonItem, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open manifest workbook: %w", err)
	}
	defer func() { _ = wb.Close() }()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyManifest
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read manifest rows: %w", err)
	}
	if len(rows) == 0 || len(rows[0]) < 2 {
		return nil, ErrEmptyManifest
	}

	systems := make([]string, 0, len(rows[0])-1)
	seen := make(map[string]struct{}, len(rows[0])-1)
	for col, name := range rows[0][1:] {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("column %d: %w", col+2, ErrManifestHeader)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%q: %w", name, ErrDuplicateSystem)
		}
		seen[name] = struct{}{}
		systems = append(systems, name)
	}

	ids := make(map[string]struct{}, len(rows))
	items := make([]model.ComparisonItem, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(row[0])
		if id == "" {
			id = strconv.Itoa(n)
		}
		if _, dup := ids[id]; dup {
			return nil, fmt.Errorf("%q: %w", id, ErrDuplicateItem)
		}

		item := model.ComparisonItem{ID: id}
		for col, system := range systems {
			cell := ""
			if col+1 < len(row) {
				cell = strings.TrimSpace(row[col+1])
			}
			if cell == "" {
				continue
			}
			c := model.Candidate{System: system, Path: cell}
			if firstIsReference && col == 0 {
				item.Reference = &c
				continue
			}
			item.Candidates = append(item.Candidates, c)
		}
		if len(item.Candidates) == 0 {
			continue
		}
		ids[id] = struct{}{}
		items = append(items, item)
	}
	return items, nil
}

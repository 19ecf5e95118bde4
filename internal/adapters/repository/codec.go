package repository

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/okian/listeval/internal/domain/model"
)

const sheetName = "Sheet1"

// columns must be present in every result file; itemColumn is written too
// but optional on read, so older files fall back to the audio stem.
var columns = []string{"audio", "name", "metric", "score", "username"}

const itemColumn = "item"

var header = append(append([]string(nil), columns...), itemColumn)

func rowOf(r model.RatingRecord) []string {
	return []string{r.Audio, r.System, r.Metric, strconv.Itoa(r.Score), r.Rater, r.Item}
}

func encode(format Format, records []model.RatingRecord) ([]byte, error) {
	switch format {
	case FormatCSV:
		return encodeCSV(records)
	case FormatXLSX:
		return encodeXLSX(records)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func encodeCSV(records []model.RatingRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range records {
		if err := w.Write(rowOf(r)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeXLSX(records []model.RatingRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	head := make([]any, len(header))
	for i, c := range header {
		head[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &head); err != nil {
		return nil, err
	}
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{r.Audio, r.System, r.Metric, r.Score, r.Rater, r.Item}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, err
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(format Format, r io.Reader) ([]model.RatingRecord, error) {
	var (
		rows [][]string
		err  error
	)
	switch format {
	case FormatCSV:
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		rows, err = cr.ReadAll()
	case FormatXLSX:
		rows, err = readXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}
	return parseRows(rows)
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	return f.GetRows(sheets[0])
}

// parseRows locates the columns by header name, so extra columns such as
// a leading row index are ignored.
func parseRows(rows [][]string) ([]model.RatingRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	idx := make(map[string]int, len(columns))
	for i, h := range rows[0] {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range columns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformedResult, c)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]model.RatingRecord, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if blank(row) {
			continue
		}
		score, err := parseScore(cell(row, "score"))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrMalformedResult, n+2, err)
		}
		out = append(out, model.RatingRecord{
			Audio:  cell(row, "audio"),
			System: cell(row, "name"),
			Metric: cell(row, "metric"),
			Score:  score,
			Rater:  cell(row, "username"),
			Item:   cell(row, itemColumn),
		})
	}
	return out, nil
}

// parseScore accepts integers and integral floats ("4", "4.0").
func parseScore(s string) (int, error) {
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("score %q: %w", s, err)
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("score %q is not an integer", s)
	}
	return int(f), nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

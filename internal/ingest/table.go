package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Table is a header plus string rows, independent of the file format it came from.
type Table struct {
	Header []string
	Rows   [][]string
}

var columnNameSanitizer = strings.NewReplacer(" ", "", "_", "", ".", "", "-", "", "/", "")

func normalizeColumnName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	name = strings.TrimPrefix(name, "\ufeff")
	return columnNameSanitizer.Replace(name)
}

// Column returns the index of the first of names present in the header, or -1.
// Earlier names take priority over later synonyms.
func (t *Table) Column(names ...string) int {
	for _, name := range names {
		target := normalizeColumnName(name)
		for i, h := range t.Header {
			if normalizeColumnName(h) == target {
				return i
			}
		}
	}
	return -1
}

// Value returns the trimmed cell at idx, or "" when the row is short.
func (t *Table) Value(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// ParseNumber coerces a cell to a finite float. Thousands separators are
// stripped; blank, non-numeric and non-finite cells return ok=false.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseTable dispatches on the file extension of name.
func ParseTable(name string, data []byte) (*Table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(bytes.NewReader(data))
	default:
		return ReadCSV(bytes.NewReader(data))
	}
}

// ReadCSV reads a delimited file. Non UTF-8 input is decoded as Windows-1252
// and the delimiter is sniffed from the header line.
func ReadCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
		if err == nil {
			data = decoded
		}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyTable
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	table := &Table{Header: header}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			log.Warn().Err(err).Int("line", line).Msg("Skipping malformed csv row")
			continue
		}
		if isBlank(record) {
			continue
		}
		table.Rows = append(table.Rows, record)
	}

	return table, nil
}

// ReadXLSX reads the first sheet of a workbook. Cells are read raw so date
// cells arrive as Excel serial numbers.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyTable
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyTable
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	table := &Table{Header: header}
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func detectDelimiter(data []byte) rune {
	sample := string(data)
	if len(sample) > 1000 {
		sample = sample[:1000]
	}
	if i := strings.IndexByte(sample, '\n'); i >= 0 {
		sample = sample[:i]
	}

	delimiter := ','
	maxCount := strings.Count(sample, ",")
	for _, candidate := range []rune{';', '\t', '|'} {
		if c := strings.Count(sample, string(candidate)); c > maxCount {
			maxCount = c
			delimiter = candidate
		}
	}
	return delimiter
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

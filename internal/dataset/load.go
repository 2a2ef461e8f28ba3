package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/uemura/appendicitis/pkg/errors"
)

// missingTokens are cell values read as missing.
var missingTokens = map[string]bool{
	"": true, "na": true, "nan": true, "null": true, "none": true, "?": true,
}

// Load reads a dataset export. Files ending in .xlsx are read with
// excelize (first sheet), everything else as comma separated text with a
// header row. Columns listed in numeric are parsed as numbers; every other
// column is categorical.
func Load(path string, numeric []string) (*Frame, error) {
	var (
		header []string
		body   [][]string
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		header, body, err = readXLSX(path)
	default:
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "open dataset %s", path)
		}
		defer f.Close()
		header, body, err = readCSV(f)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read dataset %s", path)
	}
	return build(header, body, numeric)
}

// ReadCSV builds a frame from comma separated text with a header row.
func ReadCSV(r io.Reader, numeric []string) (*Frame, error) {
	header, body, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	return build(header, body, numeric)
}

func readCSV(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse csv")
	}
	if len(records) == 0 {
		return nil, nil, errors.Wrap(errors.ErrEmptyData, "csv has no header")
	}
	return records[0], records[1:], nil
}

func readXLSX(path string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, errors.Wrap(errors.ErrEmptyData, "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, errors.Wrapf(err, "read sheet %s", sheets[0])
	}
	if len(rows) == 0 {
		return nil, nil, errors.Wrap(errors.ErrEmptyData, "sheet has no header")
	}
	return rows[0], rows[1:], nil
}

func build(header []string, body [][]string, numeric []string) (*Frame, error) {
	isNumeric := make(map[string]bool, len(numeric))
	for _, n := range numeric {
		isNumeric[n] = true
	}

	// Trailing blank lines are skipped; spreadsheets often carry them.
	for len(body) > 0 && blank(body[len(body)-1]) {
		body = body[:len(body)-1]
	}

	frame := NewFrame(len(body))
	for j, rawName := range header {
		name := strings.TrimSpace(rawName)
		if name == "" {
			continue
		}
		if isNumeric[name] {
			values := make([]float64, len(body))
			bad := 0
			for i, row := range body {
				v, ok := parseNumber(cell(row, j))
				if !ok {
					bad++
				}
				values[i] = v
			}
			if bad > 0 {
				errors.Warn(errors.NewDataConversionWarning("string", "float64",
					strconv.Itoa(bad)+" unparsable cells in column "+name+" read as missing"))
			}
			if err := frame.SetNumeric(name, values); err != nil {
				return nil, err
			}
			continue
		}
		values := make([]string, len(body))
		for i, row := range body {
			v := strings.TrimSpace(cell(row, j))
			if missingTokens[strings.ToLower(v)] {
				v = ""
			}
			values[i] = v
		}
		if err := frame.SetCategorical(name, values); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

// parseNumber returns NaN for missing cells. ok is false only for
// non-empty cells that are not numbers.
func parseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if missingTokens[strings.ToLower(s)] {
		return math.NaN(), true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN(), false
	}
	return v, true
}

func cell(row []string, j int) string {
	if j < len(row) {
		return row[j]
	}
	return ""
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

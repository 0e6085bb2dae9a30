package abcxyz

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"

	pkgerrors "github.com/angelmondragon/abcxyz-forecast/pkg/errors"
	"github.com/angelmondragon/abcxyz-forecast/pkg/monthkey"
)

const (
	ColumnProductID = "id_producto"
	ColumnProduct   = "producto"
	ColumnBrand     = "marca"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ParsedSheet is the outcome of a spreadsheet import.
type ParsedSheet struct {
	Months []string
	Series []ProductSeries
}

// ParseSpreadsheet reads a CSV or XLSX upload into per-product series. Month columns are
// detected from the header; when none match, the canonical window ending at ref must be present.
// Amounts mirror quantities since uploads carry no prices.
func ParseSpreadsheet(name string, content []byte, ref time.Time) (*ParsedSheet, error) {
	grid, err := readGrid(name, content)
	if err != nil {
		return nil, err
	}
	if len(grid) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file has no header row")
	}

	header := make([]string, len(grid[0]))
	for i, cell := range grid[0] {
		header[i] = strings.TrimSpace(cell)
	}

	months, err := resolveMonths(header, ref)
	if err != nil {
		return nil, err
	}

	idxID, idxName := indexOf(header, ColumnProductID), indexOf(header, ColumnProduct)
	if idxID < 0 || idxName < 0 {
		missing := []string{}
		if idxID < 0 {
			missing = append(missing, ColumnProductID)
		}
		if idxName < 0 {
			missing = append(missing, ColumnProduct)
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing required columns").
			WithDetails(map[string]any{"missing_columns": missing})
	}
	idxBrand := indexOf(header, ColumnBrand)

	monthCols := make([]int, len(months))
	for i, key := range months {
		monthCols[i] = indexOf(header, key)
	}

	series := make([]ProductSeries, 0, len(grid)-1)
	for r, row := range grid[1:] {
		if blank(row) {
			continue
		}
		line := r + 2
		s, err := parseRow(row, line, idxID, idxName, idxBrand, months, monthCols)
		if err != nil {
			return nil, err
		}
		series = append(series, s)
	}
	return &ParsedSheet{Months: months, Series: series}, nil
}

func resolveMonths(header []string, ref time.Time) ([]string, error) {
	months := DetectMonthKeys(header)
	if len(months) == 0 {
		months = monthkey.Last12(ref)
		missing := []string{}
		for _, key := range months {
			if indexOf(header, key) < 0 {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "no YYYY-MM columns detected and the default window is missing from the header").
				WithDetails(map[string]any{"missing_months": missing})
		}
	}
	if len(months) != monthkey.WindowSize {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("requires %d months, detected %d (%s)", monthkey.WindowSize, len(months), strings.Join(months, ", "))).
			WithDetails(map[string]any{"months": months})
	}
	return months, nil
}

// DetectMonthKeys returns the distinct YYYY-MM header cells in ascending order, keeping at most
// the latest twelve.
func DetectMonthKeys(header []string) []string {
	seen := map[string]struct{}{}
	months := []string{}
	for _, cell := range header {
		key := strings.TrimSpace(cell)
		if !monthkey.IsKey(key) {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		months = append(months, key)
	}
	sort.Strings(months)
	if len(months) > monthkey.WindowSize {
		months = months[len(months)-monthkey.WindowSize:]
	}
	return months
}

func parseRow(row []string, line, idxID, idxName, idxBrand int, months []string, monthCols []int) (ProductSeries, error) {
	s := ProductSeries{
		ProductName: cell(row, idxName),
		Quantity:    make([]float64, len(months)),
	}
	if idxBrand >= 0 {
		s.Brand = cell(row, idxBrand)
	}

	if raw := cell(row, idxID); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return s, rowError(line, ColumnProductID, raw, "an integer")
		}
		s.ProductID = &id
	}

	for i, col := range monthCols {
		raw := cell(row, col)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return s, rowError(line, months[i], raw, "a number")
		}
		if v < 0 {
			return s, rowError(line, months[i], raw, "a non-negative number")
		}
		s.Quantity[i] = v
	}
	s.Amount = append([]float64(nil), s.Quantity...)
	return s, nil
}

func parseID(raw string) (int64, error) {
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id, nil
	}
	// workbooks often store ids as floats ("101.0")
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return int64(f), nil
}

func rowError(line int, column, value, want string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("row %d: column %s must be %s", line, column, want)).
		WithDetails(map[string]any{"row": line, "column": column, "value": value})
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

type gridFormat int

const (
	formatUnknown gridFormat = iota
	formatDelimited
	formatWorkbook
)

func detectFormat(name string, content []byte) gridFormat {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(name))) {
	case ".csv", ".txt":
		return formatDelimited
	case ".xlsx", ".xlsm":
		return formatWorkbook
	}
	mt := mimetype.Detect(content)
	for m := mt; m != nil; m = m.Parent() {
		switch {
		case m.Is(xlsxMIME), m.Is("application/zip"):
			return formatWorkbook
		case m.Is("text/plain"), m.Is("text/csv"):
			return formatDelimited
		}
	}
	return formatUnknown
}

func readGrid(name string, content []byte) ([][]string, error) {
	switch detectFormat(name, content) {
	case formatDelimited:
		return readDelimited(content)
	case formatWorkbook:
		return readWorkbook(content)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported file format, upload CSV or XLSX").
			WithDetails(map[string]any{"file_name": name, "detected": mimetype.Detect(content).String()})
	}
}

func readDelimited(content []byte) ([][]string, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	firstLine := content
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		firstLine = content[:i]
	}

	r := csv.NewReader(bytes.NewReader(content))
	if bytes.Count(firstLine, []byte(";")) > bytes.Count(firstLine, []byte(",")) {
		r.Comma = ';'
	}
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var grid [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed CSV file")
		}
		grid = append(grid, record)
	}
	return grid, nil
}

func readWorkbook(content []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable XLSX file")
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "workbook has no sheets")
	}
	// raw values: number formats like "#,##0" or currency must not reach the parser
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "reading worksheet rows")
	}
	return rows, nil
}

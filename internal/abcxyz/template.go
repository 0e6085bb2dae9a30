package abcxyz

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	pkgerrors "github.com/angelmondragon/abcxyz-forecast/pkg/errors"
	"github.com/angelmondragon/abcxyz-forecast/pkg/monthkey"
)

const templateBaseName = "plantilla_abcxyz"

// TemplateFile is a downloadable import template.
type TemplateFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

var templateSamples = [][]string{
	{"101", "Producto A", "Marca A"},
	{"102", "Producto B", "Marca B"},
}

// BuildTemplate renders the import template for the window ending at ref as "csv" or "xlsx".
func BuildTemplate(format string, ref time.Time) (*TemplateFile, error) {
	months := monthkey.Last12(ref)
	header := append([]string{ColumnProductID, ColumnProduct, ColumnBrand}, months...)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "csv":
		return templateCSV(header, len(months))
	case "xlsx":
		return templateXLSX(header, len(months))
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported template format %q", format)).
			WithDetails(map[string]any{"allowed": []string{"csv", "xlsx"}})
	}
}

func templateCSV(header []string, monthCount int) (*TemplateFile, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, sample := range templateSamples {
		row := append([]string{}, sample...)
		for i := 0; i < monthCount; i++ {
			row = append(row, "0")
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return &TemplateFile{
		FileName:    templateBaseName + ".csv",
		ContentType: "text/csv; charset=utf-8",
		Content:     buf.Bytes(),
	}, nil
}

func templateXLSX(header []string, monthCount int) (*TemplateFile, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return nil, err
	}
	for i, sample := range templateSamples {
		row := []interface{}{}
		for _, v := range sample {
			row = append(row, v)
		}
		for j := 0; j < monthCount; j++ {
			row = append(row, 0)
		}
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cellRef, &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return &TemplateFile{
		FileName:    templateBaseName + ".xlsx",
		ContentType: xlsxMIME,
		Content:     buf.Bytes(),
	}, nil
}

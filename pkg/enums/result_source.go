package enums

import (
	"fmt"
	"strings"
)

// ResultSource identifies where a classification result's series came from.
type ResultSource string

const (
	ResultSourceDB          ResultSource = "db"
	ResultSourceSpreadsheet ResultSource = "spreadsheet"
)

var validResultSources = []ResultSource{
	ResultSourceDB,
	ResultSourceSpreadsheet,
}

// String implements fmt.Stringer.
func (s ResultSource) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ResultSource.
func (s ResultSource) IsValid() bool {
	for _, candidate := range validResultSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseResultSource converts raw input into a ResultSource. "excel" and "csv" are accepted
// as aliases of the spreadsheet source.
func ParseResultSource(value string) (ResultSource, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "excel", "csv", "xlsx":
		return ResultSourceSpreadsheet, nil
	}
	for _, candidate := range validResultSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid result source %q", value)
}

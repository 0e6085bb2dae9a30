package enums

import (
	"fmt"
	"strings"
)

// ForecastOrigin selects the baseline path for a forecast request.
type ForecastOrigin string

const (
	ForecastOriginDB          ForecastOrigin = "abcxyz_db"
	ForecastOriginSpreadsheet ForecastOrigin = "abcxyz_csv"
)

var validForecastOrigins = []ForecastOrigin{
	ForecastOriginDB,
	ForecastOriginSpreadsheet,
}

// String implements fmt.Stringer.
func (o ForecastOrigin) String() string {
	return string(o)
}

// IsValid reports whether the value is a known ForecastOrigin.
func (o ForecastOrigin) IsValid() bool {
	for _, candidate := range validForecastOrigins {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseForecastOrigin converts raw input into a ForecastOrigin; empty input means database origin.
func ParseForecastOrigin(value string) (ForecastOrigin, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ForecastOriginDB, nil
	}
	for _, candidate := range validForecastOrigins {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid forecast origin %q", value)
}

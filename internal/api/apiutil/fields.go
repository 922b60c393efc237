package apiutil

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

func ParsePositiveInt64Field(raw string, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", field)
	}
	return value, nil
}

// IDFromPath parses the {id} path segment.
func IDFromPath(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.PathValue(name))
	if raw == "" {
		return 0, fmt.Errorf("invalid %s", name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// ParseDate parses a calendar date. The time-of-day and location are left
// to the caller; only year, month, and day matter.
func ParseDate(raw string, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be a valid date (YYYY-MM-DD)", field)
	}
	return parsed, nil
}

// ParseTime accepts RFC3339 plus the datetime-local layouts browsers send.
func ParseTime(raw string, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, FieldError{Field: field, Reason: "is required"}
	}

	layouts := []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04"}
	for _, layout := range layouts {
		if layout == time.RFC3339 {
			parsed, err := time.Parse(layout, raw)
			if err == nil {
				return parsed, nil
			}
			continue
		}
		parsed, err := time.ParseInLocation(layout, raw, time.Local)
		if err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, FieldError{Field: field, Reason: "must be a valid datetime"}
}

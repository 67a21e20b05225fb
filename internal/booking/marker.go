package booking

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// markerPattern matches the structured block an AI reply embeds to request
// a booking. Non-greedy so a malformed reply with stray delimiters cannot
// swallow conversation text.
var markerPattern = regexp.MustCompile(`(?s)\[BOOKING_REQUEST\](.*?)\[/BOOKING_REQUEST\]`)

// MarkerData is the validated, normalized payload of a booking marker.
// Date is ISO (YYYY-MM-DD) and Time is zero-padded 24h (HH:MM).
type MarkerData struct {
	Name            string
	Email           string
	Phone           string
	Service         string
	Date            string
	Time            string
	DurationMinutes int
}

// ExtractResult reports the outcome of scanning a reply for a marker.
// Found=false means "not a booking turn", which is not an error; Found=true
// with Valid=false is a malformed booking attempt the caller may retry.
type ExtractResult struct {
	Found  bool
	Valid  bool
	Data   *MarkerData
	Errors []string
}

type markerPayload struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Phone    string      `json:"phone"`
	Service  string      `json:"service"`
	Date     string      `json:"date"`
	Time     string      `json:"time"`
	Duration json.Number `json:"duration"`
}

// ExtractMarker scans an AI reply for an embedded booking payload and
// validates it. Required-field checks run before format normalization and
// every problem is collected rather than short-circuiting on the first.
func ExtractMarker(reply string) ExtractResult {
	m := markerPattern.FindStringSubmatch(reply)
	if m == nil {
		return ExtractResult{}
	}

	var payload markerPayload
	if err := json.Unmarshal([]byte(m[1]), &payload); err != nil {
		return ExtractResult{
			Found:  true,
			Errors: []string{fmt.Sprintf("booking payload is not valid JSON: %v", err)},
		}
	}

	var errs []string
	if strings.TrimSpace(payload.Name) == "" {
		errs = append(errs, "missing required field: name")
	}
	if strings.TrimSpace(payload.Date) == "" {
		errs = append(errs, "missing required field: date")
	}
	if strings.TrimSpace(payload.Time) == "" {
		errs = append(errs, "missing required field: time")
	}

	data := &MarkerData{
		Name:    strings.TrimSpace(payload.Name),
		Email:   strings.TrimSpace(payload.Email),
		Phone:   strings.TrimSpace(payload.Phone),
		Service: strings.TrimSpace(payload.Service),
	}

	if strings.TrimSpace(payload.Date) != "" {
		date, err := NormalizeDate(payload.Date)
		if err != nil {
			errs = append(errs, err.Error())
		} else {
			data.Date = date
		}
	}
	if strings.TrimSpace(payload.Time) != "" {
		t, err := NormalizeTime(payload.Time)
		if err != nil {
			errs = append(errs, err.Error())
		} else {
			data.Time = t
		}
	}
	if payload.Duration != "" {
		if d, err := payload.Duration.Int64(); err == nil && d > 0 {
			data.DurationMinutes = int(d)
		}
	}

	if len(errs) > 0 {
		return ExtractResult{Found: true, Errors: errs}
	}
	return ExtractResult{Found: true, Valid: true, Data: data}
}

// StripMarker removes every marker block from the reply so the visitor
// never sees the raw payload, regardless of its validity.
func StripMarker(reply string) string {
	return strings.TrimSpace(markerPattern.ReplaceAllString(reply, ""))
}

var (
	dateSlashPattern = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2}|\d{4})$`)
	dateISOPattern   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	timePattern      = regexp.MustCompile(`^(\d{1,2})(?:h(\d{1,2})?|:(\d{2}))$`)
)

// NormalizeDate accepts DD/MM/YYYY, DD-MM-YYYY, DD/MM/YY or ISO YYYY-MM-DD
// and returns the ISO form. Two-digit years are read as 2000+YY.
func NormalizeDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if m := dateISOPattern.FindStringSubmatch(raw); m != nil {
		if !plausibleDayMonth(m[3], m[2]) {
			return "", fmt.Errorf("invalid date: %s", raw)
		}
		return raw, nil
	}
	m := dateSlashPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", fmt.Errorf("unrecognized date format: %s", raw)
	}
	day, month, year := m[1], m[2], m[3]
	if !plausibleDayMonth(day, month) {
		return "", fmt.Errorf("invalid date: %s", raw)
	}
	y, _ := strconv.Atoi(year)
	if len(year) == 2 {
		y += 2000
	}
	mo, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	return fmt.Sprintf("%04d-%02d-%02d", y, mo, d), nil
}

func plausibleDayMonth(day, month string) bool {
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return false
	}
	return true
}

// NormalizeTime accepts HHhMM, HHh or HH:MM and returns zero-padded 24h
// HH:MM. Hours outside 0-23 or minutes outside 0-59 are rejected.
func NormalizeTime(raw string) (string, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	m := timePattern.FindStringSubmatch(raw)
	if m == nil {
		return "", fmt.Errorf("unrecognized time format: %s", raw)
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	} else if m[3] != "" {
		minute, _ = strconv.Atoi(m[3])
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid time: %s", raw)
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

package billing

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the calendar-date form used for work dates throughout billexact.
const DateLayout = "2006-01-02"

// ErrInvalidEntry classifies entries rejected by Validate.
var ErrInvalidEntry = errors.New("invalid time entry")

// Source identifies how an entry was created.
type Source string

const (
	SourceManual        Source = "manual"
	SourceActivityWatch Source = "activitywatch"
)

// Date is a calendar date without a time component. The zero value means
// "no date".
type Date struct {
	t time.Time
}

// NewDate returns the calendar date for year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses YYYY-MM-DD. An empty string yields the zero Date.
func ParseDate(value string) (Date, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Date{}, nil
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return Date{t: t}, nil
}

func (d Date) IsZero() bool { return d.t.IsZero() }

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time { return d.t }

// String formats the date as YYYY-MM-DD, or "" for the zero Date.
func (d Date) String() string {
	if d.t.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// Compact formats the date as YYYYMMDD, or "" for the zero Date.
func (d Date) Compact() string {
	if d.t.IsZero() {
		return ""
	}
	return d.t.Format("20060102")
}

func (d Date) Before(other Date) bool { return d.t.Before(other.t) }

func (d Date) After(other Date) bool { return d.t.After(other.t) }

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeEntry is one unit of billable work.
type TimeEntry struct {
	ID            string    `json:"id"`
	WorkDate      Date      `json:"work_date"`
	ClientID      string    `json:"client_id"`
	MatterID      string    `json:"matter_id"`
	TimekeeperID  string    `json:"timekeeper_id"`
	DurationHours float64   `json:"duration_hours"`
	Description   string    `json:"description"`
	TaskCode      string    `json:"task_code,omitempty"`
	ActivityCode  string    `json:"activity_code,omitempty"`
	Confidence    float64   `json:"confidence"`
	Rate          float64   `json:"rate"`
	Source        Source    `json:"source,omitempty"`
	StartedAt     time.Time `json:"started_at,omitzero"`
	Archived      bool      `json:"archived,omitempty"`
	InvoiceNumber string    `json:"invoice_number,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitzero"`
	UpdatedAt     time.Time `json:"updated_at,omitzero"`
}

// Total returns duration × rate without rounding. Invoice amounts are rounded
// by the LEDES exporter.
func (e TimeEntry) Total() float64 {
	return e.DurationHours * e.Rate
}

// Categorized reports whether the entry carries a code pair.
func (e TimeEntry) Categorized() bool {
	return e.TaskCode != ""
}

// SetCodes assigns the UTBMS code pair and confidence together. Passing two
// empty codes clears the categorization.
func (e *TimeEntry) SetCodes(taskCode, activityCode string, confidence float64) error {
	taskCode = strings.ToUpper(strings.TrimSpace(taskCode))
	activityCode = strings.ToUpper(strings.TrimSpace(activityCode))
	if (taskCode == "") != (activityCode == "") {
		return &ValidationError{EntryID: e.ID, Field: "activity_code", Reason: "task and activity codes must be assigned together"}
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return &ValidationError{EntryID: e.ID, Field: "confidence", Reason: fmt.Sprintf("confidence %v outside [0,1]", confidence)}
	}
	if taskCode == "" {
		confidence = 0
	}
	e.TaskCode = taskCode
	e.ActivityCode = activityCode
	e.Confidence = confidence
	return nil
}

// Validate checks the invariants every processed entry must hold.
func (e TimeEntry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return &ValidationError{Field: "id", Reason: "identifier is required"}
	}
	if math.IsNaN(e.DurationHours) || math.IsInf(e.DurationHours, 0) {
		return &ValidationError{EntryID: e.ID, Field: "duration_hours", Reason: "duration must be a finite number"}
	}
	if e.DurationHours < 0 {
		return &ValidationError{EntryID: e.ID, Field: "duration_hours", Reason: fmt.Sprintf("negative duration %.2f", e.DurationHours)}
	}
	if math.IsNaN(e.Rate) || e.Rate < 0 {
		return &ValidationError{EntryID: e.ID, Field: "rate", Reason: "rate must be a non-negative number"}
	}
	if e.TaskCode != "" && e.ActivityCode == "" {
		return &ValidationError{EntryID: e.ID, Field: "activity_code", Reason: "task code set without activity code"}
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return &ValidationError{EntryID: e.ID, Field: "confidence", Reason: "confidence outside [0,1]"}
	}
	return nil
}

// ValidationError describes why an entry was rejected.
type ValidationError struct {
	EntryID string
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.EntryID == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("entry %s: %s: %s", e.EntryID, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidEntry }

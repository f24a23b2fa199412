package capture

import (
	"fmt"
	"time"
)

// displayLayout is the human-facing date form used in artifact names and
// outcome entries. compactLayout is the numeric form the portal's hidden
// query fields expect.
const (
	displayLayout = "2006-01-02"
	compactLayout = "20060102"
)

// Date identifies one unit of capture work: a single calendar day.
type Date struct {
	t time.Time
}

// NewDate builds a Date from calendar components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a wall-clock time to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses the display form (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(displayLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

// Display returns the YYYY-MM-DD form.
func (d Date) Display() string { return d.t.Format(displayLayout) }

// Compact returns the YYYYMMDD form required by the portal's hidden fields.
func (d Date) Compact() string { return d.t.Format(compactLayout) }

// AddDays returns the date shifted by n calendar days.
func (d Date) AddDays(n int) Date { return DateOf(d.t.AddDate(0, 0, n)) }

// Before reports whether d falls before other.
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }

// Time returns the date as a midnight UTC instant.
func (d Date) Time() time.Time { return d.t }

// Status classifies the terminal result of one date's capture attempt.
type Status string

const (
	// StatusSuccess means the receipt was captured and the artifact written.
	StatusSuccess Status = "success"
	// StatusEmpty means the portal affirmatively reported no receipt data.
	StatusEmpty Status = "empty"
	// StatusSkipped means the artifact already existed and the browser was
	// not touched for this date.
	StatusSkipped Status = "skipped"
	// StatusError means the automation failed operationally (timeout,
	// navigation failure, element not found).
	StatusError Status = "error"
)

// Outcome is one append-only log entry: the result of one date in one run.
type Outcome struct {
	Date      string    `json:"date"`
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ProgressFunc is invoked once per processed date with the number of dates
// completed so far, the batch total, and the date just finished.
type ProgressFunc func(done, total int, date string)

// Credentials is the single credential pair plus the optional account
// selector value, immutable for the process lifetime.
type Credentials struct {
	UserID          string
	Password        string
	AccountSelector string
}

// ArtifactStore is the orchestrator's view of the screenshot directory.
// Existence of an artifact is the sole persisted "already captured" state.
type ArtifactStore interface {
	Exists(d Date) bool
	Path(d Date) string
	Filename(d Date) string
}

package attendance

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/sundayschool/core"
)

// Status is the closed set of attendance marks.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
)

var (
	AllStatuses = []Status{StatusPresent, StatusAbsent, StatusLate}

	errInvalidStatus = errors.New("invalid status, expected one of present, absent, late")
)

// ParseStatus returns the Status named by s (case-insensitive).
func ParseStatus(s string) (Status, error) {
	st := Status(core.CleanString(s, true /* lower */))
	if !st.Valid() {
		return "", errInvalidStatus
	}
	return st, nil
}

// Valid returns true when the status is a supported value.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate:
		return true
	default:
		return false
	}
}

func (s Status) String() string { return string(s) }

// UnmarshalJSON normalises the raw value; unknown statuses are left for Mark.Validate to reject
// so one bad item of a batch does not fail the whole payload.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return errInvalidStatus
	}
	*s = Status(core.CleanString(raw, true /* lower */))
	return nil
}

// FlowerOffering is tracked alongside attendance; it says nothing about presence.
type FlowerOffering struct {
	Brought bool   `json:"brought"`
	Note    string `json:"note,omitempty" validate:"max=500"`
}

// Record is one mark for one student on one calendar day.
// There is at most one Record per (StudentRef, Day).
type Record struct {
	ID         string         `json:"id"`
	StudentRef string         `json:"student_ref"`
	Day        Day            `json:"date"`
	Status     Status         `json:"status"`
	Reason     string         `json:"reason"`
	Flowers    FlowerOffering `json:"flower_offering"`
	MarkedBy   string         `json:"marked_by,omitempty"`
	CreatedAt  time.Time      `json:"created_at"` // UTC
	UpdatedAt  time.Time      `json:"updated_at"` // UTC
}

// apply overwrites the mutable fields of rec with m.
func (rec *Record) apply(m Mark, markedBy string, now time.Time) {
	rec.Status = m.Status
	rec.Reason = m.Reason
	rec.Flowers = m.Flowers
	if markedBy != "" {
		rec.MarkedBy = markedBy
	}
	rec.UpdatedAt = now
}

// Mark is the attendance submitted for one student on a given day.
type Mark struct {
	StudentRef string         `json:"student_ref" validate:"required,notblank"`
	Status     Status         `json:"status" validate:"required,attendance_status"`
	Reason     string         `json:"reason" validate:"max=500"`
	Flowers    FlowerOffering `json:"flower_offering"`
}

func (m *Mark) Validate(validate *validator.Validate) error {
	m.StudentRef = core.CleanString(m.StudentRef)
	m.Reason = core.CleanString(m.Reason)
	m.Flowers.Note = core.CleanString(m.Flowers.Note)
	if m.Status == StatusPresent {
		m.Reason = ""
	}
	return validate.Struct(m)
}

// Filter narrows a range query. Start and End are inclusive; zero values are open.
type Filter struct {
	StudentRef string `query:"student_ref"`
	ClassCode  string `query:"class_code"`
	ClassYear  int    `query:"class_year"`
	Start      Day    `query:"start"`
	End        Day    `query:"end"`
}

func (f *Filter) Clean() {
	f.StudentRef = core.CleanString(f.StudentRef)
	f.ClassCode = core.CleanString(f.ClassCode)
}

// Validate rejects inverted ranges.
func (f Filter) Validate() error {
	if !f.Start.IsZero() && !f.End.IsZero() && f.End.Before(f.Start) {
		return core.NewValidationError(nil, core.FieldError{Field: "end", Error: "end must not be before start"})
	}
	return nil
}

// HasRosterFilter reports whether the filter needs a join against the roster.
func (f Filter) HasRosterFilter() bool {
	return f.ClassCode != "" || f.ClassYear != 0
}

// RecordQuery is what repositories understand: the roster join is already resolved into StudentRefs.
type RecordQuery struct {
	StudentRefs []string // nil = any student; empty non-nil = nobody
	Start       Day
	End         Day
}

// Matches reports whether rec satisfies the query.
func (q RecordQuery) Matches(rec Record) bool {
	if !rec.Day.Within(q.Start, q.End) {
		return false
	}
	if q.StudentRefs == nil {
		return true
	}
	for _, ref := range q.StudentRefs {
		if ref == rec.StudentRef {
			return true
		}
	}
	return false
}

// BatchResult is the outcome of one item of a batch mark.
type BatchResult struct {
	StudentRef string  `json:"student_ref"`
	Success    bool    `json:"success"`
	Record     *Record `json:"record,omitempty"`
	Error      string  `json:"error,omitempty"`
}

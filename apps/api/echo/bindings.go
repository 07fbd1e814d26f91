package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sundayschool/core"
	"github.com/trezcool/sundayschool/core/attendance"
	"github.com/trezcool/sundayschool/core/student"
)

type (
	markRequest struct {
		Date attendance.Day `json:"date"`
		attendance.Mark
	}

	batchRequest struct {
		Date  attendance.Day    `json:"date"`
		Marks []attendance.Mark `json:"marks"`
	}

	batchResponse struct {
		Date      attendance.Day           `json:"date"`
		Succeeded int                      `json:"succeeded"`
		Failed    int                      `json:"failed"`
		Results   []attendance.BatchResult `json:"results"`
	}

	latestDayResponse struct {
		Date    attendance.Day `json:"date"` // null without data
		HasData bool           `json:"has_data"`
	}

	snapshotResponse struct {
		HasData bool `json:"has_data"`
		attendance.ClassSnapshot
	}

	// reportQuery holds the query params shared by the report endpoints.
	reportQuery struct {
		Date      attendance.Day `query:"date"`
		Start     attendance.Day `query:"start"`
		End       attendance.Day `query:"end"`
		ClassCode string         `query:"class_code"`
		ClassYear int            `query:"class_year"`
	}
)

func (q *reportQuery) Bind(ctx echo.Context) error {
	if err := ctx.Bind(q); err != nil {
		return errors.Wrap(err, "binding report query")
	}
	q.ClassCode = core.CleanString(q.ClassCode)
	if !q.Start.IsZero() && !q.End.IsZero() && q.End.Before(q.Start) {
		return core.NewValidationError(nil, core.FieldError{Field: "end", Error: "end must not be before start"})
	}
	return nil
}

func (q reportQuery) rosterFilter() student.RosterFilter {
	return student.RosterFilter{ClassCode: q.ClassCode, ClassYear: q.ClassYear}
}

func (q reportQuery) filter() attendance.Filter {
	return attendance.Filter{
		ClassCode: q.ClassCode,
		ClassYear: q.ClassYear,
		Start:     q.Start,
		End:       q.End,
	}
}

// requireRange fails unless both start and end were given.
func (q reportQuery) requireRange() error {
	var flds []core.FieldError
	if q.Start.IsZero() {
		flds = append(flds, core.FieldError{Field: "start", Error: "this field is required"})
	}
	if q.End.IsZero() {
		flds = append(flds, core.FieldError{Field: "end", Error: "this field is required"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

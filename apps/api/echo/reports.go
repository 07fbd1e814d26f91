package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sundayschool/core/attendance"
	"github.com/trezcool/sundayschool/core/student"
)

type reportApi struct {
	ledger   *attendance.Service
	students *student.Service
	calendar attendance.ClassDayCounter // nil: every Sunday is a class day
}

func registerReportAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	ledger *attendance.Service,
	students *student.Service,
	calendar *attendance.Calendar,
) {
	api := reportApi{ledger: ledger, students: students}
	if calendar != nil {
		api.calendar = calendar
	}

	rg := g.Group("/attendance/reports", jwt)
	rg.GET("/daily", api.daily)
	rg.GET("/range", api.dateRange)
	rg.GET("/students", api.classStudents)
	rg.GET("/students/:ref", api.studentHistory)
	rg.GET("/latest", api.latest)
	rg.GET("/latest-month", api.latestMonth)
	rg.GET("/period", api.period)
}

// Handlers

func (api *reportApi) daily(ctx echo.Context) error {
	var q reportQuery
	if err := q.Bind(ctx); err != nil {
		return err
	}
	if q.Date.IsZero() {
		q.Date = api.ledger.Today()
	}

	roster, err := api.students.Roster(ctx.Request().Context(), q.rosterFilter())
	if err != nil {
		return errors.Wrap(err, "querying roster")
	}
	records, err := api.ledger.QueryRange(ctx.Request().Context(), attendance.Filter{
		ClassCode: q.ClassCode,
		ClassYear: q.ClassYear,
		Start:     q.Date,
		End:       q.Date,
	})
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, attendance.ClassSnapshot{
		Date:    q.Date,
		Classes: attendance.DailyClassRollup(records, roster, q.Date),
	})
}

func (api *reportApi) dateRange(ctx echo.Context) error {
	var q reportQuery
	if err := q.Bind(ctx); err != nil {
		return err
	}
	if err := q.requireRange(); err != nil {
		return err
	}

	// the class filter is already applied by QueryRange
	records, err := api.ledger.QueryRange(ctx.Request().Context(), q.filter())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, attendance.RangeReport(records, nil, q.Start, q.End))
}

func (api *reportApi) studentHistory(ctx echo.Context) error {
	var q reportQuery
	if err := q.Bind(ctx); err != nil {
		return err
	}

	stdnt, err := api.students.Get(ctx.Request().Context(), ctx.Param("ref"))
	if err != nil {
		return err
	}
	records, err := api.ledger.QueryRange(ctx.Request().Context(), attendance.Filter{
		StudentRef: stdnt.Ref,
		Start:      q.Start,
		End:        q.End,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, attendance.StudentHistory(records, stdnt.Ref, q.Start, q.End))
}

func (api *reportApi) classStudents(ctx echo.Context) error {
	var q reportQuery
	if err := q.Bind(ctx); err != nil {
		return err
	}

	roster, err := api.students.Roster(ctx.Request().Context(), q.rosterFilter())
	if err != nil {
		return errors.Wrap(err, "querying roster")
	}
	records, err := api.ledger.QueryRange(ctx.Request().Context(), q.filter())
	if err != nil {
		return err
	}

	summaries, err := attendance.ClassStudentSummaries(ctx.Request().Context(), records, roster, q.Start, q.End)
	if err != nil {
		return errors.Wrap(err, "summarising students")
	}
	return ctx.JSON(http.StatusOK, summaries)
}

func (api *reportApi) latest(ctx echo.Context) error {
	var q reportQuery
	if err := q.Bind(ctx); err != nil {
		return err
	}

	roster, err := api.students.Roster(ctx.Request().Context(), q.rosterFilter())
	if err != nil {
		return errors.Wrap(err, "querying roster")
	}
	snap, ok, err := api.ledger.LatestClassSnapshot(ctx.Request().Context(), roster)
	if err != nil {
		return err
	}
	if !ok {
		snap.Classes = map[string]attendance.ClassRollup{}
	}
	return ctx.JSON(http.StatusOK, snapshotResponse{HasData: ok, ClassSnapshot: snap})
}

func (api *reportApi) latestMonth(ctx echo.Context) error {
	var q reportQuery
	if err := q.Bind(ctx); err != nil {
		return err
	}

	day, ok, err := api.ledger.LatestDay(ctx.Request().Context())
	if err != nil {
		return err
	}
	if !ok {
		return ctx.JSON(http.StatusOK, []attendance.TrendPoint{})
	}

	var roster []student.Student // nil: whole school
	if filter := q.rosterFilter(); !filter.IsEmpty() {
		if roster, err = api.students.Roster(ctx.Request().Context(), filter); err != nil {
			return errors.Wrap(err, "querying roster")
		}
	}
	records, err := api.ledger.QueryRange(ctx.Request().Context(), attendance.Filter{
		Start: day.FirstOfMonth(),
		End:   day.LastOfMonth(),
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, attendance.LatestMonthTrend(records, roster, q.ClassCode))
}

func (api *reportApi) period(ctx echo.Context) error {
	var q reportQuery
	if err := q.Bind(ctx); err != nil {
		return err
	}

	roster, err := api.students.Roster(ctx.Request().Context(), q.rosterFilter())
	if err != nil {
		return errors.Wrap(err, "querying roster")
	}
	records, err := api.ledger.QueryRange(ctx.Request().Context(), q.filter())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, attendance.PeriodClassRates(records, roster, q.Start, q.End, api.calendar))
}

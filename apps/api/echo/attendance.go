package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sundayschool/core/attendance"
)

type attendanceApi struct {
	ledger *attendance.Service
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, ledger *attendance.Service) {
	api := attendanceApi{ledger: ledger}

	ag := g.Group("/attendance", jwt)
	ag.GET("", api.query)
	ag.POST("/mark", api.mark)
	ag.POST("/batch", api.markBatch)
	ag.GET("/latest-day", api.latestDay)
	ag.DELETE("/:id", api.destroy, adminMiddleware())
	ag.DELETE("/students/:ref", api.forgetStudent, adminMiddleware())
}

// Handlers

func (api *attendanceApi) mark(ctx echo.Context) error {
	var data markRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to markRequest")
	}
	if err := api.ledger.CheckStudent(ctx.Request().Context(), data.StudentRef); err != nil {
		return err
	}

	rec, err := api.ledger.MarkOne(ctx.Request().Context(), data.Date, data.Mark, contextStaff(ctx).ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) markBatch(ctx echo.Context) error {
	var data batchRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to batchRequest")
	}

	results, err := api.ledger.MarkBatch(ctx.Request().Context(), data.Date, data.Marks, contextStaff(ctx).ID)
	if err != nil {
		return err
	}

	resp := batchResponse{Date: data.Date, Results: results}
	for _, res := range results {
		if res.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	var filter attendance.Filter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to attendance.Filter")
	}

	records, err := api.ledger.QueryRange(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) latestDay(ctx echo.Context) error {
	day, ok, err := api.ledger.LatestDay(ctx.Request().Context())
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, latestDayResponse{Date: day, HasData: ok})
}

func (api *attendanceApi) destroy(ctx echo.Context) error {
	if err := api.ledger.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) forgetStudent(ctx echo.Context) error {
	n, err := api.ledger.ForgetStudent(ctx.Request().Context(), ctx.Param("ref"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"deleted": n})
}

package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/sundayschool/core/attendance"
	"github.com/trezcool/sundayschool/core/student"
)

type studentApi struct {
	svc    *student.Service
	ledger *attendance.Service
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *student.Service, ledger *attendance.Service) {
	api := studentApi{svc: svc, ledger: ledger}

	sg := g.Group("/students", jwt)
	sg.GET("", api.query)
	sg.PUT("", api.save, adminMiddleware())
	sg.GET("/:ref", api.retrieve)
	sg.DELETE("/:ref", api.destroy, adminMiddleware())
}

// Handlers

func (api *studentApi) query(ctx echo.Context) error {
	var filter student.RosterFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to student.RosterFilter")
	}

	roster, err := api.svc.Roster(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying roster")
	}
	return ctx.JSON(http.StatusOK, roster)
}

func (api *studentApi) save(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to student.NewStudent")
	}

	stdnt, err := api.svc.Save(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stdnt)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	stdnt, err := api.svc.Get(ctx.Request().Context(), ctx.Param("ref"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stdnt)
}

// destroy removes the student's attendance history, then the student.
// The roster entry goes last so a failed call can be retried.
func (api *studentApi) destroy(ctx echo.Context) error {
	ref := ctx.Param("ref")
	if _, err := api.ledger.ForgetStudent(ctx.Request().Context(), ref); err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), ref); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

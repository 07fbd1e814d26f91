package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/sundayschool/core"
	"github.com/trezcool/sundayschool/core/attendance"
	"github.com/trezcool/sundayschool/core/student"
	"github.com/trezcool/sundayschool/services/logger"
)

func Test_newAppHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantCode     int
		wantBody     string
		wantShutdown bool
		wantLogged   bool
	}{
		{
			name:     "record not found",
			err:      errors.Wrap(attendance.ErrNotFound, "deleting"),
			wantCode: http.StatusNotFound,
			wantBody: `{"error":"attendance record not found"}`,
		},
		{
			name:     "student not found",
			err:      errors.Wrap(student.ErrNotFound, "finding student"),
			wantCode: http.StatusNotFound,
			wantBody: `{"error":"student not found"}`,
		},
		{
			name:     "validation error",
			err:      core.NewValidationError(nil, core.FieldError{Field: "date", Error: "this field is required"}),
			wantCode: http.StatusBadRequest,
			wantBody: `{"date":"this field is required"}`,
		},
		{
			name:     "forbidden",
			err:      errHttpForbidden,
			wantCode: http.StatusForbidden,
			wantBody: `{"error":"permission denied"}`,
		},
		{
			name:       "server error",
			err:        errors.New("boom"),
			wantCode:   http.StatusInternalServerError,
			wantBody:   `{"error":"Internal Server Error"}`,
			wantLogged: true,
		},
		{
			name:         "lost database",
			err:          errors.Wrap(core.NewShutdownError("database connection lost"), "querying"),
			wantCode:     http.StatusInternalServerError,
			wantBody:     `{"error":"Internal Server Error"}`,
			wantShutdown: true,
			wantLogged:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := logsvc.NewConsoleLoggerMock()
			var shutdown bool
			handler := newAppHTTPErrorHandler(logger, core.NewTranslator(), func() { shutdown = true })

			e := echo.New()
			rec := httptest.NewRecorder()
			handler(tt.err, e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
			assert.Equal(t, tt.wantShutdown, shutdown)
			assert.Equal(t, tt.wantLogged, len(logger.Entries("ERROR")) > 0)
		})
	}
}

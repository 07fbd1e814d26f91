package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/trezcool/sundayschool/apps/api/echo"
	"github.com/trezcool/sundayschool/core"
	"github.com/trezcool/sundayschool/core/attendance"
	"github.com/trezcool/sundayschool/core/student"
	"github.com/trezcool/sundayschool/services/logger"
	"github.com/trezcool/sundayschool/storage/database/inmem"
	"github.com/trezcool/sundayschool/tests"
)

var (
	conf = &core.Config{
		AppName:   "Sunday School",
		TestMode:  true,
		SecretKey: "test-secret",
		Server:    core.ServerConfig{JWTExpirationDelta: time.Hour},
	}

	teacher = core.Staff{ID: "staff-1", Username: "teacher", Email: "teacher@test.cd"}
	admin   = core.Staff{ID: "staff-2", Username: "admin", Email: "admin@test.cd", IsAdmin: true}

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

type testApp struct {
	server  *echoapi.Server
	records attendance.Repository
	roster  student.Registry
	logger  *logsvc.ConsoleLoggerMock
}

func setup(t *testing.T, holidays ...string) testApp {
	db := inmemdb.Open()
	app := testApp{
		records: inmemdb.NewAttendanceRepository(db),
		roster:  inmemdb.NewStudentRepository(db),
		logger:  logsvc.NewConsoleLoggerMock(),
	}

	validate, translator := testutil.NewValidator()
	ledger := attendance.NewService(app.records, app.roster, validate, app.logger, attendance.Options{})
	students := student.NewService(app.roster, validate)

	var cal *attendance.Calendar
	if len(holidays) > 0 {
		var err error
		if cal, err = attendance.NewCalendar(holidays); err != nil {
			t.Fatalf("NewCalendar() failed: %v", err)
		}
	}

	app.server = echoapi.NewServer(conf, app.logger, validate, translator, ledger, students, cal)
	return app
}

func (app testApp) serve(req *http.Request, rec *httptest.ResponseRecorder) {
	app.server.ServeHTTP(rec, req)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, staff core.Staff) string {
	token, err := echoapi.GenerateToken(echoapi.NewStaffClaims(staff, conf), conf.SecretKey)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app testApp, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}

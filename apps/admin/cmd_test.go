package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sundayschool/apps/api/echo"
	"github.com/trezcool/sundayschool/core"
	"github.com/trezcool/sundayschool/core/attendance"
	"github.com/trezcool/sundayschool/core/student"
	"github.com/trezcool/sundayschool/services/logger"
	"github.com/trezcool/sundayschool/storage/database"
	"github.com/trezcool/sundayschool/storage/database/sqlboiler"
	"github.com/trezcool/sundayschool/storage/database/sqlx"
	"github.com/trezcool/sundayschool/tests"
)

var (
	stdntRepo student.Registry
	recRepo   attendance.Repository
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	conf := &core.Config{
		AppName:   "Sunday School",
		TestMode:  true,
		SecretKey: "test-secret",
		Server:    core.ServerConfig{JWTExpirationDelta: time.Hour},
		Database:  core.DatabaseConfig{Engine: database.EngineSQLite},
	}

	// set up DB & repos
	db := testutil.PrepareDB(t)
	stdntRepo = boiledrepos.NewStudentRepository(db, database.EngineSQLite)
	recRepo = sqlxrepos.NewAttendanceRepository(db)

	validate, _ := testutil.NewValidator()
	var out bytes.Buffer

	// start CLI
	return &commandLine{
		conf:     conf,
		db:       db,
		out:      &out,
		students: student.NewService(stdntRepo, validate),
		ledger:   attendance.NewService(recRepo, stdntRepo, validate, logsvc.NewConsoleLoggerMock(), attendance.Options{}),
	}, &out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if !strings.Contains(err.Error(), tt.wantErrStr) {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			} else if tt.wantErr != nil || tt.wantErrStr != "" {
				t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, out := setup(t)

	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "token: no id", args: []string{"token", "-username", "teacher"}, wantErr: errHelp},
		{name: "importroster: no file", args: []string{"importroster"}, wantErr: errHelp},
		{name: "forgetstudent: no ref", args: []string{"forgetstudent"}, wantErr: errHelp},
	})
	assert.Contains(t, out.String(), "Usage:")
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	origRunFunc := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = origRunFunc })

	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	runCLITests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "guardians", "sql"}},
	})
}

func Test_commandLine_token(t *testing.T) {
	cli, out := setup(t)

	require.NoError(t, cli.run([]string{"admin", "token", "-id", "staff-7", "-username", "teacher", "-admin"}))

	var claims echoapi.Claims
	token, err := jwt.ParseWithClaims(strings.TrimSpace(out.String()), &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cli.conf.SecretKey), nil
	})
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, core.Staff{ID: "staff-7", Username: "teacher", IsAdmin: true}, claims.Staff())
}

func Test_commandLine_importRoster(t *testing.T) {
	cli, out := setup(t)
	dir := t.TempDir()

	writeCSV := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}
	valid := writeCSV("valid.csv", "ref,name,class_code,class_year\ns1,Ada,A,1\ns2, Grace ,A,\ns3,Linus,B,2\n")
	badHeader := writeCSV("header.csv", "id,name,class,year\ns1,Ada,A,1\n")
	badYear := writeCSV("year.csv", "ref,name,class_code,class_year\ns4,Ken,C,first\n")
	badClass := writeCSV("class.csv", "ref,name,class_code,class_year\ns5,Rob,C-1,1\n")

	runCLITests(t, cli, []cliTest{
		{name: "missing file", args: []string{"importroster", "-file", filepath.Join(dir, "nope.csv")}, wantErrStr: "opening roster file"},
		{name: "bad header", args: []string{"importroster", "-file", badHeader}, wantErrStr: "roster header must be ref,name,class_code,class_year"},
		{name: "bad year", args: []string{"importroster", "-file", badYear}, wantErrStr: "line 2: class_year must be a number (got 'first')"},
		{name: "bad class code", args: []string{"importroster", "-file", badClass}, wantErrStr: "line 2"},
		{name: "valid", args: []string{"importroster", "-file", valid}},
	})
	assert.Contains(t, out.String(), "3 students saved")

	roster, err := stdntRepo.QueryRoster(context.Background(), student.RosterFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2", "s3"}, student.Refs(roster))
	assert.Equal(t, "Grace", roster[1].Name)
	assert.Equal(t, 0, roster[1].ClassYear)
	assert.Equal(t, 2, roster[2].ClassYear)
}

func Test_commandLine_forgetStudent(t *testing.T) {
	cli, out := setup(t)

	testutil.CreateStudent(t, stdntRepo, "s1", "A", 1)
	testutil.CreateStudent(t, stdntRepo, "s2", "A", 1)
	testutil.CreateRecord(t, recRepo, "s1", "2024-06-02", attendance.StatusPresent)
	testutil.CreateRecord(t, recRepo, "s1", "2024-06-09", attendance.StatusLate)
	testutil.CreateRecord(t, recRepo, "s2", "2024-06-09", attendance.StatusAbsent)

	runCLITests(t, cli, []cliTest{
		{name: "forget", args: []string{"forgetstudent", "-ref", "s1"}},
		{name: "unknown student", args: []string{"forgetstudent", "-ref", "s1"}, wantErr: student.ErrNotFound},
	})
	assert.Contains(t, out.String(), "student s1 deleted with 2 attendance records")

	records, err := recRepo.QueryRecords(context.Background(), attendance.RecordQuery{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "s2", records[0].StudentRef)
}

func Test_commandLine_forgetStudent_keepsStudentOnFailure(t *testing.T) {
	cli, _ := setup(t)

	testutil.CreateStudent(t, stdntRepo, "s1", "A", 1)
	_, err := cli.db.Exec("DROP TABLE attendance_records")
	require.NoError(t, err)

	assert.Error(t, cli.run([]string{"admin", "forgetstudent", "-ref", "s1"}))

	stdnt, err := cli.students.Get(context.Background(), "s1")
	require.NoError(t, err, "the student must survive a failed history purge")
	assert.Equal(t, "s1", stdnt.Ref)
}

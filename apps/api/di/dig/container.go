package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/trezcool/sundayschool/apps/api/echo"
	"github.com/trezcool/sundayschool/core"
	"github.com/trezcool/sundayschool/core/attendance"
	"github.com/trezcool/sundayschool/core/student"
	"github.com/trezcool/sundayschool/services/logger"
	"github.com/trezcool/sundayschool/storage/database"
	"github.com/trezcool/sundayschool/storage/database/inmem"
	"github.com/trezcool/sundayschool/storage/database/sqlboiler"
	"github.com/trezcool/sundayschool/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Repositories are the storage implementations picked by the configured database engine.
type Repositories struct {
	dig.Out
	Records attendance.Repository
	Roster  student.Registry
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	if conf.Debug {
		logger.Enable(false)
	}
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	if conf.Debug {
		logger.Enable(false)
	}
	return logger
}

// newDB returns nil with the memory engine.
func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	if conf.Database.Engine == database.EngineMemory {
		loggerParam.Logger.Warn("using the in-memory database: nothing will be persisted")
		return nil
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db, conf.Database.Engine); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newRepositories(conf *core.Config, db *sqlx.DB) Repositories {
	if db == nil {
		mem := inmemdb.Open()
		return Repositories{
			Records: inmemdb.NewAttendanceRepository(mem),
			Roster:  inmemdb.NewStudentRepository(mem),
		}
	}
	return Repositories{
		Records: sqlxrepos.NewAttendanceRepository(db),
		Roster:  boiledrepos.NewStudentRepository(db, conf.Database.Engine),
	}
}

func newLedger(
	conf *core.Config,
	repo attendance.Repository,
	roster student.Registry,
	validate *validator.Validate,
	logger core.Logger,
) *attendance.Service {
	return attendance.NewService(repo, roster, validate, logger, attendance.OptionsFromConfig(conf))
}

func newCalendar(conf *core.Config) (*attendance.Calendar, error) {
	return attendance.NewCalendar(conf.Attendance.Holidays)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newRepositories))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newCalendar))
	must(c.Provide(student.NewService))
	must(c.Provide(newLedger))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}

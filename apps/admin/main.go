package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/sundayschool/core"
	"github.com/trezcool/sundayschool/core/attendance"
	"github.com/trezcool/sundayschool/core/student"
	"github.com/trezcool/sundayschool/services/logger"
	"github.com/trezcool/sundayschool/storage/database"
	"github.com/trezcool/sundayschool/storage/database/sqlboiler"
	"github.com/trezcool/sundayschool/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()
	if conf.Database.Engine == database.EngineMemory {
		logger.Fatal("the admin commands need a persistent database engine")
	}

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)

	roster := boiledrepos.NewStudentRepository(db, conf.Database.Engine)
	ledger := attendance.NewService(
		sqlxrepos.NewAttendanceRepository(db),
		roster,
		validate,
		logsvc.NewConsoleLogger(logger),
		attendance.OptionsFromConfig(conf),
	)

	// start CLI
	cli := commandLine{
		conf:     conf,
		db:       db,
		out:      os.Stdout,
		students: student.NewService(roster, validate),
		ledger:   ledger,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		db.Close()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}

package main

import (
	"github.com/trezcool/goose"

	"github.com/trezcool/sundayschool/fs"
	"github.com/trezcool/sundayschool/storage/database"
)

var gooseRunFunc = goose.RunFS // mockable

func (cli *commandLine) migrate(args []string) error {
	if err := goose.SetDialect(database.Dialect(cli.conf.Database.Engine)); err != nil {
		return err
	}
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.db.DB, appfs.FS, "migrations", arguments...)
}

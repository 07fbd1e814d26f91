package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/sundayschool/core"
	"github.com/trezcool/sundayschool/core/attendance"
	"github.com/trezcool/sundayschool/core/student"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf     *core.Config
	db       *sqlx.DB
	out      io.Writer
	students *student.Service
	ledger   *attendance.Service
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  token -id ID [-username USERNAME] [-email EMAIL] [-admin] - issue an API token for a staff member")
	fmt.Fprintln(cli.out, "  importroster -file FILE.csv - add or replace roster entries (ref,name,class_code,class_year)")
	fmt.Fprintln(cli.out, "  forgetstudent -ref REF - delete a student and their attendance history")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)
	tokenID := tokenCmd.String("id", "", "The staff member's id, recorded as marked_by on their attendance marks.")
	tokenUname := tokenCmd.String("username", "", "The staff member's username.")
	tokenEmail := tokenCmd.String("email", "", "The staff member's email.")
	tokenAdmin := tokenCmd.Bool("admin", false, "Allow deletions.")

	importCmd := flag.NewFlagSet("importroster", flag.ExitOnError)
	importFile := importCmd.String("file", "", "The roster CSV file, with a header row.")

	forgetCmd := flag.NewFlagSet("forgetstudent", flag.ExitOnError)
	forgetRef := forgetCmd.String("ref", "", "The student's ref.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenID == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.issueToken(core.Staff{ID: *tokenID, Username: *tokenUname, Email: *tokenEmail, IsAdmin: *tokenAdmin})
	case "importroster":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importRosterFile(*importFile)
	case "forgetstudent":
		if err := forgetCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *forgetRef == "" {
			forgetCmd.Usage()
			return errHelp
		}
		return cli.forgetStudent(*forgetRef)
	default:
		cli.printUsage()
		return errHelp
	}
}

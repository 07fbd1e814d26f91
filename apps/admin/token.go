package main

import (
	"fmt"

	"github.com/trezcool/sundayschool/apps/api/echo"
	"github.com/trezcool/sundayschool/core"
)

func (cli *commandLine) issueToken(staff core.Staff) error {
	token, err := echoapi.GenerateToken(echoapi.NewStaffClaims(staff, cli.conf), cli.conf.SecretKey)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}

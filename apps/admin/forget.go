package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) forgetStudent(ref string) error {
	ctx := context.Background()
	n, err := cli.ledger.ForgetStudent(ctx, ref)
	if err != nil {
		return err
	}
	if err := cli.students.Delete(ctx, ref); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "student %s deleted with %d attendance records\n", ref, n)
	return nil
}

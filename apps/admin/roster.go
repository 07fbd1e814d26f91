package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/sundayschool/core/student"
)

var rosterHeader = []string{"ref", "name", "class_code", "class_year"}

func (cli *commandLine) importRosterFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening roster file")
	}
	defer f.Close()
	return cli.importRoster(f)
}

// importRoster saves every row of a roster CSV; it stops at the first invalid row.
func (cli *commandLine) importRoster(r io.Reader) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(rosterHeader)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return errors.Wrap(err, "reading roster header")
	}
	for i, col := range rosterHeader {
		if strings.ToLower(strings.TrimSpace(header[i])) != col {
			return fmt.Errorf("roster header must be %s", strings.Join(rosterHeader, ","))
		}
	}

	var saved int
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "reading roster")
		}

		ns := student.NewStudent{Ref: row[0], Name: row[1], ClassCode: row[2]}
		if year := strings.TrimSpace(row[3]); year != "" {
			if ns.ClassYear, err = strconv.Atoi(year); err != nil {
				return fmt.Errorf("line %d: class_year must be a number (got '%s')", line, year)
			}
		}
		if _, err = cli.students.Save(context.Background(), ns); err != nil {
			return errors.Wrapf(err, "line %d", line)
		}
		saved++
	}

	fmt.Fprintf(cli.out, "%d students saved\n", saved)
	return nil
}

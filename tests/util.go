package testutil

import (
	"context"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/sundayschool/core"
	"github.com/trezcool/sundayschool/core/attendance"
	"github.com/trezcool/sundayschool/core/student"
	"github.com/trezcool/sundayschool/storage/database"
)

// NewValidator returns a validator with every app validator registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)
	return validate, translator
}

// PrepareDB opens a private, migrated in-memory sqlite database, closed at the end of the test.
func PrepareDB(t *testing.T) *sqlx.DB {
	conf := &core.Config{Database: core.DatabaseConfig{Engine: database.EngineSQLite, Path: ":memory:"}}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db, database.EngineSQLite); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateStudent(t *testing.T, reg student.Registry, ref, classCode string, classYear int, createdAt ...time.Time) student.Student {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	s, err := reg.SaveStudent(context.Background(), student.Student{
		Ref:       ref,
		Name:      "Student " + ref,
		ClassCode: classCode,
		ClassYear: classYear,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return s
}

// CreateRecord stores a record directly, bypassing the ledger.
func CreateRecord(t *testing.T, repo attendance.Repository, ref, day string, status attendance.Status, flowers ...bool) attendance.Record {
	now := time.Now().UTC()
	rec := attendance.Record{
		ID:         ref + "-" + day,
		StudentRef: ref,
		Day:        attendance.MustParseDay(day),
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if len(flowers) > 0 {
		rec.Flowers.Brought = flowers[0]
	}
	rec, err := repo.InsertRecord(context.Background(), rec)
	if err != nil {
		t.Fatalf("CreateRecord() failed: %v", err)
	}
	return rec
}

// Record builds an unsaved record for aggregation tests.
func Record(ref, day string, status attendance.Status, flowers ...bool) attendance.Record {
	rec := attendance.Record{
		ID:         ref + "-" + day,
		StudentRef: ref,
		Day:        attendance.MustParseDay(day),
		Status:     status,
	}
	if len(flowers) > 0 {
		rec.Flowers.Brought = flowers[0]
	}
	return rec
}

func Student(ref, classCode string, classYear ...int) student.Student {
	s := student.Student{Ref: ref, Name: "Student " + ref, ClassCode: classCode}
	if len(classYear) > 0 {
		s.ClassYear = classYear[0]
	}
	return s
}

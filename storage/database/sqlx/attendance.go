package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sundayschool/core/attendance"
	"github.com/trezcool/sundayschool/storage/database"
)

const recordColumns = "id, student_ref, day, status, reason, flower_brought, flower_note, marked_by, created_at, updated_at"

type attendanceRepository struct {
	exec sqlx.ExtContext
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

// NewAttendanceRepository works on any *sqlx.DB or *sqlx.Tx.
func NewAttendanceRepository(exec sqlx.ExtContext) *attendanceRepository {
	return &attendanceRepository{exec: exec}
}

type recordRow struct {
	ID            string         `db:"id"`
	StudentRef    string         `db:"student_ref"`
	Day           attendance.Day `db:"day"`
	Status        string         `db:"status"`
	Reason        string         `db:"reason"`
	FlowerBrought bool           `db:"flower_brought"`
	FlowerNote    null.String    `db:"flower_note"`
	MarkedBy      null.String    `db:"marked_by"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func toRow(rec attendance.Record) recordRow {
	return recordRow{
		ID:            rec.ID,
		StudentRef:    rec.StudentRef,
		Day:           rec.Day,
		Status:        string(rec.Status),
		Reason:        rec.Reason,
		FlowerBrought: rec.Flowers.Brought,
		FlowerNote:    null.NewString(rec.Flowers.Note, rec.Flowers.Note != ""),
		MarkedBy:      null.NewString(rec.MarkedBy, rec.MarkedBy != ""),
		CreatedAt:     rec.CreatedAt.UTC(),
		UpdatedAt:     rec.UpdatedAt.UTC(),
	}
}

func (row recordRow) record() attendance.Record {
	return attendance.Record{
		ID:         row.ID,
		StudentRef: row.StudentRef,
		Day:        row.Day,
		Status:     attendance.Status(row.Status),
		Reason:     row.Reason,
		Flowers:    attendance.FlowerOffering{Brought: row.FlowerBrought, Note: row.FlowerNote.String},
		MarkedBy:   row.MarkedBy.String,
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}
}

// trapNoRowsErr maps "no rows" to attendance.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return attendance.ErrNotFound
	}
	return errors.Wrap(database.TrapConnErr(err), msg)
}

func (repo *attendanceRepository) GetRecord(ctx context.Context, studentRef string, day attendance.Day) (attendance.Record, error) {
	q := repo.exec.Rebind("SELECT " + recordColumns + " FROM attendance_records WHERE student_ref = ? AND day = ?")
	var row recordRow
	if err := sqlx.GetContext(ctx, repo.exec, &row, q, studentRef, day); err != nil {
		return attendance.Record{}, trapNoRowsErr(err, "selecting attendance record")
	}
	return row.record(), nil
}

func (repo *attendanceRepository) InsertRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	q := `INSERT INTO attendance_records (` + recordColumns + `)
		VALUES (:id, :student_ref, :day, :status, :reason, :flower_brought, :flower_note, :marked_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, q, toRow(rec)); err != nil {
		if database.IsUniqueViolation(err) {
			return attendance.Record{}, attendance.ErrConflict
		}
		return attendance.Record{}, errors.Wrap(err, "inserting attendance record")
	}
	return toRow(rec).record(), nil
}

func (repo *attendanceRepository) UpdateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	q := `UPDATE attendance_records
		SET status = :status, reason = :reason, flower_brought = :flower_brought, flower_note = :flower_note,
			marked_by = :marked_by, updated_at = :updated_at
		WHERE student_ref = :student_ref AND day = :day`
	res, err := sqlx.NamedExecContext(ctx, repo.exec, q, toRow(rec))
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "updating attendance record")
	}
	if n, err := res.RowsAffected(); err != nil {
		return attendance.Record{}, errors.Wrap(err, "updating attendance record")
	} else if n == 0 {
		return attendance.Record{}, attendance.ErrNotFound
	}
	return repo.GetRecord(ctx, rec.StudentRef, rec.Day)
}

func (repo *attendanceRepository) QueryRecords(ctx context.Context, rq attendance.RecordQuery) ([]attendance.Record, error) {
	records := make([]attendance.Record, 0)
	if rq.StudentRefs != nil && len(rq.StudentRefs) == 0 {
		return records, nil
	}

	where := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	if !rq.Start.IsZero() {
		where = append(where, "day >= ?")
		args = append(args, rq.Start)
	}
	if !rq.End.IsZero() {
		where = append(where, "day <= ?")
		args = append(args, rq.End)
	}
	if rq.StudentRefs != nil {
		where = append(where, "student_ref IN (?)")
		args = append(args, rq.StudentRefs)
	}

	q := "SELECT " + recordColumns + " FROM attendance_records"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY day, student_ref"

	var err error
	if rq.StudentRefs != nil {
		if q, args, err = sqlx.In(q, args...); err != nil {
			return nil, errors.Wrap(err, "expanding student refs")
		}
	}

	var rows []recordRow
	if err = sqlx.SelectContext(ctx, repo.exec, &rows, repo.exec.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(database.TrapConnErr(err), "selecting attendance records")
	}
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (repo *attendanceRepository) LatestDay(ctx context.Context) (attendance.Day, bool, error) {
	var day attendance.Day
	if err := sqlx.GetContext(ctx, repo.exec, &day, "SELECT MAX(day) FROM attendance_records"); err != nil {
		return attendance.Day{}, false, errors.Wrap(database.TrapConnErr(err), "selecting latest attendance day")
	}
	return day, !day.IsZero(), nil
}

func (repo *attendanceRepository) DeleteRecord(ctx context.Context, id string) error {
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind("DELETE FROM attendance_records WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting attendance record")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting attendance record")
	}
	if n == 0 {
		return attendance.ErrNotFound
	}
	return nil
}

func (repo *attendanceRepository) DeleteStudentRecords(ctx context.Context, studentRef string) (int, error) {
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind("DELETE FROM attendance_records WHERE student_ref = ?"), studentRef)
	if err != nil {
		return 0, errors.Wrap(err, "deleting student attendance records")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting student attendance records")
	}
	return int(n), nil
}

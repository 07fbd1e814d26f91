package boiledrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/drivers"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/sundayschool/core"
	"github.com/trezcool/sundayschool/core/student"
	"github.com/trezcool/sundayschool/storage/database"
)

const studentTable = "students"

var studentColumns = struct {
	Ref       string
	Name      string
	ClassCode string
	ClassYear string
	CreatedAt string
	UpdatedAt string
}{
	Ref:       "ref",
	Name:      "name",
	ClassCode: "class_code",
	ClassYear: "class_year",
	CreatedAt: "created_at",
	UpdatedAt: "updated_at",
}

type studentRepository struct {
	exec    core.DBExecutor
	engine  string
	dialect drivers.Dialect
}

var _ student.Registry = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(exec core.DBExecutor, engine string) *studentRepository {
	return &studentRepository{
		exec:   exec,
		engine: engine,
		dialect: drivers.Dialect{
			LQ:                   '"',
			RQ:                   '"',
			UseIndexPlaceholders: database.Dialect(engine) == "postgres",
		},
	}
}

type studentRow struct {
	Ref       string      `boil:"ref"`
	Name      null.String `boil:"name"`
	ClassCode string      `boil:"class_code"`
	ClassYear int         `boil:"class_year"`
	CreatedAt null.Time   `boil:"created_at"`
	UpdatedAt null.Time   `boil:"updated_at"`
}

func (repo studentRepository) boil(s student.Student) studentRow {
	return studentRow{
		Ref:       s.Ref,
		Name:      null.StringFrom(s.Name),
		ClassCode: s.ClassCode,
		ClassYear: s.ClassYear,
		CreatedAt: null.NewTime(s.CreatedAt.UTC(), !s.CreatedAt.IsZero()),
		UpdatedAt: null.NewTime(s.UpdatedAt.UTC(), !s.UpdatedAt.IsZero()),
	}
}

func (repo studentRepository) unboil(row *studentRow) student.Student {
	if row == nil {
		return student.Student{}
	}
	return student.Student{
		Ref:       row.Ref,
		Name:      row.Name.String,
		ClassCode: row.ClassCode,
		ClassYear: row.ClassYear,
		CreatedAt: row.CreatedAt.Time.UTC(),
		UpdatedAt: row.UpdatedAt.Time.UTC(),
	}
}

// newQuery builds a students query in the dialect of the repository's engine.
func (repo studentRepository) newQuery(mods ...qm.QueryMod) *queries.Query {
	q := &queries.Query{}
	queries.SetDialect(q, &repo.dialect)
	qm.Apply(q, append([]qm.QueryMod{qm.From(studentTable)}, mods...)...)
	return q
}

// trapNoRowsErr maps "no rows" to student.ErrNotFound
func (repo studentRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return student.ErrNotFound
	}
	return errors.Wrap(database.TrapConnErr(err), msg)
}

func (repo studentRepository) GetStudent(ctx context.Context, ref string) (student.Student, error) {
	var row studentRow
	q := repo.newQuery(qm.Where(studentColumns.Ref+" = ?", ref), qm.Limit(1))
	if err := q.Bind(ctx, repo.exec, &row); err != nil {
		return student.Student{}, repo.trapNoRowsErr(err, "finding student")
	}
	return repo.unboil(&row), nil
}

func (repo studentRepository) StudentExists(ctx context.Context, ref string) (bool, error) {
	var n int64
	q := repo.newQuery(qm.Select("COUNT(*)"), qm.Where(studentColumns.Ref+" = ?", ref))
	if err := q.QueryRowContext(ctx, repo.exec).Scan(&n); err != nil {
		return false, errors.Wrap(err, "checking student existence")
	}
	return n > 0, nil
}

func (repo studentRepository) QueryRoster(ctx context.Context, filter student.RosterFilter) ([]student.Student, error) {
	mods := []qm.QueryMod{qm.OrderBy(studentColumns.ClassCode + ", " + studentColumns.Ref)}
	if filter.ClassCode != "" {
		mods = append(mods, qm.Where(studentColumns.ClassCode+" = ?", filter.ClassCode))
	}
	if filter.ClassYear != 0 {
		mods = append(mods, qm.Where(studentColumns.ClassYear+" = ?", filter.ClassYear))
	}

	var rows []*studentRow
	if err := repo.newQuery(mods...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(database.TrapConnErr(err), "querying roster")
	}
	roster := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		roster = append(roster, repo.unboil(row))
	}
	return roster, nil
}

// SaveStudent inserts s or replaces the roster entry with the same ref, keeping its creation time.
func (repo studentRepository) SaveStudent(ctx context.Context, s student.Student) (student.Student, error) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = s.CreatedAt
	}
	row := repo.boil(s)

	stmt := sqlx.Rebind(sqlx.BindType(repo.engine), `INSERT INTO students (ref, name, class_code, class_year, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (ref) DO UPDATE SET
			name = excluded.name, class_code = excluded.class_code,
			class_year = excluded.class_year, updated_at = excluded.updated_at`)
	args := []interface{}{row.Ref, row.Name, row.ClassCode, row.ClassYear, row.CreatedAt, row.UpdatedAt}
	if _, err := queries.Raw(stmt, args...).ExecContext(ctx, repo.exec); err != nil {
		return student.Student{}, errors.Wrap(err, "saving student")
	}
	return repo.GetStudent(ctx, s.Ref)
}

func (repo studentRepository) DeleteStudent(ctx context.Context, ref string) error {
	q := repo.newQuery(qm.Where(studentColumns.Ref+" = ?", ref))
	queries.SetDelete(q)
	res, err := q.ExecContext(ctx, repo.exec)
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	if n == 0 {
		return student.ErrNotFound
	}
	return nil
}

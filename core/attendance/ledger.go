package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/sundayschool/core"
	"github.com/trezcool/sundayschool/core/student"
)

var (
	// errors
	ErrNotFound        = errors.New("attendance record not found")
	ErrStudentNotFound = errors.New("student not found")
	// ErrConflict is returned by repositories when an insert hits the (student_ref, day) constraint.
	ErrConflict = errors.New("attendance record already exists for this student and day")

	errDayRequired = core.NewValidationError(nil, core.FieldError{Field: "date", Error: "this field is required"})

	NowFunc = time.Now // mockable
)

const (
	defaultMaxMarkAttempts = 3
	defaultBatchLimit      = 500
)

type (
	// Repository persists Records. Implementations must enforce one Record per (StudentRef, Day).
	Repository interface {
		GetRecord(ctx context.Context, studentRef string, day Day) (Record, error)
		// InsertRecord returns ErrConflict when a record already exists for (StudentRef, Day).
		InsertRecord(ctx context.Context, rec Record) (Record, error)
		// UpdateRecord overwrites the mutable fields of the record identified by (StudentRef, Day).
		UpdateRecord(ctx context.Context, rec Record) (Record, error)
		// QueryRecords returns matching records ordered by day then student ref.
		QueryRecords(ctx context.Context, q RecordQuery) ([]Record, error)
		LatestDay(ctx context.Context) (Day, bool, error)
		DeleteRecord(ctx context.Context, id string) error
		DeleteStudentRecords(ctx context.Context, studentRef string) (int, error)
	}

	// Roster is the part of the student registry the ledger depends on.
	Roster interface {
		StudentExists(ctx context.Context, ref string) (bool, error)
		QueryRoster(ctx context.Context, filter student.RosterFilter) ([]student.Student, error)
	}

	Options struct {
		Location        *time.Location // school timezone, decides which day "now" is
		MaxMarkAttempts int
		BatchLimit      int
	}

	// Service is the attendance ledger.
	Service struct {
		repo     Repository
		roster   Roster
		validate *validator.Validate
		logger   core.Logger
		opts     Options
	}
)

func OptionsFromConfig(conf *core.Config) Options {
	return Options{
		Location:        conf.Attendance.Location,
		MaxMarkAttempts: conf.Attendance.MaxMarkAttempts,
		BatchLimit:      conf.Attendance.BatchLimit,
	}
}

func NewService(repo Repository, roster Roster, validate *validator.Validate, logger core.Logger, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MaxMarkAttempts <= 0 {
		opts.MaxMarkAttempts = defaultMaxMarkAttempts
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = defaultBatchLimit
	}
	return &Service{
		repo:     repo,
		roster:   roster,
		validate: validate,
		logger:   logger,
		opts:     opts,
	}
}

// Today is the current calendar day in the school's timezone.
func (svc *Service) Today() Day {
	return DayIn(NowFunc(), svc.opts.Location)
}

// MarkOne records m for day: the existing record for (m.StudentRef, day) is updated in place,
// otherwise a new one is created. The student's existence is the caller's concern.
func (svc *Service) MarkOne(ctx context.Context, day Day, m Mark, markedBy string) (Record, error) {
	if day.IsZero() {
		return Record{}, errDayRequired
	}
	if err := m.Validate(svc.validate); err != nil {
		return Record{}, err
	}

	for attempt := 1; attempt <= svc.opts.MaxMarkAttempts; attempt++ {
		now := NowFunc().UTC()

		existing, err := svc.repo.GetRecord(ctx, m.StudentRef, day)
		switch errors.Cause(err) {
		case nil:
			existing.apply(m, markedBy, now)
			rec, err := svc.repo.UpdateRecord(ctx, existing)
			if errors.Cause(err) == ErrNotFound { // deleted under our feet
				continue
			}
			if err != nil {
				return Record{}, errors.Wrap(err, "updating attendance record")
			}
			return rec, nil
		case ErrNotFound: // create below
		default:
			return Record{}, errors.Wrap(err, "getting attendance record")
		}

		rec := Record{
			ID:         uuid.New().String(),
			StudentRef: m.StudentRef,
			Day:        day,
			MarkedBy:   markedBy,
			CreatedAt:  now,
		}
		rec.apply(m, markedBy, now)
		rec, err = svc.repo.InsertRecord(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if errors.Cause(err) != ErrConflict {
			return Record{}, errors.Wrap(err, "inserting attendance record")
		}
		// a concurrent mark created the row first: retry as an update
		svc.logger.Debug(fmt.Sprintf("attendance: conflict marking %s on %s (attempt %d)", m.StudentRef, day, attempt))
	}
	return Record{}, errors.Wrapf(ErrConflict, "marking %s on %s after %d attempts", m.StudentRef, day, svc.opts.MaxMarkAttempts)
}

// MarkBatch marks every item independently; one item's failure never aborts the others.
// Results are in input order.
func (svc *Service) MarkBatch(ctx context.Context, day Day, marks []Mark, markedBy string) ([]BatchResult, error) {
	if day.IsZero() {
		return nil, errDayRequired
	}
	if len(marks) > svc.opts.BatchLimit {
		return nil, core.NewValidationError(nil, core.FieldError{
			Field: "marks",
			Error: fmt.Sprintf("at most %d marks per batch", svc.opts.BatchLimit),
		})
	}

	results := make([]BatchResult, 0, len(marks))
	var failed int
	for _, m := range marks {
		res := BatchResult{StudentRef: core.CleanString(m.StudentRef)}
		rec, err := svc.markExisting(ctx, day, m, markedBy)
		if err != nil {
			if !isItemError(err) {
				svc.logger.Error(fmt.Sprintf("attendance: batch item %s failed", res.StudentRef), err)
			}
			res.Error = itemErrorMessage(err)
			failed++
		} else {
			res.Success = true
			res.Record = &rec
		}
		results = append(results, res)
	}
	if failed > 0 {
		svc.logger.Info(fmt.Sprintf("attendance: batch for %s: %d marked, %d failed", day, len(marks)-failed, failed))
	}
	return results, nil
}

// markExisting is MarkOne guarded by a registry lookup.
func (svc *Service) markExisting(ctx context.Context, day Day, m Mark, markedBy string) (Record, error) {
	if err := svc.CheckStudent(ctx, m.StudentRef); err != nil {
		return Record{}, err
	}
	return svc.MarkOne(ctx, day, m, markedBy)
}

// CheckStudent returns ErrStudentNotFound unless ref is on the roster.
func (svc *Service) CheckStudent(ctx context.Context, ref string) error {
	ref = core.CleanString(ref)
	if ref == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "student_ref", Error: "this field is required"})
	}
	ok, err := svc.roster.StudentExists(ctx, ref)
	if err != nil {
		return errors.Wrap(err, "checking student")
	}
	if !ok {
		return ErrStudentNotFound
	}
	return nil
}

// QueryRange returns the records matching filter ordered by date ascending.
func (svc *Service) QueryRange(ctx context.Context, filter Filter) ([]Record, error) {
	filter.Clean()
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	q := RecordQuery{Start: filter.Start, End: filter.End}
	if filter.HasRosterFilter() {
		students, err := svc.roster.QueryRoster(ctx, student.RosterFilter{ClassCode: filter.ClassCode, ClassYear: filter.ClassYear})
		if err != nil {
			return nil, errors.Wrap(err, "querying roster")
		}
		q.StudentRefs = student.Refs(students)
	}
	if filter.StudentRef != "" {
		q.StudentRefs = intersectRefs(q.StudentRefs, filter.StudentRef)
	}
	if q.StudentRefs != nil && len(q.StudentRefs) == 0 {
		return []Record{}, nil
	}

	records, err := svc.repo.QueryRecords(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	return records, nil
}

// LatestDay returns the most recent day holding any record; false when the ledger is empty.
func (svc *Service) LatestDay(ctx context.Context) (Day, bool, error) {
	day, ok, err := svc.repo.LatestDay(ctx)
	if err != nil {
		return Day{}, false, errors.Wrap(err, "getting latest attendance day")
	}
	return day, ok, nil
}

// LatestClassSnapshot rolls up the classes of roster on the latest recorded day.
func (svc *Service) LatestClassSnapshot(ctx context.Context, roster []student.Student) (ClassSnapshot, bool, error) {
	day, ok, err := svc.LatestDay(ctx)
	if err != nil || !ok {
		return ClassSnapshot{}, false, err
	}
	records, err := svc.repo.QueryRecords(ctx, RecordQuery{Start: day, End: day})
	if err != nil {
		return ClassSnapshot{}, false, errors.Wrap(err, "querying latest attendance records")
	}
	snap, ok := LatestDayClassSnapshot(records, roster)
	return snap, ok, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.repo.DeleteRecord(ctx, id); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return ErrNotFound
		}
		return errors.Wrap(err, "deleting attendance record")
	}
	return nil
}

// ForgetStudent cascades a student deletion to their attendance history.
func (svc *Service) ForgetStudent(ctx context.Context, studentRef string) (int, error) {
	studentRef = core.CleanString(studentRef)
	if studentRef == "" {
		return 0, core.NewValidationError(nil, core.FieldError{Field: "student_ref", Error: "this field is required"})
	}
	n, err := svc.repo.DeleteStudentRecords(ctx, studentRef)
	if err != nil {
		return 0, errors.Wrap(err, "deleting student attendance records")
	}
	svc.logger.Info(fmt.Sprintf("attendance: removed %d records of student %s", n, studentRef))
	return n, nil
}

func intersectRefs(refs []string, ref string) []string {
	if refs == nil {
		return []string{ref}
	}
	for _, r := range refs {
		if r == ref {
			return []string{ref}
		}
	}
	return []string{}
}

func isItemError(err error) bool {
	cause := errors.Cause(err)
	if cause == ErrStudentNotFound {
		return true
	}
	if _, ok := cause.(validator.ValidationErrors); ok {
		return true
	}
	return core.IsValidationError(err)
}

// itemErrorMessage renders a per-item batch failure.
func itemErrorMessage(err error) string {
	switch cause := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		if len(cause) > 0 {
			return fmt.Sprintf("%s: invalid value (%s)", cause[0].Field(), cause[0].Tag())
		}
	case *core.ValidationError:
		return cause.Error()
	}
	if errors.Cause(err) == ErrStudentNotFound {
		return ErrStudentNotFound.Error()
	}
	return "internal error"
}

package attendance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sundayschool/core"
	. "github.com/trezcool/sundayschool/core/attendance"
	"github.com/trezcool/sundayschool/core/student"
	"github.com/trezcool/sundayschool/services/logger"
	"github.com/trezcool/sundayschool/storage/database/inmem"
	"github.com/trezcool/sundayschool/tests"
)

type ledgerDeps struct {
	repo   Repository
	reg    student.Registry
	logger *logsvc.ConsoleLoggerMock
}

func setup(t *testing.T, wrap ...func(Repository) Repository) (*Service, ledgerDeps) {
	db := inmemdb.Open()
	deps := ledgerDeps{
		repo:   inmemdb.NewAttendanceRepository(db),
		reg:    inmemdb.NewStudentRepository(db),
		logger: logsvc.NewConsoleLoggerMock(),
	}
	for _, w := range wrap {
		deps.repo = w(deps.repo)
	}
	validate, _ := testutil.NewValidator()
	svc := NewService(deps.repo, deps.reg, validate, deps.logger, Options{})
	return svc, deps
}

func TestService_MarkOne(t *testing.T) {
	svc, deps := setup(t)
	ctx := context.Background()
	day := MustParseDay("2024-05-05")

	tests := []struct {
		name       string
		day        Day
		mark       Mark
		wantErr    bool
		wantStatus Status
		wantReason string
	}{
		{name: "no day", mark: Mark{StudentRef: "a", Status: StatusPresent}, wantErr: true},
		{name: "no student", day: day, mark: Mark{Status: StatusPresent}, wantErr: true},
		{name: "blank student", day: day, mark: Mark{StudentRef: "   ", Status: StatusPresent}, wantErr: true},
		{name: "no status", day: day, mark: Mark{StudentRef: "a"}, wantErr: true},
		{name: "unknown status", day: day, mark: Mark{StudentRef: "a", Status: "excused"}, wantErr: true},
		{name: "create", day: day, mark: Mark{StudentRef: "a", Status: StatusAbsent, Reason: " sick "}, wantStatus: StatusAbsent, wantReason: "sick"},
		{name: "update", day: day, mark: Mark{StudentRef: " a ", Status: StatusLate, Reason: "bus"}, wantStatus: StatusLate, wantReason: "bus"},
		{name: "present clears reason", day: day, mark: Mark{StudentRef: "a", Status: StatusPresent, Reason: "bus"}, wantStatus: StatusPresent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := svc.MarkOne(ctx, tt.day, tt.mark, "admin")
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, core.IsValidationError(err) || isValidatorError(err), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a", rec.StudentRef)
			assert.Equal(t, tt.wantStatus, rec.Status)
			assert.Equal(t, tt.wantReason, rec.Reason)
			assert.Equal(t, "admin", rec.MarkedBy)
		})
	}

	records, err := deps.repo.QueryRecords(ctx, RecordQuery{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, StatusPresent, records[0].Status)
}

func TestService_MarkOne_uniqueness(t *testing.T) {
	svc, deps := setup(t)
	ctx := context.Background()

	first, err := svc.MarkOne(ctx, MustParseDay("2024-05-05T00:00:01"), Mark{StudentRef: "a", Status: StatusAbsent}, "")
	require.NoError(t, err)

	statuses := []Status{StatusLate, StatusPresent, StatusAbsent, StatusLate}
	var last Record
	for _, st := range statuses {
		last, err = svc.MarkOne(ctx, MustParseDay("2024-05-05T23:59:59"), Mark{StudentRef: "a", Status: st}, "")
		require.NoError(t, err)
	}
	assert.Equal(t, first.ID, last.ID)
	assert.Equal(t, first.CreatedAt, last.CreatedAt)

	day := MustParseDay("2024-05-05")
	records, err := svc.QueryRange(ctx, Filter{Start: day, End: day})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, StatusLate, records[0].Status)

	all, err := deps.repo.QueryRecords(ctx, RecordQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestService_MarkOne_concurrent(t *testing.T) {
	svc, deps := setup(t)
	ctx := context.Background()
	day := MustParseDay("2024-05-05")

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.MarkOne(ctx, day, Mark{StudentRef: "a", Status: AllStatuses[i%len(AllStatuses)]}, "")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	records, err := deps.repo.QueryRecords(ctx, RecordQuery{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

// racingRepository hides existing rows from GetRecord a number of times,
// as if another writer inserted them between the lookup and the insert.
type racingRepository struct {
	Repository
	mu    sync.Mutex
	blind int
}

func (repo *racingRepository) GetRecord(ctx context.Context, ref string, day Day) (Record, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.blind > 0 {
		repo.blind--
		return Record{}, ErrNotFound
	}
	return repo.Repository.GetRecord(ctx, ref, day)
}

func TestService_MarkOne_conflictRetry(t *testing.T) {
	racing := &racingRepository{}
	svc, deps := setup(t, func(repo Repository) Repository {
		racing.Repository = repo
		return racing
	})
	ctx := context.Background()
	day := MustParseDay("2024-05-05")
	testutil.CreateRecord(t, racing.Repository, "a", "2024-05-05", StatusAbsent)

	racing.blind = 1
	rec, err := svc.MarkOne(ctx, day, Mark{StudentRef: "a", Status: StatusPresent}, "")
	require.NoError(t, err)
	assert.Equal(t, StatusPresent, rec.Status)
	assert.Len(t, deps.logger.Entries("DEBUG"), 1)

	racing.blind = 10
	_, err = svc.MarkOne(ctx, day, Mark{StudentRef: "a", Status: StatusLate}, "")
	assert.Equal(t, ErrConflict, errors.Cause(err))
}

func TestService_MarkBatch(t *testing.T) {
	ctx := context.Background()
	day := MustParseDay("2024-06-02")

	positions := []struct {
		name  string
		marks []Mark
		bad   int
	}{
		{name: "unknown first", bad: 0, marks: []Mark{{StudentRef: "ghost", Status: StatusPresent}, {StudentRef: "a", Status: StatusPresent}, {StudentRef: "b", Status: StatusAbsent}}},
		{name: "unknown middle", bad: 1, marks: []Mark{{StudentRef: "a", Status: StatusPresent}, {StudentRef: "ghost", Status: StatusPresent}, {StudentRef: "b", Status: StatusAbsent}}},
		{name: "unknown last", bad: 2, marks: []Mark{{StudentRef: "a", Status: StatusPresent}, {StudentRef: "b", Status: StatusAbsent}, {StudentRef: "ghost", Status: StatusPresent}}},
		{name: "invalid status", bad: 1, marks: []Mark{{StudentRef: "a", Status: StatusPresent}, {StudentRef: "b", Status: "excused"}, {StudentRef: "c", Status: StatusLate}}},
	}
	for _, tt := range positions {
		t.Run(tt.name, func(t *testing.T) {
			svc, deps := setup(t)
			for _, ref := range []string{"a", "b", "c"} {
				testutil.CreateStudent(t, deps.reg, ref, "grade1", 2024)
			}

			results, err := svc.MarkBatch(ctx, day, tt.marks, "admin")
			require.NoError(t, err)
			require.Len(t, results, 3)

			var ok int
			for i, res := range results {
				assert.Equal(t, tt.marks[i].StudentRef, res.StudentRef)
				if i == tt.bad {
					assert.False(t, res.Success)
					assert.Nil(t, res.Record)
					assert.NotEmpty(t, res.Error)
					continue
				}
				assert.True(t, res.Success, res.Error)
				assert.NotNil(t, res.Record)
				ok++
			}
			assert.Equal(t, 2, ok)

			records, err := deps.repo.QueryRecords(ctx, RecordQuery{})
			require.NoError(t, err)
			assert.Len(t, records, 2)
			assert.Empty(t, deps.logger.Entries("ERROR"))
		})
	}

	t.Run("student not found message", func(t *testing.T) {
		svc, _ := setup(t)
		results, err := svc.MarkBatch(ctx, day, []Mark{{StudentRef: "ghost", Status: StatusPresent}}, "")
		require.NoError(t, err)
		assert.Equal(t, ErrStudentNotFound.Error(), results[0].Error)
	})

	t.Run("no day", func(t *testing.T) {
		svc, _ := setup(t)
		_, err := svc.MarkBatch(ctx, Day{}, nil, "")
		assert.True(t, core.IsValidationError(err))
	})

	t.Run("batch limit", func(t *testing.T) {
		db := inmemdb.Open()
		validate, _ := testutil.NewValidator()
		svc := NewService(inmemdb.NewAttendanceRepository(db), inmemdb.NewStudentRepository(db), validate, logsvc.NewConsoleLoggerMock(), Options{BatchLimit: 2})
		_, err := svc.MarkBatch(ctx, day, make([]Mark, 3), "")
		assert.True(t, core.IsValidationError(err))
	})
}

func TestService_QueryRange(t *testing.T) {
	svc, deps := setup(t)
	ctx := context.Background()

	testutil.CreateStudent(t, deps.reg, "a", "grade1", 2024)
	testutil.CreateStudent(t, deps.reg, "b", "grade1", 2023)
	testutil.CreateStudent(t, deps.reg, "c", "grade2", 2024)
	testutil.CreateRecord(t, deps.repo, "a", "2024-06-02", StatusPresent)
	testutil.CreateRecord(t, deps.repo, "b", "2024-06-02", StatusAbsent)
	testutil.CreateRecord(t, deps.repo, "c", "2024-06-02", StatusLate)
	testutil.CreateRecord(t, deps.repo, "a", "2024-06-09", StatusAbsent)
	testutil.CreateRecord(t, deps.repo, "orphan", "2024-06-09", StatusAbsent)

	tests := []struct {
		name    string
		filter  Filter
		wantIDs []string
		wantErr bool
	}{
		{name: "all", wantIDs: []string{"a-2024-06-02", "b-2024-06-02", "c-2024-06-02", "a-2024-06-09", "orphan-2024-06-09"}},
		{name: "single day", filter: Filter{Start: MustParseDay("2024-06-09"), End: MustParseDay("2024-06-09")}, wantIDs: []string{"a-2024-06-09", "orphan-2024-06-09"}},
		{name: "student", filter: Filter{StudentRef: " a "}, wantIDs: []string{"a-2024-06-02", "a-2024-06-09"}},
		{name: "class", filter: Filter{ClassCode: "grade1"}, wantIDs: []string{"a-2024-06-02", "b-2024-06-02", "a-2024-06-09"}},
		{name: "class & year", filter: Filter{ClassCode: "grade1", ClassYear: 2023}, wantIDs: []string{"b-2024-06-02"}},
		{name: "class & student", filter: Filter{ClassCode: "grade2", StudentRef: "c"}, wantIDs: []string{"c-2024-06-02"}},
		{name: "student outside class", filter: Filter{ClassCode: "grade2", StudentRef: "a"}, wantIDs: []string{}},
		{name: "unknown class", filter: Filter{ClassCode: "grade9"}, wantIDs: []string{}},
		{name: "inverted range", filter: Filter{Start: MustParseDay("2024-06-09"), End: MustParseDay("2024-06-02")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := svc.QueryRange(ctx, tt.filter)
			if tt.wantErr {
				assert.True(t, core.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			ids := make([]string, 0, len(records))
			for _, rec := range records {
				ids = append(ids, rec.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestService_LatestDay(t *testing.T) {
	svc, deps := setup(t)
	ctx := context.Background()

	_, ok, err := svc.LatestDay(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	snap, ok, err := svc.LatestClassSnapshot(ctx, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, snap.Classes)

	a := testutil.CreateStudent(t, deps.reg, "a", "grade1", 2024)
	testutil.CreateRecord(t, deps.repo, "a", "2024-06-02", StatusAbsent)
	testutil.CreateRecord(t, deps.repo, "a", "2024-06-16", StatusPresent)

	day, ok, err := svc.LatestDay(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2024-06-16", day.String())

	snap, ok, err = svc.LatestClassSnapshot(ctx, []student.Student{a})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 100, snap.Classes["grade1"].AttendanceRate)
}

func TestService_Delete(t *testing.T) {
	svc, deps := setup(t)
	ctx := context.Background()

	rec := testutil.CreateRecord(t, deps.repo, "a", "2024-06-02", StatusAbsent)
	testutil.CreateRecord(t, deps.repo, "a", "2024-06-09", StatusAbsent)
	testutil.CreateRecord(t, deps.repo, "b", "2024-06-09", StatusAbsent)

	assert.NoError(t, svc.Delete(ctx, rec.ID))
	assert.Equal(t, ErrNotFound, svc.Delete(ctx, rec.ID))

	n, err := svc.ForgetStudent(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err := deps.repo.QueryRecords(ctx, RecordQuery{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b", records[0].StudentRef)

	_, err = svc.ForgetStudent(ctx, " ")
	assert.True(t, core.IsValidationError(err))
}

func TestService_Today(t *testing.T) {
	db := inmemdb.Open()
	validate, _ := testutil.NewValidator()
	kinshasa := time.FixedZone("WAT", 60*60)
	svc := NewService(inmemdb.NewAttendanceRepository(db), inmemdb.NewStudentRepository(db), validate, logsvc.NewConsoleLoggerMock(), Options{Location: kinshasa})

	NowFunc = func() time.Time { return time.Date(2024, time.June, 1, 23, 30, 0, 0, time.UTC) }
	defer func() { NowFunc = time.Now }()
	assert.Equal(t, "2024-06-02", svc.Today().String())
}

func isValidatorError(err error) bool {
	_, ok := errors.Cause(err).(validator.ValidationErrors)
	return ok
}

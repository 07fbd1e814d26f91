package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/sundayschool/core/attendance"
)

type attendanceRepository struct {
	db *attendanceTable
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db.attendance}
}

func (repo *attendanceRepository) GetRecord(_ context.Context, studentRef string, day attendance.Day) (attendance.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.table[recordKey{studentRef, day}]; ok {
		return *rec, nil
	}
	return attendance.Record{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) InsertRecord(_ context.Context, rec attendance.Record) (attendance.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := recordKey{rec.StudentRef, rec.Day}
	if _, ok := repo.db.table[key]; ok {
		return attendance.Record{}, attendance.ErrConflict
	}
	repo.db.table[key] = &rec
	return rec, nil
}

func (repo *attendanceRepository) UpdateRecord(_ context.Context, rec attendance.Record) (attendance.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[recordKey{rec.StudentRef, rec.Day}]
	if !ok {
		return attendance.Record{}, attendance.ErrNotFound
	}
	orig.Status = rec.Status
	orig.Reason = rec.Reason
	orig.Flowers = rec.Flowers
	orig.MarkedBy = rec.MarkedBy
	orig.UpdatedAt = rec.UpdatedAt
	return *orig, nil
}

func (repo *attendanceRepository) QueryRecords(_ context.Context, q attendance.RecordQuery) ([]attendance.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	records := make([]attendance.Record, 0)
	for _, rec := range repo.db.table {
		if q.Matches(*rec) {
			records = append(records, *rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Day.Equal(records[j].Day) {
			return records[i].Day.Before(records[j].Day)
		}
		return records[i].StudentRef < records[j].StudentRef
	})
	return records, nil
}

func (repo *attendanceRepository) LatestDay(_ context.Context) (attendance.Day, bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var latest attendance.Day
	for key := range repo.db.table {
		if latest.IsZero() || key.day.After(latest) {
			latest = key.day
		}
	}
	return latest, !latest.IsZero(), nil
}

func (repo *attendanceRepository) DeleteRecord(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for key, rec := range repo.db.table {
		if rec.ID == id {
			delete(repo.db.table, key)
			return nil
		}
	}
	return attendance.ErrNotFound
}

func (repo *attendanceRepository) DeleteStudentRecords(_ context.Context, studentRef string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for key := range repo.db.table {
		if key.studentRef == studentRef {
			delete(repo.db.table, key)
			n++
		}
	}
	return n, nil
}

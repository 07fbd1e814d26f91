package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/sundayschool/core/student"
)

type studentRepository struct {
	db *studentTable
}

var _ student.Registry = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db.student}
}

func (repo *studentRepository) GetStudent(_ context.Context, ref string) (student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.table[ref]; ok {
		return *s, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) StudentExists(_ context.Context, ref string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	_, ok := repo.db.table[ref]
	return ok, nil
}

func (repo *studentRepository) QueryRoster(_ context.Context, filter student.RosterFilter) ([]student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	roster := make([]student.Student, 0, len(repo.db.table))
	for _, s := range repo.db.table {
		if filter.Matches(*s) {
			roster = append(roster, *s)
		}
	}
	sort.Slice(roster, func(i, j int) bool {
		if roster[i].ClassCode != roster[j].ClassCode {
			return roster[i].ClassCode < roster[j].ClassCode
		}
		return roster[i].Ref < roster[j].Ref
	})
	return roster, nil
}

func (repo *studentRepository) SaveStudent(_ context.Context, s student.Student) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if orig, ok := repo.db.table[s.Ref]; ok {
		s.CreatedAt = orig.CreatedAt
	}
	repo.db.table[s.Ref] = &s
	return s, nil
}

func (repo *studentRepository) DeleteStudent(_ context.Context, ref string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[ref]; !ok {
		return student.ErrNotFound
	}
	delete(repo.db.table, ref)
	return nil
}

package student

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

var ErrNotFound = errors.New("student not found")

type (
	// Registry is the roster storage the attendance ledger joins against.
	Registry interface {
		GetStudent(ctx context.Context, ref string) (Student, error)
		StudentExists(ctx context.Context, ref string) (bool, error)
		// QueryRoster returns the students matching filter, ordered by class code then ref.
		QueryRoster(ctx context.Context, filter RosterFilter) ([]Student, error)
		SaveStudent(ctx context.Context, s Student) (Student, error)
		DeleteStudent(ctx context.Context, ref string) error
	}

	Service struct {
		reg      Registry
		validate *validator.Validate
	}
)

func NewService(reg Registry, validate *validator.Validate) *Service {
	return &Service{reg: reg, validate: validate}
}

func (svc *Service) Get(ctx context.Context, ref string) (Student, error) {
	return svc.reg.GetStudent(ctx, ref)
}

func (svc *Service) Exists(ctx context.Context, ref string) (bool, error) {
	return svc.reg.StudentExists(ctx, ref)
}

func (svc *Service) Roster(ctx context.Context, filter RosterFilter) ([]Student, error) {
	filter.Clean()
	return svc.reg.QueryRoster(ctx, filter)
}

// Save adds or replaces a roster entry.
func (svc *Service) Save(ctx context.Context, ns NewStudent) (Student, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return Student{}, err
	}
	now := time.Now().UTC()
	return svc.reg.SaveStudent(ctx, Student{
		Ref:       ns.Ref,
		Name:      ns.Name,
		ClassCode: ns.ClassCode,
		ClassYear: ns.ClassYear,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) Delete(ctx context.Context, ref string) error {
	return svc.reg.DeleteStudent(ctx, ref)
}

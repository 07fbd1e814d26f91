package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/sundayschool/core"
)

// Student is one roster entry. The registry owns students; attendance only references them by Ref.
type Student struct {
	Ref       string    `json:"ref"`
	Name      string    `json:"name"`
	ClassCode string    `json:"class_code"`
	ClassYear int       `json:"class_year"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewStudent contains information needed to add or replace a roster entry.
type NewStudent struct {
	Ref       string `json:"ref" validate:"required,max=64"`
	Name      string `json:"name"`
	ClassCode string `json:"class_code" validate:"required,alphanum_,max=32"`
	ClassYear int    `json:"class_year" validate:"gte=0"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Ref = core.CleanString(ns.Ref)
	ns.Name = core.CleanString(ns.Name)
	ns.ClassCode = core.CleanString(ns.ClassCode)
	return validate.Struct(ns)
}

// RosterFilter narrows a roster; zero values match everything.
type RosterFilter struct {
	ClassCode string `query:"class_code"`
	ClassYear int    `query:"class_year"`
}

func (rf *RosterFilter) IsEmpty() bool {
	return rf.ClassCode == "" && rf.ClassYear == 0
}

func (rf *RosterFilter) Clean() {
	rf.ClassCode = core.CleanString(rf.ClassCode)
}

// Matches reports whether s belongs to the filtered roster.
func (rf RosterFilter) Matches(s Student) bool {
	if rf.ClassCode != "" && s.ClassCode != rf.ClassCode {
		return false
	}
	if rf.ClassYear != 0 && s.ClassYear != rf.ClassYear {
		return false
	}
	return true
}

// Refs returns the refs of the given students, in order.
func Refs(students []Student) []string {
	refs := make([]string, 0, len(students))
	for _, s := range students {
		refs = append(refs, s.Ref)
	}
	return refs
}

package student_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/sundayschool/core/student"
	"github.com/trezcool/sundayschool/storage/database/inmem"
	"github.com/trezcool/sundayschool/tests"
)

func TestService_Save(t *testing.T) {
	validate, _ := testutil.NewValidator()
	svc := NewService(inmemdb.NewStudentRepository(inmemdb.Open()), validate)
	ctx := context.Background()

	tests := []struct {
		name    string
		ns      NewStudent
		wantErr bool
	}{
		{name: "no ref", ns: NewStudent{ClassCode: "grade1"}, wantErr: true},
		{name: "no class", ns: NewStudent{Ref: "a"}, wantErr: true},
		{name: "bad class", ns: NewStudent{Ref: "a", ClassCode: "grade-1"}, wantErr: true},
		{name: "negative year", ns: NewStudent{Ref: "a", ClassCode: "grade1", ClassYear: -1}, wantErr: true},
		{name: "ok", ns: NewStudent{Ref: " a ", Name: " Ada ", ClassCode: "grade1", ClassYear: 2024}},
		{name: "replace", ns: NewStudent{Ref: "a", Name: "Ada", ClassCode: "grade2", ClassYear: 2024}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := svc.Save(ctx, tt.ns)
			if tt.wantErr {
				_, ok := err.(validator.ValidationErrors)
				assert.True(t, ok, "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a", s.Ref)
			assert.Equal(t, "Ada", s.Name)
		})
	}

	roster, err := svc.Roster(ctx, RosterFilter{ClassCode: " grade2 "})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, Refs(roster))

	exists, err := svc.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, svc.Delete(ctx, "a"))
	assert.Equal(t, ErrNotFound, svc.Delete(ctx, "a"))
	_, err = svc.Get(ctx, "a")
	assert.Equal(t, ErrNotFound, err)
}

func TestRosterFilter_Matches(t *testing.T) {
	s := Student{Ref: "a", ClassCode: "grade1", ClassYear: 2024}
	assert.True(t, (RosterFilter{}).Matches(s))
	assert.True(t, (RosterFilter{ClassCode: "grade1"}).Matches(s))
	assert.True(t, (RosterFilter{ClassCode: "grade1", ClassYear: 2024}).Matches(s))
	assert.False(t, (RosterFilter{ClassYear: 2023}).Matches(s))
	assert.False(t, (RosterFilter{ClassCode: "grade2"}).Matches(s))
}

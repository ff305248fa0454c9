package validate

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/students-api/internal/types"
)

func fields(t *testing.T, err error) []string {
	t.Helper()
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs), "expected validation errors, got %v", err)
	var out []string
	for _, e := range verrs {
		out = append(out, e.Field()+":"+e.ActualTag())
	}
	return out
}

func TestStudentInput(t *testing.T) {
	assert.NoError(t, Struct(types.StudentInput{FirstName: "Ann", Email: "ann@x.com", Age: 20}))
	assert.NoError(t, Struct(types.StudentInput{FirstName: "Ann", Email: "ann@x.com", Age: 20, DateOfBirth: "2004-05-06"}))

	err := Struct(types.StudentInput{})
	assert.Equal(t, []string{"firstName:required", "email:required", "age:required"}, fields(t, err))

	err = Struct(types.StudentInput{FirstName: "Ann", Email: "not-an-email", Age: 200, DateOfBirth: "May 6"})
	assert.Equal(t, []string{"dateOfBirth:datetime", "email:email", "age:lte"}, fields(t, err))
}

func TestMarkInput(t *testing.T) {
	zero, negative := 0, -1
	assert.NoError(t, Struct(types.MarkInput{Subject: "Math", Marks: &zero, StudentID: "id"}))

	err := Struct(types.MarkInput{})
	assert.Equal(t, []string{"subject:required", "marks:required", "studentId:required"}, fields(t, err))

	err = Struct(types.MarkInput{Subject: "Math", Marks: &negative, StudentID: "id"})
	assert.Equal(t, []string{"marks:gte"}, fields(t, err))
}

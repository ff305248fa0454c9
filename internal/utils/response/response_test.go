package response

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/students-api/internal/query"
)

func TestValidationErrorMessages(t *testing.T) {
	type input struct {
		Name  string `validate:"required"`
		Email string `validate:"required,email"`
		Born  string `validate:"omitempty,datetime=2006-01-02"`
		Age   int    `validate:"gte=1"`
	}

	err := validator.New().Struct(input{Email: "nope", Born: "06/05/2004"})
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))

	res := ValidationError(verrs)
	assert.False(t, res.Status)
	assert.Equal(t,
		"field Name is required, field Email must be a valid email address, "+
			"field Born must be a date formatted as 2006-01-02, field Age must be at least 1",
		res.Error)
}

func TestEnvelopesEncoding(t *testing.T) {
	b, err := json.Marshal(GeneralError(errors.New("boom")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":false,"error":"boom"}`, string(b))

	b, err = json.Marshal(Failure("Student not found!"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":false,"message":"Student not found!"}`, string(b))

	b, err = json.Marshal(Message("Student deleted"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":true,"message":"Student deleted"}`, string(b))
}

func TestPageEnvelope(t *testing.T) {
	list := Page([]int{}, 21, query.Params{Page: 2, Limit: 10})
	b, err := json.Marshal(list)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":true,"total":21,"page":2,"limit":10,"totalPages":3,"data":[]}`, string(b))
}

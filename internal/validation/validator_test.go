package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name   string   `json:"title" validate:"required,max=5"`
	Rating *int     `json:"rating" validate:"omitempty,min=1,max=5"`
	Email  string   `json:"email" validate:"omitempty,email"`
	Tags   []string `json:"tags" validate:"max=2"`
}

func TestStruct_OK(t *testing.T) {
	r := 3
	assert.NoError(t, Struct(payload{Name: "ok", Rating: &r}))
}

func TestStruct_FieldMessagesUseJSONNames(t *testing.T) {
	r := 9
	err := Struct(payload{Rating: &r, Email: "nope", Tags: []string{"a", "b", "c"}})
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{
		"title":  "title is required",
		"rating": "rating must be at most 5",
		"email":  "email must be a valid email address",
		"tags":   "tags must have at most 2 items or characters",
	}, verr.Fields)
	assert.Contains(t, err.Error(), "title is required")
}

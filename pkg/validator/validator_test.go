package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verifyRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"confirmation_code" binding:"required,confcode"`
}

func TestValidate(t *testing.T) {
	v := New()

	require.NoError(t, v.Validate(verifyRequest{Email: "a@x.io", Code: "012345"}))

	err := v.Validate(verifyRequest{Email: "nope", Code: "12ab56"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email must be a valid email")
	assert.Contains(t, err.Error(), "confirmation_code must be a 6 digit code")
}

func TestValidate_Required(t *testing.T) {
	err := New().Validate(verifyRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email is required")
}

func TestValidateVar(t *testing.T) {
	v := New()
	assert.NoError(t, v.ValidateVar("email", "a@x.io", "required,email"))
	assert.EqualError(t, v.ValidateVar("email", "a-x.io", "required,email"), "email must be a valid email")
}

func TestIsEmail(t *testing.T) {
	cases := map[string]bool{
		"a@x.io":          true,
		"first.last@b.co": true,
		"":                false,
		"a@":              false,
		"no-at.example":   false,
		" a@x.io":         false,
	}
	for in, want := range cases {
		assert.Equal(t, want, IsEmail(in), in)
	}
}

func TestDescribePassesThroughOtherErrors(t *testing.T) {
	err := errors.New("unexpected EOF")
	assert.Same(t, err, Describe(err))
}

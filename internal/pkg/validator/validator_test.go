package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code,omitempty" validate:"omitempty,numeric"`
}

func TestValidate(t *testing.T) {
	assert.Nil(t, Validate(sample{Email: "a@b.com"}))

	errs := Validate(sample{Email: "nope", Code: "12a"})
	assert.Equal(t, map[string]string{"email": "email", "code": "numeric"}, errs)

	errs = Validate(sample{})
	assert.Equal(t, "required", errs["email"])
}

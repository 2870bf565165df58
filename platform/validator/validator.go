// Package validator wraps go-playground struct validation behind a small
// injectable type.
package validator

import "github.com/go-playground/validator/v10"

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	return &Validator{v: validator.New()}
}

// Struct validates a struct against its validation tags.
func (val *Validator) Struct(s any) error {
	return val.v.Struct(s)
}

// Var validates a single value against a tag, for inputs that arrive
// outside a tagged struct.
func (val *Validator) Var(field any, tag string) error {
	return val.v.Var(field, tag)
}

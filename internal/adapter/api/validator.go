package api

import (
	"github.com/go-playground/validator/v10"

	"houseshower/pkg/validation"
)

// CustomValidator plugs the shared validator into echo's c.Validate.
type CustomValidator struct {
	validator *validator.Validate
}

func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validation.New()}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func (cv *CustomValidator) Engine() *validator.Validate {
	return cv.validator
}

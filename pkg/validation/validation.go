package validation

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// personNamePattern allows letters (including Spanish accents) and spaces.
var personNamePattern = regexp.MustCompile(`^[a-zA-ZáéíóúÁÉÍÓÚñÑüÜ\s]+$`)

// New returns a validator with the registry specific tags registered.
func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personNamePattern.MatchString(fl.Field().String())
	})
	return v
}

// Message renders the first failed field of a validator error the way it is
// shown next to a form input.
func Message(validationErr validator.ValidationErrors) string {
	for _, err := range validationErr {
		field := strings.ToLower(err.Field())
		param := err.Param()

		switch err.Tag() {
		case "required":
			return field + " is required"
		case "min":
			return field + " must be at least " + param + " characters"
		case "max":
			return field + " must be at most " + param + " characters"
		case "oneof":
			return field + " must be one of: " + param
		case "email":
			return field + " must be a valid email address"
		case "url", "http_url":
			return field + " must be a valid URL"
		case "personname":
			return field + " may only contain letters and spaces"
		default:
			return field + " is invalid"
		}
	}
	return "Invalid input data"
}

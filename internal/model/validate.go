package model

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	apperr "github.com/dharsanguruparan/rolltrack/internal/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("rollstatus", func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).Valid()
	})
	return v
}

// Validate checks the per-record invariants: non-empty id, non-negative
// length and a known status. Uniqueness is the ledger's concern.
func Validate(r Roll) error {
	if math.IsNaN(r.LengthFt) || math.IsInf(r.LengthFt, 0) {
		return apperr.New(apperr.CodeValidation, "invalid roll").
			WithDetails(map[string]string{"length_ft": "must be a finite number"})
	}
	r.RollID = strings.TrimSpace(r.RollID)
	if err := validate.Struct(r); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) *apperr.Error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperr.Wrap(apperr.CodeValidation, err, "invalid roll")
	}
	details := map[string]string{}
	for _, fieldErr := range errs {
		details[fieldErr.Field()] = validationMessage(fieldErr)
	}
	return apperr.New(apperr.CodeValidation, "invalid roll").WithDetails(details)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "rollstatus":
		return fmt.Sprintf("must be one of %q, %q, %q, %q", StatusFresh, StatusShortEnd, StatusExposed, StatusSentToLab)
	}
	return "is invalid"
}

var projectName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 _.-]{0,30}$`)

// NormalizeProjectName trims name and checks it is usable as a key in every
// backend, including as a worksheet title.
func NormalizeProjectName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if !projectName.MatchString(name) {
		return "", apperr.New(apperr.CodeValidation, "invalid project name").
			WithDetails(map[string]string{"name": "1-31 letters, digits, spaces, '_', '.' or '-', starting with a letter or digit"})
	}
	return name, nil
}

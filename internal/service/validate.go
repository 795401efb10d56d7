package service

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// weightPattern accepts up to eight integer digits and two decimals.
var weightPattern = regexp.MustCompile(`^\d{1,8}(\.\d{1,2})?$`)

// timestampLayouts are tried in order. Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// fieldMessages holds the single message reported for an invalid field.
// Fields are keyed by their JSON name.
var fieldMessages = map[string]string{
	"name":         "name must be between 1 and 100 characters",
	"startedAt":    "startedAt must be a date or a timestamp",
	"exerciseName": "exercise name must be between 1 and 100 characters",
	"weight":       "weight must be a non-negative number with at most two decimal places",
	"reps":         "reps must be a whole number between 1 and 1000",
	"restTime":     "restTime must be a whole number of seconds between 0 and 3600",
	"email":        "email must be a valid address",
	"password":     "password must be between 8 and 72 characters",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("decimal2", func(fl validator.FieldLevel) bool {
		return weightPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("timestamp", func(fl validator.FieldLevel) bool {
		_, err := parseTimestamp(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	return v
}

// validateInput checks s against its tags and reports only the first
// violation, in field declaration order.
func validateInput(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	first := fieldErrs[0]
	field := first.Field()
	if first.Tag() == "required" {
		return invalid(field, "%s is required", field)
	}
	if msg, ok := fieldMessages[field]; ok {
		return invalid(field, "%s", msg)
	}
	return invalid(field, "%s is invalid", field)
}

func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// trimmed returns a trimmed copy of s, or nil.
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

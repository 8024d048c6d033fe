// Package validate performs the local form checks that run before anything is
// sent to the server, and the shape checks applied to decoded responses.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	apperrors "github.com/OHshajim/MedLink/pkg/medlink/errors"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared validator. Field names in errors use the json tag.
func Validator() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		instance.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return instance
}

// FieldError describes one rejected form field
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}

// Struct validates s against its `validate` tags. Every failing field is
// reported; the result is a VALIDATION_FAILED AppError wrapping the field errors.
func Struct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.New(apperrors.ErrCodeValidation, "invalid input", err)
	}

	var merr *multierror.Error
	for _, fe := range verrs {
		merr = multierror.Append(merr, &FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return wrap(merr)
}

// Fields lists the field errors carried by err, if any
func Fields(err error) []FieldError {
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		var fe *FieldError
		if errors.As(err, &fe) {
			return []FieldError{*fe}
		}
		return nil
	}

	fields := make([]FieldError, 0, len(merr.Errors))
	for _, e := range merr.Errors {
		var fe *FieldError
		if errors.As(e, &fe) {
			fields = append(fields, *fe)
		}
	}
	return fields
}

func wrap(merr *multierror.Error) error {
	if merr.ErrorOrNil() == nil {
		return nil
	}
	merr.ErrorFormat = func(errs []error) string {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return strings.Join(msgs, "; ")
	}
	return apperrors.New(apperrors.ErrCodeValidation, merr.Error(), merr)
}

func label(field string) string {
	switch field {
	case "photo_url":
		return "Photo URL"
	case "doctorId":
		return "Doctor"
	case "appointment_id":
		return "Appointment"
	}
	// A Caser holds state, so one is made per call
	return cases.Title(language.English).String(strings.ReplaceAll(field, "_", " "))
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", label(fe.Field()))
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label(fe.Field()), fe.Param())
	case "email":
		return "Please enter a valid email"
	case "url":
		return "Please enter a valid URL"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", label(fe.Field()), strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return fmt.Sprintf("%s is invalid", label(fe.Field()))
}

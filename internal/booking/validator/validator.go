package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"booker/pkg/logger"
	"booker/pkg/model"

	"github.com/go-playground/validator/v10"
)

var timeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// BookingValidator checks booking forms and patches before any store is
// touched. Format rules live here; time-conflict policy lives in the
// lifecycle service.
type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func New(log *logger.Logger) *BookingValidator {
	v := validator.New()

	if err := v.RegisterValidation("dateymd", validateDate); err != nil {
		log.Fatal("Failed to register 'dateymd' validator", "error", err)
	}
	if err := v.RegisterValidation("timehhmm", validateTime); err != nil {
		log.Fatal("Failed to register 'timehhmm' validator", "error", err)
	}

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

// validateDate accepts YYYY-MM-DD strings that name a real calendar day.
func validateDate(fl validator.FieldLevel) bool {
	_, err := time.Parse("2006-01-02", fl.Field().String())
	return err == nil
}

// validateTime accepts 24-hour HH:MM wall-clock strings.
func validateTime(fl validator.FieldLevel) bool {
	return timeRegex.MatchString(fl.Field().String())
}

func (v *BookingValidator) ValidateForm(form *model.BookingForm) error {
	if err := v.validate.Struct(form); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translate(validationErrs)
		}
		return err
	}
	return nil
}

func (v *BookingValidator) ValidatePatch(patch *model.BookingPatch) error {
	if patch.Empty() {
		return ValidationErrors{
			ValidationError{Field: "patch", Message: "update contains no fields"},
		}
	}
	if err := v.validate.Struct(patch); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translate(validationErrs)
		}
		return err
	}
	return nil
}

func (v *BookingValidator) translate(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		field := fieldName(err.Field())
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "min":
			if field == "duration" {
				message = "Duration must be between 15 and 480 minutes"
			} else {
				message = fmt.Sprintf("%s must be at least %s characters long", field, err.Param())
			}
		case "max":
			if field == "duration" {
				message = "Duration must be between 15 and 480 minutes"
			} else {
				message = fmt.Sprintf("%s must be at most %s characters long", field, err.Param())
			}
		case "email":
			message = "Please enter a valid email address"
		case "dateymd":
			message = "Please enter a valid date"
		case "timehhmm":
			message = "Please enter a valid time"
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", field, err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   field,
			Message: message,
		})
	}

	return validationErrors
}

// fieldName lowers the struct field name to the JSON name the UI knows.
func fieldName(structField string) string {
	return strings.ToLower(structField)
}

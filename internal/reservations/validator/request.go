package validator

import (
	"errors"
	"fmt"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/logger"
	"roombook/pkg/model"
	"strings"

	"github.com/go-playground/validator/v10"
)

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

// ToAppError converts field errors into a VALIDATION_ERROR carrying one
// detail entry per field.
func (v ValidationErrors) ToAppError() *apperrors.AppError {
	details := make(map[string]any, len(v))
	for _, e := range v {
		details[e.Field] = e.Message
	}
	return apperrors.Validation(v.Error(), details)
}

type RequestValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewRequestValidator(log *logger.Logger) *RequestValidator {
	v := validator.New()

	if err := v.RegisterValidation("recurrence_pattern", validateRecurrencePattern); err != nil {
		log.Fatal("Failed to register 'recurrence_pattern' validator",
			"error", err,
		)
	}

	log.Debug("Reservation request validator initialized")

	return &RequestValidator{
		validate: v,
		logger:   log,
	}
}

func validateRecurrencePattern(fl validator.FieldLevel) bool {
	_, err := model.ParseRecurrence(fl.Field().String())
	return err == nil
}

func (v *RequestValidator) ValidateRequest(req *model.ReservationRequest) error {
	return v.validateStruct(req)
}

func (v *RequestValidator) ValidateRecurring(req *model.RecurringRequest) error {
	if err := v.validateStruct(req); err != nil {
		return err
	}
	if req.SeriesEndDate.IsZero() {
		return ValidationErrors{{Field: "SeriesEndDate", Message: "SeriesEndDate is required"}}.ToAppError()
	}
	if req.SeriesEndDate.Before(req.StartTime) {
		return ValidationErrors{{Field: "SeriesEndDate", Message: "series_end_date must not be before start_time"}}.ToAppError()
	}
	return nil
}

func (v *RequestValidator) ValidateVisibility(req *model.VisibilityReplaceRequest) error {
	return v.validateStruct(req)
}

func (v *RequestValidator) validateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs).ToAppError()
		}
		return apperrors.InvalidInput(err.Error())
	}
	return nil
}

func (v *RequestValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "recurrence_pattern":
			message = fmt.Sprintf("%s must be DAILY, WEEKLY or CUSTOM:<weekday list>", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}

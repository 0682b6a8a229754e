package validator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cowork/pkg/logger"
	"cowork/pkg/model"

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

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New()

	if err := v.RegisterValidation("booking_status", validateBookingStatus); err != nil {
		log.Fatal("Failed to register 'booking_status' validator",
			"error", err,
		)
	}

	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

func validateBookingStatus(fl validator.FieldLevel) bool {
	_, ok := model.ParseBookingStatus(fl.Field().String())
	return ok
}

// ValidateRequest checks a create call. Internal bookings may not start
// before now.
func (v *BookingValidator) ValidateRequest(req *model.BookingRequest, now time.Time) error {
	if err := v.structErrors(req); err != nil {
		return err
	}

	var errs ValidationErrors
	if !req.EndTime.After(req.StartTime) {
		errs = append(errs, ValidationError{Field: "EndTime", Message: "end_time must be after start_time"})
	}
	if req.StartTime.Before(now) {
		errs = append(errs, ValidationError{Field: "StartTime", Message: "start_time cannot be in the past"})
	}
	if req.Party.UserID == "" && req.Party.Name == "" {
		errs = append(errs, ValidationError{Field: "Party", Message: "party needs a user_id or a guest name"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Validate checks a stored booking, including the external source fields
// that must be set together.
func (v *BookingValidator) Validate(booking *model.Booking) error {
	if err := v.structErrors(booking); err != nil {
		return err
	}

	if !booking.EndTime.After(booking.StartTime) {
		return ValidationErrors{
			ValidationError{Field: "EndTime", Message: "end_time must be after start_time"},
		}
	}

	hasSource := booking.ExternalSourceURL != "" && booking.ExternalUID != ""
	if booking.IsExternal != hasSource {
		return ValidationErrors{
			ValidationError{
				Field:   "ExternalUID",
				Message: "external_source_url and external_uid are required exactly when is_external is set",
			},
		}
	}

	return nil
}

func (v *BookingValidator) ValidateResolve(req *model.ResolveRequest) error {
	return v.structErrors(req)
}

func (v *BookingValidator) ValidateStatusUpdate(req *model.StatusUpdateRequest) error {
	return v.structErrors(req)
}

func (v *BookingValidator) structErrors(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
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
		case "e164":
			message = fmt.Sprintf("%s must be in E.164 format (e.g., +972501234567)", err.Field())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "url":
			message = fmt.Sprintf("%s must be a valid URL", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		case "booking_status":
			message = fmt.Sprintf("%s is not a known booking status", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}

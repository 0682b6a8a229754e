package validator

import (
	"errors"
	"fmt"
	"net/url"

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
	return fmt.Sprintf("validation failed: %d error(s): %s", len(v), v[0].Error())
}

type SpaceValidator struct {
	validate *validator.Validate
}

func NewSpaceValidator() *SpaceValidator {
	v := validator.New()
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("feed_url", validateFeedURL)

	return &SpaceValidator{
		validate: v,
	}
}

// validateFeedURL accepts absolute http(s) URLs with a host.
func validateFeedURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (v *SpaceValidator) Validate(space *model.Space) error {
	return v.check(space)
}

func (v *SpaceValidator) ValidateSyncSettings(update *model.SyncSettingsUpdate) error {
	if err := v.check(update); err != nil {
		return err
	}
	if update.AutoSyncEnabled && len(update.ImportURLs) == 0 {
		return ValidationErrors{
			ValidationError{Field: "ImportURLs", Message: "auto sync needs at least one import url"},
		}
	}
	return nil
}

func (v *SpaceValidator) check(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *SpaceValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
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
		case "timezone":
			message = fmt.Sprintf("%s must be an IANA time zone", err.Field())
		case "feed_url":
			message = fmt.Sprintf("%s must be an http(s) or webcal URL", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}

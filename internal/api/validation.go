package api

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names in errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type validationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type validationErrorResponse struct {
	Error   string             `json:"error"`
	Details []validationDetail `json:"details,omitempty"`
}

func validationResponse(err error) validationErrorResponse {
	resp := validationErrorResponse{Error: "request validation failed"}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		resp.Details = []validationDetail{{Message: err.Error()}}
		return resp
	}
	for _, e := range validationErrors {
		resp.Details = append(resp.Details, validationDetail{
			Field:   e.Field(),
			Message: validationMessage(e),
		})
	}
	return resp
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "uuid":
		return "Must be a valid UUID"
	case "min":
		if e.Kind() == reflect.Slice {
			return "Must contain at least " + e.Param() + " items"
		}
		return "Must be at least " + e.Param() + " characters"
	case "max":
		if e.Kind() == reflect.Slice {
			return "Must contain at most " + e.Param() + " items"
		}
		return "Must be at most " + e.Param() + " characters"
	default:
		return "Invalid value"
	}
}

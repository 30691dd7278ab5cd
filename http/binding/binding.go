// Package binding decodes request bodies and query strings into structs and
// validates them with `validate` tags.
package binding

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	validatorV10 "github.com/go-playground/validator/v10"
	"github.com/leeforge/moneykeeper/json"
)

// MaxBodyBytes caps decoded request bodies.
const MaxBodyBytes = 1 << 20

type BindError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e BindError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: field '%s' %s", e.Type, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

type ValidationErrors []BindError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", ve[0].Error())
}

// JSON decodes the request body into v and validates it.
func JSON(r *http.Request, v any) error {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return &BindError{Type: "bind_error", Message: "request body is empty"}
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return &BindError{Type: "bind_error", Message: "failed to read request body: " + err.Error()}
	}
	if len(body) == 0 {
		return &BindError{Type: "bind_error", Message: "request body is empty"}
	}
	if len(body) > MaxBodyBytes {
		return &BindError{Type: "bind_error", Message: "request body is too large"}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return &BindError{Type: "json_error", Message: "failed to unmarshal JSON: " + err.Error()}
	}
	return Validate(v)
}

// Query binds r's query string into v and validates it.
func Query(r *http.Request, v any) error {
	if err := parseQuery(r.URL.Query(), v); err != nil {
		return err
	}
	return Validate(v)
}

// Validate runs struct validation and converts failures into ValidationErrors.
func Validate(v any) error {
	err := validator.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validatorV10.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &BindError{Type: "validation_error", Message: err.Error()}
	}
	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, BindError{
			Type:    "validation_error",
			Field:   fe.Field(),
			Message: getValidationMessage(fe),
		})
	}
	return out
}

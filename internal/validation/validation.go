package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"planethero/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// report json names rather than Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("gametype", func(fl validator.FieldLevel) bool {
		return models.GameType(fl.Field().String()).Known()
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return models.Role(fl.Field().String()).Valid()
	})

	return v
}

// FieldViolation describes one failed rule
type FieldViolation struct {
	Field string      `json:"field"`
	Tag   string      `json:"tag"`
	Param string      `json:"param,omitempty"`
	Value interface{} `json:"value,omitempty"`
}

// Message renders the violation for API clients
func (v FieldViolation) Message() string {
	switch v.Tag {
	case "required":
		return fmt.Sprintf("%s is required", v.Field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", v.Field, v.Param)
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", v.Field, v.Param)
	case "gametype":
		return fmt.Sprintf("%s is not a known game", v.Field)
	case "role":
		return fmt.Sprintf("%s must be student or teacher", v.Field)
	case "uuid4":
		return fmt.Sprintf("%s must be a session id", v.Field)
	}
	return fmt.Sprintf("field '%s' failed validation: %s", v.Field, v.Tag)
}

// Errors is returned by ValidateStruct when one or more rules fail
type Errors []FieldViolation

func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Message())
	}
	return strings.Join(msgs, "; ")
}

// ValidateStruct validates a struct using go-playground/validator
func ValidateStruct(s interface{}) error {
	if s == nil {
		return nil
	}

	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return fmt.Errorf("validator: expected a struct, got %T", s)
	}

	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		out := make(Errors, 0, len(ve))
		for _, e := range ve {
			out = append(out, FieldViolation{
				Field: e.Field(),
				Tag:   e.Tag(),
				Param: e.Param(),
				Value: e.Value(),
			})
		}
		return out
	}
	return fmt.Errorf("validation failed: %w", err)
}

// ValidateVar validates a single value against a tag
func ValidateVar(field string, value interface{}, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return Errors{{Field: field, Tag: ve[0].Tag(), Param: ve[0].Param(), Value: value}}
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

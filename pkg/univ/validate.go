package univ

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/moweilong/univadmin/pkg/errorsx"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// report fields by their json name, the name the backend uses in its errors
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks v against its validate tags and returns a 400 *errorsx.Error listing the
// offending fields, the same shape the backend uses for its own validation errors.
func Validate(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errorsx.Normalize(err)
	}

	fields := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		msgs, _ := fields[fe.Field()].([]string)
		fields[fe.Field()] = append(msgs, fieldMessage(fe))
	}
	e := errorsx.New(http.StatusBadRequest, errorsx.ReasonValidation, "invalid %s", typeName(v))
	e.Errors = fields
	return e.WithCause(err)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "oneof":
		return "Must be one of: " + fe.Param() + "."
	case "gte":
		return "Must be greater than or equal to " + fe.Param() + "."
	case "min":
		return "Must contain at least " + fe.Param() + " item(s)."
	default:
		return "Failed on the '" + fe.Tag() + "' rule."
	}
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return strings.ToLower(t.Name())
}

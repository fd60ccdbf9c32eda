// Package validator plugs go-playground/validator into gin request binding.
package validator

import (
	"reflect"
	"strings"
	"sync"

	valid "github.com/go-playground/validator/v10"
)

// Init validator instance, used to gin request parameter check
func Init() *CustomValidator {
	v := NewCustomValidator()
	v.Engine()
	return v
}

// CustomValidator Custom valid objects
type CustomValidator struct {
	once     sync.Once
	Validate *valid.Validate
}

// NewCustomValidator Instantiate
func NewCustomValidator() *CustomValidator {
	return &CustomValidator{}
}

// ValidateStruct validates a struct or slice/array
func (v *CustomValidator) ValidateStruct(obj interface{}) error {
	if obj == nil {
		return nil
	}
	v.lazyInit()

	val := reflect.ValueOf(obj)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}

	switch val.Kind() {
	case reflect.Struct:
		return v.Validate.Struct(obj)

	case reflect.Slice, reflect.Array:
		for i := 0; i < val.Len(); i++ {
			if err := v.ValidateStruct(val.Index(i).Interface()); err != nil {
				return err
			}
		}
	}

	return nil
}

// Engine set tag name "binding", which is implementing the validator interface of the gin framework
func (v *CustomValidator) Engine() interface{} {
	v.lazyInit()
	return v.Validate
}

func (v *CustomValidator) lazyInit() {
	v.once.Do(func() {
		v.Validate = valid.New()
		v.Validate.SetTagName("binding")
		// field errors are reported by json name
		v.Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// FieldErrors converts validation errors to the {"field": ["message"]} body of a 400.
func FieldErrors(err error) map[string][]string {
	verrs, ok := err.(valid.ValidationErrors)
	if !ok {
		return map[string][]string{"non_field_errors": {err.Error()}}
	}
	out := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		msg := "Invalid value."
		if fe.Tag() == "required" {
			msg = "This field is required."
		}
		out[fe.Field()] = append(out[fe.Field()], msg)
	}
	return out
}

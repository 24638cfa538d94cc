// Package validator wraps go-playground/validator with the booking tags
// and readable messages.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/queue-api/internal/model"
)

var indianPhone = regexp.MustCompile(`^[6-9]\d{9}$`)

// Validator provides validation functionality
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New()
	if err := Register(v); err != nil {
		panic(err)
	}
	return &Validator{v: v}
}

// Register installs the custom tags and JSON field naming on v. It is
// also used on gin's binding engine.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	if err := v.RegisterValidation("gender", func(fl validator.FieldLevel) bool {
		_, ok := model.ParseGender(fl.Field().String())
		return ok
	}); err != nil {
		return err
	}
	if err := v.RegisterValidation("indianphone", func(fl validator.FieldLevel) bool {
		return indianPhone.MatchString(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := model.ParseDate(fl.Field().String())
		return err == nil
	})
}

// Validate returns nil or an error describing the first failing field.
func (v *Validator) Validate(obj interface{}) error {
	err := v.v.Struct(obj)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return errors.New(Message(verrs[0]))
	}
	return err
}

// Message renders a single field error.
func Message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "gender":
		return fmt.Sprintf("%s must be one of MALE, FEMALE or OTHER", field)
	case "indianphone":
		return fmt.Sprintf("%s must be a valid 10 digit mobile number", field)
	case "date":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field)
	case "len":
		return fmt.Sprintf("%s must be %s characters", field, fe.Param())
	case "numeric":
		return fmt.Sprintf("%s must be numeric", field)
	}
	return fmt.Sprintf("%s is invalid", field)
}

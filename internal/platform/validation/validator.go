package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CustomValidator adapts go-playground/validator to echo.Validator.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// New builds the validator and registers the clinic-specific rules. It panics
// when a rule fails to register, since the server must not start without them.
func New() *CustomValidator {
	v := validator.New()

	// Report JSON field names so messages match request bodies.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("phone", isPhoneNumber); err != nil {
		panic("register phone validation: " + err.Error())
	}

	return &CustomValidator{validator: v}
}

var phoneRe = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{5,19}$`)

// isPhoneNumber accepts a blank value; callers treat it as no phone.
func isPhoneNumber(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	return s == "" || phoneRe.MatchString(s)
}

// Message flattens validator errors into one human readable line.
func Message(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param()))
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		case "phone":
			parts = append(parts, fmt.Sprintf("%s is not a valid phone number", fe.Field()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

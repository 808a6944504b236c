package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
)

var (
	pincodeRegex  = regexp.MustCompile(`^[1-9][0-9]{5}$`)
	phoneRegex    = regexp.MustCompile(`^\d{10}$`)
	gateTimeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

// Validator validates request and entity structs and sanitizes free text
type Validator struct {
	validate  *validator.Validate
	sanitizer *bluemonday.Policy
}

// New creates a validator with the marketplace's custom tags registered
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("pincode", func(fl validator.FieldLevel) bool {
		return pincodeRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone10", func(fl validator.FieldLevel) bool {
		return phoneRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("gatetime", func(fl validator.FieldLevel) bool {
		return gateTimeRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return IsStrongPassword(fl.Field().String())
	})

	return &Validator{
		validate:  v,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Struct validates s and returns a VALIDATION AppError listing every bad field
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewInternalError("validation failed", err)
	}

	fieldErrs := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fieldPath(fe)
		fieldErrs = append(fieldErrs, apperrors.FieldError{
			Field:   field,
			Message: message(field, fe),
		})
	}
	return apperrors.NewFieldValidationError(fieldErrs)
}

// Sanitize strips all markup from user supplied text
func (v *Validator) Sanitize(input string) string {
	return strings.TrimSpace(v.sanitizer.Sanitize(input))
}

// IsStrongPassword requires an upper case letter, a lower case letter, a digit and a symbol
func IsStrongPassword(password string) bool {
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}

// fieldPath drops the root struct name from the namespace: "address.city"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_with", "required_without":
		return fmt.Sprintf("%s is required.", field)
	case "email":
		return "Please provide a valid email."
	case "pincode":
		return "Invalid pincode."
	case "phone10":
		return "Please provide a valid 10 digit phone number."
	case "gatetime":
		return "Gate closing time must be in HH:MM format."
	case "strongpassword":
		return "Password must contain an uppercase letter, a lowercase letter, a number and a symbol."
	case "eqfield":
		return "Passwords are not the same!"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "latitude", "longitude":
		return fmt.Sprintf("Invalid %s value.", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s%s.", field, fe.Param(), unit(fe))
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s%s.", field, fe.Param(), unit(fe))
	case "len":
		return fmt.Sprintf("%s must be exactly %s%s.", field, fe.Param(), unit(fe))
	default:
		return fmt.Sprintf("Invalid %s value.", field)
	}
}

func unit(fe validator.FieldError) string {
	switch fe.Kind() {
	case reflect.String:
		return " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		return " items"
	default:
		return ""
	}
}

package core

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report paths with wire names so they match the JSON documents.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("store", func(fl validator.FieldLevel) bool {
		return StoreID(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	return v
}

// Validate checks the caller contract of the engine: known stores, finite
// non-negative amounts and well-formed dates. Every violation is listed.
func (d Dataset) Validate() error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidDataset, strings.Join(problems, "; "))
}

func describe(fe validator.FieldError) string {
	path := strings.TrimPrefix(fe.Namespace(), "Dataset.")
	switch fe.Tag() {
	case "required":
		return path + ": required"
	case "store":
		return fmt.Sprintf("%s: %v %q", path, ErrUnknownStore, fe.Value())
	case "datetime":
		return fmt.Sprintf("%s: %q does not match %s", path, fe.Value(), fe.Param())
	case "finite":
		return path + ": must be a finite number"
	case "gte":
		return fmt.Sprintf("%s: must not be negative, got %v", path, fe.Value())
	case "nefield":
		return path + ": sender and receiver must differ"
	default:
		return fmt.Sprintf("%s: failed %s", path, fe.Tag())
	}
}

// Package validation registers the request validators used by gin binding.
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

var accountTypes = map[string]bool{
	"Asset": true, "Liability": true, "Equity": true, "Income": true, "Expense": true,
}

// Register installs the custom tags on gin's validator engine.
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	return RegisterOn(v)
}

// RegisterOn installs the custom tags on v:
//
//	currency     three upper-case letters
//	accounttype  one of the chart-of-accounts types
//	nonnegdec    a decimal that is not negative
//	percent      a decimal between 0 and 100
func RegisterOn(v *validator.Validate) error {
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	if err := v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		return currencyPattern.MatchString(fl.Field().String())
	}); err != nil {
		return err
	}
	if err := v.RegisterValidation("accounttype", func(fl validator.FieldLevel) bool {
		return accountTypes[fl.Field().String()]
	}); err != nil {
		return err
	}
	if err := v.RegisterValidation("nonnegdec", func(fl validator.FieldLevel) bool {
		d, ok := decimalField(fl)
		return ok && !d.IsNegative()
	}); err != nil {
		return err
	}
	return v.RegisterValidation("percent", func(fl validator.FieldLevel) bool {
		d, ok := decimalField(fl)
		return ok && !d.IsNegative() && d.LessThanOrEqual(decimal.NewFromInt(100))
	})
}

// decimalField reads a field that the custom type func has rendered as a decimal string.
func decimalField(fl validator.FieldLevel) (decimal.Decimal, bool) {
	if fl.Field().Kind() != reflect.String {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(fl.Field().String())
	return d, err == nil
}

// NormalizePhone parses number for region and returns it in E.164 form.
// An empty number stays empty.
func NormalizePhone(number, region string) (string, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return "", nil
	}
	p, err := libphonenumber.Parse(number, region)
	if err != nil {
		return "", fmt.Errorf("invalid phone number %q: %w", number, err)
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", fmt.Errorf("phone number %q is not valid", number)
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}

// Package validation turns field rules into a map of field -> error code.
//
// Codes are i18n keys (see package i18n) so the same Violations value can be
// rendered inline in forms or returned as JSON details.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Add keeps the first code recorded for a field.
func (v Violations) Add(field, code string) {
	if _, exists := v[field]; !exists {
		v[field] = code
	}
}

func (v Violations) Merge(other Violations) {
	for field, code := range other {
		v.Add(field, code)
	}
}

func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "required")
	}
}

func PositiveDecimal(field string, val decimal.Decimal, v Violations) {
	if !val.IsPositive() {
		v.Add(field, "must_be_positive")
	}
}

func NonNegativeDecimal(field string, val decimal.Decimal, v Violations) {
	if val.IsNegative() {
		v.Add(field, "must_not_be_negative")
	}
}

// PercentDecimal requires 0 <= val <= 100.
func PercentDecimal(field string, val decimal.Decimal, v Violations) {
	if val.IsNegative() || val.GreaterThan(decimal.NewFromInt(100)) {
		v.Add(field, "out_of_range")
	}
}

var (
	hexColorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	prefixRe   = regexp.MustCompile(`^[A-Za-z0-9]{1,10}$`)
)

func HexColor(s string) bool { return hexColorRe.MatchString(s) }

// DocPrefix validates a numbering prefix once any trailing "-" is stripped.
func DocPrefix(s string) bool { return prefixRe.MatchString(strings.TrimRight(s, "-")) }

var (
	once     sync.Once
	validate *validator.Validate
)

func engine() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		_ = validate.RegisterValidation("hexcolor6", func(fl validator.FieldLevel) bool {
			return HexColor(fl.Field().String())
		})
		_ = validate.RegisterValidation("docprefix", func(fl validator.FieldLevel) bool {
			return DocPrefix(fl.Field().String())
		})
	})
	return validate
}

// codes maps validator tags to i18n codes.
var codes = map[string]string{
	"required":  "required",
	"email":     "invalid_email",
	"max":       "too_long",
	"min":       "too_short",
	"len":       "invalid_length",
	"oneof":     "invalid_choice",
	"alpha":     "invalid_format",
	"url":       "invalid_url",
	"gt":        "must_be_positive",
	"gte":       "must_not_be_negative",
	"lte":       "out_of_range",
	"lt":        "out_of_range",
	"hexcolor6": "invalid_color",
	"docprefix": "invalid_prefix",
}

// Struct runs `validate` tags on s. Empty optional fields should use omitempty.
func Struct(s any) Violations {
	v := Violations{}
	err := engine().Struct(s)
	if err == nil {
		return v
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		v.Add("_", "invalid")
		return v
	}
	for _, fe := range verrs {
		code, ok := codes[fe.Tag()]
		if !ok {
			code = "invalid"
		}
		v.Add(fe.Field(), code)
	}
	return v
}

package validation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type branding struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Color   string `json:"primary_color" validate:"hexcolor6"`
	Prefix  string `json:"invoice_prefix" validate:"docprefix"`
	Country string `json:"currency" validate:"len=3,alpha"`
}

func TestStruct(t *testing.T) {
	v := Struct(branding{Name: "", Email: "nope", Color: "#12345", Prefix: "INV-2025", Country: "EURO"})
	assert.Equal(t, "required", v["name"])
	assert.Equal(t, "invalid_email", v["email"])
	assert.Equal(t, "invalid_color", v["primary_color"])
	assert.Equal(t, "invalid_prefix", v["invoice_prefix"])
	assert.Equal(t, "invalid_length", v["currency"])

	ok := Struct(branding{Name: "Acme", Color: "#6B46C1", Prefix: "INV-", Country: "USD"})
	assert.True(t, ok.Empty(), "unexpected violations %v", ok)
}

func TestHelpers(t *testing.T) {
	v := Violations{}
	Required("description", "  ", v)
	PositiveDecimal("quantity", decimal.Zero, v)
	NonNegativeDecimal("unit_price", decimal.NewFromInt(-1), v)
	PercentDecimal("discount", decimal.NewFromInt(101), v)

	assert.Equal(t, Violations{
		"description": "required",
		"quantity":    "must_be_positive",
		"unit_price":  "must_not_be_negative",
		"discount":    "out_of_range",
	}, v)
}

func TestAddKeepsFirstCode(t *testing.T) {
	v := Violations{}
	v.Add("email", "required")
	v.Add("email", "invalid_email")
	v.Merge(Violations{"email": "taken", "name": "required"})
	assert.Equal(t, "required", v["email"])
	assert.Equal(t, "required", v["name"])
}

func TestDocPrefix(t *testing.T) {
	assert.True(t, DocPrefix("INV"))
	assert.True(t, DocPrefix("INV-"))
	assert.False(t, DocPrefix(""))
	assert.False(t, DocPrefix("ABCDEFGHIJK"))
	assert.False(t, DocPrefix("IN V"))
}

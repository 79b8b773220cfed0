package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/services"
	"github.com/diewo77/go-billing/validation"
)

// itemForm is one line item row as typed.
type itemForm struct {
	Description, Quantity, UnitPrice, Discount string
}

// docForm holds the raw document form. Line items are posted as parallel
// item_* arrays. A blank client_id with a client_name creates the client
// inline.
type docForm struct {
	ClientID      string
	ClientName    string
	ClientEmail   string
	ClientPhone   string
	ClientCompany string

	IssueDate    string
	Currency     string
	TaxRate      string
	DiscountRate string
	Notes        string
	Items        []itemForm

	DueDate      string
	PaymentTerms string

	ValidUntil string

	InvoiceID       string
	AmountPaid      string
	PaymentMethod   string
	ReferenceNumber string
}

func docFormFromRequest(r *http.Request) docForm {
	f := docForm{
		ClientID:        formString(r, "client_id"),
		ClientName:      formString(r, "client_name"),
		ClientEmail:     formString(r, "client_email"),
		ClientPhone:     formString(r, "client_phone"),
		ClientCompany:   formString(r, "client_company"),
		IssueDate:       formString(r, "issue_date"),
		Currency:        formString(r, "currency"),
		TaxRate:         formString(r, "tax_rate"),
		DiscountRate:    formString(r, "discount_rate"),
		Notes:           r.FormValue("notes"),
		DueDate:         formString(r, "due_date"),
		PaymentTerms:    formString(r, "payment_terms"),
		ValidUntil:      formString(r, "valid_until"),
		InvoiceID:       formString(r, "invoice_id"),
		AmountPaid:      formString(r, "amount_paid"),
		PaymentMethod:   formString(r, "payment_method"),
		ReferenceNumber: formString(r, "reference_number"),
	}
	desc := r.Form["item_description"]
	qty := r.Form["item_quantity"]
	price := r.Form["item_unit_price"]
	disc := r.Form["item_discount"]
	at := func(vals []string, i int) string {
		if i < len(vals) {
			return vals[i]
		}
		return ""
	}
	for i := range desc {
		f.Items = append(f.Items, itemForm{
			Description: desc[i],
			Quantity:    at(qty, i),
			UnitPrice:   at(price, i),
			Discount:    at(disc, i),
		})
	}
	return f
}

func docFormFrom(rec models.Record) docForm {
	d := rec.Doc()
	f := docForm{
		IssueDate:    d.IssueDate.Format(dateLayout),
		Currency:     d.Currency,
		TaxRate:      d.TaxRate.String(),
		DiscountRate: d.DiscountRate.String(),
		Notes:        d.Notes,
	}
	if d.ClientID != nil {
		f.ClientID = strconv.FormatUint(uint64(*d.ClientID), 10)
	}
	for _, it := range rec.LineItems() {
		f.Items = append(f.Items, itemForm{
			Description: it.Description,
			Quantity:    it.Quantity.String(),
			UnitPrice:   it.UnitPrice.StringFixed(2),
			Discount:    it.Discount.String(),
		})
	}
	switch r := rec.(type) {
	case *models.Invoice:
		f.DueDate = r.DueDate.Format(dateLayout)
		f.PaymentTerms = strconv.Itoa(r.PaymentTerms)
	case *models.Quote:
		f.ValidUntil = r.ValidUntil.Format(dateLayout)
	case *models.Receipt:
		if r.InvoiceID != nil {
			f.InvoiceID = strconv.FormatUint(uint64(*r.InvoiceID), 10)
		}
		f.AmountPaid = r.AmountPaid.StringFixed(2)
		f.PaymentMethod = r.PaymentMethod
		f.ReferenceNumber = r.ReferenceNumber
	}
	return f
}

func rawDate(field, raw string, v validation.Violations) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		v.Add(field, "invalid_date")
		return nil
	}
	return &t
}

func rawUint(field, raw string, v validation.Violations) *uint {
	if raw == "" || raw == "0" {
		return nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		v.Add(field, "invalid_choice")
		return nil
	}
	id := uint(n)
	return &id
}

// input converts the form, recording parse errors in v. Line item numbers
// that fail to parse are reported per row.
func (f docForm) input(v validation.Violations) services.DocumentInput {
	in := services.DocumentInput{
		ClientID:        rawUint("client_id", f.ClientID, v),
		IssueDate:       rawDate("issue_date", f.IssueDate, v),
		Currency:        f.Currency,
		TaxRate:         parseDecimal("tax_rate", f.TaxRate, v),
		DiscountRate:    parseDecimal("discount_rate", f.DiscountRate, v),
		Notes:           f.Notes,
		DueDate:         rawDate("due_date", f.DueDate, v),
		ValidUntil:      rawDate("valid_until", f.ValidUntil, v),
		InvoiceID:       rawUint("invoice_id", f.InvoiceID, v),
		AmountPaid:      parseDecimal("amount_paid", f.AmountPaid, v),
		PaymentMethod:   f.PaymentMethod,
		ReferenceNumber: f.ReferenceNumber,
	}
	if in.ClientID == nil && f.ClientName != "" {
		in.Client = &services.ClientInput{
			Name:        f.ClientName,
			Email:       f.ClientEmail,
			Phone:       f.ClientPhone,
			CompanyName: f.ClientCompany,
		}
	}
	if f.PaymentTerms != "" {
		n, err := strconv.Atoi(f.PaymentTerms)
		if err != nil {
			v.Add("payment_terms", "invalid_number")
		} else {
			in.PaymentTerms = &n
		}
	}
	for i, it := range f.Items {
		prefix := "items[" + strconv.Itoa(i) + "]."
		in.Items = append(in.Items, services.LineItemInput{
			Description: it.Description,
			Quantity:    orZero(parseDecimal(prefix+"quantity", it.Quantity, v)),
			UnitPrice:   orZero(parseDecimal(prefix+"unit_price", it.UnitPrice, v)),
			Discount:    orZero(parseDecimal(prefix+"discount", it.Discount, v)),
		})
	}
	return in
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

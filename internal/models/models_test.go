package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLineItem_LineTotal(t *testing.T) {
	tests := []struct {
		name     string
		qty      string
		price    string
		discount string
		want     string
	}{
		{"no discount", "2", "100", "0", "200"},
		{"10% discount", "2", "100", "10", "180"},
		{"full discount", "3", "50", "100", "0"},
		{"fractional quantity", "1.5", "19.99", "0", "29.985"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			li := LineItem{
				Quantity:  decimal.RequireFromString(tt.qty),
				UnitPrice: decimal.RequireFromString(tt.price),
				Discount:  decimal.RequireFromString(tt.discount),
			}
			if got := li.LineTotal(); !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("LineTotal() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestKind_CanTransition(t *testing.T) {
	tests := []struct {
		kind     Kind
		from, to Status
		want     bool
	}{
		{KindInvoice, StatusDraft, StatusSent, true},
		{KindInvoice, StatusDraft, StatusPaid, false},
		{KindInvoice, StatusSent, StatusPartiallyPaid, true},
		{KindInvoice, StatusPartiallyPaid, StatusPaid, true},
		{KindInvoice, StatusPaid, StatusDraft, false},
		{KindInvoice, StatusSent, StatusAccepted, false},
		{KindQuote, StatusSent, StatusAccepted, true},
		{KindQuote, StatusViewed, StatusDeclined, true},
		{KindQuote, StatusSent, StatusPaid, false},
		{KindReceipt, StatusOverdue, StatusPaid, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind)+":"+string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.kind.CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusFlags(t *testing.T) {
	if !StatusSent.Restricted() || !StatusPaid.Restricted() || StatusDraft.Restricted() {
		t.Error("unexpected Restricted()")
	}
	if !StatusPartiallyPaid.Settled() || StatusSent.Settled() {
		t.Error("unexpected Settled()")
	}
	if !StatusOverdue.Payable() || StatusDraft.Payable() || StatusPaid.Payable() {
		t.Error("unexpected Payable()")
	}
}

func TestCompany_Prefix(t *testing.T) {
	c := &Company{InvoicePrefix: "FAC-", QuotePrefix: ""}
	if got := c.Prefix(KindInvoice); got != "FAC" {
		t.Errorf("Prefix(invoice) = %q, want FAC", got)
	}
	if got := c.Prefix(KindQuote); got != "QUO" {
		t.Errorf("Prefix(quote) = %q, want QUO", got)
	}
	if got := c.Prefix(KindReceipt); got != "REC" {
		t.Errorf("Prefix(receipt) = %q, want REC", got)
	}
}

func TestCompany_ApplyDefaults(t *testing.T) {
	c := &Company{Name: "Acme", Currency: "eur"}
	c.ApplyDefaults()
	if c.PrimaryColor != DefaultPrimaryColor || c.FontFamily != DefaultFontFamily {
		t.Errorf("branding defaults not applied: %+v", c)
	}
	if c.Currency != "EUR" || c.DefaultPaymentTerms != 30 {
		t.Errorf("got currency %q terms %d", c.Currency, c.DefaultPaymentTerms)
	}
}

func TestClient_FullAddress(t *testing.T) {
	tests := []struct {
		name   string
		client Client
		want   string
	}{
		{
			name:   "full address",
			client: Client{AddressLine1: "123 Main St", PostalCode: "75001", City: "Paris", Country: "France"},
			want:   "123 Main St\n75001 Paris\nFrance",
		},
		{name: "only city", client: Client{City: "Paris"}, want: "Paris"},
		{name: "empty", client: Client{}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.client.FullAddress(); got != tt.want {
				t.Errorf("FullAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDocument_CopyClient(t *testing.T) {
	c := &Client{ID: 9, Name: "Ada", Email: "ada@example.com", CompanyName: "Analytical", City: "London"}
	var d Document
	d.CopyClient(c)
	if d.ClientID == nil || *d.ClientID != 9 || d.ClientName != "Ada" || d.ClientCompany != "Analytical" || d.ClientAddress != "London" {
		t.Fatalf("unexpected copy %+v", d)
	}
	c.Name = "Changed"
	if d.ClientName != "Ada" {
		t.Fatal("document copy must not follow the client")
	}
}

func TestInvoice_IsOverdue(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	inv := &Invoice{DueDate: time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)}
	inv.Status = StatusSent
	if !inv.IsOverdue(now) {
		t.Error("sent invoice past due should be overdue")
	}
	inv.Status = StatusPaid
	if inv.IsOverdue(now) {
		t.Error("paid invoice is never overdue")
	}
}

func TestSnapshot_ScanValue(t *testing.T) {
	s := Snapshot{Company: SnapshotCompany{Name: "Acme"}, Totals: SnapshotTotals{Total: "194.85"}}
	v, err := s.Value()
	if err != nil {
		t.Fatal(err)
	}
	var back Snapshot
	if err := back.Scan(v); err != nil {
		t.Fatal(err)
	}
	if back.Company.Name != "Acme" || back.Totals.Total != "194.85" {
		t.Fatalf("unexpected %+v", back)
	}
	if err := back.Scan(42); err == nil {
		t.Fatal("expected error for int column")
	}
}

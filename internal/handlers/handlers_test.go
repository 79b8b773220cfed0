package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/diewo77/go-billing/auth"
	"github.com/diewo77/go-billing/gate"
	"github.com/diewo77/go-billing/internal/dbtest"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/pdf"
	"github.com/diewo77/go-billing/internal/policy"
	"github.com/diewo77/go-billing/internal/services"
	"github.com/diewo77/go-billing/validation"
)

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&services.ValidationError{Violations: validation.Violations{"name": "required"}}, http.StatusUnprocessableEntity, "validation_failed"},
		{fmt.Errorf("load: %w", services.ErrNotFound), http.StatusNotFound, "not_found"},
		{pdf.ErrNotFound, http.StatusNotFound, "not_found"},
		{gate.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{gate.ErrForbidden, http.StatusForbidden, "forbidden"},
		{services.ErrForbidden, http.StatusForbidden, "forbidden"},
		{services.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
		{services.ErrDuplicateNumber, http.StatusConflict, "duplicate_number"},
		{services.ErrAlreadyConfigured, http.StatusConflict, "already_configured"},
		{pdf.ErrConversion, http.StatusBadGateway, "pdf_generation_failed"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		status, code := errorStatus(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestWriteServiceErrorJSONDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/clients", nil)
	req.Header.Set("Accept", "application/json")
	rr := httptest.NewRecorder()
	writeServiceError(rr, req, &services.ValidationError{Violations: validation.Violations{"email": "invalid_email"}})

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var body struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "validation_failed", body.Error)
	assert.Equal(t, "invalid_email", body.Details["email"])
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/invoices?page=2", safeNext("/invoices?page=2"))
	assert.Equal(t, "/dashboard", safeNext(""))
	assert.Equal(t, "/dashboard", safeNext("https://evil.example.com"))
	assert.Equal(t, "/dashboard", safeNext("//evil.example.com"))
	assert.Equal(t, "/dashboard", safeNext(`/\evil.example.com`))
}

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/invoices", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	_ = req.ParseForm()
	return req
}

func TestDocFormInput(t *testing.T) {
	req := postForm(url.Values{
		"client_id":        {""},
		"client_name":      {"Walk-in Customer"},
		"client_email":     {"walkin@example.com"},
		"issue_date":       {"2025-06-15"},
		"tax_rate":         {"8,25"},
		"payment_terms":    {"15"},
		"item_description": {"Design", "Hosting"},
		"item_quantity":    {"2", "abc"},
		"item_unit_price":  {"100", "10"},
	})
	v := validation.Violations{}
	in := docFormFromRequest(req).input(v)

	assert.Nil(t, in.ClientID)
	require.NotNil(t, in.Client)
	assert.Equal(t, "Walk-in Customer", in.Client.Name)
	require.NotNil(t, in.IssueDate)
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), *in.IssueDate)
	require.NotNil(t, in.TaxRate)
	assert.Equal(t, "8.25", in.TaxRate.String())
	require.NotNil(t, in.PaymentTerms)
	assert.Equal(t, 15, *in.PaymentTerms)
	require.Len(t, in.Items, 2)
	assert.Equal(t, "2", in.Items[0].Quantity.String())
	assert.True(t, in.Items[1].Quantity.IsZero())
	assert.Equal(t, validation.Violations{"items[1].quantity": "invalid_number"}, v)
}

func TestDocFormInputRejectsBadDates(t *testing.T) {
	v := validation.Violations{}
	in := docFormFromRequest(postForm(url.Values{
		"client_id":  {"x"},
		"due_date":   {"15/06/2025"},
		"invoice_id": {"0"},
	})).input(v)

	assert.Nil(t, in.ClientID)
	assert.Nil(t, in.DueDate)
	assert.Nil(t, in.InvoiceID)
	assert.Equal(t, "invalid_choice", v["client_id"])
	assert.Equal(t, "invalid_date", v["due_date"])
}

type fixture struct {
	db      *gorm.DB
	company *models.Company
	owner   services.Actor
	user    services.Actor
	gate    *policy.AuthGate
	clients *services.ClientService
	docs    *services.DocumentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := dbtest.Open(t)
	company := dbtest.Company(t, gdb, "Acme Studio", "8.25")
	owner := dbtest.User(t, gdb, company, "owner@example.com", models.RoleOwner)
	user := dbtest.User(t, gdb, company, "user@example.com", models.RoleUser)
	audit := services.NewAuditService(gdb)
	clients := services.NewClientService(gdb, audit)
	return &fixture{
		db:      gdb,
		company: company,
		owner:   services.Actor{UserID: owner.ID, CompanyID: company.ID, Role: models.RoleOwner},
		user:    services.Actor{UserID: user.ID, CompanyID: company.ID, Role: models.RoleUser},
		gate:    policy.NewAuthGate(gdb, 0),
		clients: clients,
		docs:    services.NewDocumentService(gdb, services.NewNumberer(time.Now), clients, audit, time.Now),
	}
}

// as attaches the session user and actor the middleware would set.
func as(req *http.Request, a services.Actor) *http.Request {
	ctx := auth.WithUserID(req.Context(), a.UserID)
	return req.WithContext(policy.WithActor(ctx, a))
}

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func TestClientHandlerCreateAndList(t *testing.T) {
	f := newFixture(t)
	h := NewClientHandler(f.clients, f.gate)

	rr := httptest.NewRecorder()
	h.Create(rr, as(jsonRequest(http.MethodPost, "/clients", map[string]string{"name": "Globex", "email": "OPS@Globex.test"}), f.owner))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = httptest.NewRecorder()
	h.List(rr, as(jsonRequest(http.MethodGet, "/clients?q=glob", nil), f.user))
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Clients []models.Client `json:"clients"`
		Total   int64           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body.Total)
	assert.Equal(t, "ops@globex.test", body.Clients[0].Email)
}

func TestClientHandlerFormValidation(t *testing.T) {
	f := newFixture(t)
	h := NewClientHandler(f.clients, f.gate)

	req := httptest.NewRequest(http.MethodPost, "/clients", strings.NewReader("name=&email=nope"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.Create(rr, as(req, f.owner))

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	var count int64
	require.NoError(t, f.db.Model(&models.Client{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDocumentHandlerPlainUserOnlySeesOwn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client, err := f.clients.Create(ctx, f.owner, services.ClientInput{Name: "Globex"})
	require.NoError(t, err)
	items := []services.LineItemInput{{Description: "Work", Quantity: dec("1"), UnitPrice: dec("50")}}
	ownerInv, err := f.docs.Create(ctx, f.owner, models.KindInvoice, services.DocumentInput{ClientID: &client.ID, Items: items})
	require.NoError(t, err)
	_, err = f.docs.Create(ctx, f.user, models.KindInvoice, services.DocumentInput{ClientID: &client.ID, Items: items})
	require.NoError(t, err)

	h := NewDocumentHandler(models.KindInvoice, f.docs, f.clients, services.NewCompanyService(f.db, nil), nil, f.gate)

	rr := httptest.NewRecorder()
	h.List(rr, as(jsonRequest(http.MethodGet, "/invoices", nil), f.user))
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.EqualValues(t, 1, list.Total)

	req := as(jsonRequest(http.MethodGet, "/invoices/x", nil), f.user)
	req.SetPathValue("id", fmt.Sprint(ownerInv.Doc().ID))
	rr = httptest.NewRecorder()
	h.View(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req = as(jsonRequest(http.MethodGet, "/invoices/x", nil), f.owner)
	req.SetPathValue("id", fmt.Sprint(ownerInv.Doc().ID))
	rr = httptest.NewRecorder()
	h.View(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	var view struct {
		Balance string `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, "54.13", view.Balance)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

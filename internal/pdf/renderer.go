// Package pdf turns document snapshots into PDF files served through
// expiring download tokens.
package pdf

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/diewo77/go-billing/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// Rendered is the HTML page and its stylesheet. The page links "style.css".
type Rendered struct {
	HTML string
	CSS  string
}

// Renderer executes the document template against a snapshot. It never reads
// live records, so the output only depends on what was locked.
type Renderer struct {
	tpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tpl, err := template.New("document.html").Funcs(template.FuncMap{
		"date":  formatDate,
		"lines": func(s string) []string { return strings.Split(s, "\n") },
	}).ParseFS(templateFS, "templates/document.html")
	if err != nil {
		return nil, fmt.Errorf("parse pdf template: %w", err)
	}
	return &Renderer{tpl: tpl}, nil
}

var titles = map[models.Kind]string{
	models.KindInvoice: "INVOICE",
	models.KindQuote:   "QUOTE",
	models.KindReceipt: "RECEIPT",
}

func (r *Renderer) Render(snap *models.Snapshot) (*Rendered, error) {
	if snap == nil {
		return nil, fmt.Errorf("render: nil snapshot")
	}
	billTo := "Bill to"
	if snap.Document.Kind == models.KindReceipt {
		billTo = "Received from"
	}
	data := map[string]any{
		"Title":    titles[snap.Document.Kind],
		"BillTo":   billTo,
		"Snapshot": snap,
	}
	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render %s %s: %w", snap.Document.Kind, snap.Document.Number, err)
	}
	css := ThemeCSS(Theme{
		Primary:    ParseHex(snap.Company.PrimaryColor, defaultPrimary),
		Accent:     ParseHex(snap.Company.AccentColor, defaultAccent),
		FontFamily: snap.Company.FontFamily,
	})
	return &Rendered{HTML: buf.String(), CSS: css}, nil
}

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.Format("2006-01-02")
	case *time.Time:
		if t != nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

package services

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/diewo77/go-billing/internal/models"
)

const reportSheet = "Invoices"

var reportHeadings = []string{
	"Number", "Client", "Issue date", "Due date", "Status",
	"Subtotal", "Tax", "Discount", "Total", "Currency",
}

// Export returns every document of a kind matching f, newest first, with
// items. f.Page is ignored.
func (s *DocumentService) Export(ctx context.Context, companyID uint, kind models.Kind, f DocumentFilter) ([]models.Record, error) {
	q, err := s.listQuery(ctx, companyID, kind, f)
	if err != nil {
		return nil, err
	}
	q = q.Preload("Items").Order("issue_date DESC").Order("id DESC")
	return findRecords(q, kind)
}

// InvoiceWorkbook lays invoices out one per row with their totals. Money
// cells are numbers so the sheet can sum them.
func InvoiceWorkbook(invoices []models.Record) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return nil, err
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, err
	}

	for i, h := range reportHeadings {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(reportSheet, cell, h); err != nil {
			return nil, err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(reportHeadings), 1)
	if err := f.SetCellStyle(reportSheet, "A1", last, header); err != nil {
		return nil, err
	}

	for i, rec := range invoices {
		row := i + 2
		d := rec.Doc()
		t := TotalsOf(rec)
		due := ""
		if inv, ok := rec.(*models.Invoice); ok {
			due = inv.DueDate.Format("2006-01-02")
		}
		values := []any{
			d.Number, d.ClientName, d.IssueDate.Format("2006-01-02"), due, string(d.Status),
			t.Subtotal.InexactFloat64(), t.TaxTotal.InexactFloat64(),
			t.DiscountTotal.InexactFloat64(), t.Total.InexactFloat64(), d.Currency,
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(reportSheet, start, &values); err != nil {
			return nil, fmt.Errorf("report row %d: %w", row, err)
		}
		from, _ := excelize.CoordinatesToCellName(6, row)
		to, _ := excelize.CoordinatesToCellName(9, row)
		if err := f.SetCellStyle(reportSheet, from, to, money); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(reportSheet, "A", "B", 24); err != nil {
		return nil, err
	}
	return f, nil
}

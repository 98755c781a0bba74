package reconcile

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ExportColumns is the column order of a full invoice export. A file in
// this layout is accepted back as a bulk update input.
var ExportColumns = []string{
	"invoice_id", "tax_amount", "purchase_order_number", "lorry_receipt", "eway_bill",
	"seller_pan", "seller_gst", "buyer_pan", "buyer_gst", "status",
	"loan_amount", "interest_rate", "disbursement_amount", "disbursement_date",
	"credit_period", "due_date", "invoice_amount",
}

// ExportRecord renders inv in ExportColumns order.
func ExportRecord(inv *domain.Invoice) []string {
	return []string{
		inv.InvoiceID,
		inv.TaxAmount.String(),
		inv.PurchaseOrderNumber,
		inv.LorryReceipt,
		inv.EwayBill,
		inv.SellerPAN,
		inv.SellerGST,
		inv.BuyerPAN,
		inv.BuyerGST,
		strconv.Itoa(int(inv.DisplayStatus())),
		optDecimal(inv.LoanAmount),
		optDecimal(inv.InterestRate),
		optDecimal(inv.DisbursementAmount),
		optDate(inv.DisbursementDate),
		optInt(inv.CreditPeriod),
		optDate(inv.DueDate),
		inv.InvoiceAmount.String(),
	}
}

func WriteCSV(w io.Writer, invoices []domain.Invoice) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i := range invoices {
		if err := cw.Write(ExportRecord(&invoices[i])); err != nil {
			return fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

const exportSheet = "Invoices"

func WriteXLSX(w io.Writer, invoices []domain.Invoice) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		return fmt.Errorf("open stream writer: %w", err)
	}

	if err := sw.SetRow("A1", toCells(ExportColumns)); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for i := range invoices {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, toCells(ExportRecord(&invoices[i]))); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush xlsx: %w", err)
	}
	_, err = f.WriteTo(w)
	return err
}

// toCells keeps every value as text so identifiers and dates survive
// spreadsheet round trips unchanged.
func toCells(record []string) []interface{} {
	cells := make([]interface{}, len(record))
	for i, v := range record {
		cells[i] = v
	}
	return cells
}

func optDecimal(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func optDate(d *domain.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func optInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

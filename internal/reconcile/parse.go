// Package reconcile applies spreadsheet batches of lifecycle updates to
// invoices and exports invoices back into the same column layout.
package reconcile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/punchamoorthee/invosafe/internal/lifecycle"
	"github.com/xuri/excelize/v2"
)

// DefaultRejectionReason is used for reject rows without a reason column.
const DefaultRejectionReason = "Rejected via bulk update"

var (
	ErrEmptyBatch        = errors.New("file contains no data rows")
	ErrMissingHeaders    = errors.New("missing required columns")
	ErrUnsupportedFile   = errors.New("unsupported file type, expected .csv or .xlsx")
	ErrUnsupportedBulkOp = errors.New("bulk operation must be finance, reject or repaid")
)

var financeColumns = []string{
	"invoice_id", "loan_amount", "interest_rate", "disbursement_amount",
	"disbursement_date", "credit_period", "due_date",
}

// RequiredColumns lists the headers a file must carry for op.
func RequiredColumns(op lifecycle.Operation) []string {
	if op == lifecycle.OpFinance {
		return financeColumns
	}
	return []string{"invoice_id"}
}

// ParseOperation accepts the three operations a batch may carry.
func ParseOperation(s string) (lifecycle.Operation, error) {
	op := lifecycle.Operation(strings.ToLower(strings.TrimSpace(s)))
	switch op {
	case lifecycle.OpFinance, lifecycle.OpReject, lifecycle.OpRepaid:
		return op, nil
	}
	return "", ErrUnsupportedBulkOp
}

// Row is one data line, with cells keyed by lower-cased header name.
type Row struct {
	Line  int
	Cells map[string]string
}

func (r Row) Get(column string) string {
	return strings.TrimSpace(r.Cells[column])
}

func (r Row) InvoiceID() string {
	return r.Get("invoice_id")
}

// Batch is a validated file ready for the engine.
type Batch struct {
	Operation lifecycle.Operation
	Rows      []Row
}

// Parse reads a CSV or XLSX file, chosen by the extension of name.
// A name without extension is read as CSV.
func Parse(name string, r io.Reader, op lifecycle.Operation) (*Batch, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case "", ".csv", ".txt":
		records, err = ReadCSV(r)
	case ".xlsx":
		records, err = ReadXLSX(r)
	default:
		return nil, ErrUnsupportedFile
	}
	if err != nil {
		return nil, err
	}
	return NewBatch(op, records)
}

// ReadCSV returns every record. Ragged rows are tolerated; missing cells
// read as empty.
func ReadCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return records, nil
}

// ReadXLSX returns the rows of the first sheet.
func ReadXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read xlsx rows: %w", err)
	}
	return rows, nil
}

// NewBatch locates columns by header name and rejects the whole file when
// a required header is absent or there are no data rows. Extra columns,
// such as those of a full export, are ignored.
func NewBatch(op lifecycle.Operation, records [][]string) (*Batch, error) {
	if _, err := ParseOperation(string(op)); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptyBatch
	}

	headers := make([]string, len(records[0]))
	present := make(map[string]bool, len(headers))
	for i, h := range records[0] {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		headers[i] = h
		present[h] = true
	}

	var missing []string
	for _, col := range RequiredColumns(op) {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingHeaders, strings.Join(missing, ", "))
	}

	batch := &Batch{Operation: op}
	for i, record := range records[1:] {
		if blank(record) {
			continue
		}
		row := Row{Line: i + 2, Cells: make(map[string]string, len(headers))}
		for j, h := range headers {
			if h == "" {
				continue
			}
			if j < len(record) {
				row.Cells[h] = record[j]
			} else {
				row.Cells[h] = ""
			}
		}
		batch.Rows = append(batch.Rows, row)
	}
	if len(batch.Rows) == 0 {
		return nil, ErrEmptyBatch
	}
	return batch, nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Change turns a row into the lifecycle change it requests. Row-level
// problems that the lifecycle cannot see, such as a missing invoice_id,
// are reported here.
func Change(op lifecycle.Operation, row Row) (lifecycle.Change, error) {
	c := lifecycle.Change{Op: op}
	if row.InvoiceID() == "" {
		return c, domain.Invalid("invoice_id", "is required")
	}
	switch op {
	case lifecycle.OpFinance:
		c.Finance = lifecycle.FinanceInput{
			LoanAmount:         row.Get("loan_amount"),
			InterestRate:       row.Get("interest_rate"),
			DisbursementAmount: row.Get("disbursement_amount"),
			DisbursementDate:   row.Get("disbursement_date"),
			CreditPeriod:       row.Get("credit_period"),
			DueDate:            row.Get("due_date"),
		}
		if _, err := lifecycle.ParseFinancing(c.Finance); err != nil {
			return c, err
		}
	case lifecycle.OpReject:
		c.RejectionReason = row.Get("rejection_reason")
		if c.RejectionReason == "" {
			c.RejectionReason = DefaultRejectionReason
		}
	case lifecycle.OpRepaid:
		c.Repay = lifecycle.RepayInput{
			RepaidDate: row.Get("repaid_date"),
			DueDate:    row.Get("due_date"),
		}
	}
	return c, nil
}

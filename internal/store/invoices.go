package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/shopspring/decimal"
)

const invoiceColumns = `id, invoice_id, user_id, lender_id, COALESCE(seller_id, 0), seller_pan, seller_gst,
	COALESCE(buyer_id, 0), buyer_pan, buyer_gst, invoice_amount::text, tax_amount::text,
	purchase_order_number, lorry_receipt, eway_bill, status, provenance,
	loan_amount::text, interest_rate::text, disbursement_amount::text, disbursement_date,
	credit_period, due_date, repaid_date, rejection_reason, created_at, updated_at`

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var (
		inv                  domain.Invoice
		amount, tax          string
		status               int16
		provenance           string
		loan, rate, disb     pgtype.Text
		disbDate, due, repay pgtype.Date
		period               pgtype.Int4
	)
	err := row.Scan(
		&inv.ID, &inv.InvoiceID, &inv.UserID, &inv.LenderID, &inv.SellerID, &inv.SellerPAN, &inv.SellerGST,
		&inv.BuyerID, &inv.BuyerPAN, &inv.BuyerGST, &amount, &tax,
		&inv.PurchaseOrderNumber, &inv.LorryReceipt, &inv.EwayBill, &status, &provenance,
		&loan, &rate, &disb, &disbDate,
		&period, &due, &repay, &inv.RejectionReason, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if inv.InvoiceAmount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("decode invoice_amount: %w", err)
	}
	if inv.TaxAmount, err = decimal.NewFromString(tax); err != nil {
		return nil, fmt.Errorf("decode tax_amount: %w", err)
	}
	inv.Status = domain.Status(status)
	inv.Provenance = domain.Provenance(provenance)
	if inv.LoanAmount, err = decimalFrom(loan); err != nil {
		return nil, err
	}
	if inv.InterestRate, err = decimalFrom(rate); err != nil {
		return nil, err
	}
	if inv.DisbursementAmount, err = decimalFrom(disb); err != nil {
		return nil, err
	}
	inv.DisbursementDate = dateFrom(disbDate)
	inv.DueDate = dateFrom(due)
	inv.RepaidDate = dateFrom(repay)
	inv.CreditPeriod = intFrom(period)
	return &inv, nil
}

func (s *Store) queryInvoices(ctx context.Context, sql string, args ...any) ([]domain.Invoice, error) {
	rows, err := s.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := []domain.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

// LockInvoiceID serialises creators of the same invoice_id until the
// surrounding transaction ends. It must run inside InTx.
func (s *Store) LockInvoiceID(ctx context.Context, invoiceID string) error {
	_, err := s.q(ctx).Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", invoiceID)
	if err != nil {
		return fmt.Errorf("advisory lock failed: %w", err)
	}
	return nil
}

// FindInvoices returns every copy of invoiceID across lenders.
func (s *Store) FindInvoices(ctx context.Context, invoiceID string) ([]domain.Invoice, error) {
	return s.queryInvoices(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE invoice_id = $1 ORDER BY id", invoiceID)
}

// ListInvoices returns a lender's invoices, optionally filtered by wire status.
func (s *Store) ListInvoices(ctx context.Context, lenderID int64, status *domain.Status) ([]domain.Invoice, error) {
	if status == nil {
		return s.queryInvoices(ctx,
			"SELECT "+invoiceColumns+" FROM invoices WHERE lender_id = $1 ORDER BY created_at DESC, id DESC", lenderID)
	}
	lifecycle, provenance := domain.SplitStatus(*status)
	if lifecycle == domain.StatusSearched {
		return s.queryInvoices(ctx,
			"SELECT "+invoiceColumns+" FROM invoices WHERE lender_id = $1 AND status = $2 AND provenance = $3 ORDER BY created_at DESC, id DESC",
			lenderID, int16(lifecycle), string(provenance))
	}
	return s.queryInvoices(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE lender_id = $1 AND status = $2 ORDER BY created_at DESC, id DESC",
		lenderID, int16(lifecycle))
}

// GetInvoice loads a lender's invoice by business id. With forUpdate the
// row stays locked until the surrounding transaction ends.
func (s *Store) GetInvoice(ctx context.Context, lenderID int64, invoiceID string, forUpdate bool) (*domain.Invoice, error) {
	sql := "SELECT " + invoiceColumns + " FROM invoices WHERE lender_id = $1 AND invoice_id = $2"
	if forUpdate {
		sql += " FOR UPDATE"
	}
	inv, err := scanInvoice(s.q(ctx).QueryRow(ctx, sql, lenderID, invoiceID))
	if err != nil {
		return nil, notFound(err, domain.ErrInvoiceNotFound)
	}
	return inv, nil
}

// CreateInvoice inserts inv and fills in its id and timestamps.
func (s *Store) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	err := s.q(ctx).QueryRow(ctx,
		`INSERT INTO invoices (invoice_id, user_id, lender_id, seller_id, seller_pan, seller_gst,
			buyer_id, buyer_pan, buyer_gst, invoice_amount, tax_amount, purchase_order_number,
			lorry_receipt, eway_bill, status, provenance, loan_amount, interest_rate,
			disbursement_amount, disbursement_date, credit_period, due_date, repaid_date, rejection_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		RETURNING id, created_at, updated_at`,
		inv.InvoiceID, inv.UserID, inv.LenderID, idArg(inv.SellerID), inv.SellerPAN, inv.SellerGST,
		idArg(inv.BuyerID), inv.BuyerPAN, inv.BuyerGST, inv.InvoiceAmount.String(), inv.TaxAmount.String(), inv.PurchaseOrderNumber,
		inv.LorryReceipt, inv.EwayBill, int16(inv.Status), string(inv.Provenance), numericArg(inv.LoanAmount), numericArg(inv.InterestRate),
		numericArg(inv.DisbursementAmount), dateArg(inv.DisbursementDate), intArg(inv.CreditPeriod), dateArg(inv.DueDate), dateArg(inv.RepaidDate), inv.RejectionReason,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateInvoice
		}
		return fmt.Errorf("invoice insert failed: %w", err)
	}
	return nil
}

// UpdateInvoice writes every mutable column of inv. Ownership and the
// invoice_id never change.
func (s *Store) UpdateInvoice(ctx context.Context, inv *domain.Invoice) error {
	err := s.q(ctx).QueryRow(ctx,
		`UPDATE invoices SET seller_id = $2, seller_pan = $3, seller_gst = $4, buyer_id = $5, buyer_pan = $6,
			buyer_gst = $7, invoice_amount = $8, tax_amount = $9, purchase_order_number = $10, lorry_receipt = $11,
			eway_bill = $12, status = $13, provenance = $14, loan_amount = $15, interest_rate = $16,
			disbursement_amount = $17, disbursement_date = $18, credit_period = $19, due_date = $20,
			repaid_date = $21, rejection_reason = $22, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		inv.ID, idArg(inv.SellerID), inv.SellerPAN, inv.SellerGST, idArg(inv.BuyerID), inv.BuyerPAN,
		inv.BuyerGST, inv.InvoiceAmount.String(), inv.TaxAmount.String(), inv.PurchaseOrderNumber, inv.LorryReceipt,
		inv.EwayBill, int16(inv.Status), string(inv.Provenance), numericArg(inv.LoanAmount), numericArg(inv.InterestRate),
		numericArg(inv.DisbursementAmount), dateArg(inv.DisbursementDate), intArg(inv.CreditPeriod), dateArg(inv.DueDate),
		dateArg(inv.RepaidDate), inv.RejectionReason,
	).Scan(&inv.UpdatedAt)
	if err != nil {
		return notFound(err, domain.ErrInvoiceNotFound)
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/punchamoorthee/invosafe/internal/auth"
	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/punchamoorthee/invosafe/internal/identity"
	"github.com/punchamoorthee/invosafe/internal/lifecycle"
	"github.com/punchamoorthee/invosafe/internal/logger"
	"github.com/punchamoorthee/invosafe/internal/models"
	"github.com/punchamoorthee/invosafe/internal/reconcile"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type InvoiceService struct {
	tx       TxRunner
	invoices InvoiceRepository
	lenders  LenderRepository
	bulk     reconcile.Options
	log      zerolog.Logger
}

func NewInvoiceService(tx TxRunner, invoices InvoiceRepository, lenders LenderRepository, bulk reconcile.Options) *InvoiceService {
	return &InvoiceService{
		tx:       tx,
		invoices: invoices,
		lenders:  lenders,
		bulk:     bulk,
		log:      logger.WithComponent("invoice-service"),
	}
}

// Create stores a new invoice for the caller's lender. Creation of one
// invoice_id is serialised across lenders so duplicate classification
// always sees every committed copy.
func (s *InvoiceService) Create(ctx context.Context, sess *auth.Session, p models.InvoicePayload) (*domain.Invoice, error) {
	var requested int64
	if p.LenderID != nil {
		requested = *p.LenderID
	}
	lenderID, err := auth.ScopeLender(sess, requested)
	if err != nil {
		return nil, err
	}

	inv := domain.Invoice{LenderID: lenderID, UserID: sess.UserID, Status: domain.StatusSearched}
	if p.InvoiceID != nil {
		inv.InvoiceID = strings.TrimSpace(*p.InvoiceID)
	}
	verr := &domain.ValidationError{}
	if p.InvoiceAmount == nil {
		verr.Add("invoice_amount", "is required")
	}
	applyFields(&inv, &p, verr)
	if err := verr.Err(); err != nil {
		return nil, err
	}
	if err := lifecycle.ValidateInvoice(&inv); err != nil {
		return nil, err
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		lender, err := s.lenders.GetLender(ctx, lenderID)
		if err != nil {
			return err
		}
		if lender.Status != domain.StatusActive {
			return domain.Invalid("lender_id", "lender is inactive")
		}
		if err := s.invoices.LockInvoiceID(ctx, inv.InvoiceID); err != nil {
			return err
		}
		matches, err := s.invoices.FindInvoices(ctx, inv.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Provenance, err = lifecycle.ClassifyDuplicate(lenderID, matches); err != nil {
			return err
		}
		return s.invoices.CreateInvoice(ctx, &inv)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("invoice_id", inv.InvoiceID).
		Int64("lender_id", lenderID).
		Int("status", int(inv.DisplayStatus())).
		Msg("Invoice created")
	return &inv, nil
}

// Check reports what creating invoiceID for lenderID would produce
// without writing anything.
func (s *InvoiceService) Check(ctx context.Context, lenderID int64, invoiceID string) (*models.CheckResult, error) {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return nil, domain.Invalid("invoice_id", "is required")
	}
	matches, err := s.invoices.FindInvoices(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	res := &models.CheckResult{InvoiceID: invoiceID, Matches: len(matches)}
	candidate := domain.Invoice{Status: domain.StatusSearched}
	candidate.Provenance, err = lifecycle.ClassifyDuplicate(lenderID, matches)
	if errors.Is(err, domain.ErrDuplicateInvoice) {
		res.Duplicate = true
	} else if err != nil {
		return nil, err
	}
	res.Status = candidate.DisplayStatus()
	return res, nil
}

func (s *InvoiceService) List(ctx context.Context, sess *auth.Session, lenderID int64, status *domain.Status) ([]domain.Invoice, error) {
	lenderID, err := auth.ScopeLender(sess, lenderID)
	if err != nil {
		return nil, err
	}
	if status != nil && !status.Valid() {
		return nil, domain.Invalid("status", fmt.Sprintf("unknown status %d", int(*status)))
	}
	return s.invoices.ListInvoices(ctx, lenderID, status)
}

// Find returns every visible copy of invoiceID. Admins see all lenders.
func (s *InvoiceService) Find(ctx context.Context, sess *auth.Session, invoiceID string) ([]domain.Invoice, error) {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return nil, domain.Invalid("invoice_id", "is required")
	}
	matches, err := s.invoices.FindInvoices(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if sess.Role() == domain.RoleAdmin {
		return matches, nil
	}
	visible := matches[:0]
	for _, m := range matches {
		if m.LenderID == sess.LenderID() {
			visible = append(visible, m)
		}
	}
	return visible, nil
}

// Update merges p onto the stored record and applies it. A status in p
// that differs from the current one runs the matching transition; the
// other fields are validated against the merged record.
func (s *InvoiceService) Update(ctx context.Context, sess *auth.Session, invoiceID string, p models.InvoicePayload) (*domain.Invoice, error) {
	var requested int64
	if p.LenderID != nil {
		requested = *p.LenderID
	}
	lenderID, err := auth.ScopeLender(sess, requested)
	if err != nil {
		return nil, err
	}

	var updated domain.Invoice
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		stored, err := s.invoices.GetInvoice(ctx, lenderID, invoiceID, true)
		if err != nil {
			return err
		}
		if updated, err = merge(*stored, &p); err != nil {
			return err
		}
		return s.invoices.UpdateInvoice(ctx, &updated)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Transition applies one lifecycle change to a lender's invoice under a
// row lock.
func (s *InvoiceService) Transition(ctx context.Context, sess *auth.Session, lenderID int64, invoiceID string, change lifecycle.Change) (*domain.Invoice, error) {
	lenderID, err := auth.ScopeLender(sess, lenderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, lenderID, invoiceID, change)
}

func (s *InvoiceService) transition(ctx context.Context, lenderID int64, invoiceID string, change lifecycle.Change) (*domain.Invoice, error) {
	var updated domain.Invoice
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		stored, err := s.invoices.GetInvoice(ctx, lenderID, invoiceID, true)
		if err != nil {
			return err
		}
		if updated, err = lifecycle.Apply(*stored, change); err != nil {
			return err
		}
		return s.invoices.UpdateInvoice(ctx, &updated)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("invoice_id", invoiceID).
		Int64("lender_id", lenderID).
		Str("operation", string(change.Op)).
		Msg("Invoice status changed")
	return &updated, nil
}

// Bulk runs a parsed batch against the lender's invoices.
func (s *InvoiceService) Bulk(ctx context.Context, sess *auth.Session, lenderID int64, batch *reconcile.Batch) (*reconcile.Report, error) {
	lenderID, err := auth.ScopeLender(sess, lenderID)
	if err != nil {
		return nil, err
	}
	engine := reconcile.NewEngine(&lenderTarget{svc: s, lenderID: lenderID}, s.bulk)
	return engine.Run(ctx, batch), nil
}

// lenderTarget applies batch rows to one lender's invoices.
type lenderTarget struct {
	svc      *InvoiceService
	lenderID int64
}

func (t *lenderTarget) Lookup(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	return t.svc.invoices.GetInvoice(ctx, t.lenderID, invoiceID, false)
}

func (t *lenderTarget) Apply(ctx context.Context, inv *domain.Invoice, change lifecycle.Change) (*domain.Invoice, error) {
	return t.svc.transition(ctx, t.lenderID, inv.InvoiceID, change)
}

func merge(stored domain.Invoice, p *models.InvoicePayload) (domain.Invoice, error) {
	if stored.Status == domain.StatusTrash {
		return stored, domain.Invalid("status", "trashed invoices cannot be edited")
	}
	if p.InvoiceID != nil && strings.TrimSpace(*p.InvoiceID) != stored.InvoiceID {
		return stored, domain.Invalid("invoice_id", "cannot be changed")
	}

	updated := stored
	verr := &domain.ValidationError{}
	applyFields(&updated, p, verr)
	if err := verr.Err(); err != nil {
		return stored, err
	}

	current := stored.DisplayStatus()
	switch {
	case p.Status == nil || *p.Status == current || *p.Status == stored.Status:
		if stored.Status == domain.StatusFinanced && touchesFinancing(p) {
			f, err := lifecycle.ParseFinancing(financeInput(&stored, p))
			if err != nil {
				return stored, err
			}
			updated.SetFinancing(f)
		}
		if p.RejectionReason != nil && stored.Status == domain.StatusRejected {
			if strings.TrimSpace(*p.RejectionReason) == "" {
				return stored, domain.Invalid("rejection_reason", "is required")
			}
			updated.RejectionReason = strings.TrimSpace(*p.RejectionReason)
		}
	default:
		target := *p.Status
		op, ok := lifecycle.OperationFor(target)
		if !ok {
			return stored, &domain.TransitionError{From: current, To: target}
		}
		change := lifecycle.Change{
			Op:      op,
			Finance: financeInput(&stored, p),
			Repay: lifecycle.RepayInput{
				RepaidDate: p.RepaidDate.String(),
				DueDate:    p.DueDate.String(),
			},
		}
		if p.RejectionReason != nil {
			change.RejectionReason = *p.RejectionReason
		}
		var err error
		if updated, err = lifecycle.Apply(updated, change); err != nil {
			return stored, err
		}
	}

	if err := lifecycle.ValidateInvoice(&updated); err != nil {
		return stored, err
	}
	return updated, nil
}

// applyFields copies the descriptive fields present in p onto inv.
func applyFields(inv *domain.Invoice, p *models.InvoicePayload, verr *domain.ValidationError) {
	if p.SellerID != nil {
		inv.SellerID = *p.SellerID
	}
	if p.BuyerID != nil {
		inv.BuyerID = *p.BuyerID
	}
	setIdentifier(&inv.SellerPAN, p.SellerPAN)
	setIdentifier(&inv.SellerGST, p.SellerGST)
	setIdentifier(&inv.BuyerPAN, p.BuyerPAN)
	setIdentifier(&inv.BuyerGST, p.BuyerGST)
	setText(&inv.PurchaseOrderNumber, p.PurchaseOrderNumber)
	setText(&inv.LorryReceipt, p.LorryReceipt)
	setText(&inv.EwayBill, p.EwayBill)

	if p.InvoiceAmount != nil {
		if d, ok := parseDecimal(verr, "invoice_amount", p.InvoiceAmount.String()); ok {
			inv.InvoiceAmount = d
		}
	}
	if p.TaxAmount != nil {
		if d, ok := parseDecimal(verr, "tax_amount", p.TaxAmount.String()); ok {
			inv.TaxAmount = d
		}
	}
}

func financeInput(stored *domain.Invoice, p *models.InvoicePayload) lifecycle.FinanceInput {
	in := lifecycle.FinanceInputFrom(stored)
	overlay(&in.LoanAmount, p.LoanAmount)
	overlay(&in.InterestRate, p.InterestRate)
	overlay(&in.DisbursementAmount, p.DisbursementAmount)
	overlay(&in.DisbursementDate, p.DisbursementDate)
	overlay(&in.CreditPeriod, p.CreditPeriod)
	overlay(&in.DueDate, p.DueDate)
	return in
}

func touchesFinancing(p *models.InvoicePayload) bool {
	return p.LoanAmount != nil || p.InterestRate != nil || p.DisbursementAmount != nil ||
		p.DisbursementDate != nil || p.CreditPeriod != nil || p.DueDate != nil
}

func overlay(dst *string, v *models.Text) {
	if v != nil {
		*dst = v.String()
	}
}

func setIdentifier(dst *string, v *string) {
	if v != nil {
		*dst = identity.Normalize(*v)
	}
}

func setText(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func parseDecimal(verr *domain.ValidationError, field, raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		verr.Add(field, "is required")
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		verr.Add(field, "must be a number")
		return decimal.Zero, false
	}
	if d.Exponent() < -2 {
		verr.Add(field, "must have at most 2 decimal places")
		return decimal.Zero, false
	}
	return d, true
}

package service

import (
	"context"
	"strings"

	"github.com/punchamoorthee/invosafe/internal/auth"
	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/punchamoorthee/invosafe/internal/models"
)

// ExternalService serves API-key callers. Every call costs one credit.
type ExternalService struct {
	tx       TxRunner
	invoices *InvoiceService
	credits  *CreditService
}

func NewExternalService(tx TxRunner, invoices *InvoiceService, credits *CreditService) *ExternalService {
	return &ExternalService{tx: tx, invoices: invoices, credits: credits}
}

// CheckInvoice charges the caller's lender and classifies invoiceID in one
// transaction, so a failed check is not billed.
func (s *ExternalService) CheckInvoice(ctx context.Context, sess auth.SessionStore, invoiceID string) (*models.CheckResult, error) {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return nil, domain.Invalid("invoice_id", "is required")
	}
	if sess.LenderID() == 0 {
		return nil, domain.ErrForbidden
	}

	var res *models.CheckResult
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.credits.Use(ctx, sess.LenderID(), 1, "Invoice check "+invoiceID); err != nil {
			return err
		}
		var err error
		res, err = s.invoices.Check(ctx, sess.LenderID(), invoiceID)
		return err
	})
	if err != nil {
		externalChecksTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	externalChecksTotal.WithLabelValues("ok").Inc()
	return res, nil
}

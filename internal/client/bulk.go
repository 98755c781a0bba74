package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/punchamoorthee/invosafe/internal/lifecycle"
)

// BulkTarget applies reconcile batches row by row through the API.
type BulkTarget struct {
	client *Client
	// LenderID selects the lender for admin sessions. Zero means the
	// caller's own lender.
	LenderID int64
}

func NewBulkTarget(c *Client, lenderID int64) *BulkTarget {
	return &BulkTarget{client: c, LenderID: lenderID}
}

func (t *BulkTarget) Lookup(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	invoices, err := t.client.FindInvoices(ctx, invoiceID)
	var terr *domain.TransportError
	if errors.As(err, &terr) && terr.Status == http.StatusNotFound {
		return nil, domain.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		if t.LenderID == 0 || invoices[i].LenderID == t.LenderID {
			return &invoices[i], nil
		}
	}
	return nil, domain.ErrInvoiceNotFound
}

func (t *BulkTarget) Apply(ctx context.Context, inv *domain.Invoice, change lifecycle.Change) (*domain.Invoice, error) {
	return t.client.Transition(ctx, t.LenderID, inv.InvoiceID, change)
}

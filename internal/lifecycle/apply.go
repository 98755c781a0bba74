package lifecycle

import (
	"strings"

	"github.com/punchamoorthee/invosafe/internal/domain"
)

// RepayInput carries the optional dates accepted when marking repaid.
type RepayInput struct {
	RepaidDate string
	DueDate    string
}

// Change is one requested transition with the payload it needs.
type Change struct {
	Op              Operation
	Finance         FinanceInput
	RejectionReason string
	Repay           RepayInput
}

// Apply validates c against inv and returns the updated record.
// inv itself is never modified.
func Apply(inv domain.Invoice, c Change) (domain.Invoice, error) {
	switch c.Op {
	case OpFinance:
		return Finance(inv, c.Finance)
	case OpReject:
		return Reject(inv, c.RejectionReason)
	case OpRepaid:
		return Repay(inv, c.Repay)
	case OpDelete:
		return Trash(inv)
	}
	_, err := ParseOperation(string(c.Op))
	return inv, err
}

// Finance moves a Searched invoice to Financed with validated detail.
func Finance(inv domain.Invoice, in FinanceInput) (domain.Invoice, error) {
	if err := Guard(&inv, domain.StatusFinanced); err != nil {
		return inv, err
	}
	f, err := ParseFinancing(in)
	if err != nil {
		return inv, err
	}
	inv.SetFinancing(f)
	inv.Status = domain.StatusFinanced
	return inv, nil
}

// Reject moves a Searched invoice to Rejected. A reason is mandatory.
func Reject(inv domain.Invoice, reason string) (domain.Invoice, error) {
	if err := Guard(&inv, domain.StatusRejected); err != nil {
		return inv, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return inv, domain.Invalid("rejection_reason", "is required")
	}
	inv.RejectionReason = reason
	inv.Status = domain.StatusRejected
	return inv, nil
}

// Repay moves a Financed invoice to Repaid, optionally recording the
// repayment date and a revised due date.
func Repay(inv domain.Invoice, in RepayInput) (domain.Invoice, error) {
	if err := Guard(&inv, domain.StatusRepaid); err != nil {
		return inv, err
	}
	verr := &domain.ValidationError{}
	var repaid, due *domain.Date
	if strings.TrimSpace(in.RepaidDate) != "" {
		if d, ok := parseDate(verr, "repaid_date", in.RepaidDate); ok {
			repaid = &d
		}
	}
	if strings.TrimSpace(in.DueDate) != "" {
		if d, ok := parseDate(verr, "due_date", in.DueDate); ok {
			if inv.DisbursementDate != nil && d.Before(*inv.DisbursementDate) {
				verr.Add("due_date", "must be on or after disbursement_date")
			}
			due = &d
		}
	}
	if err := verr.Err(); err != nil {
		return inv, err
	}
	if repaid != nil {
		inv.RepaidDate = repaid
	}
	if due != nil {
		inv.DueDate = due
	}
	inv.Status = domain.StatusRepaid
	return inv, nil
}

// Trash soft-deletes an invoice. Repaid and already trashed invoices stay put.
func Trash(inv domain.Invoice) (domain.Invoice, error) {
	if err := Guard(&inv, domain.StatusTrash); err != nil {
		return inv, err
	}
	inv.Status = domain.StatusTrash
	return inv, nil
}

package lifecycle

import (
	"strings"

	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/punchamoorthee/invosafe/internal/identity"
)

// ValidateInvoice checks the record-level invariants that hold in every
// state: a present invoice_id, positive amount, non-negative tax, well-formed
// party identifiers and consistent financing dates.
func ValidateInvoice(inv *domain.Invoice) error {
	verr := &domain.ValidationError{}

	if strings.TrimSpace(inv.InvoiceID) == "" {
		verr.Add("invoice_id", "is required")
	}
	if !inv.InvoiceAmount.IsPositive() {
		verr.Add("invoice_amount", "must be greater than 0")
	}
	if inv.TaxAmount.IsNegative() {
		verr.Add("tax_amount", "must not be negative")
	}

	validateParty(verr, "seller", inv.SellerPAN, inv.SellerGST)
	validateParty(verr, "buyer", inv.BuyerPAN, inv.BuyerGST)

	if inv.CreditPeriod != nil && *inv.CreditPeriod < 1 {
		verr.Add("credit_period", "must be at least 1")
	}
	if inv.DueDate != nil && inv.DisbursementDate != nil && inv.DueDate.Before(*inv.DisbursementDate) {
		verr.Add("due_date", "must be on or after disbursement_date")
	}
	return verr.Err()
}

func validateParty(verr *domain.ValidationError, party, pan, gstin string) {
	if pan != "" && !identity.IsPAN(pan) {
		verr.Add(party+"_pan", "is not a valid PAN")
	}
	if gstin == "" {
		return
	}
	embedded, ok := identity.PANFromGSTIN(gstin)
	if !ok {
		verr.Add(party+"_gst", "is not a valid GSTIN")
		return
	}
	if pan != "" && identity.IsPAN(pan) && identity.Normalize(pan) != embedded {
		verr.Add(party+"_gst", "does not belong to "+party+"_pan")
	}
}

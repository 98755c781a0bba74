package lifecycle

import "github.com/punchamoorthee/invosafe/internal/domain"

// ClassifyDuplicate decides the provenance of a new invoice for lenderID
// given every stored invoice sharing its invoice_id. A copy under the same
// lender, trashed or not, is a duplicate. Trashed copies at other lenders
// are ignored.
func ClassifyDuplicate(lenderID int64, matches []domain.Invoice) (domain.Provenance, error) {
	provenance := domain.ProvenanceNone
	for i := range matches {
		m := &matches[i]
		if m.LenderID == lenderID {
			return domain.ProvenanceNone, domain.ErrDuplicateInvoice
		}
		switch m.Status {
		case domain.StatusFinanced, domain.StatusRepaid:
			provenance = domain.ProvenanceAlreadyFinanced
		case domain.StatusSearched, domain.StatusRejected:
			if provenance == domain.ProvenanceNone {
				provenance = domain.ProvenanceAlreadyChecked
			}
		}
	}
	return provenance, nil
}

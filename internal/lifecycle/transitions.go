// Package lifecycle holds the invoice state machine and the field rules
// that guard each transition. Every function here is pure: callers pass a
// copy of the stored record and persist the result only on success.
package lifecycle

import (
	"fmt"

	"github.com/punchamoorthee/invosafe/internal/domain"
)

// Operation names a transition requested by a caller.
type Operation string

const (
	OpFinance Operation = "finance"
	OpReject  Operation = "reject"
	OpRepaid  Operation = "repaid"
	OpDelete  Operation = "delete"
)

func ParseOperation(s string) (Operation, error) {
	switch op := Operation(s); op {
	case OpFinance, OpReject, OpRepaid, OpDelete:
		return op, nil
	}
	return "", domain.Invalid("operation", fmt.Sprintf("unsupported operation %q", s))
}

// Target is the lifecycle state an operation moves an invoice into.
func (op Operation) Target() domain.Status {
	switch op {
	case OpFinance:
		return domain.StatusFinanced
	case OpReject:
		return domain.StatusRejected
	case OpRepaid:
		return domain.StatusRepaid
	}
	return domain.StatusTrash
}

// OperationFor is the inverse of Target.
func OperationFor(to domain.Status) (Operation, bool) {
	switch to {
	case domain.StatusFinanced:
		return OpFinance, true
	case domain.StatusRejected:
		return OpReject, true
	case domain.StatusRepaid:
		return OpRepaid, true
	case domain.StatusTrash:
		return OpDelete, true
	}
	return "", false
}

var transitions = map[domain.Status][]domain.Status{
	domain.StatusSearched: {domain.StatusFinanced, domain.StatusRejected, domain.StatusTrash},
	domain.StatusFinanced: {domain.StatusRepaid, domain.StatusTrash},
	domain.StatusRejected: {domain.StatusTrash},
}

// CanTransition reports whether the lifecycle allows from -> to.
// Provenance never matters: AlreadyChecked and AlreadyFinanced invoices
// are Searched as far as the state machine is concerned.
func CanTransition(from, to domain.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Guard returns a TransitionError when inv cannot move to the target state.
func Guard(inv *domain.Invoice, to domain.Status) error {
	if !CanTransition(inv.Status, to) {
		return &domain.TransitionError{From: inv.DisplayStatus(), To: to}
	}
	return nil
}

package lifecycle

import (
	"strconv"
	"strings"

	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/shopspring/decimal"
)

var maxInterestRate = decimal.NewFromInt(100)

// FinanceInput is financing detail as submitted: form fields, CSV cells or
// JSON values already rendered to text.
type FinanceInput struct {
	LoanAmount         string
	InterestRate       string
	DisbursementAmount string
	DisbursementDate   string
	CreditPeriod       string
	DueDate            string
}

// FinanceInputFrom renders stored financing detail back into input form,
// so a partial update can be merged onto it.
func FinanceInputFrom(inv *domain.Invoice) FinanceInput {
	var in FinanceInput
	if inv.LoanAmount != nil {
		in.LoanAmount = inv.LoanAmount.String()
	}
	if inv.InterestRate != nil {
		in.InterestRate = inv.InterestRate.String()
	}
	if inv.DisbursementAmount != nil {
		in.DisbursementAmount = inv.DisbursementAmount.String()
	}
	if inv.DisbursementDate != nil {
		in.DisbursementDate = inv.DisbursementDate.String()
	}
	if inv.CreditPeriod != nil {
		in.CreditPeriod = strconv.Itoa(*inv.CreditPeriod)
	}
	if inv.DueDate != nil {
		in.DueDate = inv.DueDate.String()
	}
	return in
}

// ParseFinancing validates every field and reports all failures at once.
func ParseFinancing(in FinanceInput) (domain.Financing, error) {
	var f domain.Financing
	verr := &domain.ValidationError{}

	f.LoanAmount = parseAmount(verr, "loan_amount", in.LoanAmount)
	f.InterestRate = parseAmount(verr, "interest_rate", in.InterestRate)
	if f.InterestRate.GreaterThan(maxInterestRate) {
		verr.Add("interest_rate", "must be between 0 and 100")
	}
	f.DisbursementAmount = parseAmount(verr, "disbursement_amount", in.DisbursementAmount)

	disbursed, okDisbursed := parseDate(verr, "disbursement_date", in.DisbursementDate)
	due, okDue := parseDate(verr, "due_date", in.DueDate)
	f.DisbursementDate, f.DueDate = disbursed, due
	if okDisbursed && okDue && due.Before(disbursed) {
		verr.Add("due_date", "must be on or after disbursement_date")
	}

	period := strings.TrimSpace(in.CreditPeriod)
	switch n, err := strconv.Atoi(period); {
	case period == "":
		verr.Add("credit_period", "is required")
	case err != nil:
		verr.Add("credit_period", "must be a whole number of months")
	case n < 1:
		verr.Add("credit_period", "must be at least 1")
	default:
		f.CreditPeriod = n
	}

	if err := verr.Err(); err != nil {
		return domain.Financing{}, err
	}
	return f, nil
}

// parseAmount parses a required non-negative number.
func parseAmount(verr *domain.ValidationError, field, raw string) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		verr.Add(field, "is required")
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		verr.Add(field, "must be a number")
		return decimal.Zero
	}
	if d.IsNegative() {
		verr.Add(field, "must not be negative")
	}
	if d.Exponent() < -2 {
		verr.Add(field, "must have at most 2 decimal places")
	}
	return d
}

func parseDate(verr *domain.ValidationError, field, raw string) (domain.Date, bool) {
	if strings.TrimSpace(raw) == "" {
		verr.Add(field, "is required")
		return domain.Date{}, false
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		verr.Add(field, "must be a date in YYYY-MM-DD format")
		return domain.Date{}, false
	}
	return d, true
}

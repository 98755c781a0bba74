package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the invoice status code as it appears on the wire.
// Only the first five values are lifecycle states; AlreadyChecked and
// AlreadyFinanced are derived from Provenance when reporting.
type Status int

const (
	StatusSearched        Status = 0
	StatusFinanced        Status = 1
	StatusRejected        Status = 2
	StatusRepaid          Status = 3
	StatusTrash           Status = 4
	StatusAlreadyChecked  Status = 5
	StatusAlreadyFinanced Status = 6
)

var statusNames = map[Status]string{
	StatusSearched:        "Searched",
	StatusFinanced:        "Financed",
	StatusRejected:        "Rejected",
	StatusRepaid:          "Repaid",
	StatusTrash:           "Trash",
	StatusAlreadyChecked:  "AlreadyChecked",
	StatusAlreadyFinanced: "AlreadyFinanced",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Valid reports whether s is one of the seven wire codes.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Lifecycle reports whether s is a state the state machine can hold.
func (s Status) Lifecycle() bool {
	return s >= StatusSearched && s <= StatusTrash
}

// Provenance records what duplicate detection found at creation time.
type Provenance string

const (
	ProvenanceNone            Provenance = ""
	ProvenanceAlreadyChecked  Provenance = "already_checked"
	ProvenanceAlreadyFinanced Provenance = "already_financed"
)

// SplitStatus maps a wire status code onto lifecycle state and provenance.
// It is used for status filters where 5 and 6 select tagged Searched invoices.
func SplitStatus(s Status) (Status, Provenance) {
	switch s {
	case StatusAlreadyChecked:
		return StatusSearched, ProvenanceAlreadyChecked
	case StatusAlreadyFinanced:
		return StatusSearched, ProvenanceAlreadyFinanced
	}
	return s, ProvenanceNone
}

const dateLayout = "2006-01-02"

// Date is a calendar date serialised as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD or a full RFC3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Financing is the validated financing detail of a Financed invoice.
type Financing struct {
	LoanAmount         decimal.Decimal
	InterestRate       decimal.Decimal
	DisbursementAmount decimal.Decimal
	DisbursementDate   Date
	CreditPeriod       int
	DueDate            Date
}

// Invoice is a single invoice record owned by one lender.
type Invoice struct {
	ID                  int64           `json:"id"`
	InvoiceID           string          `json:"invoice_id"`
	UserID              int64           `json:"user_id"`
	LenderID            int64           `json:"lender_id"`
	SellerID            int64           `json:"seller_id,omitempty"`
	SellerPAN           string          `json:"seller_pan"`
	SellerGST           string          `json:"seller_gst"`
	BuyerID             int64           `json:"buyer_id,omitempty"`
	BuyerPAN            string          `json:"buyer_pan"`
	BuyerGST            string          `json:"buyer_gst"`
	InvoiceAmount       decimal.Decimal `json:"invoice_amount"`
	TaxAmount           decimal.Decimal `json:"tax_amount"`
	PurchaseOrderNumber string          `json:"purchase_order_number"`
	LorryReceipt        string          `json:"lorry_receipt"`
	EwayBill            string          `json:"eway_bill"`

	Status     Status     `json:"status"`
	Provenance Provenance `json:"provenance,omitempty"`

	LoanAmount         *decimal.Decimal `json:"loan_amount"`
	InterestRate       *decimal.Decimal `json:"interest_rate"`
	DisbursementAmount *decimal.Decimal `json:"disbursement_amount"`
	DisbursementDate   *Date            `json:"disbursement_date"`
	CreditPeriod       *int             `json:"credit_period"`
	DueDate            *Date            `json:"due_date"`
	RepaidDate         *Date            `json:"repaid_date,omitempty"`
	RejectionReason    string           `json:"rejection_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayStatus is the wire status: tagged Searched invoices report 5 or 6.
func (inv *Invoice) DisplayStatus() Status {
	if inv.Status != StatusSearched {
		return inv.Status
	}
	switch inv.Provenance {
	case ProvenanceAlreadyChecked:
		return StatusAlreadyChecked
	case ProvenanceAlreadyFinanced:
		return StatusAlreadyFinanced
	}
	return StatusSearched
}

// SetFinancing copies validated financing detail onto the invoice.
func (inv *Invoice) SetFinancing(f Financing) {
	loan, rate, disb := f.LoanAmount, f.InterestRate, f.DisbursementAmount
	disbDate, due, period := f.DisbursementDate, f.DueDate, f.CreditPeriod
	inv.LoanAmount = &loan
	inv.InterestRate = &rate
	inv.DisbursementAmount = &disb
	inv.DisbursementDate = &disbDate
	inv.DueDate = &due
	inv.CreditPeriod = &period
}

func (inv Invoice) MarshalJSON() ([]byte, error) {
	type plain Invoice
	return json.Marshal(struct {
		plain
		Status Status `json:"status"`
	}{plain(inv), inv.DisplayStatus()})
}

// UnmarshalJSON accepts the wire status and splits 5 and 6 back into
// Searched plus provenance.
func (inv *Invoice) UnmarshalJSON(b []byte) error {
	type plain Invoice
	if err := json.Unmarshal(b, (*plain)(inv)); err != nil {
		return err
	}
	status, provenance := SplitStatus(inv.Status)
	inv.Status = status
	if provenance != ProvenanceNone {
		inv.Provenance = provenance
	}
	return nil
}

// Lender is a financing institution on the platform.
type Lender struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// LenderStatistics summarises a lender's invoices and users. Invoice counts
// are keyed by wire status and TotalInvoices includes trashed invoices.
type LenderStatistics struct {
	LenderID                int64           `json:"lender_id"`
	TotalInvoices           int64           `json:"total_invoices"`
	SearchedInvoices        int64           `json:"searched_invoices"`
	FinancedInvoices        int64           `json:"financed_invoices"`
	RejectedInvoices        int64           `json:"rejected_invoices"`
	RepaidInvoices          int64           `json:"repaid_invoices"`
	TrashedInvoices         int64           `json:"trashed_invoices"`
	AlreadyCheckedInvoices  int64           `json:"already_checked_invoices"`
	AlreadyFinancedInvoices int64           `json:"already_financed_invoices"`
	TotalInvoiceAmount      decimal.Decimal `json:"total_invoice_amount"`
	TotalDisbursedAmount    decimal.Decimal `json:"total_disbursed_amount"`
	TotalUsers              int64           `json:"total_users"`
	ActiveUsers             int64           `json:"active_users"`
	BlockedUsers            int64           `json:"blocked_users"`
}

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleUser    Role = "USER"
	// RoleAPIClient is the role given to requests authenticated by API key.
	RoleAPIClient Role = "API_CLIENT"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleUser
}

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusBlocked  = "blocked"
	StatusDeleted  = "deleted"
	StatusRevoked  = "revoked"
)

// User is a dashboard account. LenderID is zero for admins.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	LenderID     int64     `json:"lender_id,omitempty"`
	Status       string    `json:"status"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// APIClient is a lender-scoped programmatic credential.
type APIClient struct {
	ID         int64      `json:"id"`
	LenderID   int64      `json:"lender_id"`
	Name       string     `json:"name"`
	KeyID      string     `json:"key_id"`
	KeyHash    string     `json:"-"`
	Status     string     `json:"status"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// APICredits is a lender's credit balance. Available is always derived.
type APICredits struct {
	LenderID     int64     `json:"lender_id"`
	TotalCredits int64     `json:"total_credits"`
	UsedCredits  int64     `json:"used_credits"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (c APICredits) Available() int64 {
	return c.TotalCredits - c.UsedCredits
}

func (c APICredits) MarshalJSON() ([]byte, error) {
	type plain APICredits
	return json.Marshal(struct {
		plain
		AvailableCredits int64 `json:"available_credits"`
	}{plain(c), c.Available()})
}

type TransactionType string

const (
	TransactionPurchase TransactionType = "purchase"
	TransactionUsage    TransactionType = "usage"
	TransactionBilling  TransactionType = "billing"
)

// Transaction is an immutable credit ledger entry.
type Transaction struct {
	ID              int64           `json:"id"`
	LenderID        int64           `json:"lender_id"`
	Description     string          `json:"description"`
	CreditsChange   int64           `json:"credits_change"`
	BalanceAfter    int64           `json:"balance_after"`
	TransactionType TransactionType `json:"transaction_type"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

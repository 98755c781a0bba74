package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/punchamoorthee/invosafe/internal/domain"
)

// Text accepts a JSON string, number or null and keeps its textual form,
// so numeric fields can be validated with per-field errors instead of
// failing the whole body decode.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*t = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", b)
		}
		*t = Text(n.String())
	}
	return nil
}

func (t *Text) String() string {
	if t == nil {
		return ""
	}
	return string(*t)
}

// InvoicePayload is the body of create and full-record update requests.
// Nil fields are left untouched on update.
type InvoicePayload struct {
	InvoiceID           *string `json:"invoice_id,omitempty"`
	LenderID            *int64  `json:"lender_id,omitempty"`
	SellerID            *int64  `json:"seller_id,omitempty"`
	SellerPAN           *string `json:"seller_pan,omitempty"`
	SellerGST           *string `json:"seller_gst,omitempty"`
	BuyerID             *int64  `json:"buyer_id,omitempty"`
	BuyerPAN            *string `json:"buyer_pan,omitempty"`
	BuyerGST            *string `json:"buyer_gst,omitempty"`
	InvoiceAmount       *Text   `json:"invoice_amount,omitempty"`
	TaxAmount           *Text   `json:"tax_amount,omitempty"`
	PurchaseOrderNumber *string `json:"purchase_order_number,omitempty"`
	LorryReceipt        *string `json:"lorry_receipt,omitempty"`
	EwayBill            *string `json:"eway_bill,omitempty"`

	Status *domain.Status `json:"status,omitempty"`

	LoanAmount         *Text   `json:"loan_amount,omitempty"`
	InterestRate       *Text   `json:"interest_rate,omitempty"`
	DisbursementAmount *Text   `json:"disbursement_amount,omitempty"`
	DisbursementDate   *Text   `json:"disbursement_date,omitempty"`
	CreditPeriod       *Text   `json:"credit_period,omitempty"`
	DueDate            *Text   `json:"due_date,omitempty"`
	RepaidDate         *Text   `json:"repaid_date,omitempty"`
	RejectionReason    *string `json:"rejection_reason,omitempty"`
}

// FinanceRequest is the body of the explicit finance transition.
type FinanceRequest struct {
	LoanAmount         Text `json:"loan_amount"`
	InterestRate       Text `json:"interest_rate"`
	DisbursementAmount Text `json:"disbursement_amount"`
	DisbursementDate   Text `json:"disbursement_date"`
	CreditPeriod       Text `json:"credit_period"`
	DueDate            Text `json:"due_date"`
}

type RejectRequest struct {
	RejectionReason string `json:"rejection_reason"`
}

type RepaidRequest struct {
	RepaidDate Text `json:"repaid_date"`
	DueDate    Text `json:"due_date"`
}

// CheckResult reports what creating an invoice would classify it as.
type CheckResult struct {
	InvoiceID string        `json:"invoice_id"`
	Status    domain.Status `json:"status"`
	Duplicate bool          `json:"duplicate"`
	Matches   int           `json:"matches"`
}

// PurchaseRequest buys credits for a lender.
type PurchaseRequest struct {
	LenderID      int64  `json:"lender_id"`
	CreditsAmount int64  `json:"credits_amount"`
	Description   string `json:"description"`
}

// PurchaseResponse is the canonical response for 201 and idempotent replays.
type PurchaseResponse struct {
	Credits     domain.APICredits  `json:"credits"`
	Transaction domain.Transaction `json:"transaction"`
}

// UpsertCreditsRequest provisions a lender's credit totals.
type UpsertCreditsRequest struct {
	LenderID     int64 `json:"lender_id"`
	TotalCredits int64 `json:"total_credits"`
	UsedCredits  int64 `json:"used_credits"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
	User        domain.User `json:"user"`
}

type LenderRequest struct {
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

type CreateUserRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
	LenderID int64       `json:"lender_id"`
}

type UserStatusRequest struct {
	Status string `json:"status"`
}

type PasswordRequest struct {
	OldPassword string `json:"old_password,omitempty"`
	NewPassword string `json:"new_password"`
}

type CreateAPIClientRequest struct {
	LenderID int64  `json:"lender_id"`
	Name     string `json:"name"`
}

// APIClientCreated is returned once at creation; the plain key is never
// retrievable afterwards.
type APIClientCreated struct {
	domain.APIClient
	APIKey string `json:"api_key"`
}

// FieldDetail is one entry of a validation error response.
type FieldDetail struct {
	Loc []string `json:"loc"`
	Msg string   `json:"msg"`
}

// ErrorResponse carries either a message or a list of FieldDetail.
type ErrorResponse struct {
	Detail any `json:"detail"`
}

// IdempotencyRecord holds the state of a request key.
type IdempotencyRecord struct {
	Key            string
	RequestHash    string
	Status         string
	ResponseBody   json.RawMessage
	ResponseStatus int
}

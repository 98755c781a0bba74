package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/punchamoorthee/invosafe/internal/auth"
	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/punchamoorthee/invosafe/internal/lifecycle"
	"github.com/punchamoorthee/invosafe/internal/models"
	"github.com/punchamoorthee/invosafe/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func session(role domain.Role, lenderID int64) *auth.Session {
	return auth.NewSession("token", &auth.Claims{UserID: 7, Role: string(role), LenderID: lenderID})
}

func ptr[T any](v T) *T { return &v }

func text(s string) *models.Text {
	t := models.Text(s)
	return &t
}

func invoicePayload(invoiceID string) models.InvoicePayload {
	return models.InvoicePayload{
		InvoiceID:     ptr(invoiceID),
		SellerPAN:     ptr("ABCDE1234F"),
		SellerGST:     ptr("29ABCDE1234F1Z5"),
		BuyerPAN:      ptr("PQRST6789K"),
		InvoiceAmount: text("10000"),
		TaxAmount:     text("500"),
	}
}

func financeChange() lifecycle.Change {
	return lifecycle.Change{
		Op: lifecycle.OpFinance,
		Finance: lifecycle.FinanceInput{
			LoanAmount:         "9000",
			InterestRate:       "12",
			DisbursementAmount: "9000",
			DisbursementDate:   "2024-01-01",
			CreditPeriod:       "3",
			DueDate:            "2024-04-01",
		},
	}
}

func newInvoiceService(t *testing.T) (*InvoiceService, *memStore) {
	t.Helper()
	m := newMemStore()
	return NewInvoiceService(m, m, m, reconcile.Options{Concurrency: 2}), m
}

func TestInvoiceLifecycleScenario(t *testing.T) {
	svc, m := newInvoiceService(t)
	lender := m.addLender("Acme Finance")
	sess := session(domain.RoleUser, lender)
	ctx := context.Background()

	inv, err := svc.Create(ctx, sess, invoicePayload("INV-100"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSearched, inv.DisplayStatus())
	assert.Equal(t, lender, inv.LenderID)
	assert.Equal(t, "10000", inv.InvoiceAmount.String())

	inv, err = svc.Transition(ctx, sess, 0, "INV-100", financeChange())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinanced, inv.Status)

	stored, err := m.GetInvoice(ctx, lender, "INV-100", false)
	require.NoError(t, err)
	assert.Equal(t, "9000", stored.LoanAmount.String())
	assert.Equal(t, "12", stored.InterestRate.String())
	assert.Equal(t, "2024-01-01", stored.DisbursementDate.String())
	assert.Equal(t, 3, *stored.CreditPeriod)
	assert.Equal(t, "2024-04-01", stored.DueDate.String())

	inv, err = svc.Transition(ctx, sess, 0, "INV-100", lifecycle.Change{Op: lifecycle.OpRepaid})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRepaid, inv.Status)

	_, err = svc.Transition(ctx, sess, 0, "INV-100", lifecycle.Change{Op: lifecycle.OpReject, RejectionReason: "late"})
	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, domain.StatusRepaid, terr.From)

	stored, err = m.GetInvoice(ctx, lender, "INV-100", false)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRepaid, stored.Status)
}

func TestCreateClassifiesDuplicates(t *testing.T) {
	svc, m := newInvoiceService(t)
	a, b, c := m.addLender("A"), m.addLender("B"), m.addLender("C")
	ctx := context.Background()

	_, err := svc.Create(ctx, session(domain.RoleUser, a), invoicePayload("INV-7"))
	require.NoError(t, err)

	_, err = svc.Create(ctx, session(domain.RoleUser, a), invoicePayload("INV-7"))
	assert.ErrorIs(t, err, domain.ErrDuplicateInvoice)

	inv, err := svc.Create(ctx, session(domain.RoleUser, b), invoicePayload("INV-7"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAlreadyChecked, inv.DisplayStatus())

	_, err = svc.Transition(ctx, session(domain.RoleUser, a), 0, "INV-7", financeChange())
	require.NoError(t, err)

	res, err := svc.Check(ctx, c, "INV-7")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAlreadyFinanced, res.Status)
	assert.False(t, res.Duplicate)
	assert.Equal(t, 2, res.Matches)

	inv, err = svc.Create(ctx, session(domain.RoleUser, c), invoicePayload("INV-7"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAlreadyFinanced, inv.DisplayStatus())

	res, err = svc.Check(ctx, a, "INV-7")
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
}

func TestCreateValidation(t *testing.T) {
	svc, m := newInvoiceService(t)
	lender := m.addLender("A")
	ctx := context.Background()

	p := invoicePayload("INV-1")
	p.InvoiceAmount = text("0")
	p.SellerGST = ptr("29ZZZZZ9999Z1Z5")
	_, err := svc.Create(ctx, session(domain.RoleUser, lender), p)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "invoice_amount")
	assert.Contains(t, err.Error(), "seller_gst")

	p = invoicePayload("INV-1")
	p.TaxAmount = text("lots")
	_, err = svc.Create(ctx, session(domain.RoleUser, lender), p)
	assert.ErrorContains(t, err, "tax_amount: must be a number")

	p = invoicePayload("INV-1")
	p.InvoiceAmount = text("0.001")
	_, err = svc.Create(ctx, session(domain.RoleUser, lender), p)
	assert.ErrorContains(t, err, "invoice_amount: must have at most 2 decimal places")

	_, err = svc.Create(ctx, session(domain.RoleAdmin, 0), invoicePayload("INV-1"))
	assert.ErrorContains(t, err, "lender_id")

	_, err = svc.Create(ctx, session(domain.RoleUser, 99), invoicePayload("INV-1"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	invs, err := m.ListInvoices(ctx, lender, nil)
	require.NoError(t, err)
	assert.Empty(t, invs)
}

func TestLenderScoping(t *testing.T) {
	svc, m := newInvoiceService(t)
	a, b := m.addLender("A"), m.addLender("B")
	ctx := context.Background()

	p := invoicePayload("INV-1")
	p.LenderID = ptr(b)
	_, err := svc.Create(ctx, session(domain.RoleUser, a), p)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.Create(ctx, session(domain.RoleAdmin, 0), p)
	require.NoError(t, err)
	_, err = svc.Create(ctx, session(domain.RoleUser, a), invoicePayload("INV-1"))
	require.NoError(t, err)

	found, err := svc.Find(ctx, session(domain.RoleUser, a), "INV-1")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, a, found[0].LenderID)

	found, err = svc.Find(ctx, session(domain.RoleAdmin, 0), "INV-1")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	_, err = svc.List(ctx, session(domain.RoleManager, a), b, nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	checked := domain.StatusAlreadyChecked
	list, err := svc.List(ctx, session(domain.RoleUser, a), 0, &checked)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUpdateMergesOntoStoredRecord(t *testing.T) {
	svc, m := newInvoiceService(t)
	lender := m.addLender("A")
	sess := session(domain.RoleUser, lender)
	ctx := context.Background()

	_, err := svc.Create(ctx, sess, invoicePayload("INV-1"))
	require.NoError(t, err)

	inv, err := svc.Update(ctx, sess, "INV-1", models.InvoicePayload{EwayBill: ptr("EWB-1")})
	require.NoError(t, err)
	assert.Equal(t, "EWB-1", inv.EwayBill)
	assert.Equal(t, "ABCDE1234F", inv.SellerPAN)

	_, err = svc.Update(ctx, sess, "INV-1", models.InvoicePayload{
		Status:     ptr(domain.StatusFinanced),
		LoanAmount: text("9000"),
	})
	assert.ErrorContains(t, err, "interest_rate")

	inv, err = svc.Update(ctx, sess, "INV-1", models.InvoicePayload{
		Status:             ptr(domain.StatusFinanced),
		LoanAmount:         text("9000"),
		InterestRate:       text("12"),
		DisbursementAmount: text("9000"),
		DisbursementDate:   text("2024-01-01"),
		CreditPeriod:       text("3"),
		DueDate:            text("2024-04-01"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinanced, inv.Status)

	_, err = svc.Update(ctx, sess, "INV-1", models.InvoicePayload{DueDate: text("2023-12-31")})
	assert.ErrorContains(t, err, "due_date")

	inv, err = svc.Update(ctx, sess, "INV-1", models.InvoicePayload{LoanAmount: text("8500")})
	require.NoError(t, err)
	assert.Equal(t, "8500", inv.LoanAmount.String())

	_, err = svc.Update(ctx, sess, "INV-1", models.InvoicePayload{Status: ptr(domain.StatusRejected), RejectionReason: ptr("x")})
	var terr *domain.TransitionError
	assert.ErrorAs(t, err, &terr)

	_, err = svc.Update(ctx, sess, "INV-1", models.InvoicePayload{InvoiceID: ptr("INV-2")})
	assert.ErrorContains(t, err, "invoice_id")

	_, err = svc.Transition(ctx, sess, 0, "INV-1", lifecycle.Change{Op: lifecycle.OpDelete})
	require.NoError(t, err)
	_, err = svc.Update(ctx, sess, "INV-1", models.InvoicePayload{EwayBill: ptr("EWB-2")})
	assert.ErrorContains(t, err, "trashed")
}

func TestBulkAppliesToOwnLenderOnly(t *testing.T) {
	svc, m := newInvoiceService(t)
	a, b := m.addLender("A"), m.addLender("B")
	ctx := context.Background()

	for _, id := range []string{"INV-1", "INV-2"} {
		_, err := svc.Create(ctx, session(domain.RoleUser, a), invoicePayload(id))
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, session(domain.RoleUser, b), invoicePayload("INV-3"))
	require.NoError(t, err)

	batch, err := reconcile.NewBatch(lifecycle.OpReject, [][]string{
		{"invoice_id", "rejection_reason"},
		{"INV-1", "bad docs"},
		{"INV-3", ""},
		{"INV-2", ""},
	})
	require.NoError(t, err)

	report, err := svc.Bulk(ctx, session(domain.RoleUser, a), 0, batch)
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	assert.Equal(t, 2, report.SuccessCount)
	assert.Equal(t, 1, report.ErrorCount)
	assert.Equal(t, reconcile.ResultError, report.Results[1].Status)

	inv, err := m.GetInvoice(ctx, a, "INV-2", false)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, inv.Status)
	assert.Equal(t, reconcile.DefaultRejectionReason, inv.RejectionReason)

	inv, err = m.GetInvoice(ctx, b, "INV-3", false)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSearched, inv.Status)
	assert.Empty(t, inv.RejectionReason)
}

func newCreditService(t *testing.T) (*CreditService, *memStore, int64) {
	t.Helper()
	m := newMemStore()
	lender := m.addLender("A")
	return NewCreditService(m, m, m), m, lender
}

func TestPurchaseKeepsLedgerDerived(t *testing.T) {
	svc, m, lender := newCreditService(t)
	sess := session(domain.RoleManager, lender)
	ctx := context.Background()

	c, err := svc.Get(ctx, sess, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), c.Available())

	var total int64
	for _, amount := range []int64{100, 1, 250} {
		resp, replay, err := svc.Purchase(ctx, sess, models.PurchaseRequest{CreditsAmount: amount}, "", "")
		require.NoError(t, err)
		require.Nil(t, replay)
		total += amount
		assert.Equal(t, total, resp.Credits.TotalCredits)
		assert.Equal(t, resp.Credits.TotalCredits-resp.Credits.UsedCredits, resp.Credits.Available())
		assert.Equal(t, resp.Credits.Available(), resp.Transaction.BalanceAfter)
		assert.Equal(t, domain.TransactionPurchase, resp.Transaction.TransactionType)
	}

	_, err = svc.Use(ctx, lender, 51, "checks")
	require.NoError(t, err)

	for _, amount := range []int64{0, -5} {
		_, _, err := svc.Purchase(ctx, sess, models.PurchaseRequest{CreditsAmount: amount}, "", "")
		assert.ErrorContains(t, err, "credits_amount")
	}

	c, err = svc.Get(ctx, sess, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(351), c.TotalCredits)
	assert.Equal(t, int64(51), c.UsedCredits)
	assert.Equal(t, int64(300), c.Available())

	txns, err := m.ListTransactions(ctx, lender)
	require.NoError(t, err)
	assert.Len(t, txns, 4)
	assert.Equal(t, int64(-51), txns[3].CreditsChange)
}

func TestPurchaseIdempotency(t *testing.T) {
	svc, _, lender := newCreditService(t)
	sess := session(domain.RoleManager, lender)
	ctx := context.Background()
	req := models.PurchaseRequest{CreditsAmount: 10}

	resp, replay, err := svc.Purchase(ctx, sess, req, "key-1", "hash-a")
	require.NoError(t, err)
	require.Nil(t, replay)

	_, replay, err = svc.Purchase(ctx, sess, req, "key-1", "hash-a")
	require.NoError(t, err)
	require.NotNil(t, replay)
	var replayed models.PurchaseResponse
	require.NoError(t, json.Unmarshal(replay.ResponseBody, &replayed))
	assert.Equal(t, resp.Transaction.ID, replayed.Transaction.ID)
	assert.Equal(t, 201, replay.ResponseStatus)

	_, _, err = svc.Purchase(ctx, sess, models.PurchaseRequest{CreditsAmount: 11}, "key-1", "hash-b")
	assert.ErrorIs(t, err, domain.ErrIdempotencyMismatch)

	c, err := svc.Get(ctx, sess, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(10), c.TotalCredits)
}

func TestPurchaseIdempotencyKeysAreScopedToLender(t *testing.T) {
	svc, m, lenderA := newCreditService(t)
	lenderB := m.addLender("Beta Capital")
	ctx := context.Background()
	req := models.PurchaseRequest{CreditsAmount: 100}

	respA, replay, err := svc.Purchase(ctx, session(domain.RoleManager, lenderA), req, "key-1", "hash-a")
	require.NoError(t, err)
	require.Nil(t, replay)

	respB, replay, err := svc.Purchase(ctx, session(domain.RoleManager, lenderB), req, "key-1", "hash-a")
	require.NoError(t, err)
	require.Nil(t, replay)
	assert.Equal(t, lenderB, respB.Transaction.LenderID)
	assert.NotEqual(t, respA.Transaction.ID, respB.Transaction.ID)

	for _, lender := range []int64{lenderA, lenderB} {
		c, err := svc.Get(ctx, session(domain.RoleManager, lender), 0)
		require.NoError(t, err)
		assert.Equal(t, int64(100), c.TotalCredits)
	}

	_, replay, err = svc.Purchase(ctx, session(domain.RoleManager, lenderB), req, "key-1", "hash-a")
	require.NoError(t, err)
	require.NotNil(t, replay)
	var replayed models.PurchaseResponse
	require.NoError(t, json.Unmarshal(replay.ResponseBody, &replayed))
	assert.Equal(t, lenderB, replayed.Credits.LenderID)
}

func TestUseAndUpsert(t *testing.T) {
	svc, m, lender := newCreditService(t)
	ctx := context.Background()

	_, err := svc.Use(ctx, lender, 1, "check")
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)

	_, err = svc.Upsert(ctx, models.UpsertCreditsRequest{LenderID: lender, TotalCredits: 5, UsedCredits: 6})
	assert.ErrorContains(t, err, "used_credits")

	c, err := svc.Upsert(ctx, models.UpsertCreditsRequest{LenderID: lender, TotalCredits: 50, UsedCredits: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(40), c.Available())

	_, err = svc.Upsert(ctx, models.UpsertCreditsRequest{LenderID: lender, TotalCredits: 50, UsedCredits: 10})
	require.NoError(t, err)

	txns, err := m.ListTransactions(ctx, lender)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, domain.TransactionBilling, txns[0].TransactionType)
	assert.Equal(t, int64(40), txns[0].CreditsChange)
}

func TestExternalCheckIsMetered(t *testing.T) {
	m := newMemStore()
	lender := m.addLender("A")
	invoices := NewInvoiceService(m, m, m, reconcile.Options{})
	credits := NewCreditService(m, m, m)
	ext := NewExternalService(m, invoices, credits)
	ctx := context.Background()
	sess := auth.NewAPIClientSession(&domain.APIClient{ID: 1, LenderID: lender})

	_, err := ext.CheckInvoice(ctx, sess, "INV-1")
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)

	_, err = credits.Upsert(ctx, models.UpsertCreditsRequest{LenderID: lender, TotalCredits: 2})
	require.NoError(t, err)

	res, err := ext.CheckInvoice(ctx, sess, "INV-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSearched, res.Status)

	_, err = ext.CheckInvoice(ctx, sess, " ")
	assert.ErrorContains(t, err, "invoice_id")

	c, err := credits.Get(ctx, sess, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.UsedCredits)
}

func TestLoginAndPasswords(t *testing.T) {
	m := newMemStore()
	lender := m.addLender("A")
	svc := NewAccountService(m, m, m, auth.NewIssuer("secret", time.Hour))
	ctx := context.Background()
	admin := session(domain.RoleAdmin, 0)

	u, err := svc.CreateUser(ctx, admin, models.CreateUserRequest{
		Name: "Asha", Email: "Asha@Example.com", Password: "correct-horse", Role: "user", LenderID: lender,
	})
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", u.Email)

	resp, err := svc.Login(ctx, models.LoginRequest{Email: "asha@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "asha@example.com", Password: "wrong-horse"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.Login(ctx, models.LoginRequest{Email: "nobody@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	err = svc.ChangePassword(ctx, u.ID, models.PasswordRequest{OldPassword: "nope", NewPassword: "battery-staple"})
	assert.ErrorContains(t, err, "old_password")
	require.NoError(t, svc.ChangePassword(ctx, u.ID, models.PasswordRequest{OldPassword: "correct-horse", NewPassword: "battery-staple"}))

	active, err := svc.ActiveUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, active.ID)

	require.NoError(t, svc.SetUserStatus(ctx, admin, u.ID, domain.StatusBlocked))
	_, err = svc.Login(ctx, models.LoginRequest{Email: "asha@example.com", Password: "battery-staple"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.ActiveUser(ctx, u.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.ActiveUser(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestUserRoleRules(t *testing.T) {
	m := newMemStore()
	a, b := m.addLender("A"), m.addLender("B")
	svc := NewAccountService(m, m, m, auth.NewIssuer("secret", time.Hour))
	ctx := context.Background()
	manager := session(domain.RoleManager, a)

	_, err := svc.CreateUser(ctx, manager, models.CreateUserRequest{
		Name: "Root", Email: "root@example.com", Password: "long-enough", Role: domain.RoleAdmin,
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.CreateUser(ctx, manager, models.CreateUserRequest{
		Name: "Other", Email: "other@example.com", Password: "long-enough", Role: domain.RoleUser, LenderID: b,
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	u, err := svc.CreateUser(ctx, manager, models.CreateUserRequest{
		Name: "Ravi", Email: "ravi@example.com", Password: "long-enough", Role: domain.RoleUser,
	})
	require.NoError(t, err)
	assert.Equal(t, a, u.LenderID)

	_, err = svc.CreateUser(ctx, session(domain.RoleAdmin, 0), models.CreateUserRequest{
		Name: "Nolender", Email: "n@example.com", Password: "long-enough", Role: domain.RoleManager,
	})
	assert.ErrorContains(t, err, "lender_id")

	_, err = svc.CreateUser(ctx, session(domain.RoleAdmin, 0), models.CreateUserRequest{
		Name: "Ravi", Email: "ravi@example.com", Password: "long-enough", Role: domain.RoleUser, LenderID: a,
	})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = svc.GetUser(ctx, session(domain.RoleManager, b), u.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	require.NoError(t, svc.SetUserStatus(ctx, manager, u.ID, domain.StatusDeleted))
	users, err := svc.ListUsers(ctx, manager, 0)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestAPIClientKeys(t *testing.T) {
	m := newMemStore()
	lender := m.addLender("A")
	keys, err := auth.NewKeyGenerator(1)
	require.NoError(t, err)
	svc := NewAPIClientService(m, m, keys)
	ctx := context.Background()
	sess := session(domain.RoleManager, lender)

	created, err := svc.Create(ctx, sess, models.CreateAPIClientRequest{Name: "erp"})
	require.NoError(t, err)
	assert.Regexp(t, `^isk_live_[0-9A-Z]+_[0-9a-f]{64}$`, created.APIKey)
	assert.Equal(t, auth.HashAPIKey(created.APIKey), created.KeyHash)

	client, err := svc.Authenticate(ctx, created.APIKey)
	require.NoError(t, err)
	assert.Equal(t, lender, client.LenderID)

	_, err = svc.Authenticate(ctx, "sk_client_generated")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, svc.Revoke(ctx, sess, created.ID))
	_, err = svc.Authenticate(ctx, created.APIKey)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	err = svc.Revoke(ctx, session(domain.RoleManager, lender+1), created.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestLenderStatistics(t *testing.T) {
	invoices, m := newInvoiceService(t)
	a, b := m.addLender("A"), m.addLender("B")
	accounts := NewAccountService(m, m, m, auth.NewIssuer("secret", time.Hour))
	ctx := context.Background()
	admin := session(domain.RoleAdmin, 0)

	for _, id := range []string{"INV-1", "INV-2", "INV-3"} {
		_, err := invoices.Create(ctx, session(domain.RoleUser, a), invoicePayload(id))
		require.NoError(t, err)
	}
	_, err := invoices.Create(ctx, session(domain.RoleUser, b), invoicePayload("INV-1"))
	require.NoError(t, err)
	_, err = invoices.Transition(ctx, session(domain.RoleUser, a), 0, "INV-1", financeChange())
	require.NoError(t, err)
	_, err = invoices.Transition(ctx, session(domain.RoleUser, a), 0, "INV-2", lifecycle.Change{Op: lifecycle.OpReject, RejectionReason: "bad docs"})
	require.NoError(t, err)

	for i, status := range []string{domain.StatusActive, domain.StatusActive, domain.StatusBlocked, domain.StatusDeleted} {
		u, err := accounts.CreateUser(ctx, admin, models.CreateUserRequest{
			Name: "U", Email: fmt.Sprintf("u%d@example.com", i), Password: "long-enough", Role: domain.RoleUser, LenderID: a,
		})
		require.NoError(t, err)
		if status != domain.StatusActive {
			require.NoError(t, accounts.SetUserStatus(ctx, admin, u.ID, status))
		}
	}

	st, err := accounts.LenderStatistics(ctx, session(domain.RoleManager, a), a)
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.TotalInvoices)
	assert.Equal(t, int64(1), st.SearchedInvoices)
	assert.Equal(t, int64(1), st.FinancedInvoices)
	assert.Equal(t, int64(1), st.RejectedInvoices)
	assert.Equal(t, "30000", st.TotalInvoiceAmount.String())
	assert.Equal(t, "9000", st.TotalDisbursedAmount.String())
	assert.Equal(t, int64(3), st.TotalUsers)
	assert.Equal(t, int64(2), st.ActiveUsers)
	assert.Equal(t, int64(1), st.BlockedUsers)

	st, err = accounts.LenderStatistics(ctx, admin, b)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.TotalInvoices)
	assert.Equal(t, int64(1), st.AlreadyCheckedInvoices)

	_, err = accounts.LenderStatistics(ctx, session(domain.RoleManager, a), b)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = accounts.LenderStatistics(ctx, admin, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

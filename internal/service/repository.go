package service

import (
	"context"

	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/punchamoorthee/invosafe/internal/models"
)

// TxRunner runs fn in one database transaction. Repository calls made with
// the ctx handed to fn join it.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type InvoiceRepository interface {
	LockInvoiceID(ctx context.Context, invoiceID string) error
	FindInvoices(ctx context.Context, invoiceID string) ([]domain.Invoice, error)
	ListInvoices(ctx context.Context, lenderID int64, status *domain.Status) ([]domain.Invoice, error)
	GetInvoice(ctx context.Context, lenderID int64, invoiceID string, forUpdate bool) (*domain.Invoice, error)
	CreateInvoice(ctx context.Context, inv *domain.Invoice) error
	UpdateInvoice(ctx context.Context, inv *domain.Invoice) error
}

type LenderRepository interface {
	ListLenders(ctx context.Context) ([]domain.Lender, error)
	GetLender(ctx context.Context, id int64) (*domain.Lender, error)
	CreateLender(ctx context.Context, l *domain.Lender) error
	UpdateLender(ctx context.Context, l *domain.Lender) error
	LenderStatistics(ctx context.Context, id int64) (*domain.LenderStatistics, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context, lenderID int64) ([]domain.User, error)
	UpdateUserStatus(ctx context.Context, id int64, status string) error
	UpdateUserPassword(ctx context.Context, id int64, hash string) error
}

type APIClientRepository interface {
	CreateAPIClient(ctx context.Context, c *domain.APIClient) error
	ListAPIClients(ctx context.Context, lenderID int64) ([]domain.APIClient, error)
	GetAPIClient(ctx context.Context, id int64) (*domain.APIClient, error)
	GetAPIClientByHash(ctx context.Context, hash string) (*domain.APIClient, error)
	RevokeAPIClient(ctx context.Context, id int64) error
	TouchAPIClient(ctx context.Context, id int64) error
}

type CreditRepository interface {
	GetCredits(ctx context.Context, lenderID int64, forUpdate bool) (*domain.APICredits, error)
	EnsureCredits(ctx context.Context, lenderID int64) error
	SaveCredits(ctx context.Context, c *domain.APICredits) error
	InsertTransaction(ctx context.Context, t *domain.Transaction) error
	ListTransactions(ctx context.Context, lenderID int64) ([]domain.Transaction, error)
	GetIdempotency(ctx context.Context, lenderID int64, key string) (*models.IdempotencyRecord, error)
	ReserveIdempotency(ctx context.Context, lenderID int64, key, requestHash string) error
	CompleteIdempotency(ctx context.Context, lenderID int64, key string, transactionID int64, status int, body []byte) error
}

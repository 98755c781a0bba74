package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/punchamoorthee/invosafe/internal/models"
)

// GetCredits reads a lender's balance, locking the row with forUpdate.
func (s *Store) GetCredits(ctx context.Context, lenderID int64, forUpdate bool) (*domain.APICredits, error) {
	sql := "SELECT lender_id, total_credits, used_credits, updated_at FROM api_credits WHERE lender_id = $1"
	if forUpdate {
		sql += " FOR UPDATE"
	}
	var c domain.APICredits
	err := s.q(ctx).QueryRow(ctx, sql, lenderID).Scan(&c.LenderID, &c.TotalCredits, &c.UsedCredits, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err, domain.ErrNotFound)
	}
	return &c, nil
}

// EnsureCredits creates an all-zero balance row if the lender has none.
func (s *Store) EnsureCredits(ctx context.Context, lenderID int64) error {
	_, err := s.q(ctx).Exec(ctx,
		"INSERT INTO api_credits (lender_id) VALUES ($1) ON CONFLICT (lender_id) DO NOTHING", lenderID)
	if err != nil {
		return fmt.Errorf("credit provisioning failed: %w", err)
	}
	return nil
}

func (s *Store) SaveCredits(ctx context.Context, c *domain.APICredits) error {
	return s.q(ctx).QueryRow(ctx,
		`UPDATE api_credits SET total_credits = $2, used_credits = $3, updated_at = now()
		WHERE lender_id = $1 RETURNING updated_at`,
		c.LenderID, c.TotalCredits, c.UsedCredits,
	).Scan(&c.UpdatedAt)
}

func (s *Store) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	err := s.q(ctx).QueryRow(ctx,
		`INSERT INTO credit_transactions (lender_id, description, credits_change, balance_after, transaction_type, status)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		t.LenderID, t.Description, t.CreditsChange, t.BalanceAfter, string(t.TransactionType), t.Status,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("transaction insert failed: %w", err)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, lenderID int64) ([]domain.Transaction, error) {
	rows, err := s.q(ctx).Query(ctx,
		`SELECT id, lender_id, description, credits_change, balance_after, transaction_type, status, created_at
		FROM credit_transactions WHERE lender_id = $1 ORDER BY created_at DESC, id DESC`, lenderID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Transaction, error) {
		var (
			t   domain.Transaction
			typ string
		)
		err := row.Scan(&t.ID, &t.LenderID, &t.Description, &t.CreditsChange, &t.BalanceAfter, &typ, &t.Status, &t.CreatedAt)
		t.TransactionType = domain.TransactionType(typ)
		return t, err
	})
}

// GetIdempotency returns the lender's stored record for key, or nil when unseen.
func (s *Store) GetIdempotency(ctx context.Context, lenderID int64, key string) (*models.IdempotencyRecord, error) {
	var (
		rec    = models.IdempotencyRecord{Key: key}
		status *int32
		body   []byte
	)
	err := s.q(ctx).QueryRow(ctx,
		"SELECT request_hash, status, response_status, response_body FROM idempotency_keys WHERE lender_id = $1 AND key = $2",
		lenderID, key,
	).Scan(&rec.RequestHash, &rec.Status, &status, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency query failed: %w", err)
	}
	if status != nil {
		rec.ResponseStatus = int(*status)
	}
	rec.ResponseBody = json.RawMessage(body)
	return &rec, nil
}

// ReserveIdempotency claims key for an in-flight request. A concurrent
// claim of the same key fails with domain.ErrIdempotencyConflict.
func (s *Store) ReserveIdempotency(ctx context.Context, lenderID int64, key, requestHash string) error {
	_, err := s.q(ctx).Exec(ctx,
		"INSERT INTO idempotency_keys (lender_id, key, request_hash, status) VALUES ($1, $2, $3, 'in_progress')",
		lenderID, key, requestHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrIdempotencyConflict
		}
		return fmt.Errorf("key reservation failed: %w", err)
	}
	return nil
}

func (s *Store) CompleteIdempotency(ctx context.Context, lenderID int64, key string, transactionID int64, status int, body []byte) error {
	_, err := s.q(ctx).Exec(ctx,
		"UPDATE idempotency_keys SET status = 'completed', transaction_id = $1, response_status = $2, response_body = $3 WHERE lender_id = $4 AND key = $5",
		transactionID, status, body, lenderID, key,
	)
	if err != nil {
		return fmt.Errorf("idempotency update failed: %w", err)
	}
	return nil
}

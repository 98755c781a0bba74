package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/punchamoorthee/invosafe/internal/auth"
	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/punchamoorthee/invosafe/internal/logger"
	"github.com/punchamoorthee/invosafe/internal/models"
	"github.com/rs/zerolog"
)

type CreditService struct {
	tx      TxRunner
	credits CreditRepository
	lenders LenderRepository
	log     zerolog.Logger
}

func NewCreditService(tx TxRunner, credits CreditRepository, lenders LenderRepository) *CreditService {
	return &CreditService{
		tx:      tx,
		credits: credits,
		lenders: lenders,
		log:     logger.WithComponent("credit-service"),
	}
}

// Get returns the lender's balance. An unprovisioned lender reads as zero.
func (s *CreditService) Get(ctx context.Context, sess auth.SessionStore, lenderID int64) (*domain.APICredits, error) {
	lenderID, err := auth.ScopeLender(sess, lenderID)
	if err != nil {
		return nil, err
	}
	c, err := s.credits.GetCredits(ctx, lenderID, false)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.APICredits{LenderID: lenderID}, nil
	}
	return c, err
}

func (s *CreditService) Transactions(ctx context.Context, sess auth.SessionStore, lenderID int64) ([]domain.Transaction, error) {
	lenderID, err := auth.ScopeLender(sess, lenderID)
	if err != nil {
		return nil, err
	}
	return s.credits.ListTransactions(ctx, lenderID)
}

// Purchase adds credits to a lender's balance. With an idempotency key the
// first completed response is stored and replayed for identical requests.
// Keys are scoped to the resolved lender. A non-nil record means the caller
// should replay it verbatim.
func (s *CreditService) Purchase(ctx context.Context, sess auth.SessionStore, req models.PurchaseRequest, idempotencyKey, reqHash string) (*models.PurchaseResponse, *models.IdempotencyRecord, error) {
	lenderID, err := auth.ScopeLender(sess, req.LenderID)
	if err != nil {
		return nil, nil, err
	}
	if req.CreditsAmount <= 0 {
		return nil, nil, domain.Invalid("credits_amount", "must be greater than 0")
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = fmt.Sprintf("Purchased %d credits", req.CreditsAmount)
	}

	var (
		resp   *models.PurchaseResponse
		replay *models.IdempotencyRecord
	)
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.lenders.GetLender(ctx, lenderID); err != nil {
			return err
		}
		if idempotencyKey != "" {
			existing, err := s.credits.GetIdempotency(ctx, lenderID, idempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				if existing.RequestHash != reqHash {
					return domain.ErrIdempotencyMismatch
				}
				if existing.Status != "completed" {
					return domain.ErrIdempotencyConflict
				}
				replay = existing
				return nil
			}
			if err := s.credits.ReserveIdempotency(ctx, lenderID, idempotencyKey, reqHash); err != nil {
				return err
			}
		}

		c, err := s.lockCredits(ctx, lenderID)
		if err != nil {
			return err
		}
		c.TotalCredits += req.CreditsAmount
		if err := s.credits.SaveCredits(ctx, c); err != nil {
			return err
		}

		t := domain.Transaction{
			LenderID:        lenderID,
			Description:     description,
			CreditsChange:   req.CreditsAmount,
			BalanceAfter:    c.Available(),
			TransactionType: domain.TransactionPurchase,
			Status:          "completed",
		}
		if err := s.credits.InsertTransaction(ctx, &t); err != nil {
			return err
		}
		resp = &models.PurchaseResponse{Credits: *c, Transaction: t}

		if idempotencyKey == "" {
			return nil
		}
		body, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		return s.credits.CompleteIdempotency(ctx, lenderID, idempotencyKey, t.ID, http.StatusCreated, body)
	})
	if err != nil {
		return nil, nil, err
	}
	if replay != nil {
		return nil, replay, nil
	}

	creditsPurchasedTotal.Add(float64(req.CreditsAmount))
	s.log.Info().
		Int64("lender_id", lenderID).
		Int64("credits", req.CreditsAmount).
		Int64("available", resp.Credits.Available()).
		Msg("Credits purchased")
	return resp, nil, nil
}

// Use deducts credits inside the caller's transaction when there is one.
func (s *CreditService) Use(ctx context.Context, lenderID, credits int64, description string) (*domain.Transaction, error) {
	if credits <= 0 {
		return nil, domain.Invalid("credits", "must be greater than 0")
	}
	var t domain.Transaction
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		c, err := s.lockCredits(ctx, lenderID)
		if err != nil {
			return err
		}
		if c.Available() < credits {
			return domain.ErrInsufficientCredits
		}
		c.UsedCredits += credits
		if err := s.credits.SaveCredits(ctx, c); err != nil {
			return err
		}
		t = domain.Transaction{
			LenderID:        lenderID,
			Description:     description,
			CreditsChange:   -credits,
			BalanceAfter:    c.Available(),
			TransactionType: domain.TransactionUsage,
			Status:          "completed",
		}
		return s.credits.InsertTransaction(ctx, &t)
	})
	if err != nil {
		return nil, err
	}
	creditsUsedTotal.Add(float64(credits))
	return &t, nil
}

// Upsert sets a lender's totals. Reapplying the same values is a no-op;
// any change to the available balance is recorded as a billing entry.
func (s *CreditService) Upsert(ctx context.Context, req models.UpsertCreditsRequest) (*domain.APICredits, error) {
	verr := &domain.ValidationError{}
	if req.LenderID <= 0 {
		verr.Add("lender_id", "is required")
	}
	if req.TotalCredits < 0 {
		verr.Add("total_credits", "must not be negative")
	}
	if req.UsedCredits < 0 {
		verr.Add("used_credits", "must not be negative")
	}
	if req.UsedCredits > req.TotalCredits {
		verr.Add("used_credits", "must not exceed total_credits")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	var out *domain.APICredits
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.lenders.GetLender(ctx, req.LenderID); err != nil {
			return err
		}
		c, err := s.lockCredits(ctx, req.LenderID)
		if err != nil {
			return err
		}
		before := c.Available()
		if c.TotalCredits == req.TotalCredits && c.UsedCredits == req.UsedCredits {
			out = c
			return nil
		}
		c.TotalCredits, c.UsedCredits = req.TotalCredits, req.UsedCredits
		if err := s.credits.SaveCredits(ctx, c); err != nil {
			return err
		}
		out = c
		if c.Available() == before {
			return nil
		}
		return s.credits.InsertTransaction(ctx, &domain.Transaction{
			LenderID:        c.LenderID,
			Description:     "Credit balance adjusted",
			CreditsChange:   c.Available() - before,
			BalanceAfter:    c.Available(),
			TransactionType: domain.TransactionBilling,
			Status:          "completed",
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *CreditService) lockCredits(ctx context.Context, lenderID int64) (*domain.APICredits, error) {
	if err := s.credits.EnsureCredits(ctx, lenderID); err != nil {
		return nil, err
	}
	return s.credits.GetCredits(ctx, lenderID, true)
}

package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/invosafe/internal/domain"
)

const apiClientColumns = "id, lender_id, name, key_id, key_hash, status, last_used_at, created_at"

func scanAPIClient(row pgx.Row) (*domain.APIClient, error) {
	var c domain.APIClient
	err := row.Scan(&c.ID, &c.LenderID, &c.Name, &c.KeyID, &c.KeyHash, &c.Status, &c.LastUsedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateAPIClient(ctx context.Context, c *domain.APIClient) error {
	err := s.q(ctx).QueryRow(ctx,
		`INSERT INTO api_clients (lender_id, name, key_id, key_hash, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		c.LenderID, c.Name, c.KeyID, c.KeyHash, c.Status,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("api key: %w", domain.ErrConflict)
		}
		return fmt.Errorf("api client insert failed: %w", err)
	}
	return nil
}

// ListAPIClients returns one lender's clients, or all when lenderID is 0.
func (s *Store) ListAPIClients(ctx context.Context, lenderID int64) ([]domain.APIClient, error) {
	rows, err := s.q(ctx).Query(ctx,
		"SELECT "+apiClientColumns+" FROM api_clients WHERE ($1::bigint = 0 OR lender_id = $1::bigint) ORDER BY id", lenderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := []domain.APIClient{}
	for rows.Next() {
		c, err := scanAPIClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}

func (s *Store) GetAPIClient(ctx context.Context, id int64) (*domain.APIClient, error) {
	c, err := scanAPIClient(s.q(ctx).QueryRow(ctx, "SELECT "+apiClientColumns+" FROM api_clients WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err, domain.ErrAPIClientNotFound)
	}
	return c, nil
}

func (s *Store) GetAPIClientByHash(ctx context.Context, hash string) (*domain.APIClient, error) {
	c, err := scanAPIClient(s.q(ctx).QueryRow(ctx, "SELECT "+apiClientColumns+" FROM api_clients WHERE key_hash = $1", hash))
	if err != nil {
		return nil, notFound(err, domain.ErrAPIClientNotFound)
	}
	return c, nil
}

func (s *Store) RevokeAPIClient(ctx context.Context, id int64) error {
	tag, err := s.q(ctx).Exec(ctx, "UPDATE api_clients SET status = 'revoked' WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAPIClientNotFound
	}
	return nil
}

func (s *Store) TouchAPIClient(ctx context.Context, id int64) error {
	_, err := s.q(ctx).Exec(ctx, "UPDATE api_clients SET last_used_at = now() WHERE id = $1", id)
	return err
}

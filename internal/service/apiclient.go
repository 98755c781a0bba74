package service

import (
	"context"
	"errors"
	"strings"

	"github.com/punchamoorthee/invosafe/internal/auth"
	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/punchamoorthee/invosafe/internal/logger"
	"github.com/punchamoorthee/invosafe/internal/models"
	"github.com/rs/zerolog"
)

type APIClientService struct {
	clients APIClientRepository
	lenders LenderRepository
	keys    *auth.KeyGenerator
	log     zerolog.Logger
}

func NewAPIClientService(clients APIClientRepository, lenders LenderRepository, keys *auth.KeyGenerator) *APIClientService {
	return &APIClientService{
		clients: clients,
		lenders: lenders,
		keys:    keys,
		log:     logger.WithComponent("api-client-service"),
	}
}

// Create issues a new key for a lender. The plain key is returned once.
func (s *APIClientService) Create(ctx context.Context, sess auth.SessionStore, req models.CreateAPIClientRequest) (*models.APIClientCreated, error) {
	lenderID, err := auth.ScopeLender(sess, req.LenderID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.Invalid("name", "is required")
	}
	if _, err := s.lenders.GetLender(ctx, lenderID); err != nil {
		return nil, err
	}

	keyID, plain, hash, err := s.keys.Generate()
	if err != nil {
		return nil, err
	}
	c := domain.APIClient{
		LenderID: lenderID,
		Name:     name,
		KeyID:    keyID,
		KeyHash:  hash,
		Status:   domain.StatusActive,
	}
	if err := s.clients.CreateAPIClient(ctx, &c); err != nil {
		return nil, err
	}
	s.log.Info().Int64("lender_id", lenderID).Str("key_id", keyID).Msg("API key issued")
	return &models.APIClientCreated{APIClient: c, APIKey: plain}, nil
}

func (s *APIClientService) List(ctx context.Context, sess auth.SessionStore, lenderID int64) ([]domain.APIClient, error) {
	if sess.Role() != domain.RoleAdmin {
		if lenderID != 0 && lenderID != sess.LenderID() {
			return nil, domain.ErrForbidden
		}
		lenderID = sess.LenderID()
	}
	return s.clients.ListAPIClients(ctx, lenderID)
}

func (s *APIClientService) Revoke(ctx context.Context, sess auth.SessionStore, id int64) error {
	c, err := s.clients.GetAPIClient(ctx, id)
	if err != nil {
		return err
	}
	if sess.Role() != domain.RoleAdmin && c.LenderID != sess.LenderID() {
		return domain.ErrForbidden
	}
	if err := s.clients.RevokeAPIClient(ctx, id); err != nil {
		return err
	}
	s.log.Info().Int64("lender_id", c.LenderID).Str("key_id", c.KeyID).Msg("API key revoked")
	return nil
}

// Authenticate resolves a raw key to its active client.
func (s *APIClientService) Authenticate(ctx context.Context, raw string) (*domain.APIClient, error) {
	raw = strings.TrimSpace(raw)
	if !auth.LooksLikeAPIKey(raw) {
		return nil, domain.ErrUnauthorized
	}
	c, err := s.clients.GetAPIClientByHash(ctx, auth.HashAPIKey(raw))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if c.Status != domain.StatusActive {
		return nil, domain.ErrUnauthorized
	}
	if err := s.clients.TouchAPIClient(ctx, c.ID); err != nil {
		s.log.Warn().Err(err).Int64("api_client_id", c.ID).Msg("Failed to record key use")
	}
	return c, nil
}

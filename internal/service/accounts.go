package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/punchamoorthee/invosafe/internal/auth"
	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/punchamoorthee/invosafe/internal/logger"
	"github.com/punchamoorthee/invosafe/internal/models"
	"github.com/rs/zerolog"
)

type AccountService struct {
	tx      TxRunner
	lenders LenderRepository
	users   UserRepository
	issuer  *auth.Issuer
	log     zerolog.Logger
}

func NewAccountService(tx TxRunner, lenders LenderRepository, users UserRepository, issuer *auth.Issuer) *AccountService {
	return &AccountService{
		tx:      tx,
		lenders: lenders,
		users:   users,
		issuer:  issuer,
		log:     logger.WithComponent("account-service"),
	}
}

// Login exchanges credentials of an active user for a signed token. Every
// failure reports domain.ErrUnauthorized so callers cannot tell which check failed.
func (s *AccountService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	u, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if u.Status != domain.StatusActive || !auth.CheckPassword(u.PasswordHash, req.Password) {
		s.log.Warn().Int64("user_id", u.ID).Msg("Login rejected")
		return nil, domain.ErrUnauthorized
	}
	token, err := s.issuer.Issue(u)
	if err != nil {
		return nil, err
	}
	return &models.LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.issuer.TTL().Seconds()),
		User:        *u,
	}, nil
}

// ActiveUser returns the user behind a token. Users that are gone, blocked
// or deleted report domain.ErrUnauthorized.
func (s *AccountService) ActiveUser(ctx context.Context, id int64) (*domain.User, error) {
	u, err := s.users.GetUser(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if u.Status != domain.StatusActive {
		return nil, domain.ErrUnauthorized
	}
	return u, nil
}

func (s *AccountService) ListLenders(ctx context.Context) ([]domain.Lender, error) {
	return s.lenders.ListLenders(ctx)
}

func (s *AccountService) GetLender(ctx context.Context, sess auth.SessionStore, id int64) (*domain.Lender, error) {
	if sess.Role() != domain.RoleAdmin && sess.LenderID() != id {
		return nil, domain.ErrForbidden
	}
	return s.lenders.GetLender(ctx, id)
}

// LenderStatistics reports invoice and user totals for one lender. Managers
// may only read their own lender.
func (s *AccountService) LenderStatistics(ctx context.Context, sess auth.SessionStore, id int64) (*domain.LenderStatistics, error) {
	if _, err := s.GetLender(ctx, sess, id); err != nil {
		return nil, err
	}
	return s.lenders.LenderStatistics(ctx, id)
}

func (s *AccountService) CreateLender(ctx context.Context, req models.LenderRequest) (*domain.Lender, error) {
	l := domain.Lender{Name: strings.TrimSpace(req.Name), Status: domain.StatusActive}
	if err := validateLender(&l, req.Status); err != nil {
		return nil, err
	}
	if err := s.lenders.CreateLender(ctx, &l); err != nil {
		return nil, err
	}
	s.log.Info().Int64("lender_id", l.ID).Str("name", l.Name).Msg("Lender created")
	return &l, nil
}

func (s *AccountService) UpdateLender(ctx context.Context, id int64, req models.LenderRequest) (*domain.Lender, error) {
	var out *domain.Lender
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		l, err := s.lenders.GetLender(ctx, id)
		if err != nil {
			return err
		}
		if name := strings.TrimSpace(req.Name); name != "" {
			l.Name = name
		}
		if err := validateLender(l, req.Status); err != nil {
			return err
		}
		out = l
		return s.lenders.UpdateLender(ctx, l)
	})
	return out, err
}

func validateLender(l *domain.Lender, status string) error {
	verr := &domain.ValidationError{}
	if l.Name == "" {
		verr.Add("name", "is required")
	}
	switch status {
	case "":
	case domain.StatusActive, domain.StatusInactive:
		l.Status = status
	default:
		verr.Add("status", "must be active or inactive")
	}
	return verr.Err()
}

// CreateUser registers a dashboard account. Admins belong to no lender;
// managers and users belong to an existing one. Managers may only add
// non-admin users to their own lender.
func (s *AccountService) CreateUser(ctx context.Context, sess auth.SessionStore, req models.CreateUserRequest) (*domain.User, error) {
	u := domain.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Role:     domain.Role(strings.ToUpper(string(req.Role))),
		LenderID: req.LenderID,
		Status:   domain.StatusActive,
	}
	if sess.Role() == domain.RoleManager {
		if u.Role == domain.RoleAdmin {
			return nil, domain.ErrForbidden
		}
		if u.LenderID == 0 {
			u.LenderID = sess.LenderID()
		}
		if u.LenderID != sess.LenderID() {
			return nil, domain.ErrForbidden
		}
	}

	verr := &domain.ValidationError{}
	if u.Name == "" {
		verr.Add("name", "is required")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		verr.Add("email", "is not a valid address")
	}
	switch {
	case !u.Role.Valid():
		verr.Add("role", "must be ADMIN, MANAGER or USER")
	case u.Role == domain.RoleAdmin && u.LenderID != 0:
		verr.Add("lender_id", "must be empty for admins")
	case u.Role != domain.RoleAdmin && u.LenderID == 0:
		verr.Add("lender_id", "is required")
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		verr.Add("password", err.Error())
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	u.PasswordHash = hash

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if u.LenderID != 0 {
			if _, err := s.lenders.GetLender(ctx, u.LenderID); err != nil {
				return err
			}
		}
		return s.users.CreateUser(ctx, &u)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("user_id", u.ID).Str("role", string(u.Role)).Msg("User created")
	return &u, nil
}

func (s *AccountService) GetUser(ctx context.Context, sess auth.SessionStore, id int64) (*domain.User, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canManage(sess, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ListUsers lists a lender's users. Admins may pass 0 to list everyone.
func (s *AccountService) ListUsers(ctx context.Context, sess auth.SessionStore, lenderID int64) ([]domain.User, error) {
	if sess.Role() != domain.RoleAdmin {
		if lenderID != 0 && lenderID != sess.LenderID() {
			return nil, domain.ErrForbidden
		}
		lenderID = sess.LenderID()
	}
	return s.users.ListUsers(ctx, lenderID)
}

// SetUserStatus blocks, unblocks or deletes a user. Deletion is soft.
func (s *AccountService) SetUserStatus(ctx context.Context, sess auth.SessionStore, id int64, status string) error {
	switch status {
	case domain.StatusActive, domain.StatusBlocked, domain.StatusDeleted:
	default:
		return domain.Invalid("status", "must be active, blocked or deleted")
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		u, err := s.users.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if err := canManage(sess, u); err != nil {
			return err
		}
		if u.Status == domain.StatusDeleted {
			return domain.ErrUserNotFound
		}
		return s.users.UpdateUserStatus(ctx, id, status)
	})
}

// ResetPassword sets another user's password without the old one.
func (s *AccountService) ResetPassword(ctx context.Context, sess auth.SessionStore, id int64, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.Invalid("new_password", err.Error())
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		u, err := s.users.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if err := canManage(sess, u); err != nil {
			return err
		}
		return s.users.UpdateUserPassword(ctx, id, hash)
	})
}

// ChangePassword updates the caller's own password after checking the old one.
func (s *AccountService) ChangePassword(ctx context.Context, userID int64, req models.PasswordRequest) error {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, req.OldPassword) {
		return domain.Invalid("old_password", "is incorrect")
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return domain.Invalid("new_password", err.Error())
	}
	return s.users.UpdateUserPassword(ctx, userID, hash)
}

// canManage reports whether sess may act on u. Managers are confined to
// their lender's non-admin users.
func canManage(sess auth.SessionStore, u *domain.User) error {
	switch sess.Role() {
	case domain.RoleAdmin:
		return nil
	case domain.RoleManager:
		if u.Role != domain.RoleAdmin && u.LenderID == sess.LenderID() {
			return nil
		}
	}
	return domain.ErrForbidden
}

package auth

import (
	"context"

	"github.com/punchamoorthee/invosafe/internal/domain"
)

// SessionStore is the read side of an authenticated session.
type SessionStore interface {
	Token() string
	Role() domain.Role
	LenderID() int64
}

// Session is the identity attached to one request.
type Session struct {
	token       string
	role        domain.Role
	lenderID    int64
	UserID      int64
	APIClientID int64
}

func NewSession(token string, claims *Claims) *Session {
	return &Session{
		token:    token,
		role:     domain.Role(claims.Role),
		lenderID: claims.LenderID,
		UserID:   claims.UserID,
	}
}

// NewAPIClientSession is the session of a request signed with an API key.
func NewAPIClientSession(client *domain.APIClient) *Session {
	return &Session{
		role:        domain.RoleAPIClient,
		lenderID:    client.LenderID,
		APIClientID: client.ID,
	}
}

// NewTokenSession carries only a bearer token, as held by API clients of
// this service.
func NewTokenSession(token string) *Session {
	return &Session{token: token}
}

func (s *Session) Token() string     { return s.token }
func (s *Session) Role() domain.Role { return s.role }
func (s *Session) LenderID() int64   { return s.lenderID }

// ScopeLender resolves the lender a request acts on. Admins must name one;
// everyone else is pinned to their own and may omit it.
func ScopeLender(s SessionStore, requested int64) (int64, error) {
	if s.Role() == domain.RoleAdmin {
		if requested == 0 {
			return 0, domain.Invalid("lender_id", "is required")
		}
		return requested, nil
	}
	if s.LenderID() == 0 {
		return 0, domain.ErrForbidden
	}
	if requested != 0 && requested != s.LenderID() {
		return 0, domain.ErrForbidden
	}
	return s.LenderID(), nil
}

type sessionKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok
}

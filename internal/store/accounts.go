package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/shopspring/decimal"
)

func (s *Store) ListLenders(ctx context.Context) ([]domain.Lender, error) {
	rows, err := s.q(ctx).Query(ctx, "SELECT id, name, status, created_at FROM lenders ORDER BY name")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Lender, error) {
		var l domain.Lender
		err := row.Scan(&l.ID, &l.Name, &l.Status, &l.CreatedAt)
		return l, err
	})
}

func (s *Store) GetLender(ctx context.Context, id int64) (*domain.Lender, error) {
	var l domain.Lender
	err := s.q(ctx).QueryRow(ctx,
		"SELECT id, name, status, created_at FROM lenders WHERE id = $1", id,
	).Scan(&l.ID, &l.Name, &l.Status, &l.CreatedAt)
	if err != nil {
		return nil, notFound(err, domain.ErrLenderNotFound)
	}
	return &l, nil
}

// LenderStatistics aggregates a lender's invoices and users in one query.
func (s *Store) LenderStatistics(ctx context.Context, id int64) (*domain.LenderStatistics, error) {
	st := domain.LenderStatistics{LenderID: id}
	var invoiceAmount, disbursed string
	err := s.q(ctx).QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 0 AND provenance = ''),
			COUNT(*) FILTER (WHERE status = 1),
			COUNT(*) FILTER (WHERE status = 2),
			COUNT(*) FILTER (WHERE status = 3),
			COUNT(*) FILTER (WHERE status = 4),
			COUNT(*) FILTER (WHERE status = 0 AND provenance = 'already_checked'),
			COUNT(*) FILTER (WHERE status = 0 AND provenance = 'already_financed'),
			COALESCE(SUM(invoice_amount), 0)::text,
			COALESCE(SUM(disbursement_amount), 0)::text,
			(SELECT COUNT(*) FROM users WHERE lender_id = $1 AND status <> 'deleted'),
			(SELECT COUNT(*) FROM users WHERE lender_id = $1 AND status = 'active'),
			(SELECT COUNT(*) FROM users WHERE lender_id = $1 AND status = 'blocked')
		FROM invoices
		WHERE lender_id = $1`, id,
	).Scan(
		&st.TotalInvoices, &st.SearchedInvoices, &st.FinancedInvoices, &st.RejectedInvoices,
		&st.RepaidInvoices, &st.TrashedInvoices, &st.AlreadyCheckedInvoices, &st.AlreadyFinancedInvoices,
		&invoiceAmount, &disbursed, &st.TotalUsers, &st.ActiveUsers, &st.BlockedUsers,
	)
	if err != nil {
		return nil, fmt.Errorf("lender statistics query failed: %w", err)
	}
	if st.TotalInvoiceAmount, err = decimal.NewFromString(invoiceAmount); err != nil {
		return nil, fmt.Errorf("decode invoice total: %w", err)
	}
	if st.TotalDisbursedAmount, err = decimal.NewFromString(disbursed); err != nil {
		return nil, fmt.Errorf("decode disbursed total: %w", err)
	}
	return &st, nil
}

func (s *Store) CreateLender(ctx context.Context, l *domain.Lender) error {
	err := s.q(ctx).QueryRow(ctx,
		"INSERT INTO lenders (name, status) VALUES ($1, $2) RETURNING id, created_at",
		l.Name, l.Status,
	).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("lender name: %w", domain.ErrConflict)
		}
		return fmt.Errorf("lender insert failed: %w", err)
	}
	return nil
}

func (s *Store) UpdateLender(ctx context.Context, l *domain.Lender) error {
	tag, err := s.q(ctx).Exec(ctx,
		"UPDATE lenders SET name = $2, status = $3 WHERE id = $1", l.ID, l.Name, l.Status)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("lender name: %w", domain.ErrConflict)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLenderNotFound
	}
	return nil
}

const userColumns = "id, name, email, role, lender_id, status, password_hash, created_at"

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u      domain.User
		role   string
		lender pgtype.Int8
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &lender, &u.Status, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	if lender.Valid {
		u.LenderID = lender.Int64
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	err := s.q(ctx).QueryRow(ctx,
		`INSERT INTO users (name, email, role, lender_id, status, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		u.Name, u.Email, string(u.Role), idArg(u.LenderID), u.Status, u.PasswordHash,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email: %w", domain.ErrConflict)
		}
		return fmt.Errorf("user insert failed: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	u, err := scanUser(s.q(ctx).QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err, domain.ErrUserNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(s.q(ctx).QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE lower(email) = lower($1)", email))
	if err != nil {
		return nil, notFound(err, domain.ErrUserNotFound)
	}
	return u, nil
}

// ListUsers returns users of one lender, or every user when lenderID is 0.
// Deleted users are never listed.
func (s *Store) ListUsers(ctx context.Context, lenderID int64) ([]domain.User, error) {
	rows, err := s.q(ctx).Query(ctx,
		"SELECT "+userColumns+" FROM users WHERE status <> 'deleted' AND ($1::bigint = 0 OR lender_id = $1::bigint) ORDER BY id",
		lenderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserStatus(ctx context.Context, id int64, status string) error {
	tag, err := s.q(ctx).Exec(ctx, "UPDATE users SET status = $2 WHERE id = $1", id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, id int64, hash string) error {
	tag, err := s.q(ctx).Exec(ctx, "UPDATE users SET password_hash = $2 WHERE id = $1", id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

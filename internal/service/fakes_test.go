package service

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/punchamoorthee/invosafe/internal/models"
)

// memStore is an in-memory stand-in for the postgres store. A failed
// transaction restores the state captured when it began.
type memStore struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	nextID   int64
	invoices []domain.Invoice
	lenders  map[int64]domain.Lender
	users    map[int64]domain.User
	clients  map[int64]domain.APIClient
	credits  map[int64]domain.APICredits
	txns     []domain.Transaction
	idem     map[idemKey]models.IdempotencyRecord
}

type memState struct {
	invoices []domain.Invoice
	lenders  map[int64]domain.Lender
	users    map[int64]domain.User
	clients  map[int64]domain.APIClient
	credits  map[int64]domain.APICredits
	txns     []domain.Transaction
	idem     map[idemKey]models.IdempotencyRecord
}

type inTxKey struct{}

type idemKey struct {
	lenderID int64
	key      string
}

func newMemStore() *memStore {
	return &memStore{
		lenders: map[int64]domain.Lender{},
		users:   map[int64]domain.User{},
		clients: map[int64]domain.APIClient{},
		credits: map[int64]domain.APICredits{},
		idem:    map[idemKey]models.IdempotencyRecord{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	saved := memState{
		invoices: slices.Clone(m.invoices),
		lenders:  maps.Clone(m.lenders),
		users:    maps.Clone(m.users),
		clients:  maps.Clone(m.clients),
		credits:  maps.Clone(m.credits),
		txns:     slices.Clone(m.txns),
		idem:     maps.Clone(m.idem),
	}
	m.mu.Unlock()

	if err := fn(context.WithValue(ctx, inTxKey{}, true)); err != nil {
		m.mu.Lock()
		m.invoices, m.lenders, m.users = saved.invoices, saved.lenders, saved.users
		m.clients, m.credits, m.txns, m.idem = saved.clients, saved.credits, saved.txns, saved.idem
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) addLender(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.lenders[id] = domain.Lender{ID: id, Name: name, Status: domain.StatusActive}
	return id
}

func (m *memStore) LockInvoiceID(context.Context, string) error { return nil }

func (m *memStore) FindInvoices(_ context.Context, invoiceID string) ([]domain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Invoice
	for _, inv := range m.invoices {
		if inv.InvoiceID == invoiceID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *memStore) ListInvoices(_ context.Context, lenderID int64, status *domain.Status) ([]domain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Invoice{}
	for _, inv := range m.invoices {
		if inv.LenderID != lenderID {
			continue
		}
		if status != nil && inv.DisplayStatus() != *status {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (m *memStore) GetInvoice(_ context.Context, lenderID int64, invoiceID string, _ bool) (*domain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.LenderID == lenderID && inv.InvoiceID == invoiceID {
			return &inv, nil
		}
	}
	return nil, domain.ErrInvoiceNotFound
}

func (m *memStore) CreateInvoice(_ context.Context, inv *domain.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.invoices {
		if existing.LenderID == inv.LenderID && existing.InvoiceID == inv.InvoiceID {
			return domain.ErrDuplicateInvoice
		}
	}
	inv.ID = m.id()
	inv.CreatedAt = time.Now().UTC()
	inv.UpdatedAt = inv.CreatedAt
	m.invoices = append(m.invoices, *inv)
	return nil
}

func (m *memStore) UpdateInvoice(_ context.Context, inv *domain.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.invoices {
		if m.invoices[i].ID == inv.ID {
			inv.UpdatedAt = time.Now().UTC()
			m.invoices[i] = *inv
			return nil
		}
	}
	return domain.ErrInvoiceNotFound
}

func (m *memStore) ListLenders(context.Context) ([]domain.Lender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Collect(maps.Values(m.lenders)), nil
}

func (m *memStore) GetLender(_ context.Context, id int64) (*domain.Lender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lenders[id]
	if !ok {
		return nil, domain.ErrLenderNotFound
	}
	return &l, nil
}

func (m *memStore) CreateLender(_ context.Context, l *domain.Lender) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.lenders {
		if existing.Name == l.Name {
			return fmt.Errorf("lender name: %w", domain.ErrConflict)
		}
	}
	l.ID = m.id()
	m.lenders[l.ID] = *l
	return nil
}

func (m *memStore) UpdateLender(_ context.Context, l *domain.Lender) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lenders[l.ID]; !ok {
		return domain.ErrLenderNotFound
	}
	m.lenders[l.ID] = *l
	return nil
}

func (m *memStore) LenderStatistics(_ context.Context, id int64) (*domain.LenderStatistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := domain.LenderStatistics{LenderID: id}
	for _, inv := range m.invoices {
		if inv.LenderID != id {
			continue
		}
		st.TotalInvoices++
		switch inv.DisplayStatus() {
		case domain.StatusSearched:
			st.SearchedInvoices++
		case domain.StatusFinanced:
			st.FinancedInvoices++
		case domain.StatusRejected:
			st.RejectedInvoices++
		case domain.StatusRepaid:
			st.RepaidInvoices++
		case domain.StatusTrash:
			st.TrashedInvoices++
		case domain.StatusAlreadyChecked:
			st.AlreadyCheckedInvoices++
		case domain.StatusAlreadyFinanced:
			st.AlreadyFinancedInvoices++
		}
		st.TotalInvoiceAmount = st.TotalInvoiceAmount.Add(inv.InvoiceAmount)
		if inv.DisbursementAmount != nil {
			st.TotalDisbursedAmount = st.TotalDisbursedAmount.Add(*inv.DisbursementAmount)
		}
	}
	for _, u := range m.users {
		if u.LenderID != id || u.Status == domain.StatusDeleted {
			continue
		}
		st.TotalUsers++
		switch u.Status {
		case domain.StatusActive:
			st.ActiveUsers++
		case domain.StatusBlocked:
			st.BlockedUsers++
		}
	}
	return &st, nil
}

func (m *memStore) CreateUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return fmt.Errorf("email: %w", domain.ErrConflict)
		}
	}
	u.ID = m.id()
	m.users[u.ID] = *u
	return nil
}

func (m *memStore) GetUser(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memStore) ListUsers(_ context.Context, lenderID int64) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.User{}
	for _, u := range m.users {
		if u.Status != domain.StatusDeleted && (lenderID == 0 || u.LenderID == lenderID) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) UpdateUserStatus(_ context.Context, id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Status = status
	m.users[id] = u
	return nil
}

func (m *memStore) UpdateUserPassword(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	m.users[id] = u
	return nil
}

func (m *memStore) CreateAPIClient(_ context.Context, c *domain.APIClient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id()
	m.clients[c.ID] = *c
	return nil
}

func (m *memStore) ListAPIClients(_ context.Context, lenderID int64) ([]domain.APIClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.APIClient{}
	for _, c := range m.clients {
		if lenderID == 0 || c.LenderID == lenderID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) GetAPIClient(_ context.Context, id int64) (*domain.APIClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, domain.ErrAPIClientNotFound
	}
	return &c, nil
}

func (m *memStore) GetAPIClientByHash(_ context.Context, hash string) (*domain.APIClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		if c.KeyHash == hash {
			return &c, nil
		}
	}
	return nil, domain.ErrAPIClientNotFound
}

func (m *memStore) RevokeAPIClient(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return domain.ErrAPIClientNotFound
	}
	c.Status = domain.StatusRevoked
	m.clients[id] = c
	return nil
}

func (m *memStore) TouchAPIClient(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.clients[id]
	now := time.Now().UTC()
	c.LastUsedAt = &now
	m.clients[id] = c
	return nil
}

func (m *memStore) GetCredits(_ context.Context, lenderID int64, _ bool) (*domain.APICredits, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.credits[lenderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (m *memStore) EnsureCredits(_ context.Context, lenderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.credits[lenderID]; !ok {
		m.credits[lenderID] = domain.APICredits{LenderID: lenderID}
	}
	return nil
}

func (m *memStore) SaveCredits(_ context.Context, c *domain.APICredits) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.UpdatedAt = time.Now().UTC()
	m.credits[c.LenderID] = *c
	return nil
}

func (m *memStore) InsertTransaction(_ context.Context, t *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.id()
	t.CreatedAt = time.Now().UTC()
	m.txns = append(m.txns, *t)
	return nil
}

func (m *memStore) ListTransactions(_ context.Context, lenderID int64) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Transaction{}
	for _, t := range m.txns {
		if t.LenderID == lenderID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) GetIdempotency(_ context.Context, lenderID int64, key string) (*models.IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.idem[idemKey{lenderID, key}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memStore) ReserveIdempotency(_ context.Context, lenderID int64, key, requestHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := idemKey{lenderID, key}
	if _, ok := m.idem[k]; ok {
		return domain.ErrIdempotencyConflict
	}
	m.idem[k] = models.IdempotencyRecord{Key: key, RequestHash: requestHash, Status: "in_progress"}
	return nil
}

func (m *memStore) CompleteIdempotency(_ context.Context, lenderID int64, key string, _ int64, status int, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := idemKey{lenderID, key}
	rec := m.idem[k]
	rec.Status = "completed"
	rec.ResponseStatus = status
	rec.ResponseBody = body
	m.idem[k] = rec
	return nil
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/invosafe/internal/auth"
	"github.com/punchamoorthee/invosafe/internal/authz"
	"github.com/punchamoorthee/invosafe/internal/directory"
	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/punchamoorthee/invosafe/internal/lifecycle"
	"github.com/punchamoorthee/invosafe/internal/logger"
	"github.com/punchamoorthee/invosafe/internal/models"
	"github.com/punchamoorthee/invosafe/internal/reconcile"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invosafe_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invosafe_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
	}, []string{"method", "endpoint"})
)

type InvoiceService interface {
	Create(ctx context.Context, sess *auth.Session, p models.InvoicePayload) (*domain.Invoice, error)
	List(ctx context.Context, sess *auth.Session, lenderID int64, status *domain.Status) ([]domain.Invoice, error)
	Find(ctx context.Context, sess *auth.Session, invoiceID string) ([]domain.Invoice, error)
	Update(ctx context.Context, sess *auth.Session, invoiceID string, p models.InvoicePayload) (*domain.Invoice, error)
	Transition(ctx context.Context, sess *auth.Session, lenderID int64, invoiceID string, change lifecycle.Change) (*domain.Invoice, error)
	Bulk(ctx context.Context, sess *auth.Session, lenderID int64, batch *reconcile.Batch) (*reconcile.Report, error)
}

type CreditService interface {
	Get(ctx context.Context, sess auth.SessionStore, lenderID int64) (*domain.APICredits, error)
	Transactions(ctx context.Context, sess auth.SessionStore, lenderID int64) ([]domain.Transaction, error)
	Purchase(ctx context.Context, sess auth.SessionStore, req models.PurchaseRequest, idempotencyKey, reqHash string) (*models.PurchaseResponse, *models.IdempotencyRecord, error)
	Upsert(ctx context.Context, req models.UpsertCreditsRequest) (*domain.APICredits, error)
}

type AccountService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	ActiveUser(ctx context.Context, id int64) (*domain.User, error)
	ListLenders(ctx context.Context) ([]domain.Lender, error)
	GetLender(ctx context.Context, sess auth.SessionStore, id int64) (*domain.Lender, error)
	LenderStatistics(ctx context.Context, sess auth.SessionStore, id int64) (*domain.LenderStatistics, error)
	CreateLender(ctx context.Context, req models.LenderRequest) (*domain.Lender, error)
	UpdateLender(ctx context.Context, id int64, req models.LenderRequest) (*domain.Lender, error)
	CreateUser(ctx context.Context, sess auth.SessionStore, req models.CreateUserRequest) (*domain.User, error)
	GetUser(ctx context.Context, sess auth.SessionStore, id int64) (*domain.User, error)
	ListUsers(ctx context.Context, sess auth.SessionStore, lenderID int64) ([]domain.User, error)
	SetUserStatus(ctx context.Context, sess auth.SessionStore, id int64, status string) error
	ResetPassword(ctx context.Context, sess auth.SessionStore, id int64, password string) error
	ChangePassword(ctx context.Context, userID int64, req models.PasswordRequest) error
}

type APIClientService interface {
	Create(ctx context.Context, sess auth.SessionStore, req models.CreateAPIClientRequest) (*models.APIClientCreated, error)
	List(ctx context.Context, sess auth.SessionStore, lenderID int64) ([]domain.APIClient, error)
	Revoke(ctx context.Context, sess auth.SessionStore, id int64) error
	Authenticate(ctx context.Context, raw string) (*domain.APIClient, error)
}

type ExternalService interface {
	CheckInvoice(ctx context.Context, sess auth.SessionStore, invoiceID string) (*models.CheckResult, error)
}

type Directory interface {
	GSTList(ctx context.Context, pan string) ([]directory.GSTRegistration, error)
	BusinessInfo(ctx context.Context, gstin string) (*directory.Business, error)
	BusinessByPAN(ctx context.Context, pan string) (*directory.Business, error)
}

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups what the handlers depend on.
type Services struct {
	Invoices   InvoiceService
	Credits    CreditService
	Accounts   AccountService
	APIClients APIClientService
	External   ExternalService
	Directory  Directory
	DB         Pinger
}

type Handler struct {
	Services
	issuer *auth.Issuer
	authz  *authz.Authorizer
}

func NewHandler(svc Services, issuer *auth.Issuer, authorizer *authz.Authorizer) *Handler {
	return &Handler{Services: svc, issuer: issuer, authz: authorizer}
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		if err := h.DB.Ping(r.Context()); err != nil {
			respondWithError(w, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondWithErr maps a service error onto its status code and body.
func respondWithErr(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr  *domain.ValidationError
		terr  *domain.TransitionError
		trerr *domain.TransportError
	)
	switch {
	case errors.As(err, &verr):
		details := make([]models.FieldDetail, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			details = append(details, models.FieldDetail{Loc: []string{"body", f.Field}, Msg: f.Message})
		}
		respondWithJSON(w, http.StatusUnprocessableEntity, models.ErrorResponse{Detail: details})
	case errors.As(err, &terr):
		respondWithError(w, http.StatusConflict, terr.Error())
	case errors.As(err, &trerr):
		respondWithError(w, http.StatusBadGateway, trerr.Error())
	case errors.Is(err, domain.ErrDuplicateInvoice),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrIdempotencyConflict):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondWithError(w, http.StatusNotFound, capitalize(err.Error()))
	case errors.Is(err, domain.ErrIdempotencyMismatch),
		errors.Is(err, domain.ErrInsufficientCredits):
		respondWithError(w, http.StatusUnprocessableEntity, capitalize(err.Error()))
	case errors.Is(err, domain.ErrForbidden):
		respondWithError(w, http.StatusForbidden, "Not allowed to access this resource")
	case errors.Is(err, domain.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, reconcile.ErrEmptyBatch),
		errors.Is(err, reconcile.ErrMissingHeaders),
		errors.Is(err, reconcile.ErrUnsupportedFile),
		errors.Is(err, reconcile.ErrUnsupportedBulkOp):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		logger.FromContext(r.Context()).Error().Err(err).Msg("Request failed")
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, models.ErrorResponse{Detail: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return false
	}
	return true
}

// session returns the caller's session. Routes without one never reach
// handlers, so a missing session is a wiring bug.
func session(r *http.Request) *auth.Session {
	sess, ok := auth.FromContext(r.Context())
	if !ok {
		return &auth.Session{}
	}
	return sess
}

// pathID parses the {id} route variable.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

// queryLender parses an optional lender_id query parameter; absent is 0.
func queryLender(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("lender_id"))
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondWithJSON(w, http.StatusUnprocessableEntity, models.ErrorResponse{Detail: []models.FieldDetail{
			{Loc: []string{"query", "lender_id"}, Msg: "must be a positive integer"},
		}})
		return 0, false
	}
	return id, true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

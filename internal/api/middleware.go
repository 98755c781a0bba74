package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/punchamoorthee/invosafe/internal/auth"
	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/punchamoorthee/invosafe/internal/logger"
)

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLogging tags the request with an id, logs its outcome and records
// the endpoint metrics.
func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		l := logger.WithRequestID(requestID)
		r = r.WithContext(l.WithContext(r.Context()))

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(r.Method, endpoint))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		timer.ObserveDuration()
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()

		l.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

// authenticate accepts a Bearer JWT of a still active user and attaches the
// caller's session.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			respondWithError(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}
		token = strings.TrimSpace(token)
		claims, err := h.issuer.Parse(token)
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, auth.ErrExpiredToken) {
				msg = "Token expired"
			}
			respondWithError(w, http.StatusUnauthorized, msg)
			return
		}
		if _, err := h.Accounts.ActiveUser(r.Context(), claims.UserID); err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				respondWithError(w, http.StatusUnauthorized, "User is not active")
				return
			}
			respondWithErr(w, r, err)
			return
		}
		sess := auth.NewSession(token, claims)
		next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), sess)))
	})
}

// authenticateAPIKey accepts an X-API-Key issued to a lender.
func (h *Handler) authenticateAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-API-Key")
		if raw == "" {
			respondWithError(w, http.StatusUnauthorized, "Missing API key")
			return
		}
		client, err := h.APIClients.Authenticate(r.Context(), raw)
		if err != nil {
			respondWithErr(w, r, err)
			return
		}
		sess := auth.NewAPIClientSession(client)
		next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), sess)))
	})
}

// require guards a handler with an RBAC check on the caller's role.
func (h *Handler) require(object, action string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.authz.Authorize(session(r).Role(), object, action); err != nil {
			respondWithErr(w, r, err)
			return
		}
		next(w, r)
	}
}

package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/invosafe/internal/authz"
)

// NewRouter wires every endpoint under /api/v1 plus the ops endpoints.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogging)
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheckHandler).Methods(http.MethodGet)

	apiV1 := r.PathPrefix("/api/v1").Subrouter()

	external := apiV1.PathPrefix("/external").Subrouter()
	external.Use(h.authenticateAPIKey)
	external.HandleFunc("/invoice-check", h.require(authz.ObjectInvoice, authz.ActionCheck, h.ExternalCheckHandler)).Methods(http.MethodGet)

	apiV1.HandleFunc("/auth/login", h.LoginHandler).Methods(http.MethodPost)

	p := apiV1.NewRoute().Subrouter()
	p.Use(h.authenticate)

	inv := func(action string, fn http.HandlerFunc) http.HandlerFunc {
		return h.require(authz.ObjectInvoice, action, fn)
	}
	p.HandleFunc("/invoice/lender/{lenderId}", inv(authz.ActionView, h.ListInvoicesHandler)).Methods(http.MethodGet)
	p.HandleFunc("/invoice/", inv(authz.ActionView, h.FindInvoiceHandler)).Methods(http.MethodGet)
	p.HandleFunc("/invoice", inv(authz.ActionCreate, h.CreateInvoiceHandler)).Methods(http.MethodPost)
	p.HandleFunc("/invoice/bulk", inv(authz.ActionBulk, h.BulkUpdateHandler)).Methods(http.MethodPost)
	p.HandleFunc("/invoice/export", inv(authz.ActionExport, h.ExportInvoicesHandler)).Methods(http.MethodGet)
	p.HandleFunc("/invoice/invoice-id/{invoice_id}", inv(authz.ActionUpdate, h.UpdateInvoiceHandler)).Methods(http.MethodPut)
	p.HandleFunc("/invoice/invoice-id/{invoice_id}", inv(authz.ActionDelete, h.DeleteInvoiceHandler)).Methods(http.MethodDelete)
	p.HandleFunc("/invoice/invoice-id/{invoice_id}/finance", inv(authz.ActionUpdate, h.FinanceInvoiceHandler)).Methods(http.MethodPost)
	p.HandleFunc("/invoice/invoice-id/{invoice_id}/reject", inv(authz.ActionUpdate, h.RejectInvoiceHandler)).Methods(http.MethodPost)
	p.HandleFunc("/invoice/invoice-id/{invoice_id}/repaid", inv(authz.ActionUpdate, h.RepaidInvoiceHandler)).Methods(http.MethodPost)

	p.HandleFunc("/api-credit/", h.require(authz.ObjectCredits, authz.ActionView, h.GetCreditsHandler)).Methods(http.MethodGet)
	p.HandleFunc("/api-credit/", h.require(authz.ObjectCredits, authz.ActionProvision, h.UpsertCreditsHandler)).Methods(http.MethodPost)
	p.HandleFunc("/api-credit/purchase", h.require(authz.ObjectCredits, authz.ActionPurchase, h.PurchaseCreditsHandler)).Methods(http.MethodPost)
	p.HandleFunc("/transactions/", h.require(authz.ObjectTransaction, authz.ActionView, h.ListTransactionsHandler)).Methods(http.MethodGet)

	p.HandleFunc("/lender/", h.require(authz.ObjectLender, authz.ActionList, h.ListLendersHandler)).Methods(http.MethodGet)
	p.HandleFunc("/lender/", h.require(authz.ObjectLender, authz.ActionCreate, h.CreateLenderHandler)).Methods(http.MethodPost)
	p.HandleFunc("/lender/{id:[0-9]+}", h.require(authz.ObjectLender, authz.ActionView, h.GetLenderHandler)).Methods(http.MethodGet)
	p.HandleFunc("/lender/{id:[0-9]+}", h.require(authz.ObjectLender, authz.ActionUpdate, h.UpdateLenderHandler)).Methods(http.MethodPut)
	p.HandleFunc("/lender/{id:[0-9]+}/statistics", h.require(authz.ObjectLender, authz.ActionView, h.LenderStatisticsHandler)).Methods(http.MethodGet)

	p.HandleFunc("/user/me/password", h.require(authz.ObjectUser, authz.ActionSelf, h.ChangePasswordHandler)).Methods(http.MethodPut)
	p.HandleFunc("/user/", h.require(authz.ObjectUser, authz.ActionView, h.ListUsersHandler)).Methods(http.MethodGet)
	p.HandleFunc("/user/", h.require(authz.ObjectUser, authz.ActionCreate, h.CreateUserHandler)).Methods(http.MethodPost)
	p.HandleFunc("/user/{id:[0-9]+}", h.require(authz.ObjectUser, authz.ActionView, h.GetUserHandler)).Methods(http.MethodGet)
	p.HandleFunc("/user/{id:[0-9]+}", h.require(authz.ObjectUser, authz.ActionDelete, h.DeleteUserHandler)).Methods(http.MethodDelete)
	p.HandleFunc("/user/{id:[0-9]+}/status", h.require(authz.ObjectUser, authz.ActionUpdate, h.UserStatusHandler)).Methods(http.MethodPut)
	p.HandleFunc("/user/{id:[0-9]+}/password", h.require(authz.ObjectUser, authz.ActionUpdate, h.ResetPasswordHandler)).Methods(http.MethodPut)

	p.HandleFunc("/api-client/", h.require(authz.ObjectAPIClient, authz.ActionView, h.ListAPIClientsHandler)).Methods(http.MethodGet)
	p.HandleFunc("/api-client/", h.require(authz.ObjectAPIClient, authz.ActionCreate, h.CreateAPIClientHandler)).Methods(http.MethodPost)
	p.HandleFunc("/api-client/{id:[0-9]+}", h.require(authz.ObjectAPIClient, authz.ActionDelete, h.RevokeAPIClientHandler)).Methods(http.MethodDelete)

	p.HandleFunc("/business/", h.require(authz.ObjectBusiness, authz.ActionView, h.BusinessByPANHandler)).Methods(http.MethodGet)
	p.HandleFunc("/business/gst-list", h.require(authz.ObjectBusiness, authz.ActionView, h.GSTListHandler)).Methods(http.MethodPost)
	p.HandleFunc("/business-gst/business-info", h.require(authz.ObjectBusiness, authz.ActionView, h.BusinessInfoHandler)).Methods(http.MethodPost)

	return r
}

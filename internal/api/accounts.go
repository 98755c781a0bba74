package api

import (
	"net/http"

	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/punchamoorthee/invosafe/internal/models"
)

func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.Accounts.Login(r.Context(), req)
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListLendersHandler(w http.ResponseWriter, r *http.Request) {
	lenders, err := h.Accounts.ListLenders(r.Context())
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, lenders)
}

func (h *Handler) GetLenderHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	lender, err := h.Accounts.GetLender(r.Context(), session(r), id)
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, lender)
}

func (h *Handler) LenderStatisticsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	stats, err := h.Accounts.LenderStatistics(r.Context(), session(r), id)
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

func (h *Handler) CreateLenderHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LenderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	lender, err := h.Accounts.CreateLender(r.Context(), req)
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, lender)
}

func (h *Handler) UpdateLenderHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.LenderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	lender, err := h.Accounts.UpdateLender(r.Context(), id, req)
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, lender)
}

func (h *Handler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	lenderID, ok := queryLender(w, r)
	if !ok {
		return
	}
	users, err := h.Accounts.ListUsers(r.Context(), session(r), lenderID)
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, users)
}

func (h *Handler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := h.Accounts.GetUser(r.Context(), session(r), id)
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

func (h *Handler) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.Accounts.CreateUser(r.Context(), session(r), req)
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, user)
}

func (h *Handler) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Accounts.SetUserStatus(r.Context(), session(r), id, domain.StatusDeleted); err != nil {
		respondWithErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UserStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.UserStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Accounts.SetUserStatus(r.Context(), session(r), id, req.Status); err != nil {
		respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (h *Handler) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.PasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Accounts.ResetPassword(r.Context(), session(r), id, req.NewPassword); err != nil {
		respondWithErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess := session(r)
	if sess.UserID == 0 {
		respondWithErr(w, r, domain.ErrForbidden)
		return
	}
	if err := h.Accounts.ChangePassword(r.Context(), sess.UserID, req); err != nil {
		respondWithErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListAPIClientsHandler(w http.ResponseWriter, r *http.Request) {
	lenderID, ok := queryLender(w, r)
	if !ok {
		return
	}
	clients, err := h.APIClients.List(r.Context(), session(r), lenderID)
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, clients)
}

// CreateAPIClientHandler issues a key. Any api_key in the body is ignored.
func (h *Handler) CreateAPIClientHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAPIClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	created, err := h.APIClients.Create(r.Context(), session(r), req)
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *Handler) RevokeAPIClientHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.APIClients.Revoke(r.Context(), session(r), id); err != nil {
		respondWithErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

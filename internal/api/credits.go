package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/punchamoorthee/invosafe/internal/models"
)

func (h *Handler) GetCreditsHandler(w http.ResponseWriter, r *http.Request) {
	lenderID, ok := queryLender(w, r)
	if !ok {
		return
	}
	credits, err := h.Credits.Get(r.Context(), session(r), lenderID)
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, credits)
}

func (h *Handler) UpsertCreditsHandler(w http.ResponseWriter, r *http.Request) {
	var req models.UpsertCreditsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	credits, err := h.Credits.Upsert(r.Context(), req)
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, credits)
}

// PurchaseCreditsHandler honours an optional Idempotency-Key header: the
// first response for a key is replayed for identical bodies.
func (h *Handler) PurchaseCreditsHandler(w http.ResponseWriter, r *http.Request) {
	idempotencyKey := r.Header.Get("Idempotency-Key")

	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Stream read error")
		return
	}
	r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	hash := sha256.Sum256(bodyBytes)
	reqHash := hex.EncodeToString(hash[:])

	var req models.PurchaseRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	resp, existing, err := h.Credits.Purchase(r.Context(), session(r), req, idempotencyKey, reqHash)
	if err != nil {
		respondWithErr(w, r, err)
		return
	}

	if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(existing.ResponseStatus)
		w.Write(existing.ResponseBody)
		return
	}
	respondWithJSON(w, http.StatusCreated, resp)
}

func (h *Handler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	lenderID, ok := queryLender(w, r)
	if !ok {
		return
	}
	txns, err := h.Credits.Transactions(r.Context(), session(r), lenderID)
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, txns)
}

func (h *Handler) ExternalCheckHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.External.CheckInvoice(r.Context(), session(r), r.URL.Query().Get("invoice_id"))
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (h *Handler) BusinessByPANHandler(w http.ResponseWriter, r *http.Request) {
	business, err := h.Directory.BusinessByPAN(r.Context(), r.URL.Query().Get("pan"))
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, business)
}

func (h *Handler) GSTListHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PAN string `json:"pan"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	list, err := h.Directory.GSTList(r.Context(), req.PAN)
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (h *Handler) BusinessInfoHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GST string `json:"gst"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	business, err := h.Directory.BusinessInfo(r.Context(), req.GST)
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, business)
}

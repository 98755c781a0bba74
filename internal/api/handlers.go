package api

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/punchamoorthee/invosafe/internal/lifecycle"
	"github.com/punchamoorthee/invosafe/internal/models"
	"github.com/punchamoorthee/invosafe/internal/reconcile"
)

const maxUploadBytes = 10 << 20

func (h *Handler) CreateInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	var p models.InvoicePayload
	if !decodeJSON(w, r, &p) {
		return
	}
	inv, err := h.Invoices.Create(r.Context(), session(r), p)
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/invoice/invoice-id/"+inv.InvoiceID)
	respondWithJSON(w, http.StatusCreated, inv)
}

func (h *Handler) ListInvoicesHandler(w http.ResponseWriter, r *http.Request) {
	lenderID, err := strconv.ParseInt(mux.Vars(r)["lenderId"], 10, 64)
	if err != nil || lenderID <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid lender id")
		return
	}
	status, ok := queryStatus(w, r)
	if !ok {
		return
	}
	invoices, err := h.Invoices.List(r.Context(), session(r), lenderID, status)
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, invoices)
}

func (h *Handler) FindInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.Invoices.Find(r.Context(), session(r), r.URL.Query().Get("invoice_id"))
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	if len(invoices) == 0 {
		respondWithError(w, http.StatusNotFound, "Invoice not found")
		return
	}
	respondWithJSON(w, http.StatusOK, invoices)
}

func (h *Handler) UpdateInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	var p models.InvoicePayload
	if !decodeJSON(w, r, &p) {
		return
	}
	inv, err := h.Invoices.Update(r.Context(), session(r), mux.Vars(r)["invoice_id"], p)
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, inv)
}

func (h *Handler) FinanceInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	var req models.FinanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.transition(w, r, lifecycle.Change{
		Op: lifecycle.OpFinance,
		Finance: lifecycle.FinanceInput{
			LoanAmount:         req.LoanAmount.String(),
			InterestRate:       req.InterestRate.String(),
			DisbursementAmount: req.DisbursementAmount.String(),
			DisbursementDate:   req.DisbursementDate.String(),
			CreditPeriod:       req.CreditPeriod.String(),
			DueDate:            req.DueDate.String(),
		},
	})
}

func (h *Handler) RejectInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RejectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.transition(w, r, lifecycle.Change{Op: lifecycle.OpReject, RejectionReason: req.RejectionReason})
}

func (h *Handler) RepaidInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RepaidRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	h.transition(w, r, lifecycle.Change{
		Op:    lifecycle.OpRepaid,
		Repay: lifecycle.RepayInput{RepaidDate: req.RepaidDate.String(), DueDate: req.DueDate.String()},
	})
}

func (h *Handler) DeleteInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, lifecycle.Change{Op: lifecycle.OpDelete})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, change lifecycle.Change) {
	lenderID, ok := queryLender(w, r)
	if !ok {
		return
	}
	inv, err := h.Invoices.Transition(r.Context(), session(r), lenderID, mux.Vars(r)["invoice_id"], change)
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, inv)
}

// BulkUpdateHandler accepts a multipart "file" field or a raw CSV body.
func (h *Handler) BulkUpdateHandler(w http.ResponseWriter, r *http.Request) {
	op, err := reconcile.ParseOperation(r.URL.Query().Get("operation"))
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	lenderID, ok := queryLender(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var batch *reconcile.Batch
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Missing file upload")
			return
		}
		defer file.Close()
		batch, err = reconcile.Parse(header.Filename, file, op)
		if err != nil {
			respondWithErr(w, r, err)
			return
		}
	} else {
		batch, err = reconcile.Parse("upload.csv", r.Body, op)
		if err != nil {
			respondWithErr(w, r, err)
			return
		}
	}

	report, err := h.Invoices.Bulk(r.Context(), session(r), lenderID, batch)
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

func (h *Handler) ExportInvoicesHandler(w http.ResponseWriter, r *http.Request) {
	lenderID, ok := queryLender(w, r)
	if !ok {
		return
	}
	status, ok := queryStatus(w, r)
	if !ok {
		return
	}
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		respondWithError(w, http.StatusBadRequest, "format must be csv or xlsx")
		return
	}

	invoices, err := h.Invoices.List(r.Context(), session(r), lenderID, status)
	if err != nil {
		respondWithErr(w, r, err)
		return
	}

	name := fmt.Sprintf("invoices-%s.%s", time.Now().UTC().Format("20060102"), format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if format == "xlsx" {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		err = reconcile.WriteXLSX(w, invoices)
	} else {
		w.Header().Set("Content-Type", "text/csv")
		err = reconcile.WriteCSV(w, invoices)
	}
	if err != nil {
		respondWithErr(w, r, err)
	}
}

func queryStatus(w http.ResponseWriter, r *http.Request) (*domain.Status, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("status"))
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || !domain.Status(n).Valid() {
		respondWithJSON(w, http.StatusUnprocessableEntity, models.ErrorResponse{Detail: []models.FieldDetail{
			{Loc: []string{"query", "status"}, Msg: "must be a status code between 0 and 6"},
		}})
		return nil, false
	}
	status := domain.Status(n)
	return &status, true
}

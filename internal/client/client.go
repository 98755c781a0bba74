// Package client talks to the InvoSafe REST API on behalf of a signed-in
// user.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/punchamoorthee/invosafe/internal/auth"
	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/punchamoorthee/invosafe/internal/lifecycle"
	"github.com/punchamoorthee/invosafe/internal/models"
)

// ErrNoAccessToken is returned before any request is sent without a token.
var ErrNoAccessToken = errors.New("no access token, sign in first")

type Client struct {
	baseURL string
	session auth.SessionStore
	http    *http.Client
}

func New(baseURL string, session auth.SessionStore) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		session: session,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// FindInvoices returns every visible copy of invoiceID.
func (c *Client) FindInvoices(ctx context.Context, invoiceID string) ([]domain.Invoice, error) {
	var out []domain.Invoice
	err := c.doJSON(ctx, http.MethodGet, "/invoice/?invoice_id="+url.QueryEscape(invoiceID), nil, &out)
	return out, err
}

// Transition applies one lifecycle change through the explicit endpoints.
func (c *Client) Transition(ctx context.Context, lenderID int64, invoiceID string, change lifecycle.Change) (*domain.Invoice, error) {
	path := "/invoice/invoice-id/" + url.PathEscape(invoiceID)
	method := http.MethodPost
	var body any
	switch change.Op {
	case lifecycle.OpFinance:
		path += "/finance"
		f := change.Finance
		body = models.FinanceRequest{
			LoanAmount:         models.Text(f.LoanAmount),
			InterestRate:       models.Text(f.InterestRate),
			DisbursementAmount: models.Text(f.DisbursementAmount),
			DisbursementDate:   models.Text(f.DisbursementDate),
			CreditPeriod:       models.Text(f.CreditPeriod),
			DueDate:            models.Text(f.DueDate),
		}
	case lifecycle.OpReject:
		path += "/reject"
		body = models.RejectRequest{RejectionReason: change.RejectionReason}
	case lifecycle.OpRepaid:
		path += "/repaid"
		body = models.RepaidRequest{
			RepaidDate: models.Text(change.Repay.RepaidDate),
			DueDate:    models.Text(change.Repay.DueDate),
		}
	case lifecycle.OpDelete:
		method = http.MethodDelete
	default:
		return nil, fmt.Errorf("unsupported operation %q", change.Op)
	}
	if lenderID != 0 {
		path += "?lender_id=" + strconv.FormatInt(lenderID, 10)
	}

	var inv domain.Invoice
	if err := c.doJSON(ctx, method, path, body, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Export streams a lender's invoices as csv or xlsx into w.
func (c *Client) Export(ctx context.Context, lenderID int64, status *domain.Status, format string, w io.Writer) error {
	q := url.Values{}
	if lenderID != 0 {
		q.Set("lender_id", strconv.FormatInt(lenderID, 10))
	}
	if status != nil {
		q.Set("status", strconv.Itoa(int(*status)))
	}
	if format != "" {
		q.Set("format", format)
	}
	resp, err := c.send(ctx, http.MethodGet, "/invoice/export?"+q.Encode(), nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *Client) Credits(ctx context.Context, lenderID int64) (*domain.APICredits, error) {
	path := "/api-credit/"
	if lenderID != 0 {
		path += "?lender_id=" + strconv.FormatInt(lenderID, 10)
	}
	var out domain.APICredits
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Transactions(ctx context.Context, lenderID int64) ([]domain.Transaction, error) {
	path := "/transactions/"
	if lenderID != 0 {
		path += "?lender_id=" + strconv.FormatInt(lenderID, 10)
	}
	var out []domain.Transaction
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// Purchase buys credits. A non-empty idempotencyKey makes retries safe.
func (c *Client) Purchase(ctx context.Context, req models.PurchaseRequest, idempotencyKey string) (*models.PurchaseResponse, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api-credit/purchase", bytes.NewReader(raw), "application/json")
	if err != nil {
		return nil, err
	}
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}
	resp, err := c.roundTrip(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out models.PurchaseResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &domain.TransportError{Status: resp.StatusCode, Message: "malformed response"}
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var (
		reader      io.Reader
		contentType string
	)
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader, contentType = bytes.NewReader(raw), "application/json"
	}
	resp, err := c.send(ctx, method, path, reader, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.TransportError{Status: resp.StatusCode, Message: "malformed response"}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return nil, err
	}
	return c.roundTrip(req)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	token := ""
	if c.session != nil {
		token = c.session.Token()
	}
	if token == "" {
		return nil, ErrNoAccessToken
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// roundTrip sends req and turns any non-2xx answer into a TransportError.
func (c *Client) roundTrip(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Message: err.Error()}
	}
	if resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return nil, &domain.TransportError{Status: resp.StatusCode, Message: errorMessage(raw, resp.Status)}
}

// errorMessage flattens an error body into one line. Field lists become
// "loc.path: msg" entries joined by ", ".
func errorMessage(raw []byte, fallback string) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		if s := strings.TrimSpace(string(raw)); s != "" {
			return s
		}
		return fallback
	}

	var msg string
	if err := json.Unmarshal(body.Detail, &msg); err == nil {
		return msg
	}

	var fields []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &fields); err != nil {
		return string(body.Detail)
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		loc := make([]string, len(f.Loc))
		for i, l := range f.Loc {
			loc[i] = fmt.Sprint(l)
		}
		parts = append(parts, strings.Join(loc, ".")+": "+f.Msg)
	}
	return strings.Join(parts, ", ")
}

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/punchamoorthee/invosafe/internal/auth"
	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCheckListsCopies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/invoice/", r.URL.Path)
		assert.Equal(t, "INV-9", r.URL.Query().Get("invoice_id"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]domain.Invoice{
			{InvoiceID: "INV-9", LenderID: 1, InvoiceAmount: decimal.NewFromInt(100), Status: domain.StatusFinanced},
			{InvoiceID: "INV-9", LenderID: 2, InvoiceAmount: decimal.NewFromInt(100), Provenance: domain.ProvenanceAlreadyFinanced},
		})
	}))
	defer srv.Close()

	out, err := execute(t, "check", "INV-9", "--url", srv.URL, "--token", "tok")
	require.NoError(t, err)
	assert.Contains(t, out, "Financed")
	assert.Contains(t, out, "AlreadyFinanced")
	assert.Contains(t, out, "100.00")
}

func TestBulkUpdateReportsRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Invoice not found"}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "reject.csv")
	require.NoError(t, os.WriteFile(path, []byte("invoice_id,rejection_reason\nINV-1,bad paperwork\n"), 0o600))

	out, err := execute(t, "bulk-update", path, "--operation", "reject", "--url", srv.URL, "--token", "tok")
	require.NoError(t, err)
	assert.Contains(t, out, "Invoice not found")
	assert.Contains(t, out, "0 succeeded, 1 failed")
}

func TestBulkUpdateRequiresLenderForAdmins(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	token, err := auth.NewIssuer("secret", time.Hour).Issue(&domain.User{ID: 1, Role: domain.RoleAdmin})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "reject.csv")
	require.NoError(t, os.WriteFile(path, []byte("invoice_id,rejection_reason\nINV-1,bad paperwork\n"), 0o600))

	_, err = execute(t, "bulk-update", path, "--operation", "reject", "--url", srv.URL, "--token", token)
	assert.EqualError(t, err, "--lender is required for admin tokens")
	assert.Zero(t, calls)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "export", "--format", "pdf", "--token", "tok")
	assert.EqualError(t, err, "format must be csv or xlsx")
}

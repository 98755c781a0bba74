// Package directory resolves PANs and GSTINs against the external
// business registry.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/punchamoorthee/invosafe/internal/identity"
	"github.com/punchamoorthee/invosafe/internal/logger"
	"github.com/rs/zerolog"
)

// GSTRegistration is one GSTIN registered under a PAN.
type GSTRegistration struct {
	GSTIN  string `json:"gstin"`
	State  string `json:"state,omitempty"`
	Status string `json:"status,omitempty"`
}

// Business is the registry record of a taxpayer.
type Business struct {
	PAN       string `json:"pan"`
	GSTIN     string `json:"gstin,omitempty"`
	LegalName string `json:"legal_name"`
	TradeName string `json:"trade_name,omitempty"`
	Status    string `json:"status,omitempty"`
	Address   string `json:"address,omitempty"`
}

type Client struct {
	baseURL string
	http    *http.Client
	cache   Cache
	ttl     time.Duration
	log     zerolog.Logger
}

func New(baseURL string, cache Cache, ttl time.Duration) *Client {
	if cache == nil {
		cache = NopCache{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		cache:   cache,
		ttl:     ttl,
		log:     logger.WithComponent("directory"),
	}
}

// GSTList returns every GSTIN registered under pan.
func (c *Client) GSTList(ctx context.Context, pan string) ([]GSTRegistration, error) {
	kind, token := identity.Classify(pan)
	if kind != identity.PAN {
		return nil, domain.Invalid("pan", "is not a valid PAN")
	}
	var out []GSTRegistration
	err := c.cached(ctx, "gst-list:"+token, &out, func() error {
		return c.do(ctx, http.MethodPost, "/business/gst-list", map[string]string{"pan": token}, &out)
	})
	return out, err
}

// BusinessInfo resolves a GSTIN to its business.
func (c *Client) BusinessInfo(ctx context.Context, gstin string) (*Business, error) {
	kind, token := identity.Classify(gstin)
	if kind != identity.GSTIN {
		return nil, domain.Invalid("gst", "is not a valid GSTIN")
	}
	var out Business
	err := c.cached(ctx, "gstin:"+token, &out, func() error {
		return c.do(ctx, http.MethodPost, "/business-gst/business-info", map[string]string{"gst": token}, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// BusinessByPAN resolves a PAN to its business.
func (c *Client) BusinessByPAN(ctx context.Context, pan string) (*Business, error) {
	kind, token := identity.Classify(pan)
	if kind != identity.PAN {
		return nil, domain.Invalid("pan", "is not a valid PAN")
	}
	var out Business
	err := c.cached(ctx, "pan:"+token, &out, func() error {
		return c.do(ctx, http.MethodGet, "/business/?pan="+url.QueryEscape(token), nil, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// cached serves dst from the cache or fills it with fetch. Cache failures
// are logged and treated as misses.
func (c *Client) cached(ctx context.Context, key string, dst any, fetch func() error) error {
	hit, err := c.cache.Get(ctx, key, dst)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Directory cache read failed")
	}
	if hit {
		return nil
	}
	if err := fetch(); err != nil {
		return err
	}
	if err := c.cache.Set(ctx, key, dst, c.ttl); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Directory cache write failed")
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if c.baseURL == "" {
		return &domain.TransportError{Message: "business directory is not configured"}
	}
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.TransportError{Message: fmt.Sprintf("business directory unreachable: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("business %w", domain.ErrNotFound)
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &domain.TransportError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.TransportError{Status: resp.StatusCode, Message: "malformed directory response"}
	}
	return nil
}

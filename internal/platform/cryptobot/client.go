// Package cryptobot is a minimal client for the Crypto Pay API, used to issue
// and poll subscription invoices.
package cryptobot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ndmitriev/giftarb/internal/domain"
)

// Invoice statuses reported by getInvoices.
const (
	StatusActive  = "active"
	StatusPaid    = "paid"
	StatusExpired = "expired"
)

// Invoice is a created or polled Crypto Pay invoice.
type Invoice struct {
	ID      int64  `json:"invoice_id"`
	Status  string `json:"status"`
	PayURL  string `json:"pay_url"`
	Payload string `json:"payload"`
}

// Client talks to the Crypto Pay API with a single-attempt, 10-second-timeout
// policy matching the rest of the watcher's outbound calls.
type Client struct {
	apiURL     string
	token      string
	httpClient *http.Client
}

// NewClient creates a Crypto Pay client.
func NewClient(apiURL, token string) *Client {
	return &Client{
		apiURL: apiURL,
		token:  token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Enabled reports whether credentials were configured.
func (c *Client) Enabled() bool {
	return c.apiURL != "" && c.token != ""
}

// CreateInvoice creates a fiat-denominated USDT invoice with the given
// correlation payload and returns it.
func (c *Client) CreateInvoice(ctx context.Context, amountUSD float64, description, payload string) (Invoice, error) {
	body := map[string]any{
		"asset":         "USDT",
		"amount":        strconv.FormatFloat(amountUSD, 'f', 2, 64),
		"description":   description,
		"payload":       payload,
		"currency_type": "fiat",
		"fiat":          "USD",
	}

	var inv Invoice
	if err := c.call(ctx, http.MethodPost, "/createInvoice", body, nil, &inv); err != nil {
		return Invoice{}, fmt.Errorf("cryptobot: create invoice: %w", err)
	}
	return inv, nil
}

// GetInvoice returns the current state of one invoice. It returns
// domain.ErrNotFound when the API no longer reports the invoice.
func (c *Client) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	params := url.Values{}
	params.Set("invoice_ids", strconv.FormatInt(id, 10))

	var items struct {
		Items []Invoice `json:"items"`
	}
	if err := c.call(ctx, http.MethodGet, "/getInvoices", nil, params, &items); err != nil {
		return Invoice{}, fmt.Errorf("cryptobot: get invoice %d: %w", id, err)
	}
	if len(items.Items) == 0 {
		return Invoice{}, fmt.Errorf("cryptobot: get invoice %d: %w", id, domain.ErrNotFound)
	}
	return items.Items[0], nil
}

// call performs one API request and decodes the {"ok": ..., "result": ...}
// envelope into result.
func (c *Client) call(ctx context.Context, method, path string, body any, params url.Values, result any) error {
	endpoint := c.apiURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Crypto-Pay-API-Token", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, raw)
	}

	var envelope struct {
		OK     bool            `json:"ok"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if !envelope.OK {
		return fmt.Errorf("api error: %s", raw)
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

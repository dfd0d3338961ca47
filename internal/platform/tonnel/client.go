// Package tonnel is the REST client for the Tonnel gift marketplace. It
// issues the two query types the watcher needs: the active-auction page and
// per-gift floor-price statistics.
package tonnel

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ndmitriev/giftarb/internal/domain"
)

// Fixed auction-page query: first page of 30, soonest-ending first, auctions
// only, active, settled in TON.
const (
	auctionSort   = `{"auctionEndTime":1,"gift_id":-1}`
	auctionFilter = `{"auction_id":{"$exists":true},"status":"active","asset":"TON"}`
)

// ClientConfig holds the marketplace endpoint parameters.
type ClientConfig struct {
	BaseURL  string
	AuthData string
	Timeout  time.Duration
	// InsecureSkipVerify disables certificate validation. The legacy
	// deployment ran with it on; default is off.
	InsecureSkipVerify bool
}

// Client talks to the Tonnel marketplace API. Every call is a single attempt
// under the configured timeout; callers treat failures as an empty result for
// the current cycle.
type Client struct {
	baseURL    string
	authData   string
	httpClient *http.Client
}

// NewClient creates a marketplace client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	transport := http.DefaultTransport
	if cfg.InsecureSkipVerify {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		transport = t
	}

	return &Client{
		baseURL:  cfg.BaseURL,
		authData: cfg.AuthData,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// SearchActiveAuctions fetches the current page of active auctions using the
// fixed query parameters.
func (c *Client) SearchActiveAuctions(ctx context.Context) ([]domain.Listing, error) {
	payload := map[string]any{
		"page":        1,
		"limit":       30,
		"sort":        auctionSort,
		"filter":      auctionFilter,
		"price_range": nil,
		"ref":         0,
		"user_auth":   c.authData,
	}

	body, err := c.post(ctx, "/api/pageGifts", payload)
	if err != nil {
		return nil, fmt.Errorf("tonnel: page gifts: %w", err)
	}

	gifts, err := decodeAuctions(body)
	if err != nil {
		return nil, fmt.Errorf("tonnel: page gifts: %w", err)
	}

	listings := make([]domain.Listing, 0, len(gifts))
	for _, g := range gifts {
		// Gifts without an id cannot be deduplicated or linked.
		if g.GiftID == 0 {
			continue
		}
		listings = append(listings, g.toListing())
	}
	return listings, nil
}

// FloorPrice looks up the floor price for a name+model key via filterStats.
// A key absent from the statistics yields Found == false with a nil error; a
// transport or decode failure yields an error.
func (c *Client) FloorPrice(ctx context.Context, key string) (domain.FloorQuote, error) {
	payload := map[string]any{
		"authData": c.authData,
	}

	body, err := c.post(ctx, "/api/filterStats", payload)
	if err != nil {
		return domain.FloorQuote{}, fmt.Errorf("tonnel: filter stats: %w", err)
	}

	var resp struct {
		Data map[string]struct {
			FloorPrice *flexFloat `json:"floorPrice"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.FloorQuote{}, fmt.Errorf("tonnel: filter stats: %w", domain.ErrBadResponse)
	}

	stat, ok := resp.Data[key]
	if !ok || stat.FloorPrice == nil {
		return domain.FloorQuote{}, nil
	}
	return domain.FloorQuote{Price: float64(*stat.FloorPrice), Found: true}, nil
}

// post issues a JSON POST and returns the response body for 2xx statuses.
func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	req.Header.Set("Referer", "https://market.tonnel.network/")
	req.Header.Set("Origin", "https://market.tonnel.network")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := body
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
	}

	return body, nil
}

// Compile-time interface checks.
var (
	_ domain.ListingSource = (*Client)(nil)
	_ domain.FloorSource   = (*Client)(nil)
)

package wooclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	productsPath = "/wp-json/wc/v3/products"
	pageSize     = 100

	probeTimeout = 10 * time.Second
	fetchTimeout = 15 * time.Second
)

// Credentials identify a WooCommerce store and its REST API keys
type Credentials struct {
	SiteURL        string `json:"siteUrl" binding:"required"`
	ConsumerKey    string `json:"consumerKey" binding:"required"`
	ConsumerSecret string `json:"consumerSecret" binding:"required"`
}

// Client is a WooCommerce REST v3 API client
type Client struct {
	creds      Credentials
	maxPages   int
	httpClient *http.Client
}

// NewClient creates a WooCommerce client. maxPages bounds bulk pagination
// against a misbehaving endpoint.
func NewClient(creds Credentials, maxPages int) *Client {
	if maxPages <= 0 {
		maxPages = 50
	}
	return &Client{
		creds:      creds,
		maxPages:   maxPages,
		httpClient: &http.Client{},
	}
}

// StoreInfo summarizes the probed store
type StoreInfo struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

// TestConnection issues a minimal one-product request and returns the total
// product count reported by the store. Nothing is persisted.
func (c *Client) TestConnection(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	resp, err := c.get(ctx, productsPath, url.Values{"per_page": {"1"}})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, statusError(resp.StatusCode)
	}

	total, _ := strconv.Atoi(resp.Header.Get("X-WP-Total"))
	return total, nil
}

// PageIterator walks the store's catalog one page at a time. Pages are
// fetched lazily; the sequence ends when the provider reports no further
// pages or the page ceiling is hit.
type PageIterator struct {
	client *Client
	page   int
	done   bool
}

// Pages returns a fresh iterator over the store's product pages
func (c *Client) Pages() *PageIterator {
	return &PageIterator{client: c, page: 1}
}

// Next fetches the next page of products. ok is false once the sequence is
// exhausted; any error ends the sequence.
func (it *PageIterator) Next(ctx context.Context) (products []Product, ok bool, err error) {
	if it.done {
		return nil, false, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	resp, err := it.client.get(reqCtx, productsPath, url.Values{
		"per_page": {strconv.Itoa(pageSize)},
		"page":     {strconv.Itoa(it.page)},
	})
	if err != nil {
		it.done = true
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		it.done = true
		return nil, false, statusError(resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&products); err != nil {
		it.done = true
		return nil, false, fmt.Errorf("failed to decode products page %d: %w", it.page, err)
	}

	// Prefer the provider's page count; when the header is missing (some
	// stores and proxies strip it) a short page marks the end instead.
	if header := resp.Header.Get("X-WP-TotalPages"); header != "" {
		totalPages, _ := strconv.Atoi(header)
		if totalPages <= 1 || it.page >= totalPages {
			it.done = true
		}
	} else if len(products) < pageSize {
		it.done = true
	}
	if it.page >= it.client.maxPages {
		it.done = true
	}
	it.page++

	return products, true, nil
}

// ListAllProducts drains the page iterator into a single buffered list,
// bounded by the page ceiling.
func (c *Client) ListAllProducts(ctx context.Context) ([]Product, error) {
	var all []Product

	it := c.Pages()
	for {
		products, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		all = append(all, products...)
	}

	return all, nil
}

// GetProduct fetches one full product record by id
func (c *Client) GetProduct(ctx context.Context, id int64) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	resp, err := c.get(ctx, fmt.Sprintf("%s/%d", productsPath, id), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode)
	}

	var product Product
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return nil, fmt.Errorf("failed to decode product %d: %w", id, err)
	}
	return &product, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("consumer_key", c.creds.ConsumerKey)
	params.Set("consumer_secret", c.creds.ConsumerSecret)

	endpoint := strings.TrimRight(c.creds.SiteURL, "/") + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	return resp, nil
}

// statusError maps WooCommerce HTTP failures onto user-facing messages
func statusError(code int) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.New("Invalid API credentials")
	case http.StatusNotFound:
		return errors.New("WooCommerce REST API not found. Please check the URL.")
	default:
		return fmt.Errorf("Connection failed (HTTP %d)", code)
	}
}

// classifyTransportError maps transport-level failures onto user-facing messages
func classifyTransportError(err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return errors.New("Site not found. Please check the URL.")
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return errors.New("Connection timeout. Please try again.")
	}

	return fmt.Errorf("Connection failed: %w", err)
}

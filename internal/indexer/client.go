package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/web3-frozen/energy-monitor/internal/energy"
	"github.com/web3-frozen/energy-monitor/internal/metrics"
)

const (
	defaultPageSize = 50
	defaultMaxPages = 20
)

// Client fetches hold-to-earn logs from the upstream indexing API.
type Client struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	pageSize int
	maxPages int
}

// Option configures a Client.
type Option func(*Client)

func WithAPIKey(key string) Option { return func(c *Client) { c.apiKey = key } }

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.client = hc } }

// WithPaging sets the page size and the maximum number of pages per fetch.
// Non-positive values keep the defaults.
func WithPaging(pageSize, maxPages int) Option {
	return func(c *Client) {
		if pageSize > 0 {
			c.pageSize = pageSize
		}
		if maxPages > 0 {
			c.maxPages = maxPages
		}
	}
}

func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		client:   &http.Client{Timeout: timeout},
		baseURL:  baseURL,
		pageSize: defaultPageSize,
		maxPages: defaultMaxPages,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type logsResponse struct {
	Total   int               `json:"total"`
	Results []json.RawMessage `json:"results"`
}

type rawEntry struct {
	Sender       string          `json:"sender"`
	Energy       json.RawMessage `json:"energy"`
	Integral     json.RawMessage `json:"integral"`
	BlockTime    json.RawMessage `json:"block_time"`
	BlockTimeISO string          `json:"block_time_iso"`
	BlockHeight  json.RawMessage `json:"block_height"`
	TxID         string          `json:"tx_id"`
}

// FetchLogs returns every log the indexer holds for contractID, up to the
// configured page limit. Malformed entries do not fail the fetch: they come
// back without a sender or energy amount so validation drops and counts them.
func (c *Client) FetchLogs(ctx context.Context, contractID string) ([]energy.LogEntry, error) {
	start := time.Now()
	defer func() {
		metrics.IndexerFetchDuration.WithLabelValues(contractID).Observe(time.Since(start).Seconds())
	}()

	var logs []energy.LogEntry
	for page := 0; page < c.maxPages; page++ {
		resp, err := c.fetchPage(ctx, contractID, page*c.pageSize)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Results {
			logs = append(logs, decodeEntry(raw))
		}
		if len(resp.Results) < c.pageSize || (resp.Total > 0 && len(logs) >= resp.Total) {
			break
		}
	}
	return logs, nil
}

func (c *Client) fetchPage(ctx context.Context, contractID string, offset int) (*logsResponse, error) {
	u := fmt.Sprintf("%s/v1/contracts/%s/logs?limit=%d&offset=%d",
		c.baseURL, url.PathEscape(contractID), c.pageSize, offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.IndexerRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("indexer API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.IndexerRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
		return nil, fmt.Errorf("indexer API status: %d", resp.StatusCode)
	}
	metrics.IndexerRequestsTotal.WithLabelValues("200").Inc()

	var out logsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode indexer response: %w", err)
	}
	return &out, nil
}

func decodeEntry(raw json.RawMessage) energy.LogEntry {
	var r rawEntry
	if err := json.Unmarshal(raw, &r); err != nil {
		return energy.LogEntry{}
	}
	return r.toEntry()
}

// toEntry converts a raw entry. An unparsable energy amount leaves Energy nil;
// unparsable integral, block_time and block_height are treated as absent.
func (r rawEntry) toEntry() energy.LogEntry {
	e := energy.LogEntry{
		Sender:       r.Sender,
		BlockTimeISO: r.BlockTimeISO,
		TxID:         r.TxID,
	}
	if en, ok, err := parseAmount(r.Energy); err == nil && ok {
		e.Energy = &en
	}
	if in, ok, err := parseAmount(r.Integral); err == nil && ok {
		e.Integral = in
	}
	if bt, ok, err := parseAmount(r.BlockTime); err == nil && ok {
		v := int64(bt)
		e.BlockTime = &v
	}
	if bh, ok, err := parseAmount(r.BlockHeight); err == nil && ok {
		v := int64(bh)
		e.BlockHeight = &v
	}
	if e.BlockTime == nil && r.BlockTimeISO != "" {
		if t, err := time.Parse(time.RFC3339, r.BlockTimeISO); err == nil {
			bt := t.Unix()
			e.BlockTime = &bt
		}
	}
	return e
}

// parseAmount accepts a JSON number, a decimal string or null. The boolean
// reports whether a value was present.
func parseAmount(raw json.RawMessage) (float64, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false, nil
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false, err
		}
		if s == "" {
			return 0, false, nil
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false, err
	}
	return d.InexactFloat64(), true, nil
}

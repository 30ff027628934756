// Package soda provides an HTTP client for Socrata Open Data (SODA)
// resource endpoints with error classification, metrics, and an optional
// Redis page cache.
package soda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cityscope/sodafetch/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for SODA client operations.
var (
	sodaRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soda_requests_total",
		Help: "Total SODA requests by dataset and status",
	}, []string{"dataset", "status"})

	sodaRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "soda_request_duration_seconds",
		Help:    "SODA request duration in seconds by dataset",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"dataset"})

	sodaErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soda_errors_total",
		Help: "Total SODA errors by class",
	}, []string{"class"})

	sodaRecordsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soda_records_fetched_total",
		Help: "Total records fetched by dataset",
	}, []string{"dataset"})
)

// ErrorClass represents a classification of request errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors (bad SoQL, bad dataset).
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 throttling responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Record is one row of a SODA resource. Socrata serializes row values as
// JSON strings; the schema belongs to the remote dataset and is not
// enforced here.
type Record map[string]string

// PageRequest describes one page of a date-windowed query.
type PageRequest struct {
	// Offset is the zero-based record offset ($offset).
	Offset int

	// Limit is the page size ($limit). Must not exceed the server maximum.
	Limit int

	// StartDate and EndDate bound the sale_date filter, inclusive.
	// Formatted YYYY-MM-DD; forwarded verbatim, the server validates.
	StartDate string
	EndDate   string
}

// MaxPageLimit is the record cap Socrata enforces per request.
const MaxPageLimit = 50000

// DefaultBaseURL is the NYC Open Data portal.
const DefaultBaseURL = "https://data.cityofnewyork.us"

// DefaultDatasetID is the NYC Citywide Rolling Calendar Sales dataset.
const DefaultDatasetID = "usep-8jbt"

// OrderField is the column every query is sorted on. Descending order keeps
// paging deterministic across requests.
const OrderField = "sale_date"

// Config holds the client configuration.
type Config struct {
	// BaseURL of the Socrata portal, e.g. "https://data.cityofnewyork.us".
	BaseURL string

	// DatasetID is the resource identifier, e.g. "usep-8jbt".
	DatasetID string

	// AppToken is an optional Socrata app token sent as X-App-Token for
	// elevated rate limits.
	AppToken string

	// Timeout bounds each request.
	Timeout time.Duration

	// Redis enables the page cache when non-nil.
	Redis *redis.Client

	// CacheTTL is how long cached pages stay valid.
	CacheTTL time.Duration
}

// DefaultConfig returns a configuration for the NYC property sales dataset.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		DatasetID: DefaultDatasetID,
		Timeout:   30 * time.Second,
		CacheTTL:  1 * time.Hour,
	}
}

// Client fetches pages from a single SODA resource.
type Client struct {
	httpClient *http.Client
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// New creates a new SODA client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.DatasetID == "" {
		return nil, fmt.Errorf("dataset ID is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "soda-client").Str("dataset", cfg.DatasetID).Logger()

	var pageCache *cache.Manager
	if cfg.Redis != nil {
		pageCache = cache.NewManager(cfg.Redis, cfg.CacheTTL)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache:  pageCache,
		config: cfg,
		logger: logger,
	}, nil
}

// FetchPage fetches a single page of records.
//
// Transport failures return a wrapped *TransportError. Non-2xx responses
// return a *StatusError carrying the classified ErrorClass.
func (c *Client) FetchPage(ctx context.Context, page PageRequest) ([]Record, error) {
	if page.Limit <= 0 || page.Limit > MaxPageLimit {
		return nil, fmt.Errorf("page limit must be in 1..%d (got %d)", MaxPageLimit, page.Limit)
	}
	if page.Offset < 0 {
		return nil, fmt.Errorf("page offset must be non-negative (got %d)", page.Offset)
	}

	query := page.queryValues()

	startTime := time.Now()
	defer func() {
		sodaRequestDuration.WithLabelValues(c.config.DatasetID).Observe(time.Since(startTime).Seconds())
	}()

	// Cache lookup first; cache trouble is never fatal.
	cacheKey := cache.Key{Dataset: c.config.DatasetID, Query: query}
	if c.cache != nil {
		if records, err := c.lookupCache(ctx, cacheKey); err == nil {
			return records, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resourceURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.URL.RawQuery = query.Encode()
	req.Header.Set("Accept", "application/json")
	if c.config.AppToken != "" {
		req.Header.Set("X-App-Token", c.config.AppToken)
	}

	c.logger.Debug().
		Int("offset", page.Offset).
		Int("limit", page.Limit).
		Str("start", page.StartDate).
		Str("end", page.EndDate).
		Msg("Requesting page")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		sodaErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		sodaRequestsTotal.WithLabelValues(c.config.DatasetID, "network_error").Inc()
		c.logger.Error().Err(err).Int("offset", page.Offset).Msg("Page request failed")
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	sodaRequestsTotal.WithLabelValues(c.config.DatasetID, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		class := classifyStatus(resp.StatusCode)
		sodaErrorsTotal.WithLabelValues(string(class)).Inc()

		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Int("offset", page.Offset).
			Msg("SODA request error")

		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    resp.Status,
			RetryAfter: parseRetryAfter(resp.Header),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		sodaErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &TransportError{Err: fmt.Errorf("read body: %w", err)}
	}

	var records []Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode page at offset %d: %w", page.Offset, err)
	}

	sodaRecordsFetched.WithLabelValues(c.config.DatasetID).Add(float64(len(records)))

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, &cache.Entry{
			Records:   body,
			FetchedAt: time.Now(),
		}); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache page")
		}
	}

	return records, nil
}

// lookupCache returns the cached page for key, or an error on miss or any
// cache failure.
func (c *Client) lookupCache(ctx context.Context, key cache.Key) ([]Record, error) {
	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		if err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Msg("Cache get error")
		}
		return nil, err
	}

	var records []Record
	if err := json.Unmarshal(entry.Records, &records); err != nil {
		// Corrupt entry; drop it and fall through to the network.
		_ = c.cache.Delete(ctx, key)
		return nil, fmt.Errorf("decode cached page: %w", err)
	}

	c.logger.Debug().
		Time("fetched_at", entry.FetchedAt).
		Int("records", len(records)).
		Msg("Page served from cache")

	return records, nil
}

// resourceURL returns the SODA resource endpoint for the configured dataset.
func (c *Client) resourceURL() string {
	return fmt.Sprintf("%s/resource/%s.json", c.config.BaseURL, c.config.DatasetID)
}

// queryValues builds the SoQL query parameters for one page.
func (p PageRequest) queryValues() url.Values {
	where := fmt.Sprintf("%s >= '%s' AND %s <= '%s'", OrderField, p.StartDate, OrderField, p.EndDate)
	return url.Values{
		"$limit":  []string{strconv.Itoa(p.Limit)},
		"$offset": []string{strconv.Itoa(p.Offset)},
		"$where":  []string{where},
		"$order":  []string{OrderField + " DESC"},
	}
}

// classifyStatus categorizes an HTTP status code for observability and
// pacing decisions.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// parseRetryAfter reads a Retry-After header given in seconds.
// Returns 0 when absent or unparseable.
func parseRetryAfter(headers http.Header) time.Duration {
	value := headers.Get("Retry-After")
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

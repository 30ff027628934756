package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/cityscope/sodafetch/pkg/soda"
	"github.com/cityscope/sodafetch/pkg/throttle"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for fetch runs.
var (
	fetchRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_runs_total",
		Help: "Total fetch runs by outcome",
	}, []string{"outcome"})

	fetchPagesPerRun = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fetch_pages_per_run",
		Help:    "Pages accumulated per fetch run",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	})
)

// PageClient fetches a single page of records.
// *soda.Client satisfies this; tests substitute fakes.
type PageClient interface {
	FetchPage(ctx context.Context, page soda.PageRequest) ([]soda.Record, error)
}

// Reason tags why the pagination loop terminated.
type Reason string

const (
	// ReasonEmptyPage means the server returned zero records.
	ReasonEmptyPage Reason = "empty_page"

	// ReasonShortPage means the server returned fewer records than the
	// page limit, implying the final page.
	ReasonShortPage Reason = "short_page"

	// ReasonPartialFailure means a page failed after at least one page
	// had succeeded; the result holds only the pages fetched before the
	// failure.
	ReasonPartialFailure Reason = "partial_failure"
)

// Config holds fetcher configuration.
type Config struct {
	// PageLimit is the records requested per page.
	// Capped at soda.MaxPageLimit; defaults to it when zero.
	PageLimit int

	// Delay is the politeness delay between page requests.
	// Defaults to throttle.DefaultDelay when zero.
	Delay time.Duration
}

// DefaultConfig returns the server-maximum page size and the default
// politeness delay.
func DefaultConfig() Config {
	return Config{
		PageLimit: soda.MaxPageLimit,
		Delay:     throttle.DefaultDelay,
	}
}

// Result is the outcome of one fetch run.
type Result struct {
	// Records is the full accumulation in server-provided order
	// (sale_date descending).
	Records []soda.Record

	// Pages is the number of non-empty pages accumulated.
	Pages int

	// Requests is the number of page requests issued, including the
	// terminating empty or failed one.
	Requests int

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration

	// Reason tags why the loop stopped.
	Reason Reason

	// Err is the page error behind ReasonPartialFailure, nil otherwise.
	Err error
}

// Truncated reports whether the result was cut short by a failure and may
// be missing trailing pages.
func (r *Result) Truncated() bool {
	return r.Reason == ReasonPartialFailure
}

// Fetcher runs the pagination loop against a PageClient.
type Fetcher struct {
	client PageClient
	pacer  *throttle.Pacer
	config Config
	logger zerolog.Logger
}

// New creates a fetcher. Zero config fields take defaults.
func New(client PageClient, cfg Config, logger zerolog.Logger) *Fetcher {
	if cfg.PageLimit <= 0 || cfg.PageLimit > soda.MaxPageLimit {
		cfg.PageLimit = soda.MaxPageLimit
	}
	if cfg.Delay <= 0 {
		cfg.Delay = throttle.DefaultDelay
	}

	return &Fetcher{
		client: client,
		pacer:  throttle.NewPacer(cfg.Delay, logger),
		config: cfg,
		logger: logger,
	}
}

// FetchRange retrieves every record whose sale_date falls in [start, end],
// both formatted YYYY-MM-DD. Dates are forwarded to the server verbatim;
// malformed values surface as a client-class StatusError from the remote
// side.
//
// An empty dataset is a success with zero records, not an error.
func (f *Fetcher) FetchRange(ctx context.Context, start, end string) (*Result, error) {
	startTime := time.Now()
	result := &Result{}

	f.logger.Info().
		Str("start", start).
		Str("end", end).
		Int("page_limit", f.config.PageLimit).
		Msg("Starting fetch")

	offset := 0
	for {
		page := soda.PageRequest{
			Offset:    offset,
			Limit:     f.config.PageLimit,
			StartDate: start,
			EndDate:   end,
		}

		records, err := f.client.FetchPage(ctx, page)
		result.Requests++

		if err != nil {
			f.observeRateLimit(err)

			if result.Pages == 0 {
				fetchRunsTotal.WithLabelValues("error").Inc()
				f.logger.Error().Err(err).Msg("First page failed")
				return nil, err
			}

			// A later page failed: keep what we have.
			f.logger.Warn().
				Err(err).
				Int("records", len(result.Records)).
				Int("pages", result.Pages).
				Msg("Page failed after partial success - returning records fetched so far")

			result.Reason = ReasonPartialFailure
			result.Err = err
			break
		}

		if len(records) == 0 {
			f.logger.Info().Int("records", len(result.Records)).Msg("No more records to fetch")
			result.Reason = ReasonEmptyPage
			break
		}

		result.Records = append(result.Records, records...)
		result.Pages++

		f.logger.Info().
			Int("page_records", len(records)).
			Int("total_records", len(result.Records)).
			Int("offset", offset).
			Msg("Page fetched")

		if len(records) < f.config.PageLimit {
			f.logger.Info().Int("records", len(result.Records)).Msg("Reached end of dataset")
			result.Reason = ReasonShortPage
			break
		}

		offset += f.config.PageLimit

		if err := f.pacer.Wait(ctx); err != nil {
			if result.Pages == 0 {
				fetchRunsTotal.WithLabelValues("error").Inc()
				return nil, err
			}
			result.Reason = ReasonPartialFailure
			result.Err = err
			break
		}
	}

	result.Elapsed = time.Since(startTime)

	fetchRunsTotal.WithLabelValues(string(result.Reason)).Inc()
	fetchPagesPerRun.Observe(float64(result.Pages))

	f.logger.Info().
		Int("records", len(result.Records)).
		Int("pages", result.Pages).
		Int("requests", result.Requests).
		Str("reason", string(result.Reason)).
		Dur("elapsed", result.Elapsed).
		Msg("Fetch complete")

	return result, nil
}

// observeRateLimit forwards server throttling signals to the pacer.
func (f *Fetcher) observeRateLimit(err error) {
	var statusErr *soda.StatusError
	if errors.As(err, &statusErr) && statusErr.ErrorClass == soda.ErrorClassRateLimit {
		f.pacer.ObserveRateLimit(statusErr.RetryAfter)
	}
}

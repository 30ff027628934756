// Command sodafetch downloads NYC property sales records from the Socrata
// Open Data API and writes them as CSV for the downstream pipeline.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cityscope/sodafetch/internal/config"
	"github.com/cityscope/sodafetch/pkg/fetch"
	"github.com/cityscope/sodafetch/pkg/logging"
	"github.com/cityscope/sodafetch/pkg/sink"
	"github.com/cityscope/sodafetch/pkg/soda"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Exit codes: 0 success (including truncated results), 1 fetch or write
// failure, 2 configuration failure.
const (
	exitOK     = 0
	exitFetch  = 1
	exitConfig = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

func run(args []string, stdin io.Reader, stdout io.Writer) int {
	fs := flag.NewFlagSet("sodafetch", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file (default sodafetch.yaml)")
	mode := fs.String("mode", "", "range mode: 1-4 or last-12-months|last-24-months|since-2019|custom (prompts when empty)")
	start := fs.String("start", "", "start date YYYY-MM-DD (custom mode)")
	end := fs.String("end", "", "end date YYYY-MM-DD (custom mode, default today)")
	token := fs.String("token", "", "Socrata app token (overrides config and SODA_APP_TOKEN)")
	out := fs.String("out", "", "output directory (overrides config)")
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stdout, "Configuration error: %v\n", err)
		return exitConfig
	}
	if *token != "" {
		cfg.Source.AppToken = *token
	}
	if *out != "" {
		cfg.Output.Dir = *out
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(stdout, strings.Repeat("=", 60))
	fmt.Fprintln(stdout, "NYC Real Estate Data Fetcher")
	fmt.Fprintln(stdout, strings.Repeat("=", 60))

	rng, err := selectRange(*mode, *start, *end, stdin, stdout)
	if err != nil {
		fmt.Fprintf(stdout, "Configuration error: %v\n", err)
		return exitConfig
	}

	client, err := soda.New(soda.Config{
		BaseURL:   cfg.Source.BaseURL,
		DatasetID: cfg.Source.DatasetID,
		AppToken:  cfg.Source.AppToken,
		Timeout:   cfg.Fetch.Timeout.Std(),
		Redis:     connectRedis(ctx, cfg, logger),
		CacheTTL:  cfg.Redis.CacheTTL.Std(),
	})
	if err != nil {
		fmt.Fprintf(stdout, "Configuration error: %v\n", err)
		return exitConfig
	}

	// Best-effort metadata probe; never blocks the fetch.
	printDatasetInfo(ctx, client, stdout)

	fetcher := fetch.New(client, fetch.Config{
		PageLimit: cfg.Fetch.PageLimit,
		Delay:     cfg.Fetch.Delay.Std(),
	}, logging.NewLogger("fetcher"))

	logger.Info().
		Str("mode", string(rng.Mode)).
		Str("start", rng.Start).
		Str("end", rng.End).
		Msg("Fetching NYC property sales data")

	result, err := fetcher.FetchRange(ctx, rng.Start, rng.End)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch data")
		printHints(stdout)
		return exitFetch
	}

	csvSink := sink.NewCSVSink(cfg.Output.Dir, cfg.Output.Basename, logging.NewLogger("sink"))
	written, err := csvSink.Write(result.Records, rng.Start, rng.End)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to write output")
		return exitFetch
	}

	printSummary(stdout, result, written)
	return exitOK
}

// selectRange resolves the date window from flags or, with no mode flag,
// the interactive menu.
func selectRange(mode, start, end string, stdin io.Reader, stdout io.Writer) (config.Range, error) {
	if mode != "" {
		parsed, err := config.ParseMode(mode)
		if err != nil {
			return config.Range{}, err
		}
		return config.ResolveRange(parsed, start, end, time.Now())
	}

	reader := bufio.NewReader(stdin)

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Choose data fetching option:")
	fmt.Fprintln(stdout, "1. Last 12 months (fastest, good for testing)")
	fmt.Fprintln(stdout, "2. Last 24 months (recommended for analysis)")
	fmt.Fprintln(stdout, "3. Since 2019 (comprehensive, may take 5-10 minutes)")
	fmt.Fprintln(stdout, "4. Custom date range")
	fmt.Fprint(stdout, "\nEnter choice (1-4) [default: 2]: ")

	choice := readLine(reader)
	if choice == "" {
		choice = "2"
	}

	parsed, err := config.ParseMode(choice)
	if err != nil {
		fmt.Fprintln(stdout, "Invalid choice, using default (last 24 months)")
		parsed = config.ModeLast24Months
	}

	if parsed == config.ModeCustom {
		fmt.Fprint(stdout, "Enter start date (YYYY-MM-DD): ")
		start = readLine(reader)
		fmt.Fprint(stdout, "Enter end date (YYYY-MM-DD) [default: today]: ")
		end = readLine(reader)
	}

	return config.ResolveRange(parsed, start, end, time.Now())
}

// readLine reads one trimmed line, returning "" at EOF.
func readLine(reader *bufio.Reader) string {
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

// connectRedis opens the optional page cache backend. A missing or
// unreachable Redis disables caching, it never fails the run.
func connectRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, page cache disabled")
		client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Addr).Msg("Page cache enabled")
	return client
}

// printDatasetInfo runs the best-effort metadata probe.
func printDatasetInfo(ctx context.Context, client *soda.Client, stdout io.Writer) {
	fmt.Fprintln(stdout, "\nFetching dataset information...")

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	info, err := client.DatasetInfo(probeCtx)
	if err != nil {
		logger := logging.NewLogger("metadata")
		logger.Warn().Err(err).Msg("Failed to fetch dataset metadata")
		return
	}

	fmt.Fprintf(stdout, "Dataset: %s\n", info.Name)
	if len(info.Columns) > 0 {
		fmt.Fprintf(stdout, "Columns: %d\n", len(info.Columns))
	}
}

// printSummary prints the post-run report.
func printSummary(stdout io.Writer, result *fetch.Result, written *sink.WriteResult) {
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, strings.Repeat("=", 60))
	fmt.Fprintln(stdout, "DATA FETCH SUMMARY")
	fmt.Fprintln(stdout, strings.Repeat("=", 60))
	fmt.Fprintf(stdout, "Total Records: %d\n", len(result.Records))
	fmt.Fprintf(stdout, "Columns: %d\n", len(written.Columns))
	fmt.Fprintf(stdout, "Pages: %d (%d requests, %s)\n", result.Pages, result.Requests, result.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(stdout, "Saved to: %s\n", written.ArchivePath)
	fmt.Fprintf(stdout, "Canonical copy: %s\n", written.CanonicalPath)

	if result.Truncated() {
		fmt.Fprintln(stdout)
		fmt.Fprintf(stdout, "WARNING: result truncated by a failed page request (%v)\n", result.Err)
		fmt.Fprintln(stdout, "Re-run with the same range to fetch the complete dataset.")
		return
	}

	fmt.Fprintln(stdout, "\nData fetch completed successfully.")
	fmt.Fprintln(stdout, "Next step: run the cleaning stage against the canonical file.")
}

// printHints prints remediation suggestions after a failed fetch.
func printHints(stdout io.Writer) {
	fmt.Fprintln(stdout, "\nIf you're hitting rate limits, consider:")
	fmt.Fprintln(stdout, "1. Register for a free Socrata app token: https://dev.socrata.com/")
	fmt.Fprintln(stdout, "2. Use a smaller date range")
	fmt.Fprintln(stdout, "3. Add delays between requests (already implemented)")
}

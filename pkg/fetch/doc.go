// Package fetch implements sequential bulk pagination over a SODA
// resource endpoint.
//
// The fetcher walks a date-windowed query in fixed-size pages, one request
// in flight at a time, with a politeness delay between pages. The loop
// terminates when the server returns an empty page or a page smaller than
// the requested limit, and each result carries a tagged termination reason
// so callers can tell the two apart.
//
// Example usage:
//
//	client, _ := soda.New(soda.DefaultConfig())
//	fetcher := fetch.New(client, fetch.DefaultConfig(), logger)
//	result, err := fetcher.FetchRange(ctx, "2020-01-01", "2020-12-31")
//
// Failure policy: an error on the very first page is fatal and propagates
// to the caller. An error after at least one successful page stops the loop
// and returns the partial accumulation as a success tagged with
// ReasonPartialFailure; no page is retried. Callers that need to
// distinguish complete from truncated output check Result.Truncated().
//
// Contract dependency: short-page termination assumes the server never
// returns an undersized non-final page. Socrata honors this for
// $limit/$offset paging over a stable $order, but it is a property of the
// remote API, not of this package.
package fetch

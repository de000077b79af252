// Package scraper fetches giving data for each configured congregation.
//
// Two source types are supported:
//   - prometheus (prometheus.go): a giving-ledger exporter publishing
//     stewardlens_* gauges in the Prometheus text format. The scraper reports
//     raw Values; the compute engine derives rates and trends.
//   - json (json.go): a church backend endpoint that already returns the four
//     metric groups. The scraper passes them through as Input.
//
// Factory: New(config.Source) returns the correct Scraper.
//
// Authentication (mTLS, API key, bearer token, basic) is handled by the shared
// authRoundTripper in base.go; individual scrapers receive a pre-configured
// *http.Client from New().
package scraper

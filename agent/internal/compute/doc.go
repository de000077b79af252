// Package compute derives the four financial metric groups from raw scraper
// output.
//
// Engine keeps per-source state between scrape cycles: the latest values of
// the current reporting period, the final values of the period before it, and
// a rolling window of the last 20 scrape outcomes for uptime %. Engine.Process
// accepts an injectable time.Time so tests are deterministic.
//
// Derivation:
//   - giving change = (current - previous) / previous * 100, 0 when previous
//     is unknown or zero; direction is up/down outside the stable band
//   - retention rate = retained / total * 100; lost defaults to total - retained
//   - recurring % = recurring donors / total * 100
//   - new donor growth = period-over-period change of new donors
//
// The engine does not score. Scoring is done by the server so that every
// consumer sees the same result.
package compute

// Package history persists every server-side assessment in SQLite
// (modernc.org/sqlite, no cgo) so the REST API can chart a congregation's
// score over time. Store.Observe plugs into the receiver; Store.Run prunes
// rows past the configured retention.
package history

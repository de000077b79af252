// Package store holds the latest assessed snapshot for every congregation in
// memory. Entries expire after a TTL without updates; Run evicts them in the
// background. Persistent history lives in package history.
package store

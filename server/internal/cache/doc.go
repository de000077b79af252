// Package cache provides a Redis-backed finhealth.Cache so several server
// replicas can share memoized assessments. Misses and Redis errors are
// reported to finhealth.Memo, which then scores the input directly.
package cache

// Package api implements the HTTP REST API for stewardlens-server.
//
// New(store, opts...) returns a *Handler that serves:
//
//	GET  /api/v1/health                       overall score, label, per-label counts
//	POST /api/v1/evaluate                     ad-hoc evaluation of an Input body
//	GET  /api/v1/congregations                all live congregations
//	GET  /api/v1/congregations/{id}           single congregation; 404 if unknown or stale
//	GET  /api/v1/congregations/{id}/history   persisted assessments; 503 without storage
//	GET  /api/v1/alerts                       firing and recently resolved alerts
//	GET  /api/v1/snapshot                     all live congregations + generated_at
//
// All endpoints respond with Content-Type: application/json and return 405
// for the wrong method. Options attach the alert engine, history store,
// assessment memo, request metrics and a token-bucket rate limit (429).
package api

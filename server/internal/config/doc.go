// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the `agent:` key is ignored by the server binary).
//
// Config fields:
//   - GRPCPort          port for the gRPC receiver (default 50051)
//   - HTTPPort          port for the REST API and WebSocket hub (default 8080)
//   - Auth              apikey | mtls | none, key env var and header name
//   - Snapshot.TTL      how long a congregation snapshot remains live (default 24h)
//   - BroadcastInterval WebSocket push period (default 5s)
//   - RateLimit         REST token bucket (rps 20, burst 40; rps 0 disables)
//   - Cache             assessment cache: memory | redis | none
//   - Storage           assessment history: sqlite | none, with retention
//   - Alerts            rules and notification targets
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, fn) re-runs Load on every write and hands valid results to fn.
package config

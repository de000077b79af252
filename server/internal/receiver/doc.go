// Package receiver implements wire.SnapshotServiceServer, the gRPC endpoint
// that accepts congregation snapshots from stewardlens-agent instances.
//
// SendSnapshot rejects a missing source_id or an input with unknown enum
// values (codes.InvalidArgument). It then scores the input through the
// finhealth memo, overwriting whatever evaluation the client sent, records
// the snapshot in the store and fans it out to the registered observers
// (history, alerts, metrics, WebSocket hub). Snapshots carrying an
// error_message are stored unevaluated.
package receiver

// Package wire defines the messages exchanged between stewardlens-agent and
// stewardlens-server, and the gRPC service that carries them.
//
// Messages are plain Go structs. They travel over gRPC using the JSON codec
// registered by this package under the "json" content-subtype, so no generated
// protobuf code is required. Both ends must import this package for the codec
// to be registered.
//
// The service has a single unary method:
//
//	stewardlens.v1.SnapshotService/SendSnapshot(Snapshot) returns (SendResponse)
//
// The agent fills the source fields and Input. The server is authoritative for
// the evaluation fields (Score, Label, SubScores, Recommendations) and
// overwrites whatever the agent sent.
package wire

package receiver

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/stewardlens/stewardlens/pkg/finhealth"
	"github.com/stewardlens/stewardlens/pkg/wire"
	"github.com/stewardlens/stewardlens/server/internal/store"
)

// Observer is notified after every accepted snapshot. Implementations must
// treat snap as read-only.
type Observer interface {
	Observe(ctx context.Context, snap *wire.Snapshot)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, snap *wire.Snapshot)

// Observe calls f(ctx, snap).
func (f ObserverFunc) Observe(ctx context.Context, snap *wire.Snapshot) { f(ctx, snap) }

// Receiver implements wire.SnapshotServiceServer.
// It validates each incoming Snapshot, attaches the server's assessment and
// stores it in the state store.
type Receiver struct {
	wire.UnimplementedSnapshotServiceServer
	store     *store.Store
	memo      *finhealth.Memo
	observers []Observer
}

// New creates a Receiver that evaluates through memo (nil evaluates directly),
// writes accepted snapshots to st and then notifies observers in order.
func New(st *store.Store, memo *finhealth.Memo, observers ...Observer) *Receiver {
	return &Receiver{store: st, memo: memo, observers: observers}
}

// SendSnapshot is the unary RPC handler called by stewardlens-agent instances.
// Authentication is enforced by the gRPC server interceptor before this is called.
func (r *Receiver) SendSnapshot(ctx context.Context, snap *wire.Snapshot) (*wire.SendResponse, error) {
	if snap.SourceID == "" {
		return nil, status.Error(codes.InvalidArgument, "source_id is required")
	}
	if snap.Input != nil {
		if err := finhealth.Validate(*snap.Input); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "input: %v", err)
		}
	}

	// Any evaluation sent by the client is discarded.
	snap.Apply(finhealth.Assessment{})
	if snap.Input != nil && snap.ErrorMessage == "" {
		snap.Apply(r.memo.Evaluate(ctx, *snap.Input))
	}

	r.store.Put(snap)

	slog.Debug("receiver: snapshot stored",
		"source_id", snap.SourceID,
		"period_id", snap.PeriodID,
		"score", snap.Score,
		"label", snap.Label,
		"error", snap.ErrorMessage,
	)

	for _, o := range r.observers {
		o.Observe(ctx, snap)
	}

	msg := "stored"
	if snap.Evaluated() {
		msg = string(snap.Label)
	}
	return &wire.SendResponse{Ok: true, Message: msg}, nil
}

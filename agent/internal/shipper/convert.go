package shipper

import (
	"github.com/stewardlens/stewardlens/agent/internal/compute"
	"github.com/stewardlens/stewardlens/pkg/wire"
)

// toSnapshot converts a compute.Result into the wire message sent to
// stewardlens-server. Evaluation fields are left empty; the server fills them.
func toSnapshot(r *compute.Result) *wire.Snapshot {
	snap := &wire.Snapshot{
		SourceID:      r.SourceID,
		SourceType:    r.SourceType,
		Name:          r.Name,
		PeriodID:      r.PeriodID,
		TimestampUnix: r.Timestamp.Unix(),
		UptimePct:     r.UptimePct,
		ErrorMessage:  r.ErrorMessage,
	}
	if r.Input != nil {
		in := *r.Input
		snap.Input = &in
	}
	return snap
}

package receiver_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/stewardlens/stewardlens/pkg/finhealth"
	"github.com/stewardlens/stewardlens/pkg/wire"
	"github.com/stewardlens/stewardlens/server/internal/auth"
	"github.com/stewardlens/stewardlens/server/internal/receiver"
	"github.com/stewardlens/stewardlens/server/internal/store"
)

// recorder collects every snapshot it observes.
type recorder struct {
	mu   sync.Mutex
	seen []*wire.Snapshot
}

func (r *recorder) Observe(_ context.Context, snap *wire.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, snap)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

// startServer starts a gRPC server with the given interceptor and returns a
// connected client. Uses a random TCP port.
func startServer(t *testing.T, interceptor grpc.UnaryServerInterceptor, observers ...receiver.Observer) (wire.SnapshotServiceClient, *store.Store) {
	t.Helper()

	st := store.New(5 * time.Minute)
	rec := receiver.New(st, finhealth.NewMemo(finhealth.NewMemoryCache(16)), observers...)

	srv := grpc.NewServer(grpc.UnaryInterceptor(interceptor))
	wire.RegisterSnapshotServiceServer(srv, rec)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go srv.Serve(lis) //nolint:errcheck

	t.Cleanup(func() {
		srv.Stop()
		lis.Close()
	})

	conn, err := grpc.NewClient(lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return wire.NewSnapshotServiceClient(conn), st
}

// allowAll is a no-op interceptor that passes every call through.
func allowAll(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	return handler(ctx, req)
}

func strongInput() *finhealth.Input {
	return &finhealth.Input{
		GivingTrend:     finhealth.GivingTrend{Direction: finhealth.DirectionUp, PercentageChange: 20, ComparisonPeriodLabel: "vs last month"},
		DonorRetention:  finhealth.DonorRetention{Rate: 80, TotalDonors: 200, RetainedDonors: 160, LostDonors: 40},
		RecurringGiving: finhealth.RecurringGiving{Percentage: 60, RecurringDonors: 120, TotalDonors: 200},
		NewDonorGrowth:  finhealth.NewDonorGrowth{Rate: 25, NewDonorsThisPeriod: 25, NewDonorsLastPeriod: 20},
	}
}

func TestSendSnapshot_EvaluatesAndStores(t *testing.T) {
	client, st := startServer(t, allowAll)

	resp, err := client.SendSnapshot(context.Background(), &wire.Snapshot{
		SourceID:   "north-campus",
		SourceType: "prometheus",
		PeriodID:   "2026-09",
		Input:      strongInput(),
	})
	if err != nil {
		t.Fatalf("SendSnapshot: %v", err)
	}
	if !resp.Ok {
		t.Errorf("Ok: got false, want true")
	}
	if resp.Message != string(finhealth.LabelGood) {
		t.Errorf("Message: got %q, want %q", resp.Message, finhealth.LabelGood)
	}

	e, ok := st.Get("north-campus")
	if !ok {
		t.Fatal("store.Get: expected entry, got none")
	}
	if e.Snapshot.Score != 72 {
		t.Errorf("Score: got %d, want 72", e.Snapshot.Score)
	}
	if e.Snapshot.Label != finhealth.LabelGood {
		t.Errorf("Label: got %q, want Good", e.Snapshot.Label)
	}
	if len(e.Snapshot.Recommendations) != 4 {
		t.Errorf("Recommendations: got %d, want 4", len(e.Snapshot.Recommendations))
	}
}

func TestSendSnapshot_ServerOverridesClientScore(t *testing.T) {
	client, st := startServer(t, allowAll)

	_, err := client.SendSnapshot(context.Background(), &wire.Snapshot{
		SourceID: "src",
		Input:    strongInput(),
		Score:    99,
		Label:    finhealth.LabelExcellent,
	})
	if err != nil {
		t.Fatalf("SendSnapshot: %v", err)
	}
	e, _ := st.Get("src")
	if e.Snapshot.Score != 72 || e.Snapshot.Label != finhealth.LabelGood {
		t.Errorf("got %d/%q, want 72/Good", e.Snapshot.Score, e.Snapshot.Label)
	}
}

func TestSendSnapshot_ErrorSnapshotStoredUnevaluated(t *testing.T) {
	client, st := startServer(t, allowAll)

	_, err := client.SendSnapshot(context.Background(), &wire.Snapshot{
		SourceID:     "src",
		Input:        strongInput(),
		ErrorMessage: "connection refused",
		Score:        50,
		Label:        finhealth.LabelFair,
	})
	if err != nil {
		t.Fatalf("SendSnapshot: %v", err)
	}
	e, ok := st.Get("src")
	if !ok {
		t.Fatal("store.Get: expected entry")
	}
	if e.Snapshot.Evaluated() {
		t.Errorf("Evaluated: got true for an error snapshot (label %q)", e.Snapshot.Label)
	}
	if e.Snapshot.Score != 0 {
		t.Errorf("Score: got %d, want 0", e.Snapshot.Score)
	}
}

func TestSendSnapshot_NilInputStoredUnevaluated(t *testing.T) {
	client, st := startServer(t, allowAll)

	if _, err := client.SendSnapshot(context.Background(), &wire.Snapshot{SourceID: "warming"}); err != nil {
		t.Fatalf("SendSnapshot: %v", err)
	}
	e, _ := st.Get("warming")
	if e.Snapshot.Evaluated() {
		t.Error("Evaluated: got true for a snapshot without input")
	}
}

func TestSendSnapshot_MissingSourceID_InvalidArgument(t *testing.T) {
	client, _ := startServer(t, allowAll)

	_, err := client.SendSnapshot(context.Background(), &wire.Snapshot{})
	if code := status.Code(err); code != codes.InvalidArgument {
		t.Errorf("code: got %v, want InvalidArgument", code)
	}
}

func TestSendSnapshot_InvalidDirection_InvalidArgument(t *testing.T) {
	client, st := startServer(t, allowAll)

	in := strongInput()
	in.GivingTrend.Direction = "sideways"
	_, err := client.SendSnapshot(context.Background(), &wire.Snapshot{SourceID: "src", Input: in})
	if code := status.Code(err); code != codes.InvalidArgument {
		t.Errorf("code: got %v, want InvalidArgument", code)
	}
	if st.Count() != 0 {
		t.Errorf("store.Count: got %d, want 0", st.Count())
	}
}

func TestSendSnapshot_NotifiesObservers(t *testing.T) {
	rec := &recorder{}
	var fnCalls int
	var mu sync.Mutex
	fn := receiver.ObserverFunc(func(_ context.Context, snap *wire.Snapshot) {
		mu.Lock()
		fnCalls++
		mu.Unlock()
	})
	client, _ := startServer(t, allowAll, rec, fn)

	for _, id := range []string{"a", "b"} {
		if _, err := client.SendSnapshot(context.Background(), &wire.Snapshot{SourceID: id, Input: strongInput()}); err != nil {
			t.Fatalf("SendSnapshot %q: %v", id, err)
		}
	}
	if rec.count() != 2 {
		t.Errorf("recorder: got %d, want 2", rec.count())
	}
	mu.Lock()
	defer mu.Unlock()
	if fnCalls != 2 {
		t.Errorf("ObserverFunc calls: got %d, want 2", fnCalls)
	}
	if !rec.seen[0].Evaluated() {
		t.Error("observer saw an unevaluated snapshot")
	}
}

func TestSendSnapshot_RejectedSnapshotNotObserved(t *testing.T) {
	rec := &recorder{}
	client, _ := startServer(t, allowAll, rec)

	_, _ = client.SendSnapshot(context.Background(), &wire.Snapshot{})
	if rec.count() != 0 {
		t.Errorf("recorder: got %d, want 0", rec.count())
	}
}

func TestSendSnapshot_UpdateExistingSource(t *testing.T) {
	client, st := startServer(t, allowAll)
	ctx := context.Background()

	weak := strongInput()
	weak.DonorRetention.Rate = 10
	if _, err := client.SendSnapshot(ctx, &wire.Snapshot{SourceID: "src", Input: weak}); err != nil {
		t.Fatalf("first SendSnapshot: %v", err)
	}
	if _, err := client.SendSnapshot(ctx, &wire.Snapshot{SourceID: "src", Input: strongInput()}); err != nil {
		t.Fatalf("second SendSnapshot: %v", err)
	}

	if st.Count() != 1 {
		t.Errorf("store.Count: got %d, want 1 (updates, not appends)", st.Count())
	}
	e, _ := st.Get("src")
	if e.Snapshot.Score != 72 {
		t.Errorf("Score: got %d, want 72", e.Snapshot.Score)
	}
}

func TestSendSnapshot_WithAPIKeyInterceptor_CorrectKey_Passes(t *testing.T) {
	i := auth.APIKeyInterceptor("apikey", "x-api-key", "testkey")
	client, st := startServer(t, i)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "testkey")
	if _, err := client.SendSnapshot(ctx, &wire.Snapshot{SourceID: "src"}); err != nil {
		t.Fatalf("SendSnapshot with correct key: %v", err)
	}
	if st.Count() != 1 {
		t.Errorf("store.Count: got %d, want 1", st.Count())
	}
}

func TestSendSnapshot_WithAPIKeyInterceptor_WrongKey_Rejected(t *testing.T) {
	i := auth.APIKeyInterceptor("apikey", "x-api-key", "testkey")
	client, _ := startServer(t, i)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "wrongkey")
	_, err := client.SendSnapshot(ctx, &wire.Snapshot{SourceID: "src"})
	if code := status.Code(err); code != codes.Unauthenticated {
		t.Errorf("code: got %v, want Unauthenticated", code)
	}
}

func TestSendSnapshot_WithAPIKeyInterceptor_MissingKey_Rejected(t *testing.T) {
	i := auth.APIKeyInterceptor("apikey", "x-api-key", "testkey")
	client, _ := startServer(t, i)

	_, err := client.SendSnapshot(context.Background(), &wire.Snapshot{SourceID: "src"})
	if code := status.Code(err); code != codes.Unauthenticated {
		t.Errorf("code: got %v, want Unauthenticated", code)
	}
}

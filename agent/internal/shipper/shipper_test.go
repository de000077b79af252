package shipper

import (
	"context"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/stewardlens/stewardlens/agent/internal/compute"
	"github.com/stewardlens/stewardlens/agent/internal/config"
	"github.com/stewardlens/stewardlens/agent/internal/scraper"
	"github.com/stewardlens/stewardlens/pkg/finhealth"
	"github.com/stewardlens/stewardlens/pkg/wire"
)

// mockServer implements SnapshotServiceServer for testing.
type mockServer struct {
	wire.UnimplementedSnapshotServiceServer
	mu       sync.Mutex
	received []*wire.Snapshot
	keys     []string
	rejectN  int // reply Ok=false to the first N calls
	denyN    int // fail the first N calls with InvalidArgument
}

func (m *mockServer) SendSnapshot(ctx context.Context, snap *wire.Snapshot) (*wire.SendResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if md, ok := metadata.FromIncomingContext(ctx); ok {
		m.keys = append(m.keys, md.Get("x-api-key")...)
	}
	if m.denyN > 0 {
		m.denyN--
		return nil, status.Error(codes.InvalidArgument, "bad snapshot")
	}
	if m.rejectN > 0 {
		m.rejectN--
		return &wire.SendResponse{Ok: false, Message: "mock rejection"}, nil
	}

	m.received = append(m.received, snap)
	return &wire.SendResponse{Ok: true}, nil
}

func (m *mockServer) snapshots() []*wire.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*wire.Snapshot, len(m.received))
	copy(out, m.received)
	return out
}

// startTestServer starts an in-process gRPC server and returns a dial
// function that connects to it.
func startTestServer(t *testing.T, srv *mockServer) dialFunc {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	gs := grpc.NewServer()
	wire.RegisterSnapshotServiceServer(gs, srv)
	go gs.Serve(lis) //nolint:errcheck
	t.Cleanup(gs.Stop)

	addr := lis.Addr().String()
	return func(_ context.Context, _ string, _ config.AgentConfig) (*grpc.ClientConn, error) {
		return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
}

// makeComputeResult builds a ready compute.Result for testing.
func makeComputeResult(id string) *compute.Result {
	return &compute.Result{
		SourceID:   id,
		SourceType: "prometheus",
		Name:       "North Campus",
		PeriodID:   "2026-09",
		Timestamp:  time.Now(),
		State:      compute.StateReady,
		UptimePct:  100,
		Input: &finhealth.Input{
			GivingTrend:    finhealth.GivingTrend{Direction: finhealth.DirectionUp, PercentageChange: 8, ComparisonPeriodLabel: "vs last month"},
			DonorRetention: finhealth.DonorRetention{Rate: 71, TotalDonors: 100, RetainedDonors: 71, LostDonors: 29},
		},
	}
}

func agentCfg() config.AgentConfig {
	return config.AgentConfig{
		ServerEndpoint: "unused-overridden-by-dialFn",
		BufferSize:     10,
	}
}

// waitFor polls cond until it holds or two seconds pass.
func waitFor(cond func() bool) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !cond() {
		time.Sleep(20 * time.Millisecond)
	}
}

// --- Tests ---

func TestShipper_DeliversSnapshot(t *testing.T) {
	srv := &mockServer{}
	s := New(agentCfg())
	s.dialFn = startTestServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go s.Run(ctx)

	s.Ship(makeComputeResult("north"))
	waitFor(func() bool { return len(srv.snapshots()) > 0 })

	snaps := srv.snapshots()
	if len(snaps) != 1 {
		t.Fatalf("server received %d snapshots, want 1", len(snaps))
	}
	if snaps[0].SourceID != "north" {
		t.Errorf("SourceID = %q, want %q", snaps[0].SourceID, "north")
	}
	if snaps[0].Input == nil || snaps[0].Input.DonorRetention.Rate != 71 {
		t.Errorf("Input = %+v, want retention 71", snaps[0].Input)
	}
}

func TestShipper_MultipleSnapshots(t *testing.T) {
	srv := &mockServer{}
	s := New(agentCfg())
	s.dialFn = startTestServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go s.Run(ctx)

	for i := 0; i < 5; i++ {
		s.Ship(makeComputeResult("src"))
	}
	waitFor(func() bool { return len(srv.snapshots()) >= 5 })

	if got := len(srv.snapshots()); got != 5 {
		t.Errorf("server received %d snapshots, want 5", got)
	}
}

func TestShipper_PermanentErrorDiscards(t *testing.T) {
	srv := &mockServer{denyN: 1}
	s := New(agentCfg())
	s.dialFn = startTestServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go s.Run(ctx)

	s.Ship(makeComputeResult("bad"))
	s.Ship(makeComputeResult("good"))
	waitFor(func() bool { return len(srv.snapshots()) >= 1 })

	snaps := srv.snapshots()
	if len(snaps) != 1 || snaps[0].SourceID != "good" {
		t.Fatalf("received %+v, want only the second snapshot", snaps)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", s.Pending())
	}
}

func TestShipper_APIKeyMetadata(t *testing.T) {
	t.Setenv("TEST_SERVER_KEY", "s3cret")
	srv := &mockServer{}
	cfg := agentCfg()
	cfg.ServerAuth = config.AuthConfig{Mode: "apikey", Header: "x-api-key", KeyEnv: "TEST_SERVER_KEY"}
	s := New(cfg)
	s.dialFn = startTestServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go s.Run(ctx)

	s.Ship(makeComputeResult("north"))
	waitFor(func() bool { return len(srv.snapshots()) > 0 })

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.keys) == 0 || srv.keys[0] != "s3cret" {
		t.Errorf("x-api-key metadata = %v, want [s3cret]", srv.keys)
	}
}

func TestShipper_BufferEvictsOldest(t *testing.T) {
	// BufferSize=3; Ship 5 items while the shipper is not running.
	// Only the 3 most recent should survive.
	s := New(config.AgentConfig{BufferSize: 3})

	for i := 0; i < 5; i++ {
		res := makeComputeResult("src")
		res.PeriodID = string(rune('a' + i))
		s.Ship(res)
	}

	var periods []string
	for len(s.buf) > 0 {
		periods = append(periods, (<-s.buf).PeriodID)
	}

	if len(periods) != 3 {
		t.Fatalf("buffer has %d items, want 3", len(periods))
	}
	for i, want := range []string{"c", "d", "e"} {
		if periods[i] != want {
			t.Errorf("periods[%d] = %q, want %q", i, periods[i], want)
		}
	}
}

func TestToSnapshot(t *testing.T) {
	res := makeComputeResult("north")
	snap := toSnapshot(res)

	if snap.SourceID != "north" || snap.Name != "North Campus" || snap.PeriodID != "2026-09" {
		t.Errorf("identity fields = %+v", snap)
	}
	if snap.TimestampUnix != res.Timestamp.Unix() {
		t.Errorf("TimestampUnix = %d, want %d", snap.TimestampUnix, res.Timestamp.Unix())
	}
	if snap.Input == res.Input {
		t.Error("Input should be copied")
	}
	if snap.Evaluated() {
		t.Error("agent snapshots must not carry an evaluation")
	}

	failed := &compute.Result{SourceID: "down", State: compute.StateFailed, ErrorMessage: "connection refused"}
	snap = toSnapshot(failed)
	if snap.Input != nil || snap.ErrorMessage != "connection refused" {
		t.Errorf("failed snapshot = %+v", snap)
	}
}

func TestShip_DropsNonFiniteInput(t *testing.T) {
	s := New(agentCfg())
	res := makeComputeResult("north")
	res.Input.DonorRetention.Rate = math.NaN()

	s.Ship(res)
	if n := s.Pending(); n != 0 {
		t.Fatalf("Pending = %d, want 0", n)
	}
}

func TestShip_NaNGaugeStillEncodes(t *testing.T) {
	e := compute.NewEngine(1)
	out := e.Process(&scraper.ScrapeResult{
		SourceID: "north",
		PeriodID: "2026-09",
		Values: map[string]float64{
			scraper.ValueGivingCurrent:  1000,
			scraper.ValueGivingPrevious: 900,
			scraper.ValueDonorsTotal:    math.NaN(),
			scraper.ValueDonorsRetained: 40,
		},
	}, time.Now())
	if out.State != compute.StateReady {
		t.Fatalf("State = %q, want ready", out.State)
	}

	s := New(agentCfg())
	s.Ship(out)
	if n := s.Pending(); n != 1 {
		t.Fatalf("Pending = %d, want 1", n)
	}
	snap := <-s.buf
	if _, err := (wire.Codec{}).Marshal(snap); err != nil {
		t.Fatalf("Marshal: %v", err)
	}
}

func TestIsPermanentError(t *testing.T) {
	tests := []struct {
		code codes.Code
		want bool
	}{
		{codes.InvalidArgument, true},
		{codes.Unauthenticated, true},
		{codes.PermissionDenied, true},
		{codes.Unavailable, false},
		{codes.DeadlineExceeded, false},
	}
	for _, tc := range tests {
		if got := isPermanentError(status.Error(tc.code, "x")); got != tc.want {
			t.Errorf("isPermanentError(%v) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestShipper_BackoffResets(t *testing.T) {
	b := newBackoff()
	if first := b.next(); first > 2*time.Second {
		t.Errorf("first backoff too large: %v", first)
	}
	for i := 0; i < 10; i++ {
		b.next()
	}
	b.reset()
	if after := b.next(); after > 2*time.Second {
		t.Errorf("backoff after reset too large: %v", after)
	}
}

func TestBackoff_NeverExceedsMax(t *testing.T) {
	b := newBackoff()
	for i := 0; i < 50; i++ {
		// With jitter, the ceiling is backoffMax * 1.25.
		if d := b.next(); d > backoffMax*5/4 {
			t.Errorf("backoff[%d] = %v, exceeds 1.25×max", i, d)
		}
	}
}

func TestShipper_GracefulShutdown(t *testing.T) {
	s := New(agentCfg())
	s.dialFn = startTestServer(t, &mockServer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}

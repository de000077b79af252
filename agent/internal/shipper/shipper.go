package shipper

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/stewardlens/stewardlens/agent/internal/compute"
	"github.com/stewardlens/stewardlens/agent/internal/config"
	"github.com/stewardlens/stewardlens/pkg/finhealth"
	"github.com/stewardlens/stewardlens/pkg/wire"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second
)

// Shipper buffers compute.Results and ships them to stewardlens-server via gRPC.
// Ship() is non-blocking; when the buffer is full the oldest snapshot is evicted.
// Run() must be called in a goroutine to drain the buffer and handle reconnection.
type Shipper struct {
	cfg    config.AgentConfig
	buf    chan *wire.Snapshot
	dialFn dialFunc // injectable for tests
}

// dialFunc opens a gRPC connection. Tests replace it to point at an
// in-process server.
type dialFunc func(ctx context.Context, endpoint string, cfg config.AgentConfig) (*grpc.ClientConn, error)

// New creates a Shipper using the given agent config.
func New(cfg config.AgentConfig) *Shipper {
	return &Shipper{
		cfg:    cfg,
		buf:    make(chan *wire.Snapshot, cfg.BufferSize),
		dialFn: defaultDial,
	}
}

// Ship converts a compute.Result to a wire snapshot and enqueues it.
// If the buffer is full the oldest entry is evicted to make room. A result
// whose input the server would reject is dropped here instead.
func (s *Shipper) Ship(res *compute.Result) {
	snap := toSnapshot(res)
	if snap.Input != nil {
		if err := finhealth.Validate(*snap.Input); err != nil {
			slog.Error("shipper: invalid input, discarding snapshot",
				"source", res.SourceID, "err", err)
			return
		}
	}
	select {
	case s.buf <- snap:
	default:
		// Keep the newest data.
		select {
		case <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest snapshot",
				"source", res.SourceID, "buffer_cap", cap(s.buf))
		default:
		}
		s.buf <- snap
	}
}

// Run drains the buffer, sending snapshots to the server.
// It reconnects with exponential backoff when a send fails; the backoff
// resets after the next successful delivery. Run blocks until ctx is
// cancelled.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff()

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := s.dialFn(ctx, s.cfg.ServerEndpoint, s.cfg)
		if err != nil {
			wait := bo.next()
			slog.Error("shipper: dial failed, will retry",
				"endpoint", s.cfg.ServerEndpoint,
				"err", err,
				"retry_in", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
				continue
			}
		}

		slog.Info("shipper: client ready", "endpoint", s.cfg.ServerEndpoint)

		err = s.drain(ctx, conn, bo)
		conn.Close()

		if ctx.Err() != nil {
			return
		}

		wait := bo.next()
		slog.Warn("shipper: connection lost, will reconnect",
			"endpoint", s.cfg.ServerEndpoint,
			"err", err,
			"retry_in", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// Pending returns the number of buffered snapshots.
func (s *Shipper) Pending() int {
	return len(s.buf)
}

// drain reads from the buffer and sends snapshots until the connection fails
// or ctx is cancelled.
func (s *Shipper) drain(ctx context.Context, conn *grpc.ClientConn, bo *backoff) error {
	client := wire.NewSnapshotServiceClient(conn)

	for {
		select {
		case <-ctx.Done():
			return nil

		case snap := <-s.buf:
			err := s.send(ctx, client, snap)
			if err == nil {
				bo.reset()
				continue
			}
			if isPermanentError(err) {
				slog.Error("shipper: permanent send error, discarding snapshot",
					"source", snap.SourceID, "err", err)
				continue
			}

			// Requeue for the next connection if there is room; otherwise the
			// next scrape cycle supersedes it.
			select {
			case s.buf <- snap:
			default:
			}
			return fmt.Errorf("send: %w", err)
		}
	}
}

// send delivers one snapshot, attaching the API key when configured.
func (s *Shipper) send(ctx context.Context, client wire.SnapshotServiceClient, snap *wire.Snapshot) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if s.cfg.ServerAuth.Mode == "apikey" && s.cfg.ServerAuth.KeyEnv != "" {
		sendCtx = metadata.AppendToOutgoingContext(sendCtx,
			s.cfg.ServerAuth.Header, s.cfg.ServerAuth.Key())
	}

	resp, err := client.SendSnapshot(sendCtx, snap)
	if err != nil {
		return err
	}
	if !resp.Ok {
		slog.Warn("shipper: server rejected snapshot",
			"source", snap.SourceID, "message", resp.Message)
		return nil
	}
	slog.Debug("shipper: snapshot delivered", "source", snap.SourceID, "period", snap.PeriodID)
	return nil
}

// isPermanentError returns true for gRPC errors that indicate the snapshot
// itself is invalid and should not be retried.
func isPermanentError(err error) bool {
	code := status.Code(err)
	switch code {
	case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied:
		return true
	}
	return false
}

// defaultDial creates a gRPC client for endpoint with auth configured from
// cfg. The connection is established lazily on the first call.
func defaultDial(_ context.Context, endpoint string, cfg config.AgentConfig) (*grpc.ClientConn, error) {
	opts, err := dialOptions(cfg)
	if err != nil {
		return nil, err
	}
	return grpc.NewClient(endpoint, opts...)
}

// dialOptions builds grpc.DialOption slice based on the server auth config.
func dialOptions(cfg config.AgentConfig) ([]grpc.DialOption, error) {
	switch cfg.ServerAuth.Mode {
	case "mtls":
		creds, err := buildMTLSCreds(cfg.ServerAuth)
		if err != nil {
			return nil, fmt.Errorf("shipper: build mtls creds: %w", err)
		}
		return []grpc.DialOption{grpc.WithTransportCredentials(creds)}, nil

	default:
		// apikey sends the key as per-call metadata; none is plaintext for
		// local development.
		return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, nil
	}
}

// buildMTLSCreds loads client certificate and optional CA from the auth config.
func buildMTLSCreds(auth config.AuthConfig) (credentials.TransportCredentials, error) {
	cert, err := tls.LoadX509KeyPair(auth.CertFile, auth.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
	}

	if auth.CAFile != "" {
		caPEM, err := os.ReadFile(auth.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no valid certs in ca file %q", auth.CAFile)
		}
		tlsCfg.RootCAs = pool
	}

	return credentials.NewTLS(tlsCfg), nil
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// ±25% jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}

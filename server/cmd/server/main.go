package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/stewardlens/stewardlens/pkg/finhealth"
	"github.com/stewardlens/stewardlens/pkg/wire"
	"github.com/stewardlens/stewardlens/server/internal/alerts"
	"github.com/stewardlens/stewardlens/server/internal/api"
	"github.com/stewardlens/stewardlens/server/internal/auth"
	"github.com/stewardlens/stewardlens/server/internal/cache"
	"github.com/stewardlens/stewardlens/server/internal/config"
	"github.com/stewardlens/stewardlens/server/internal/history"
	"github.com/stewardlens/stewardlens/server/internal/metrics"
	"github.com/stewardlens/stewardlens/server/internal/receiver"
	"github.com/stewardlens/stewardlens/server/internal/store"
	"github.com/stewardlens/stewardlens/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	uiDir := flag.String("ui-dir", "", "serve the dashboard static files from this directory (e.g. ui/dist); leave empty to disable")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("stewardlens-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	sc := cfg.Server

	slog.Info("config loaded",
		"grpc_port", sc.GRPCPort,
		"http_port", sc.HTTPPort,
		"auth_mode", sc.Auth.Mode,
		"snapshot_ttl", sc.Snapshot.TTL,
		"cache", sc.Cache.Backend,
		"storage", sc.Storage.Backend,
		"alert_rules", len(sc.Alerts.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()

	// Snapshot store with background TTL eviction; evicted congregations
	// drop their gauges.
	st := store.New(sc.Snapshot.TTL)
	st.OnEvict(m.Forget)
	go st.Run(ctx)

	memo, closeCache := newMemo(ctx, sc.Cache)
	defer closeCache()

	var hist *history.Store
	if sc.Storage.Backend == config.StorageSQLite {
		hist, err = history.Open(ctx, sc.Storage.Path, sc.Storage.Retention)
		if err != nil {
			slog.Error("failed to open history storage", "path", sc.Storage.Path, "err", err)
			os.Exit(1)
		}
		defer hist.Close()
		go hist.Run(ctx)
		slog.Info("history storage opened", "path", sc.Storage.Path, "retention", sc.Storage.Retention)
	}

	// Alerts engine evaluates rules on every incoming snapshot.
	alertEngine := alerts.New(sc.Alerts)

	// WebSocket hub broadcasts snapshots to dashboard clients.
	hub := ws.New(st, sc.BroadcastInterval)
	go hub.Run(ctx)

	observers := []receiver.Observer{m, alertEngine, hub}
	if hist != nil {
		observers = append([]receiver.Observer{hist}, observers...)
	}

	// gRPC server with optional API key authentication interceptor.
	interceptor := auth.APIKeyInterceptor(sc.Auth.Mode, sc.Auth.EffectiveHeader(), sc.Auth.Key())
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(interceptor))
	wire.RegisterSnapshotServiceServer(grpcSrv, receiver.New(st, memo, observers...))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", sc.GRPCPort))
	if err != nil {
		slog.Error("failed to listen on gRPC port", "port", sc.GRPCPort, "err", err)
		os.Exit(1)
	}

	go func() {
		slog.Info("gRPC receiver listening", "port", sc.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	// Alert rules hot-reload; everything else needs a restart.
	go func() {
		err := config.Watch(ctx, *configPath, func(c *config.Config) {
			alertEngine.SetRules(c.Server.Alerts)
			slog.Info("alert rules reloaded", "rules", len(c.Server.Alerts.Rules))
		})
		if err != nil {
			slog.Warn("config watch disabled", "err", err)
		}
	}()

	apiOpts := []api.Option{
		api.WithAlerts(alertEngine),
		api.WithMemo(memo),
		api.WithMetrics(m),
		api.WithRateLimit(sc.RateLimit.RPS, sc.RateLimit.Burst),
	}
	if hist != nil {
		apiOpts = append(apiOpts, api.WithHistory(hist))
	}
	requireKey := auth.APIKeyMiddleware(sc.Auth.Mode, sc.Auth.EffectiveHeader(), sc.Auth.Key())

	// Combined HTTP server: REST API, WebSocket hub and metrics on HTTPPort.
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", requireKey(api.New(st, apiOpts...)))
	httpMux.Handle("/ws/stream", requireKey(hub))
	httpMux.Handle("/metrics", m.Handler())

	// Optional: serve the pre-built dashboard from a local directory.
	// The "/" catch-all serves index.html for any unknown path (SPA routing).
	if *uiDir != "" {
		fs := http.FileServer(http.Dir(*uiDir))
		httpMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			path := *uiDir + r.URL.Path
			if _, err := os.Stat(path); os.IsNotExist(err) {
				http.ServeFile(w, r, *uiDir+"/index.html")
				return
			}
			fs.ServeHTTP(w, r)
		})
		slog.Info("serving UI static files", "dir", *uiDir)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", sc.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", sc.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("stewardlens-server shutting down")
	grpcSrv.GracefulStop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck

	// Let in-flight webhook deliveries finish.
	alertEngine.Wait()
}

// newMemo builds the assessment memo for the configured cache backend.
// A Redis backend that cannot be reached at startup is still used: the memo
// falls back to computing on every cache error.
func newMemo(ctx context.Context, cc config.CacheConfig) (*finhealth.Memo, func()) {
	switch cc.Backend {
	case config.CacheRedis:
		rc := cache.NewRedis(cache.Options{
			Addr:     cc.Addr,
			Password: cc.Password(),
			DB:       cc.DB,
			TTL:      cc.TTL,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			slog.Warn("redis cache unreachable, assessments will be recomputed until it recovers",
				"addr", cc.Addr, "err", err)
		} else {
			slog.Info("redis cache connected", "addr", cc.Addr, "db", cc.DB)
		}
		return finhealth.NewMemo(rc), func() { rc.Close() } //nolint:errcheck
	case config.CacheNone:
		return finhealth.NewMemo(nil), func() {}
	default:
		return finhealth.NewMemo(finhealth.NewMemoryCache(cc.MaxEntries)), func() {}
	}
}

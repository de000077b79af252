package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stewardlens/stewardlens/agent/internal/compute"
	"github.com/stewardlens/stewardlens/agent/internal/config"
	"github.com/stewardlens/stewardlens/agent/internal/scraper"
	"github.com/stewardlens/stewardlens/agent/internal/shipper"
	"github.com/stewardlens/stewardlens/pkg/finhealth"
)

// collector pairs a configured source with its scraper.
type collector struct {
	src config.Source
	s   scraper.Scraper
}

// registry holds the active collectors; it is swapped on config reload.
type registry struct {
	mu          sync.RWMutex
	collectors  []collector
	concurrency int
}

func (r *registry) snapshot() ([]collector, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collectors, r.concurrency
}

func (r *registry) set(ps []collector, concurrency int) []collector {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.collectors
	r.collectors = ps
	r.concurrency = concurrency
	return old
}

func buildCollectors(sources []config.Source) []collector {
	var out []collector
	for _, src := range sources {
		s, err := scraper.New(src)
		if err != nil {
			slog.Error("skipping source, could not build scraper", "source", src.ID, "err", err)
			continue
		}
		out = append(out, collector{src: src, s: s})
		slog.Info("registered source", "id", src.ID, "type", src.Type, "endpoint", src.Endpoint)
	}
	return out
}

func main() {
	configPath := flag.String("config", "agent.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("stewardlens-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"server_endpoint", cfg.Agent.ServerEndpoint,
		"sources", len(cfg.Agent.Sources),
		"scrape_interval", cfg.Agent.ScrapeInterval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	engine := compute.NewEngine(cfg.Agent.StableBandPct)
	reg := &registry{}
	reg.set(buildCollectors(cfg.Agent.Sources), cfg.Agent.Concurrency)
	if ps, _ := reg.snapshot(); len(ps) == 0 {
		slog.Warn("no sources configured, agent will idle")
	}

	// Sources, stable band and concurrency reload live. Endpoint, buffer and
	// interval changes need a restart.
	go func() {
		err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			engine.SetStableBand(updated.Agent.StableBandPct)
			old := reg.set(buildCollectors(updated.Agent.Sources), updated.Agent.Concurrency)
			kept := make(map[string]bool, len(updated.Agent.Sources))
			for _, src := range updated.Agent.Sources {
				kept[src.ID] = true
			}
			for _, p := range old {
				if !kept[p.src.ID] {
					engine.Forget(p.src.ID)
				}
			}
			slog.Info("config hot-reloaded", "sources", len(updated.Agent.Sources))
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	ship := shipper.New(cfg.Agent)
	go ship.Run(ctx)

	scrapeAll := func(now time.Time) {
		ps, limit := reg.snapshot()
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for _, p := range ps {
			g.Go(func() error {
				res, err := p.s.Scrape(gctx)
				if err != nil {
					slog.Warn("scrape error", "source", p.src.ID, "err", err)
					return nil
				}
				result := engine.Process(res, now)
				ship.Ship(result)

				attrs := []any{"source", p.src.ID, "state", result.State, "period", result.PeriodID}
				if result.Input != nil {
					preview := finhealth.ComputeHealthScore(*result.Input)
					attrs = append(attrs, "score", preview.Score, "label", preview.Label)
				}
				slog.Debug("shipped snapshot", attrs...)
				return nil
			})
		}
		_ = g.Wait()
	}

	// Scrape once at startup so the dashboard is populated without waiting
	// a full interval.
	scrapeAll(time.Now())

	ticker := time.NewTicker(cfg.Agent.ScrapeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("stewardlens-agent shutting down", "pending", ship.Pending())
			return
		case t := <-ticker.C:
			scrapeAll(t)
		}
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"daq-svr/internal/acquisition"
	"daq-svr/internal/cache"
	"daq-svr/internal/codec"
	"daq-svr/internal/config"
	"daq-svr/internal/datastore"
	"daq-svr/internal/dispatcher"
	"daq-svr/internal/grpcserver"
	"daq-svr/internal/link"
	"daq-svr/internal/live"
	"daq-svr/internal/observability"
	"daq-svr/internal/pipeline"
	"daq-svr/internal/registry"
	"daq-svr/internal/server"
	"daq-svr/internal/source"
)

const (
	redisTTL        = 10 * time.Minute
	shutdownTimeout = 5 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the acquisition loop with metrics, live feed, health and Redis publishing",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg)

	reg, err := loadRegistry(cfg.RegistryFile)
	if err != nil {
		return err
	}
	observability.RegistryInfo.WithLabelValues(reg.Version()).Set(1)
	logger.Info("Starting daq-svr...", "source", cfg.Source, "registry", reg.Version())

	store, err := datastore.New(reg, datastore.DefaultDerived(reg), datastore.WithLogger(logger))
	if err != nil {
		return err
	}
	engine := codec.NewEngine(reg, store, logger, codec.WithInternal(internalIDs(reg)...))
	for _, id := range cfg.Outputs {
		if err := engine.AddOutput(id); err != nil {
			return fmt.Errorf("output %d: %w", id, err)
		}
	}

	dial, closeDialer, err := newDialer(cfg, logger)
	if err != nil {
		return err
	}
	defer closeDialer()

	links := link.NewManager(dial, cfg.Retry, logger)
	health := grpcserver.New(logger)
	links.OnChange(func(s link.State) { health.SetSourceActive(s == link.StateConnected) })

	loop := acquisition.NewLoop(engine, store, links, logger, acquisition.WithPoll(cfg.Poll))
	loop.SetEnabled(cfg.AutoStart)

	snapshot := func() *pipeline.Snapshot {
		name := ""
		if src := links.Active(); src != nil {
			name = source.NameOf(src)
		}
		return pipeline.BuildSnapshot(store, loop.RunID(), name, time.Now())
	}

	mux := observability.NewMux()
	mux.Handle("/live", live.NewHandler(cfg.Publish, snapshot, logger))
	loop.Register(mux)
	dispatcher.New(reg, engine, store, logger).Register(mux)
	httpSrv := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		loop.Run()
		return nil
	})
	g.Go(func() error {
		loop.RunTransmit(cfg.Transmit)
		return nil
	})
	g.Go(func() error {
		logger.Info("observability: metrics server up", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return health.ListenAndServe(":" + cfg.GRPCPort)
	})

	if cfg.RedisAddr != "" {
		pub, err := cache.NewPublisher(ctx, cfg.RedisAddr, cfg.RedisDB, redisTTL, logger)
		if err != nil {
			logger.Error("Redis init failed, publishing disabled", "error", err)
		} else {
			defer pub.Close()
			g.Go(func() error { return pub.Run(gctx, cfg.Publish, snapshot) })
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down daq-svr...")
		loop.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		health.Stop()
		links.Close()
		return nil
	})

	return g.Wait()
}

// internalIDs lists the registry's locally stamped channels.
func internalIDs(reg *registry.Registry) []uint16 {
	if _, err := reg.Resolve(registry.TimeInternal); err != nil {
		return nil
	}
	return []uint16{registry.TimeInternal}
}

// newDialer builds the link dialer for the configured source. A live source
// is teed into a daily capture file when a capture directory is set.
func newDialer(cfg config.Config, lg *slog.Logger) (link.Dialer, func(), error) {
	record := func(src source.Source) (source.Source, error) {
		if cfg.CaptureDir == "" {
			return src, nil
		}
		rec, err := source.Record(src, cfg.CaptureDir)
		if err != nil {
			_ = src.Close()
			return nil, err
		}
		return rec, nil
	}

	switch cfg.Source {
	case config.SourceSerial:
		return func() (source.Source, error) {
			s, err := source.OpenSerial(cfg.SerialPort, cfg.Baud, cfg.Poll)
			if err != nil {
				return nil, err
			}
			return record(s)
		}, func() {}, nil

	case config.SourceTCP:
		ln, err := server.Listen(cfg.TCPAddr, cfg.Poll, lg)
		if err != nil {
			return nil, nil, err
		}
		return func() (source.Source, error) {
			src, err := ln.Accept()
			if err != nil {
				return nil, err
			}
			return record(src)
		}, func() { _ = ln.Close() }, nil

	case config.SourceReplay:
		return link.Once(func() (source.Source, error) {
			r, err := source.OpenReplay(cfg.ReplayFile)
			if err != nil {
				return nil, err
			}
			return r, nil
		}), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown source %q", cfg.Source)
}

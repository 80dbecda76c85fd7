// Command server runs the wish ledger behind HTTP and, optionally, gRPC.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/xtding233/wish-ledger/internal/catalog"
	"github.com/xtding233/wish-ledger/internal/config"
	"github.com/xtding233/wish-ledger/internal/gacha"
	"github.com/xtding233/wish-ledger/internal/httpapi"
	"github.com/xtding233/wish-ledger/internal/ledger"
	"github.com/xtding233/wish-ledger/internal/logger"
	"github.com/xtding233/wish-ledger/internal/metrics"
	"github.com/xtding233/wish-ledger/internal/rpc"
)

func main() {
	fs := pflag.NewFlagSet("server", pflag.ExitOnError)
	config.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	log, err := logger.New(&cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("server exited")
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	curve, err := gacha.NewCurve(cfg.Curve)
	if err != nil {
		return fmt.Errorf("curve: %w", err)
	}

	var (
		rec        ledger.Recorder
		metricsH   http.Handler
		catalogOps []catalog.FileOption
	)
	catalogOps = append(catalogOps, catalog.WithLogger(log))
	if cfg.Metrics.Enabled {
		m := metrics.New(metrics.Options{GoCollector: true, ProcessCollector: true})
		rec, metricsH = m, m.Handler()
		catalogOps = append(catalogOps, catalog.OnReload(func(_ *catalog.Snapshot, err error) { m.CatalogReload(err) }))
	}

	cat, err := catalog.NewFileProvider(cfg.Catalog.Path, catalogOps...)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	defer store.Close()

	locker, closeLocker, err := newLocker(ctx, cfg.Lock, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeLocker() }()

	opts := []ledger.Option{
		ledger.WithCurve(curve),
		ledger.WithLocker(locker),
		ledger.WithLogger(log),
		ledger.WithStartingBalance(cfg.Ledger.StartingBalance),
		ledger.WithPrice(ledger.Price{Name: "ticket", PerDraw: cfg.Ledger.PerDraw}),
		ledger.WithStrictFunds(cfg.Ledger.StrictFunds),
		ledger.WithAttemptWarn(cfg.Ledger.AttemptWarn),
	}
	if rec != nil {
		opts = append(opts, ledger.WithRecorder(rec))
	}
	l := ledger.New(store, cat, opts...)

	api := httpapi.New(l, httpapi.Options{
		Mode:        cfg.Server.Mode,
		Shop:        cfg.Pricing.Shop(),
		Metrics:     metricsH,
		MetricsPath: cfg.Metrics.Path,
		Logger:      log,
	})
	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var grpcLis net.Listener
	if cfg.Server.GRPCAddr != "" {
		grpcLis, err = net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen grpc %s: %w", cfg.Server.GRPCAddr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Server.HTTPAddr, "store", cfg.Store.Driver, "lock", cfg.Lock.Driver)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down http server")
		return httpSrv.Shutdown(shutdownCtx)
	})

	if grpcLis != nil {
		grpcSrv := rpc.NewGRPCServer(l, log)
		g.Go(func() error {
			log.Info("grpc server listening", "addr", cfg.Server.GRPCAddr)
			return grpcSrv.Serve(grpcLis)
		})
		g.Go(func() error {
			<-gctx.Done()
			stopGRPC(grpcSrv.GracefulStop, grpcSrv.Stop, cfg.Server.ShutdownTimeout)
			return nil
		})
	}

	if cfg.Catalog.Watch {
		g.Go(func() error { return cat.Watch(gctx) })
	}

	return g.Wait()
}

// stopGRPC waits up to timeout for graceful, then forces stop.
func stopGRPC(graceful, force func(), timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		graceful()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		force()
		<-done
	}
}

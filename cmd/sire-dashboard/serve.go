package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/iwvelando/sire-dashboard/internal/hub"
	"github.com/iwvelando/sire-dashboard/internal/render"
	"github.com/iwvelando/sire-dashboard/internal/server"
	"github.com/iwvelando/sire-dashboard/pkg/constants"
)

// ServeCommand runs the web dashboard.
type ServeCommand struct {
	ServerConfig string `long:"server-config" description:"Path to server configuration file (default: server-config.yaml)"`
	Address      string `long:"address" description:"Listen address override"`

	globals *GlobalFlags
}

// Execute implements goflags.Commander.
func (c *ServeCommand) Execute(_ []string) (err error) {
	conf, found, err := loadConfiguration(c.globals.Config)
	if err != nil {
		return err
	}
	srvConf, err := server.LoadConfig(c.ServerConfig)
	if err != nil {
		return err
	}

	// Server logging settings win when present.
	logging := conf.Logging
	if srvConf.Logging.Level != "" || srvConf.Logging.Format != "" || srvConf.Logging.OutputFile != "" {
		logging = srvConf.Logging
	}
	logger, err := initializeLogger(logging, c.globals.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	defer func() {
		err = withLogger(logger, err)
	}()

	if !found {
		logger.Info("configuration file not found, using defaults",
			zap.String("op", "main.serve"),
			zap.String("path", c.globals.Config),
		)
	}
	if err := validateConfiguration(conf); err != nil {
		return err
	}

	address := srvConf.Address
	if c.Address != "" {
		address = c.Address
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := loadStore(ctx, logger, conf)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// The orchestrator draws into the hub, and the hub sends client events
	// back to the orchestrator.
	pushHub := hub.New(nil, hub.Options{Logger: logger, Registerer: reg, AllowedOrigins: srvConf.CorsOrigins})
	region := render.NewRegion()

	orch, err := newDashboard(ctx, logger, conf, store, render.Fanout{region, pushHub}, reg)
	if err != nil {
		return err
	}
	pushHub.SetController(orch)

	go pushHub.Run(ctx)

	handler := server.NewHandler(orch, server.Options{
		Logger:         logger,
		MaxRequestSize: srvConf.RequestSizeBytes(),
		CorsOrigins:    srvConf.CorsOrigins,
		Version:        version,
		WebSocket:      pushHub.Handler(ctx),
		Gatherer:       reg,
		ChartSize:      render.Options{Width: srvConf.Chart.Width, Height: srvConf.Chart.Height},
	})

	httpServer := &http.Server{
		Addr:              address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dashboard server listening",
			zap.String("op", "main.serve"),
			zap.String("address", address),
			zap.String("version", version),
			zap.String("region", constants.MainRegion),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	clears, draws := region.Counts()
	logger.Info("shutting down dashboard server",
		zap.String("op", "main.serve"),
		zap.Int("clears", clears),
		zap.Int("draws", draws),
		zap.Uint64("seq", orch.Seq()),
	)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), srvConf.ShutdownGrace())
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

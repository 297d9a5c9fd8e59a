// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108
	"os/signal"
	"syscall"
	"time"

	"github.com/blinklabs-io/daonode"
	"github.com/blinklabs-io/daonode/chain"
	"github.com/blinklabs-io/daonode/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// nodeOptions maps the loaded config onto node options
func nodeOptions(
	cfg *config.Config,
	logger *slog.Logger,
	source chain.BlockSource,
) []daonode.ConfigOptionFunc {
	return []daonode.ConfigOptionFunc{
		daonode.WithLogger(logger),
		daonode.WithDatabasePath(cfg.DatabasePath),
		daonode.WithSnapshotURL(cfg.SnapshotUrl, cfg.CredentialsFile),
		daonode.WithGenesis(cfg.Genesis()),
		daonode.WithBlockSource(source),
		daonode.WithBlocksPerYear(cfg.BlocksPerYear),
		daonode.WithSnapshotInterval(cfg.SnapshotInterval),
		daonode.WithBroadcastTimeout(cfg.BroadcastTimeoutDuration()),
		daonode.WithPollInterval(cfg.PollIntervalDuration()),
		daonode.WithShutdownTimeout(cfg.ShutdownTimeoutDuration()),
		daonode.WithTracing(cfg.Tracing),
		daonode.WithTracingStdout(cfg.TracingStdout),
	}
}

// Run follows the raw blocks in the configured blocks directory until it
// receives SIGINT or SIGTERM
func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	shutdownTimeout := cfg.ShutdownTimeoutDuration()
	if shutdownTimeout <= 0 {
		shutdownTimeout = daonode.DefaultShutdownTimeout
	}
	d, err := daonode.New(
		daonode.NewConfig(
			append(
				nodeOptions(cfg, logger, chain.NewDirSource(cfg.BlocksDir)),
				// Enable metrics with default prometheus registry
				daonode.WithPrometheusRegistry(prometheus.DefaultRegisterer),
			)...,
		),
	)
	if err != nil {
		return err
	}
	// Metrics and debug listener
	metricsAddr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.MetricsPort)
	http.Handle("/metrics", promhttp.Handler())
	logger.Info(
		"serving prometheus metrics on "+metricsAddr,
		"component", "node",
	)
	metricsServer := &http.Server{
		Addr:              metricsAddr,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			metricsErr <- err
		}
	}()
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	// Run node in goroutine
	errChan := make(chan error, 1)
	go func() {
		//nolint:contextcheck
		errChan <- d.Run(signalCtx)
	}()

	var runErr error
	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown", "component", "node")
	case err := <-metricsErr:
		runErr = fmt.Errorf("failed to start metrics listener: %w", err)
		logger.Error(runErr.Error(), "component", "node")
	case err := <-errChan:
		if err != nil {
			runErr = err
			logger.Error("node error", "component", "node", "error", err)
		} else {
			logger.Info("node stopped", "component", "node")
		}
	}
	signalCtxStop()

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		shutdownTimeout,
	)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", "component", "node", "error", err)
	}
	if err := d.Stop(); err != nil {
		logger.Error("shutdown errors occurred", "component", "node", "error", err)
		return errors.Join(runErr, err)
	}
	logger.Info("shutdown complete", "component", "node")
	return runErr
}

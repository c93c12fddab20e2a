package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/xaenox/notegram/internal/publisher"
	"go.uber.org/zap"
)

func newServeCmd(configPath *string) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an MCP server on stdio",
		Long: `serve exposes preview, publish and destination listing as Model
Context Protocol tools over stdio, so an AI harness can publish notes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			var opts []publisher.Option
			if metricsAddr != "" {
				observer, stop, err := serveMetrics(metricsAddr, a.logger)
				if err != nil {
					return err
				}
				defer stop()
				opts = append(opts, publisher.WithObserver(observer))
			}

			p, err := a.newPublisher(opts...)
			if err != nil {
				return err
			}

			server := mcp.NewServer(&mcp.Implementation{
				Name:    "notegram",
				Version: version,
			}, nil)
			registerTools(server, &toolHandlers{publisher: p, publishDefaults: a.cfg.Publish})

			a.logger.Info("Serving MCP on stdio", zap.String("vault", a.cfg.Vault.Path))
			if err := server.Run(cmd.Context(), &mcp.StdioTransport{}); err != nil {
				return fmt.Errorf("error running server: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	return cmd
}

func newMetrics() (*publisher.PrometheusObserver, http.Handler, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	observer, err := publisher.NewPrometheusObserver("notegram", reg)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return observer, mux, nil
}

// serveMetrics starts a /metrics endpoint backed by its own registry.
func serveMetrics(addr string, logger *zap.Logger) (*publisher.PrometheusObserver, func(), error) {
	observer, handler, err := newMetrics()
	if err != nil {
		return nil, nil, err
	}
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("Serving metrics", zap.String("addr", addr))

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
	return observer, stop, nil
}

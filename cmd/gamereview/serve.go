package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/gamereview"
	"github.com/discochess/gamereview/fx/reviewfx"
	"github.com/discochess/gamereview/internal/config"
	"github.com/discochess/gamereview/internal/httpapi"
	"github.com/discochess/gamereview/internal/reportstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve game reviews over HTTP",
	Long: `Serve starts the HTTP API. Reviews are submitted with POST /reviews
and run in the background; GET /reviews/{id} returns their status and,
once ready, the graded moves. Prometheus metrics are exposed on /metrics.

Examples:
  gamereview serve --addr :8080

  # Keep reviews in MongoDB
  GAMEREVIEW_SERVER_REPORTS=mongo \
  GAMEREVIEW_SERVER_MONGO_URI=mongodb://localhost:27017 gamereview serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddr string

const shutdownTimeout = 30 * time.Second

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	app := fx.New(
		fx.NopLogger,
		fx.Supply(cfg, logger),
		fx.StopTimeout(shutdownTimeout),
		reviewfx.EngineModule,
		reviewfx.Module,
		fx.Provide(newReportStore, newAPI),
		fx.Invoke(registerHTTPServer),
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func newReportStore(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (reportstore.Store, error) {
	st, err := cfg.Server.OpenReportStore(context.Background(), logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return st.Close(ctx)
		},
	})
	return st, nil
}

func newAPI(lc fx.Lifecycle, r *gamereview.Reviewer, st reportstore.Store, reg *prometheus.Registry, logger *zap.Logger) *httpapi.Server {
	api := httpapi.New(r, st,
		httpapi.WithLogger(logger),
		httpapi.WithGatherer(prometheus.Gatherers{reg, prometheus.DefaultGatherer}),
	)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return api.Shutdown(ctx)
		},
	})
	return api
}

func registerHTTPServer(lc fx.Lifecycle, cfg *config.Config, api *httpapi.Server, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Info("listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

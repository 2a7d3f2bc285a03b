package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/web3-frozen/energy-monitor/internal/handler"
	"github.com/web3-frozen/energy-monitor/internal/middleware"
	"github.com/web3-frozen/energy-monitor/internal/stream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the energy API and run the scheduled batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		hub := stream.NewHub(logger)
		defer hub.Close()

		a, err := newApp(ctx, hub)
		if err != nil {
			return err
		}
		defer a.Close()

		if cfg.CronEnabled {
			go a.processor.Run(ctx)
			logger.Info("batch processor started", "interval", a.processor.Interval().String())
		}

		ready := []handler.Pinger{a.kv}
		var runs handler.RunLister
		if a.db != nil {
			ready = append(ready, a.db)
			runs = a.db
		}

		r := chi.NewRouter()
		r.Use(chimw.RequestID)
		r.Use(middleware.Recover(logger))
		r.Use(middleware.Logger(logger))
		r.Use(middleware.Metrics())
		r.Use(middleware.CORS(cfg.FrontendOrigin))

		r.Handle("/metrics", promhttp.Handler())
		r.Get("/healthz", handler.Health())
		r.Get("/readyz", handler.Ready(ready...))

		r.Route("/api/v1/energy", func(r chi.Router) {
			r.Get("/contracts", handler.ListContracts(a.registry))
			r.Put("/contracts", handler.SetContracts(a.registry))
			r.Post("/contracts", handler.AddContract(a.registry))
			r.Delete("/contracts", handler.ResetContracts(a.registry))
			r.Delete("/contracts/{contractId}", handler.RemoveContract(a.registry))
			r.Get("/cron", handler.LastRun(a.processor))
			r.Post("/cron", handler.RunCron(a.processor))
			r.Get("/runs", handler.Runs(runs))
			r.Get("/{contractId}", handler.Energy(a.service, logger))
			r.Get("/{contractId}/stream", handler.Stream(hub))
		})

		srv := &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: cfg.IndexerTimeout + 15*time.Second,
			IdleTimeout:  60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("server starting", "port", cfg.Port, "environment", cfg.Environment)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case err := <-errCh:
			return err
		}

		logger.Info("shutting down gracefully")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().String("port", "8080", "HTTP listen port")
	_ = v.BindPFlag("PORT", serveCmd.Flags().Lookup("port"))
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgallion1/docground/internal/api"
	"github.com/dgallion1/docground/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and job workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(cfg, log)
		if err != nil {
			return err
		}
		defer env.Close()

		orch := pipeline.NewOrchestrator(cfg.Jobs, env.Processor, env.Reports, env.Metrics, log.Named("jobs"))
		orch.Start(ctx)

		srv := api.NewServer(api.Deps{
			Config:       cfg.Server,
			Processor:    env.Processor,
			Orchestrator: orch,
			Reports:      env.Reports,
			Stats:        env.Stats,
			Backend:      env.Extractor.Name(),
			Gatherer:     env.Registry,
			Log:          log.Named("api"),
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		httpServer := &http.Server{
			Addr:        fmt.Sprintf(":%d", port),
			Handler:     srv,
			ReadTimeout: 60 * time.Second,
			IdleTimeout: 60 * time.Second,
			// No WriteTimeout: job event streams stay open until the job ends.
			BaseContext: func(net.Listener) context.Context { return ctx },
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("starting docground", zap.Int("port", port))
			errCh <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				orch.Stop()
				return eris.Wrap(err, "server listen")
			}
		case <-ctx.Done():
		}

		// Graceful shutdown.
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", zap.Error(err))
		}
		orch.Stop()
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

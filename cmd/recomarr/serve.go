package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"recomarr/internal/api"
	"recomarr/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a daemon with scheduled scans and reconciliation",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.requireAuth(cmd.Context()); err != nil {
			return err
		}

		// Initialize scheduler
		sched := scheduler.NewScheduler(a.session, a.scanCtrl, a.reconcileCtrl, a.cleanupCtrl, a.logger)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer sched.Stop()

		// Initialize HTTP server
		server := api.NewServer(a.cfg, a.db, a.logger)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		serverErrChan := make(chan error, 1)
		go func() {
			if err := server.Start(ctx); err != nil {
				serverErrChan <- err
			}
		}()

		// Wait for shutdown signal
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		a.logger.Info("Recomarr is running")

		select {
		case err := <-serverErrChan:
			return fmt.Errorf("server error: %w", err)
		case sig := <-sigChan:
			a.logger.WithField("signal", sig).Info("Received shutdown signal")
			cancel()
			if err := server.Shutdown(context.Background()); err != nil {
				a.logger.WithError(err).Error("Error during server shutdown")
			}
		}

		a.logger.Info("Recomarr stopped")
		return nil
	},
}

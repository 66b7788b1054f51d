package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"recomarr/internal/controllers"
	"recomarr/internal/services/kinopub"
)

// Scheduler manages scheduled tasks
type Scheduler struct {
	cron          *cron.Cron
	session       *kinopub.Session
	scanCtrl      *controllers.ScanController
	reconcileCtrl *controllers.ReconcileController
	cleanupCtrl   *controllers.CleanupController
	logger        *logrus.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(
	session *kinopub.Session,
	scanCtrl *controllers.ScanController,
	reconcileCtrl *controllers.ReconcileController,
	cleanupCtrl *controllers.CleanupController,
	logger *logrus.Logger,
) *Scheduler {
	return &Scheduler{
		cron:          cron.New(),
		session:       session,
		scanCtrl:      scanCtrl,
		reconcileCtrl: reconcileCtrl,
		cleanupCtrl:   cleanupCtrl,
		logger:        logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	// Every 6 hours: scan viewing history and bookmark folders
	_, err := s.cron.AddFunc("0 */6 * * *", func() {
		s.runScan()
	})
	if err != nil {
		return fmt.Errorf("failed to add scan job: %w", err)
	}

	// Daily at 05:00: full reconciliation batch (includes folder cleanup)
	_, err = s.cron.AddFunc("0 5 * * *", func() {
		s.runReconcile()
	})
	if err != nil {
		return fmt.Errorf("failed to add reconcile job: %w", err)
	}

	// Hourly: keep the session fresh so scheduled jobs never start expired
	_, err = s.cron.AddFunc("30 * * * *", func() {
		s.runSessionCheck()
	})
	if err != nil {
		return fmt.Errorf("failed to add session check job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started")

	// Run initial scan immediately
	go s.runScan()

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cron.Stop()
}

// runScan executes the scan job
func (s *Scheduler) runScan() {
	s.logger.Info("Running scheduled scan")
	ctx := context.Background()

	if err := s.scanCtrl.Run(ctx); err != nil {
		s.logger.WithError(err).Error("Scan job failed")
	} else {
		s.logger.Info("Scan job completed successfully")
	}
}

// runReconcile executes the reconciliation job
func (s *Scheduler) runReconcile() {
	s.logger.Info("Running scheduled reconciliation")
	ctx := context.Background()

	summary, err := s.reconcileCtrl.Run(ctx, "")
	if err != nil {
		s.logger.WithError(err).Error("Reconciliation job failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"added":    summary.Added,
		"rejected": summary.Rejected,
	}).Info("Reconciliation job completed successfully")
}

// runSessionCheck refreshes the token when it is close to expiry
func (s *Scheduler) runSessionCheck() {
	if s.session.IsAuthenticated() {
		return
	}

	s.logger.Info("Session expiring, refreshing")
	if !s.session.RefreshSession(context.Background()) {
		s.logger.Warn("Session refresh failed, re-authorization required")
	}
}

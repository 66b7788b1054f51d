package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"recomarr/internal/config"
	"recomarr/internal/controllers"
	"recomarr/internal/models"
	"recomarr/internal/services/kinopub"
	"recomarr/internal/services/recommender"
	"recomarr/internal/utils"
)

// app bundles the wired components shared by all commands
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	db     *models.Database

	session       *kinopub.Session
	client        *kinopub.Client
	scanCtrl      *controllers.ScanController
	cleanupCtrl   *controllers.CleanupController
	reconcileCtrl *controllers.ReconcileController
}

// newApp loads configuration and wires the full dependency graph
func newApp() (*app, error) {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel)
	logger.WithField("config_dir", filepath.Dir(cfg.DatabaseFile)).Info("Configuration loaded")

	// 3. Initialize database
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Info("Database initialized")

	// 4. Load the static excluded-titles list
	excluded, err := utils.LoadExcludedTitles(cfg.ExcludedFile)
	if err != nil {
		logger.WithError(err).Warn("Failed to load excluded titles, continuing without them")
		excluded = &utils.ExcludedTitles{}
	}

	// 5. Initialize services
	tokenStore := kinopub.NewFileTokenStore(cfg.TokenFile)
	session := kinopub.NewSession(cfg.KinopubClientID, cfg.KinopubClientSecret, tokenStore, logger)
	client := kinopub.NewClient(session, logger)
	logger.Info("Kinopub client initialized")

	rec := recommender.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, logger)
	logger.Info("Recommender client initialized")

	// 6. Initialize controllers
	exclusions := controllers.NewExclusionBuilder(db, excluded, logger)
	scanCtrl := controllers.NewScanController(db, client, cfg.RequestDelay, logger)
	cleanupCtrl := controllers.NewCleanupController(db, client, exclusions, logger)
	reconcileCtrl := controllers.NewReconcileController(
		db, client, rec, exclusions, cleanupCtrl,
		cfg.SuggestionCount, cfg.RequestDelay, logger)
	logger.Info("Controllers initialized")

	return &app{
		cfg:           cfg,
		logger:        logger,
		db:            db,
		session:       session,
		client:        client,
		scanCtrl:      scanCtrl,
		cleanupCtrl:   cleanupCtrl,
		reconcileCtrl: reconcileCtrl,
	}, nil
}

// close releases held resources
func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close database")
	}
}

// requireAuth fails fast when no usable session exists. An expired access
// token is fine as long as a refresh still works.
func (a *app) requireAuth(ctx context.Context) error {
	if a.session.IsAuthenticated() {
		return nil
	}
	if a.session.RefreshSession(ctx) {
		return nil
	}
	return fmt.Errorf("not authenticated, run 'recomarr auth' first")
}

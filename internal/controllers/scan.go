package controllers

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"recomarr/internal/models"
)

// ScanController pulls the user's viewing history and remote bookmark
// folders into the local store so exclusion sets reflect remote reality
type ScanController struct {
	db           *models.Database
	gateway      CatalogGateway
	requestDelay time.Duration
	logger       *logrus.Logger

	sleep func(time.Duration)
}

// NewScanController creates a new scan controller
func NewScanController(db *models.Database, gateway CatalogGateway, requestDelay time.Duration, logger *logrus.Logger) *ScanController {
	return &ScanController{
		db:           db,
		gateway:      gateway,
		requestDelay: requestDelay,
		logger:       logger,
		sleep:        time.Sleep,
	}
}

// Run scans the watching lists and bookmark folders. Per-item failures are
// logged and do not stop the scan.
func (c *ScanController) Run(ctx context.Context) error {
	c.logger.Info("Starting history scan")

	if err := c.scanWatchingMovies(ctx); err != nil {
		c.logger.WithError(err).Error("Failed to scan watching movies")
	}
	if err := c.scanWatchingSerials(ctx); err != nil {
		c.logger.WithError(err).Error("Failed to scan watching serials")
	}
	if err := c.scanBookmarks(ctx); err != nil {
		c.logger.WithError(err).Error("Failed to scan bookmark folders")
	}

	c.logger.Info("History scan completed")
	return nil
}

// scanWatchingMovies records movies from the watching list. A movie on the
// list counts as fully watched.
func (c *ScanController) scanWatchingMovies(ctx context.Context) error {
	items, err := c.gateway.WatchingMovies(ctx)
	if err != nil {
		return fmt.Errorf("failed to get watching movies: %w", err)
	}

	c.logger.WithField("count", len(items)).Debug("Retrieved watching movies")

	for _, item := range items {
		if err := c.db.UpsertWatched(&models.WatchedRecord{
			KinopubID:      item.ID,
			Title:          item.Title,
			Kind:           models.KindMovie,
			Year:           item.Year,
			TotalUnits:     1,
			CompletedUnits: 1,
			FullyWatched:   true,
		}); err != nil {
			c.logger.WithError(err).WithField("title", item.Title).Error("Failed to upsert watched movie")
		}
	}

	return nil
}

// scanWatchingSerials records series with their per-episode progress
func (c *ScanController) scanWatchingSerials(ctx context.Context) error {
	items, err := c.gateway.WatchingSerials(ctx)
	if err != nil {
		return fmt.Errorf("failed to get watching serials: %w", err)
	}

	c.logger.WithField("count", len(items)).Debug("Retrieved watching serials")

	for i, item := range items {
		if i > 0 && c.requestDelay > 0 {
			c.sleep(c.requestDelay)
		}

		status, err := c.gateway.GetWatchStatus(ctx, item.ID)
		if err != nil {
			c.logger.WithError(err).WithField("title", item.Title).Error("Failed to get watch status")
			continue
		}

		if err := c.db.UpsertWatched(&models.WatchedRecord{
			KinopubID:      item.ID,
			Title:          item.Title,
			Kind:           models.KindSeries,
			Year:           item.Year,
			TotalUnits:     status.TotalUnits,
			CompletedUnits: status.CompletedUnits,
			FullyWatched:   status.IsFullyWatched,
		}); err != nil {
			c.logger.WithError(err).WithField("title", item.Title).Error("Failed to upsert watched series")
		}
	}

	return nil
}

// scanBookmarks mirrors every remote folder's items into bookmark records.
// This is what lets the exclusion builder see not-interested-named folders.
func (c *ScanController) scanBookmarks(ctx context.Context) error {
	folders, err := c.gateway.ListFolders(ctx)
	if err != nil {
		return fmt.Errorf("failed to list folders: %w", err)
	}

	for i, folder := range folders {
		if i > 0 && c.requestDelay > 0 {
			c.sleep(c.requestDelay)
		}

		items, err := c.gateway.GetAllFolderItems(ctx, folder.ID)
		if err != nil {
			c.logger.WithError(err).WithField("folder", folder.Title).Error("Failed to fetch folder items")
			continue
		}

		// Rebuild the folder's local mirror so remote deletions propagate
		if err := c.db.DeleteBookmarksByFolder(folder.ID); err != nil {
			c.logger.WithError(err).WithField("folder", folder.Title).Warn("Failed to reset folder mirror")
		}

		for _, item := range items {
			if err := c.db.UpsertBookmark(&models.BookmarkRecord{
				KinopubID:   item.ID,
				FolderID:    folder.ID,
				FolderTitle: folder.Title,
				Title:       item.Title,
				Kind:        item.Kind(),
				Year:        item.Year,
			}); err != nil {
				c.logger.WithError(err).WithField("title", item.Title).Error("Failed to upsert bookmark record")
			}
		}

		c.logger.WithFields(logrus.Fields{
			"folder": folder.Title,
			"count":  len(items),
		}).Debug("Folder mirrored")
	}

	return nil
}

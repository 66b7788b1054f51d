package controllers

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"recomarr/internal/metrics"
	"recomarr/internal/models"
)

// CleanupController removes now-excluded items from the managed folders.
// It only ever touches folders on the allow-list.
type CleanupController struct {
	db         *models.Database
	gateway    CatalogGateway
	exclusions *ExclusionBuilder
	logger     *logrus.Logger
}

// NewCleanupController creates a new cleanup controller
func NewCleanupController(db *models.Database, gateway CatalogGateway, exclusions *ExclusionBuilder, logger *logrus.Logger) *CleanupController {
	return &CleanupController{
		db:         db,
		gateway:    gateway,
		exclusions: exclusions,
		logger:     logger,
	}
}

// Run builds a fresh exclusion set and sweeps the managed folders
func (c *CleanupController) Run(ctx context.Context) (int, error) {
	set, err := c.exclusions.Build(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to build exclusion set: %w", err)
	}
	return c.RunWithSet(ctx, set)
}

// RunWithSet sweeps every managed folder and removes items matching the
// exclusion set, by id first, then by normalized-title equivalence.
// Individual removal failures are logged and do not stop the sweep.
func (c *CleanupController) RunWithSet(ctx context.Context, set *ExclusionSet) (int, error) {
	c.logger.Info("Starting managed folder cleanup")

	removed := 0
	for _, kind := range managedFolderOrder {
		name := ManagedFolderName(kind)

		folder, err := c.gateway.FindFolderByName(ctx, name)
		if err != nil {
			c.logger.WithError(err).WithField("folder", name).Error("Failed to look up managed folder")
			continue
		}
		if folder == nil {
			c.logger.WithField("folder", name).Debug("Managed folder does not exist yet, nothing to clean")
			continue
		}

		items, err := c.gateway.GetAllFolderItems(ctx, folder.ID)
		if err != nil {
			c.logger.WithError(err).WithField("folder", name).Error("Failed to fetch folder items")
			continue
		}

		for _, item := range items {
			if !set.ContainsID(item.ID) && !set.MatchesTitle(item.Title) {
				continue
			}

			c.logger.WithFields(logrus.Fields{
				"folder": name,
				"item":   item.ID,
				"title":  item.Title,
			}).Info("Removing excluded item from managed folder")

			if err := c.gateway.RemoveItem(ctx, item.ID, &folder.ID); err != nil {
				c.logger.WithError(err).WithField("title", item.Title).Warn("Failed to remove item, continuing")
				continue
			}

			if err := c.db.DeleteBookmark(item.ID, folder.ID); err != nil {
				c.logger.WithError(err).WithField("title", item.Title).Warn("Failed to delete local bookmark record")
			}

			metrics.FolderItemsRemoved.Inc()
			removed++
		}
	}

	c.logger.WithField("removed", removed).Info("Managed folder cleanup completed")
	return removed, nil
}

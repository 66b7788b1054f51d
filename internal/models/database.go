package models

import (
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"recomarr/internal/match"
)

// ErrInvalidRating is returned for ratings outside the 1-10 scale
var ErrInvalidRating = errors.New("rating must be between 1 and 10")

// Database wraps the gorm handle
type Database struct {
	db *gorm.DB
}

// NewDatabase opens the database and migrates the record tables
func NewDatabase(path string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&WatchedRecord{}, &BookmarkRecord{}, &NotInterestedRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Watched operations

// UpsertWatched creates or updates a watched record keyed by remote id
func (d *Database) UpsertWatched(rec *WatchedRecord) error {
	if rec.Rating != nil && (*rec.Rating < 1 || *rec.Rating > 10) {
		return ErrInvalidRating
	}
	if rec.NormalizedTitle == "" {
		rec.NormalizedTitle = match.Normalize(rec.Title)
	}
	return d.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "kinopub_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "normalized_title", "kind", "year",
			"total_units", "completed_units", "fully_watched",
			"rating", "notes", "updated_at",
		}),
	}).Create(rec).Error
}

// ListWatched retrieves watched records, optionally filtered by kind and
// fully-watched flag
func (d *Database) ListWatched(kind MediaKind, fullyWatched *bool) ([]*WatchedRecord, error) {
	query := d.db.Model(&WatchedRecord{})
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if fullyWatched != nil {
		query = query.Where("fully_watched = ?", *fullyWatched)
	}

	var records []*WatchedRecord
	err := query.Find(&records).Error
	return records, err
}

// ListWatchedForRecommendation retrieves fully-watched records ordered by
// rating, then recency, for building the recommender preference payload
func (d *Database) ListWatchedForRecommendation() ([]*WatchedRecord, error) {
	var records []*WatchedRecord
	err := d.db.
		Where("fully_watched = ?", true).
		Order("rating IS NULL, rating DESC, updated_at DESC").
		Find(&records).Error
	return records, err
}

// SetRating stores a user rating for a watched item
func (d *Database) SetRating(kinopubID, rating int) error {
	if rating < 1 || rating > 10 {
		return ErrInvalidRating
	}
	return d.db.Model(&WatchedRecord{}).
		Where("kinopub_id = ?", kinopubID).
		Update("rating", rating).Error
}

// Bookmark operations

// UpsertBookmark creates or updates a bookmark record keyed by remote id
// and folder
func (d *Database) UpsertBookmark(rec *BookmarkRecord) error {
	if rec.NormalizedTitle == "" {
		rec.NormalizedTitle = match.Normalize(rec.Title)
	}
	return d.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "kinopub_id"}, {Name: "folder_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"folder_title", "title", "normalized_title", "kind", "year", "updated_at",
		}),
	}).Create(rec).Error
}

// ListBookmarks retrieves bookmark records, optionally for one folder
func (d *Database) ListBookmarks(folderID *int) ([]*BookmarkRecord, error) {
	query := d.db.Model(&BookmarkRecord{})
	if folderID != nil {
		query = query.Where("folder_id = ?", *folderID)
	}

	var records []*BookmarkRecord
	err := query.Find(&records).Error
	return records, err
}

// DeleteBookmark removes one bookmark record
func (d *Database) DeleteBookmark(kinopubID, folderID int) error {
	return d.db.
		Where("kinopub_id = ? AND folder_id = ?", kinopubID, folderID).
		Delete(&BookmarkRecord{}).Error
}

// DeleteBookmarksByFolder removes all bookmark records of one folder
func (d *Database) DeleteBookmarksByFolder(folderID int) error {
	return d.db.Where("folder_id = ?", folderID).Delete(&BookmarkRecord{}).Error
}

// Not-interested operations

// UpsertNotInterested creates or updates a not-interested record keyed by
// remote id
func (d *Database) UpsertNotInterested(rec *NotInterestedRecord) error {
	if rec.NormalizedTitle == "" {
		rec.NormalizedTitle = match.Normalize(rec.Title)
	}
	return d.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "kinopub_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "normalized_title", "kind", "year", "updated_at",
		}),
	}).Create(rec).Error
}

// ListNotInterested retrieves all not-interested records
func (d *Database) ListNotInterested() ([]*NotInterestedRecord, error) {
	var records []*NotInterestedRecord
	err := d.db.Find(&records).Error
	return records, err
}

// IsNotInterested checks whether a remote id was explicitly rejected
func (d *Database) IsNotInterested(kinopubID int) (bool, error) {
	var count int64
	err := d.db.Model(&NotInterestedRecord{}).
		Where("kinopub_id = ?", kinopubID).
		Count(&count).Error
	return count > 0, err
}

// RemoveNotInterested deletes a not-interested record
func (d *Database) RemoveNotInterested(kinopubID int) error {
	return d.db.Where("kinopub_id = ?", kinopubID).Delete(&NotInterestedRecord{}).Error
}

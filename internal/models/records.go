package models

import "time"

// WatchedRecord tracks content the user has watched, fully or partially.
// FullyWatched is derivable from the unit counts but stored for query
// efficiency.
type WatchedRecord struct {
	ID              uint   `gorm:"primaryKey"`
	KinopubID       int    `gorm:"uniqueIndex"`
	Title           string
	NormalizedTitle string `gorm:"index"`
	Kind            MediaKind
	Year            int
	TotalUnits      int
	CompletedUnits  int
	FullyWatched    bool
	Rating          *int // 1-10, nil when unrated
	Notes           string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BookmarkRecord mirrors one item of a remote bookmark folder
type BookmarkRecord struct {
	ID              uint `gorm:"primaryKey"`
	KinopubID       int  `gorm:"uniqueIndex:idx_bookmark_item_folder"`
	FolderID        int  `gorm:"uniqueIndex:idx_bookmark_item_folder;index"`
	FolderTitle     string
	Title           string
	NormalizedTitle string `gorm:"index"`
	Kind            MediaKind
	Year            int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NotInterestedRecord marks content the user explicitly rejected
type NotInterestedRecord struct {
	ID              uint `gorm:"primaryKey"`
	KinopubID       int  `gorm:"uniqueIndex"`
	Title           string
	NormalizedTitle string
	Kind            MediaKind
	Year            int

	CreatedAt time.Time
	UpdatedAt time.Time
}

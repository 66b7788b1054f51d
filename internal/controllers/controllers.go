package controllers

import (
	"context"

	"recomarr/internal/models"
	"recomarr/internal/services/kinopub"
	"recomarr/internal/services/recommender"
)

// Managed folder names. The engine only ever creates, reads or empties
// folders on this allow-list; everything else on the remote account is
// untouchable.
const (
	MoviesFolderName = "movies-ai"
	SeriesFolderName = "tv-shows-ai"
)

// managedFolderOrder fixes the processing order across batches
var managedFolderOrder = []models.MediaKind{models.KindMovie, models.KindSeries}

// ManagedFolderName returns the managed folder for a media kind
func ManagedFolderName(kind models.MediaKind) string {
	if kind == models.KindMovie {
		return MoviesFolderName
	}
	return SeriesFolderName
}

// IsManagedFolder reports whether a folder name is on the allow-list
func IsManagedFolder(name string) bool {
	return name == MoviesFolderName || name == SeriesFolderName
}

// CatalogGateway is the remote service surface the controllers consume
type CatalogGateway interface {
	ListFolders(ctx context.Context) ([]kinopub.Folder, error)
	GetAllFolderItems(ctx context.Context, folderID int) ([]kinopub.Item, error)
	FindFolderByName(ctx context.Context, name string) (*kinopub.Folder, error)
	FindOrCreateFolder(ctx context.Context, name string) (*kinopub.Folder, error)
	AddItem(ctx context.Context, folderID, itemID int) error
	RemoveItem(ctx context.Context, itemID int, folderID *int) error
	Search(ctx context.Context, title string, kind models.MediaKind) ([]kinopub.Item, error)
	GetWatchStatus(ctx context.Context, itemID int) (*kinopub.WatchStatus, error)
	WatchingMovies(ctx context.Context) ([]kinopub.Item, error)
	WatchingSerials(ctx context.Context) ([]kinopub.Item, error)
}

// Recommender produces ordered "Title (Year)" suggestion lines
type Recommender interface {
	Suggest(ctx context.Context, prefs recommender.Preferences, kind models.MediaKind, count int) ([]string, error)
}

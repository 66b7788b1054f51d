package controllers

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"recomarr/internal/models"
	"recomarr/internal/services/kinopub"
	"recomarr/internal/services/recommender"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestDatabase(t *testing.T) *models.Database {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type addCall struct {
	folderID int
	itemID   int
}

type removeCall struct {
	itemID   int
	folderID int
}

// fakeGateway is an in-memory CatalogGateway double
type fakeGateway struct {
	folders       []kinopub.Folder
	folderItems   map[int][]kinopub.Item
	searchResults map[string][]kinopub.Item
	watchStatus   map[int]*kinopub.WatchStatus
	movies        []kinopub.Item
	serials       []kinopub.Item

	nextFolderID int

	searched []string
	added    []addCall
	removed  []removeCall
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		folderItems:   make(map[int][]kinopub.Item),
		searchResults: make(map[string][]kinopub.Item),
		watchStatus:   make(map[int]*kinopub.WatchStatus),
		nextFolderID:  100,
	}
}

func searchKey(kind models.MediaKind, title string) string {
	return string(kind) + "|" + title
}

func (g *fakeGateway) ListFolders(ctx context.Context) ([]kinopub.Folder, error) {
	return g.folders, nil
}

func (g *fakeGateway) GetAllFolderItems(ctx context.Context, folderID int) ([]kinopub.Item, error) {
	return g.folderItems[folderID], nil
}

func (g *fakeGateway) FindFolderByName(ctx context.Context, name string) (*kinopub.Folder, error) {
	for i := range g.folders {
		if strings.EqualFold(g.folders[i].Title, name) {
			return &g.folders[i], nil
		}
	}
	return nil, nil
}

func (g *fakeGateway) FindOrCreateFolder(ctx context.Context, name string) (*kinopub.Folder, error) {
	if folder, _ := g.FindFolderByName(ctx, name); folder != nil {
		return folder, nil
	}
	g.nextFolderID++
	folder := kinopub.Folder{ID: g.nextFolderID, Title: name}
	g.folders = append(g.folders, folder)
	return &folder, nil
}

func (g *fakeGateway) AddItem(ctx context.Context, folderID, itemID int) error {
	g.added = append(g.added, addCall{folderID: folderID, itemID: itemID})
	g.folderItems[folderID] = append(g.folderItems[folderID], kinopub.Item{ID: itemID})
	return nil
}

func (g *fakeGateway) RemoveItem(ctx context.Context, itemID int, folderID *int) error {
	fid := 0
	if folderID != nil {
		fid = *folderID
	}
	g.removed = append(g.removed, removeCall{itemID: itemID, folderID: fid})

	items := g.folderItems[fid]
	for i := range items {
		if items[i].ID == itemID {
			g.folderItems[fid] = append(items[:i:i], items[i+1:]...)
			break
		}
	}
	return nil
}

func (g *fakeGateway) Search(ctx context.Context, title string, kind models.MediaKind) ([]kinopub.Item, error) {
	g.searched = append(g.searched, searchKey(kind, title))
	return g.searchResults[searchKey(kind, title)], nil
}

func (g *fakeGateway) GetWatchStatus(ctx context.Context, itemID int) (*kinopub.WatchStatus, error) {
	if status, ok := g.watchStatus[itemID]; ok {
		return status, nil
	}
	return &kinopub.WatchStatus{TotalUnits: 1}, nil
}

func (g *fakeGateway) WatchingMovies(ctx context.Context) ([]kinopub.Item, error) {
	return g.movies, nil
}

func (g *fakeGateway) WatchingSerials(ctx context.Context) ([]kinopub.Item, error) {
	return g.serials, nil
}

// fakeRecommender returns a canned list of suggestion lines
type fakeRecommender struct {
	lines []string
}

func (r *fakeRecommender) Suggest(ctx context.Context, prefs recommender.Preferences, kind models.MediaKind, count int) ([]string, error) {
	return r.lines, nil
}

package kinopub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"recomarr/internal/models"
)

// Item is the canonical shape of a catalog entry. Raw envelope variance
// never leaks past this file.
type Item struct {
	ID         int     `json:"id"`
	Title      string  `json:"title"`
	Type       string  `json:"type"`
	Subtype    string  `json:"subtype"`
	Year       int     `json:"year"`
	Genres     []Genre `json:"genres"`
	IMDBRating float64 `json:"imdb_rating"`
	Subscribed bool    `json:"subscribed"`
}

// Genre is a catalog genre reference
type Genre struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// HasGenre reports whether the item carries the given genre id
func (i *Item) HasGenre(id int) bool {
	for _, g := range i.Genres {
		if g.ID == id {
			return true
		}
	}
	return false
}

// Kind maps the remote type strings onto the local media kinds
func (i *Item) Kind() models.MediaKind {
	switch i.Type {
	case "movie", "documovie", "3d", "concert":
		return models.KindMovie
	default:
		return models.KindSeries
	}
}

// Folder is a remote bookmark folder descriptor
type Folder struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Count int    `json:"count"`
}

// WatchStatus aggregates unit-level (episode or video) watch state
type WatchStatus struct {
	IsWatched      bool
	IsFullyWatched bool
	CompletedUnits int
	TotalUnits     int
}

// pagination is the page metadata some endpoints return
type pagination struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// envelope covers the service's inconsistent response shapes: logically
// equivalent calls populate data, item, items or folder interchangeably
type envelope struct {
	Status     int             `json:"status"`
	Data       json.RawMessage `json:"data"`
	Item       json.RawMessage `json:"item"`
	Items      json.RawMessage `json:"items"`
	Folder     json.RawMessage `json:"folder"`
	Pagination *pagination     `json:"pagination"`
}

// payload returns the first populated envelope field
func (e *envelope) payload() json.RawMessage {
	for _, raw := range []json.RawMessage{e.Data, e.Item, e.Items, e.Folder} {
		if populated(raw) {
			return raw
		}
	}
	return nil
}

func populated(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// remoteType maps a local kind to the search type parameter the service
// requires. The service has no kind-less search, so series is the default.
func remoteType(kind models.MediaKind) string {
	if kind == models.KindMovie {
		return "movie"
	}
	return "serial"
}

// ListFolders retrieves all bookmark folders
func (c *Client) ListFolders(ctx context.Context) ([]Folder, error) {
	var env envelope
	if err := c.get(ctx, "/bookmarks", nil, &env); err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	var folders []Folder
	if raw := env.payload(); raw != nil {
		if err := json.Unmarshal(raw, &folders); err != nil {
			return nil, &APIError{Body: fmt.Sprintf("folder list decode failed: %v", err)}
		}
	}
	return folders, nil
}

// GetFolder retrieves one page of a folder's items
func (c *Client) GetFolder(ctx context.Context, folderID, page int) ([]Item, *pagination, error) {
	params := url.Values{}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}

	var env envelope
	if err := c.get(ctx, fmt.Sprintf("/bookmarks/%d", folderID), params, &env); err != nil {
		if isRemote404(err) {
			return nil, nil, fmt.Errorf("folder %d: %w", folderID, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("failed to get folder %d: %w", folderID, err)
	}

	var items []Item
	if raw := env.payload(); raw != nil {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, nil, &APIError{Body: fmt.Sprintf("folder items decode failed: %v", err)}
		}
	}
	return items, env.Pagination, nil
}

// GetAllFolderItems loops folder pages until the pagination metadata is
// exhausted. Absent metadata means a single page.
func (c *Client) GetAllFolderItems(ctx context.Context, folderID int) ([]Item, error) {
	var all []Item

	page := 1
	for {
		items, pg, err := c.GetFolder(ctx, folderID, page)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)

		if pg == nil || pg.Current >= pg.Total || len(items) == 0 {
			break
		}
		page = pg.Current + 1
	}

	return all, nil
}

// FindFolderByName looks up a folder by case-insensitive exact title.
// Absence is a normal branch: returns nil, nil.
func (c *Client) FindFolderByName(ctx context.Context, name string) (*Folder, error) {
	folders, err := c.ListFolders(ctx)
	if err != nil {
		return nil, err
	}

	for i := range folders {
		if strings.EqualFold(folders[i].Title, name) {
			return &folders[i], nil
		}
	}
	return nil, nil
}

// CreateFolder creates a bookmark folder
func (c *Client) CreateFolder(ctx context.Context, name string) (*Folder, error) {
	var env envelope
	if err := c.postForm(ctx, "/bookmarks/create", url.Values{"title": {name}}, &env); err != nil {
		return nil, fmt.Errorf("failed to create folder %q: %w", name, err)
	}

	raw := env.payload()
	if raw == nil {
		return nil, &APIError{Body: "create folder returned no folder descriptor"}
	}
	var folder Folder
	if err := json.Unmarshal(raw, &folder); err != nil {
		return nil, &APIError{Body: fmt.Sprintf("folder decode failed: %v", err)}
	}
	return &folder, nil
}

// FindOrCreateFolder returns an existing folder or creates it
func (c *Client) FindOrCreateFolder(ctx context.Context, name string) (*Folder, error) {
	folder, err := c.FindFolderByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if folder != nil {
		return folder, nil
	}

	c.logger.WithField("folder", name).Info("Creating bookmark folder")
	return c.CreateFolder(ctx, name)
}

// AddItem adds an item to a folder
func (c *Client) AddItem(ctx context.Context, folderID, itemID int) error {
	params := url.Values{
		"item":   {strconv.Itoa(itemID)},
		"folder": {strconv.Itoa(folderID)},
	}
	if err := c.postForm(ctx, "/bookmarks/add", params, nil); err != nil {
		return fmt.Errorf("failed to add item %d to folder %d: %w", itemID, folderID, err)
	}
	return nil
}

// RemoveItem removes an item from bookmarks. Removing an absent item is
// not an error: the operation is idempotent for callers.
func (c *Client) RemoveItem(ctx context.Context, itemID int, folderID *int) error {
	params := url.Values{"item": {strconv.Itoa(itemID)}}
	if folderID != nil {
		params.Set("folder", strconv.Itoa(*folderID))
	}

	err := c.postForm(ctx, "/bookmarks/remove-item", params, nil)
	if err != nil {
		if isRemote404(err) {
			c.logger.WithField("item", itemID).Debug("Item already absent from folder")
			return nil
		}
		return fmt.Errorf("failed to remove item %d: %w", itemID, err)
	}
	return nil
}

// isRemote404 reports whether err is a remote 404 response
func isRemote404(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Search queries the catalog by title. The type parameter is mandatory
// for the remote API.
func (c *Client) Search(ctx context.Context, title string, kind models.MediaKind) ([]Item, error) {
	cacheKey := "search:" + string(kind) + ":" + strings.ToLower(title)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.([]Item), nil
	}

	params := url.Values{
		"title": {title},
		"type":  {remoteType(kind)},
	}

	var env envelope
	if err := c.get(ctx, "/items", params, &env); err != nil {
		return nil, fmt.Errorf("search failed for %q: %w", title, err)
	}

	var items []Item
	if raw := env.payload(); raw != nil {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, &APIError{Body: fmt.Sprintf("search decode failed: %v", err)}
		}
	}

	c.cache.SetDefault(cacheKey, items)
	return items, nil
}

// watchUnit is one episode or video entry of the watch-status endpoint.
// Status is -1 unwatched, 0 in progress, 1 complete.
type watchUnit struct {
	Status int `json:"status"`
}

// GetWatchStatus aggregates unit-level watch status for an item. Any unit
// in progress or complete marks the item watched; only complete units count
// as completed, so fully watched holds exactly when completedUnits reaches
// a non-zero totalUnits.
func (c *Client) GetWatchStatus(ctx context.Context, itemID int) (*WatchStatus, error) {
	cacheKey := "watching:" + strconv.Itoa(itemID)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(*WatchStatus), nil
	}

	var env envelope
	if err := c.get(ctx, "/watching", url.Values{"id": {strconv.Itoa(itemID)}}, &env); err != nil {
		return nil, fmt.Errorf("failed to get watch status for item %d: %w", itemID, err)
	}

	var payload struct {
		Seasons []struct {
			Episodes []watchUnit `json:"episodes"`
		} `json:"seasons"`
		Videos []watchUnit `json:"videos"`
	}
	if raw := env.payload(); raw != nil {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, &APIError{Body: fmt.Sprintf("watch status decode failed: %v", err)}
		}
	}

	var units []watchUnit
	for _, season := range payload.Seasons {
		units = append(units, season.Episodes...)
	}
	units = append(units, payload.Videos...)

	status := &WatchStatus{TotalUnits: len(units)}
	for _, unit := range units {
		if unit.Status >= 0 {
			status.IsWatched = true
		}
		if unit.Status == 1 {
			status.CompletedUnits++
		}
	}
	status.IsFullyWatched = status.TotalUnits > 0 && status.CompletedUnits >= status.TotalUnits

	c.cache.SetDefault(cacheKey, status)
	return status, nil
}

// WatchingMovies retrieves the movies on the user's watching list
func (c *Client) WatchingMovies(ctx context.Context) ([]Item, error) {
	return c.watchingList(ctx, "/watching/movies")
}

// WatchingSerials retrieves the series on the user's watching list
func (c *Client) WatchingSerials(ctx context.Context) ([]Item, error) {
	return c.watchingList(ctx, "/watching/serials")
}

func (c *Client) watchingList(ctx context.Context, path string) ([]Item, error) {
	var env envelope
	if err := c.get(ctx, path, nil, &env); err != nil {
		return nil, fmt.Errorf("failed to get watching list: %w", err)
	}

	var items []Item
	if raw := env.payload(); raw != nil {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, &APIError{Body: fmt.Sprintf("watching list decode failed: %v", err)}
		}
	}
	return items, nil
}

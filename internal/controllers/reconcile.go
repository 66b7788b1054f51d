package controllers

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"recomarr/internal/match"
	"recomarr/internal/metrics"
	"recomarr/internal/models"
	"recomarr/internal/services/kinopub"
	"recomarr/internal/services/recommender"
)

const (
	// Genre id the remote service uses for animation; permanently
	// excluded from recommendations
	animationGenreID = 25

	movieRatingFloor  = 6.0
	seriesRatingFloor = 7.0

	// How many titles of each preference section go into the prompt
	maxPreferenceTitles = 20
)

// BatchSummary reports the outcome counts of one reconciliation batch
type BatchSummary struct {
	Suggested  int
	Added      int
	Duplicates int
	NotFound   int
	Rejected   int
	Failed     int
}

// batchState tracks the live contents of the managed folders during one
// batch so items added mid-batch are visible to later duplicate checks,
// even though the remote service would not reflect them yet
type batchState struct {
	folders map[models.MediaKind]*kinopub.Folder
	items   map[models.MediaKind][]kinopub.Item
}

func (s *batchState) containsItem(id int) bool {
	for _, items := range s.items {
		for _, item := range items {
			if item.ID == id {
				return true
			}
		}
	}
	return false
}

func (s *batchState) containsTitle(title string) bool {
	for _, items := range s.items {
		for _, item := range items {
			if match.Equivalent(title, item.Title) {
				return true
			}
		}
	}
	return false
}

// ReconcileController turns free-text suggestions into idempotent
// create/remove operations against the managed folders
type ReconcileController struct {
	db          *models.Database
	gateway     CatalogGateway
	recommender Recommender
	exclusions  *ExclusionBuilder
	cleanupCtrl *CleanupController
	logger      *logrus.Logger

	suggestionCount int
	requestDelay    time.Duration
	sleep           func(time.Duration)
}

// NewReconcileController creates a new reconciliation controller
func NewReconcileController(
	db *models.Database,
	gateway CatalogGateway,
	rec Recommender,
	exclusions *ExclusionBuilder,
	cleanupCtrl *CleanupController,
	suggestionCount int,
	requestDelay time.Duration,
	logger *logrus.Logger,
) *ReconcileController {
	return &ReconcileController{
		db:              db,
		gateway:         gateway,
		recommender:     rec,
		exclusions:      exclusions,
		cleanupCtrl:     cleanupCtrl,
		logger:          logger,
		suggestionCount: suggestionCount,
		requestDelay:    requestDelay,
		sleep:           time.Sleep,
	}
}

// Run executes one reconciliation batch: cleanup, suggestion intake,
// filtering, search, selection, decision, persistence. Per-suggestion
// failures never abort the batch.
func (c *ReconcileController) Run(ctx context.Context, kind models.MediaKind) (*BatchSummary, error) {
	c.logger.WithField("kind", kind).Info("Starting reconciliation batch")

	set, err := c.exclusions.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build exclusion set: %w", err)
	}

	// Sweep first so a batch never removes and immediately re-adds the
	// same title
	if _, err := c.cleanupCtrl.RunWithSet(ctx, set); err != nil {
		c.logger.WithError(err).Warn("Folder cleanup failed, continuing with reconciliation")
	}

	prefs, err := c.buildPreferences()
	if err != nil {
		return nil, fmt.Errorf("failed to build preferences: %w", err)
	}

	lines, err := c.recommender.Suggest(ctx, prefs, kind, c.suggestionCount)
	if err != nil {
		return nil, fmt.Errorf("failed to get suggestions: %w", err)
	}

	state, err := c.loadBatchState(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to load managed folder state: %w", err)
	}

	summary := &BatchSummary{Suggested: len(lines)}
	for _, line := range lines {
		suggestion, err := match.ParseSuggestion(line)
		if err != nil {
			c.logger.WithError(err).WithField("line", line).Warn("Skipping unparseable suggestion")
			summary.Failed++
			metrics.SuggestionOutcomes.WithLabelValues("failed").Inc()
			continue
		}

		if set.MatchesTitle(suggestion.Title) {
			c.logger.WithField("title", suggestion.Title).Info("Suggestion excluded, skipping")
			summary.Rejected++
			metrics.SuggestionOutcomes.WithLabelValues("rejected").Inc()
			continue
		}

		outcome := c.processSuggestion(ctx, suggestion, kind, set, state)
		switch outcome {
		case outcomeAdded:
			summary.Added++
		case outcomeDuplicate:
			summary.Duplicates++
		case outcomeNotFound:
			summary.NotFound++
		case outcomeRejected:
			summary.Rejected++
		case outcomeFailed:
			summary.Failed++
		}
		metrics.SuggestionOutcomes.WithLabelValues(string(outcome)).Inc()
	}

	c.logger.WithFields(logrus.Fields{
		"suggested":  summary.Suggested,
		"added":      summary.Added,
		"duplicates": summary.Duplicates,
		"not_found":  summary.NotFound,
		"rejected":   summary.Rejected,
		"failed":     summary.Failed,
	}).Info("Reconciliation batch completed")

	return summary, nil
}

type outcome string

const (
	outcomeAdded     outcome = "added"
	outcomeDuplicate outcome = "duplicate"
	outcomeNotFound  outcome = "not_found"
	outcomeRejected  outcome = "rejected"
	outcomeFailed    outcome = "failed"
)

// processSuggestion runs one suggestion through search, selection and the
// decision branch. Returns the counted outcome; never panics the batch.
func (c *ReconcileController) processSuggestion(
	ctx context.Context,
	suggestion *match.Suggestion,
	kind models.MediaKind,
	set *ExclusionSet,
	state *batchState,
) outcome {
	log := c.logger.WithField("title", suggestion.Title)

	candidate, resolvedKind, err := c.searchCandidate(ctx, suggestion, kind)
	if err != nil {
		log.WithError(err).Error("Search failed for suggestion")
		return outcomeFailed
	}
	if candidate == nil {
		log.Info("No catalog match for suggestion")
		return outcomeNotFound
	}

	log = log.WithFields(logrus.Fields{"item": candidate.ID, "match": candidate.Title})

	// Animation is permanently excluded, regardless of rating
	if candidate.HasGenre(animationGenreID) {
		log.Info("Rejecting animation candidate")
		return outcomeRejected
	}

	floor := seriesRatingFloor
	if resolvedKind == models.KindMovie {
		floor = movieRatingFloor
	}
	if candidate.IMDBRating > 0 && candidate.IMDBRating < floor {
		log.WithField("rating", candidate.IMDBRating).Info("Rejecting candidate below rating floor")
		return outcomeRejected
	}

	if set.ContainsID(candidate.ID) || set.MatchesTitle(candidate.Title) ||
		state.containsItem(candidate.ID) || state.containsTitle(candidate.Title) {
		log.Info("Candidate already known, skipping")
		return outcomeDuplicate
	}

	// Subscribed wins over live watch progress: both mean the content is
	// already on the user's radar, but subscription needs no status call
	if candidate.Subscribed {
		log.Info("User already subscribed, recording as watched")
		if err := c.db.UpsertWatched(&models.WatchedRecord{
			KinopubID:    candidate.ID,
			Title:        candidate.Title,
			Kind:         resolvedKind,
			Year:         candidate.Year,
			FullyWatched: false,
		}); err != nil {
			log.WithError(err).Error("Failed to persist watched record")
			return outcomeFailed
		}
		set.Add(candidate.ID, candidate.Title)
		return outcomeRejected
	}

	c.pause()
	status, err := c.gateway.GetWatchStatus(ctx, candidate.ID)
	if err != nil {
		log.WithError(err).Error("Failed to query watch status")
		return outcomeFailed
	}

	if status.IsWatched {
		log.WithFields(logrus.Fields{
			"completed": status.CompletedUnits,
			"total":     status.TotalUnits,
		}).Info("Candidate already in progress, recording as watched")
		if err := c.db.UpsertWatched(&models.WatchedRecord{
			KinopubID:      candidate.ID,
			Title:          candidate.Title,
			Kind:           resolvedKind,
			Year:           candidate.Year,
			TotalUnits:     status.TotalUnits,
			CompletedUnits: status.CompletedUnits,
			FullyWatched:   status.IsFullyWatched,
		}); err != nil {
			log.WithError(err).Error("Failed to persist watched record")
			return outcomeFailed
		}
		set.Add(candidate.ID, candidate.Title)
		return outcomeRejected
	}

	folder, err := c.managedFolder(ctx, state, resolvedKind)
	if err != nil {
		log.WithError(err).Error("Failed to resolve managed folder")
		return outcomeFailed
	}

	c.pause()
	if err := c.gateway.AddItem(ctx, folder.ID, candidate.ID); err != nil {
		log.WithError(err).Error("Failed to add item to managed folder")
		return outcomeFailed
	}

	if err := c.db.UpsertBookmark(&models.BookmarkRecord{
		KinopubID:   candidate.ID,
		FolderID:    folder.ID,
		FolderTitle: folder.Title,
		Title:       candidate.Title,
		Kind:        resolvedKind,
		Year:        candidate.Year,
	}); err != nil {
		log.WithError(err).Warn("Failed to persist bookmark record")
	}

	// Make the addition visible to duplicate checks for the rest of the batch
	state.items[resolvedKind] = append(state.items[resolvedKind], kinopub.Item{
		ID:    candidate.ID,
		Title: candidate.Title,
	})

	log.WithField("folder", folder.Title).Info("Bookmarked suggestion")
	return outcomeAdded
}

// searchCandidate queries the catalog per applicable kind, stopping at the
// first non-empty result set, and selects the best match
func (c *ReconcileController) searchCandidate(
	ctx context.Context,
	suggestion *match.Suggestion,
	kind models.MediaKind,
) (*kinopub.Item, models.MediaKind, error) {
	kinds := []models.MediaKind{kind}
	if kind == "" {
		kinds = []models.MediaKind{models.KindMovie, models.KindSeries}
	}

	var lastErr error
	for i, k := range kinds {
		if i > 0 {
			c.pause()
		}

		results, err := c.gateway.Search(ctx, suggestion.Title, k)
		if err != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"title": suggestion.Title,
				"kind":  k,
			}).Warn("Catalog search failed")
			lastErr = err
			continue
		}
		if len(results) == 0 {
			continue
		}

		best := pickBestMatch(results, suggestion.Title, k)
		return best, best.Kind(), nil
	}

	if lastErr != nil {
		return nil, "", lastErr
	}
	return nil, "", nil
}

// pickBestMatch prefers candidates of the requested kind, ranked by title
// distance, and falls back to the first result
func pickBestMatch(results []kinopub.Item, title string, kind models.MediaKind) *kinopub.Item {
	var best *kinopub.Item
	bestDistance := 0

	for i := range results {
		if results[i].Kind() != kind {
			continue
		}
		d := match.Distance(results[i].Title, title)
		if best == nil || d < bestDistance {
			best = &results[i]
			bestDistance = d
		}
	}

	if best == nil {
		best = &results[0]
	}
	return best
}

// loadBatchState reads the live managed folder contents at batch start
func (c *ReconcileController) loadBatchState(ctx context.Context, kind models.MediaKind) (*batchState, error) {
	state := &batchState{
		folders: make(map[models.MediaKind]*kinopub.Folder),
		items:   make(map[models.MediaKind][]kinopub.Item),
	}

	kinds := []models.MediaKind{kind}
	if kind == "" {
		kinds = managedFolderOrder
	}

	for _, k := range kinds {
		folder, err := c.gateway.FindFolderByName(ctx, ManagedFolderName(k))
		if err != nil {
			return nil, err
		}
		if folder == nil {
			continue
		}
		items, err := c.gateway.GetAllFolderItems(ctx, folder.ID)
		if err != nil {
			return nil, err
		}
		state.folders[k] = folder
		state.items[k] = items
	}

	return state, nil
}

// managedFolder returns the cached folder for a kind, creating it remotely
// on first use
func (c *ReconcileController) managedFolder(ctx context.Context, state *batchState, kind models.MediaKind) (*kinopub.Folder, error) {
	if folder, ok := state.folders[kind]; ok {
		return folder, nil
	}

	folder, err := c.gateway.FindOrCreateFolder(ctx, ManagedFolderName(kind))
	if err != nil {
		return nil, err
	}
	state.folders[kind] = folder
	return folder, nil
}

// buildPreferences assembles the recommender payload from local records
func (c *ReconcileController) buildPreferences() (recommender.Preferences, error) {
	var prefs recommender.Preferences

	rated, err := c.db.ListWatchedForRecommendation()
	if err != nil {
		return prefs, err
	}
	for _, rec := range rated {
		line := formatTitle(rec.Title, rec.Year)
		if rec.Rating != nil {
			line = fmt.Sprintf("%s - %d/10", line, *rec.Rating)
		}
		prefs.TopRated = append(prefs.TopRated, line)
		if len(prefs.TopRated) >= maxPreferenceTitles {
			break
		}
	}

	partial := false
	inProgress, err := c.db.ListWatched("", &partial)
	if err != nil {
		return prefs, err
	}
	for _, rec := range inProgress {
		prefs.PartiallyWatched = append(prefs.PartiallyWatched, formatTitle(rec.Title, rec.Year))
		if len(prefs.PartiallyWatched) >= maxPreferenceTitles {
			break
		}
	}

	bookmarks, err := c.db.ListBookmarks(nil)
	if err != nil {
		return prefs, err
	}
	for _, rec := range bookmarks {
		prefs.Bookmarked = append(prefs.Bookmarked, formatTitle(rec.Title, rec.Year))
		if len(prefs.Bookmarked) >= maxPreferenceTitles {
			break
		}
	}

	notInterested, err := c.db.ListNotInterested()
	if err != nil {
		return prefs, err
	}
	for _, rec := range notInterested {
		prefs.NotInterested = append(prefs.NotInterested, formatTitle(rec.Title, rec.Year))
		if len(prefs.NotInterested) >= maxPreferenceTitles {
			break
		}
	}

	return prefs, nil
}

func formatTitle(title string, year int) string {
	if year > 0 {
		return fmt.Sprintf("%s (%d)", title, year)
	}
	return title
}

// pause inserts the rate-limit delay between remote calls
func (c *ReconcileController) pause() {
	if c.requestDelay > 0 {
		c.sleep(c.requestDelay)
	}
}

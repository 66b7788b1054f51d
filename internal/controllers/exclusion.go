package controllers

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"recomarr/internal/match"
	"recomarr/internal/models"
	"recomarr/internal/utils"
)

// notInterestedMarkers flag folders whose contents count as rejections
var notInterestedMarkers = []string{"not interested", "not-interested", "dislike"}

func isNotInterestedFolder(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range notInterestedMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ExclusionMember is one entry of the exclusion set
type ExclusionMember struct {
	KinopubID int
	Title     string
}

// ExclusionSet is the batch-scoped set of content the engine must never
// suggest or bookmark. Rebuilt each run, never persisted as a union.
type ExclusionSet struct {
	ids     map[int]struct{}
	members []ExclusionMember
}

// NewExclusionSet creates an empty exclusion set
func NewExclusionSet() *ExclusionSet {
	return &ExclusionSet{ids: make(map[int]struct{})}
}

// Add inserts a member. A zero id adds a title-only member.
func (s *ExclusionSet) Add(kinopubID int, title string) {
	if kinopubID != 0 {
		s.ids[kinopubID] = struct{}{}
	}
	s.members = append(s.members, ExclusionMember{KinopubID: kinopubID, Title: title})
}

// ContainsID checks membership by remote id
func (s *ExclusionSet) ContainsID(kinopubID int) bool {
	_, ok := s.ids[kinopubID]
	return ok
}

// MatchesTitle checks membership by fuzzy title equivalence
func (s *ExclusionSet) MatchesTitle(title string) bool {
	for _, m := range s.members {
		if match.Equivalent(title, m.Title) {
			return true
		}
	}
	return false
}

// Len returns the member count
func (s *ExclusionSet) Len() int {
	return len(s.members)
}

// ExclusionBuilder merges local records into the canonical exclusion set
type ExclusionBuilder struct {
	db       *models.Database
	excluded *utils.ExcludedTitles
	logger   *logrus.Logger
}

// NewExclusionBuilder creates a new exclusion builder
func NewExclusionBuilder(db *models.Database, excluded *utils.ExcludedTitles, logger *logrus.Logger) *ExclusionBuilder {
	return &ExclusionBuilder{
		db:       db,
		excluded: excluded,
		logger:   logger,
	}
}

// Build assembles the exclusion set from watched records (any progress,
// partially watched content must not be re-suggested), bookmarks outside
// not-interested folders, explicit not-interested records, and the static
// excluded-titles file. Bookmarks sitting in not-interested-named folders
// are upserted into not-interested storage first, so later runs no longer
// depend on folder naming.
func (b *ExclusionBuilder) Build(ctx context.Context) (*ExclusionSet, error) {
	set := NewExclusionSet()

	watched, err := b.db.ListWatched("", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list watched records: %w", err)
	}
	for _, rec := range watched {
		set.Add(rec.KinopubID, rec.Title)
	}

	bookmarks, err := b.db.ListBookmarks(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	for _, rec := range bookmarks {
		if isNotInterestedFolder(rec.FolderTitle) {
			if err := b.db.UpsertNotInterested(&models.NotInterestedRecord{
				KinopubID: rec.KinopubID,
				Title:     rec.Title,
				Kind:      rec.Kind,
				Year:      rec.Year,
			}); err != nil {
				b.logger.WithError(err).WithField("title", rec.Title).Warn("Failed to sync not-interested record")
			}
			continue
		}
		set.Add(rec.KinopubID, rec.Title)
	}

	notInterested, err := b.db.ListNotInterested()
	if err != nil {
		return nil, fmt.Errorf("failed to list not-interested records: %w", err)
	}
	for _, rec := range notInterested {
		set.Add(rec.KinopubID, rec.Title)
	}

	if b.excluded != nil {
		for _, title := range b.excluded.Titles() {
			set.Add(0, title)
		}
	}

	b.logger.WithField("members", set.Len()).Debug("Exclusion set built")
	return set, nil
}

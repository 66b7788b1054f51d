package controllers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"recomarr/internal/models"
	"recomarr/internal/utils"
)

func TestExclusionSetMatching(t *testing.T) {
	set := NewExclusionSet()
	set.Add(1, "Во все тяжкое / Breaking Bad")
	set.Add(0, "Cats")

	if !set.ContainsID(1) {
		t.Error("expected id 1 to be contained")
	}
	if set.ContainsID(2) {
		t.Error("id 2 must not be contained")
	}
	// Suggestions come back as bare English titles with a year
	if !set.MatchesTitle("Breaking Bad (2008)") {
		t.Error("expected dual-language record to match the suggestion title")
	}
	if !set.MatchesTitle("Cats (2019)") {
		t.Error("expected title-only member to match")
	}
	if set.MatchesTitle("The Wire") {
		t.Error("unrelated title must not match")
	}
	if set.Len() != 2 {
		t.Errorf("Len = %d, want 2", set.Len())
	}
}

func TestIsNotInterestedFolder(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Not Interested", true},
		{"my not-interested stuff", true},
		{"Dislike", true},
		{"favorites", false},
		{"movies-ai", false},
	}
	for _, tt := range tests {
		if got := isNotInterestedFolder(tt.name); got != tt.want {
			t.Errorf("isNotInterestedFolder(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestExclusionBuilderBuild(t *testing.T) {
	db := newTestDatabase(t)

	// Partially watched content is still excluded
	if err := db.UpsertWatched(&models.WatchedRecord{KinopubID: 1, Title: "Severance", Kind: models.KindSeries, CompletedUnits: 3, TotalUnits: 9}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertBookmark(&models.BookmarkRecord{KinopubID: 2, FolderID: 10, FolderTitle: "favorites", Title: "Heat", Kind: models.KindMovie}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertBookmark(&models.BookmarkRecord{KinopubID: 3, FolderID: 11, FolderTitle: "Not Interested", Title: "Cats", Kind: models.KindMovie}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertNotInterested(&models.NotInterestedRecord{KinopubID: 4, Title: "Morbius", Kind: models.KindMovie}); err != nil {
		t.Fatal(err)
	}

	builder := NewExclusionBuilder(db, nil, testLogger())
	set, err := builder.Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for _, id := range []int{1, 2, 3, 4} {
		if !set.ContainsID(id) {
			t.Errorf("expected id %d in exclusion set", id)
		}
	}

	// Items from not-interested-named folders are promoted into durable
	// not-interested records
	rejected, err := db.IsNotInterested(3)
	if err != nil {
		t.Fatalf("IsNotInterested failed: %v", err)
	}
	if !rejected {
		t.Error("expected bookmark from not-interested folder to be synced")
	}
}

func TestExclusionBuilderStaticTitles(t *testing.T) {
	db := newTestDatabase(t)

	path := filepath.Join(t.TempDir(), "excluded.txt")
	content := "# permanently blocked\nThe Emoji Movie\n\nCats\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	excluded, err := utils.LoadExcludedTitles(path)
	if err != nil {
		t.Fatalf("LoadExcludedTitles failed: %v", err)
	}

	builder := NewExclusionBuilder(db, excluded, testLogger())
	set, err := builder.Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if !set.MatchesTitle("The Emoji Movie (2017)") {
		t.Error("expected static title to be excluded")
	}
	if !set.MatchesTitle("Cats") {
		t.Error("expected static title to be excluded")
	}
	if set.MatchesTitle("# permanently blocked") {
		t.Error("comment lines must not become exclusions")
	}
}

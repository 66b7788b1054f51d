package models

// MediaKind represents the type of media (movie or series)
type MediaKind string

const (
	KindMovie  MediaKind = "movie"
	KindSeries MediaKind = "series"
)

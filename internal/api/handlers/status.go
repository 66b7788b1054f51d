package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"recomarr/internal/models"
)

// StatusHandler handles status requests
type StatusHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(db *models.Database, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		db:     db,
		logger: logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	Watched          int `json:"watched"`
	FullyWatched     int `json:"fully_watched"`
	PartiallyWatched int `json:"partially_watched"`
	Bookmarks        int `json:"bookmarks"`
	NotInterested    int `json:"not_interested"`
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	watched, err := h.db.ListWatched("", nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list watched records")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	bookmarks, err := h.db.ListBookmarks(nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list bookmarks")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	notInterested, err := h.db.ListNotInterested()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list not-interested records")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := StatusResponse{
		Watched:       len(watched),
		Bookmarks:     len(bookmarks),
		NotInterested: len(notInterested),
	}
	for _, rec := range watched {
		if rec.FullyWatched {
			resp.FullyWatched++
		} else {
			resp.PartiallyWatched++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SuggestionOutcomes counts reconciliation outcomes per batch, labeled
	// added / duplicate / not_found / rejected / failed
	SuggestionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recomarr_suggestions_total",
		Help: "Reconciliation outcomes by type",
	}, []string{"outcome"})

	// FolderItemsRemoved counts items removed from managed folders by cleanup
	FolderItemsRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recomarr_folder_items_removed_total",
		Help: "Items removed from managed folders by cleanup",
	})

	// RemoteRequests counts remote API requests by result (ok / retried / failed)
	RemoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recomarr_remote_requests_total",
		Help: "Remote API requests by result",
	}, []string{"result"})
)

package models

import "time"

// SystemMetrics is a JSON snapshot of the service's counters.
type SystemMetrics struct {
	RequestsTotal            uint64           `json:"requests_total"`
	AverageRequestDurationMs float64          `json:"average_request_duration_ms"`
	CacheHitRatio            float64          `json:"cache_hit_ratio"`
	IntentsAccepted          uint64           `json:"intents_accepted"`
	IntentsRejected          uint64           `json:"intents_rejected"`
	BroadcastsSent           uint64           `json:"broadcasts_sent"`
	BroadcastsFailed         uint64           `json:"broadcasts_failed"`
	Viewers                  map[string]int64 `json:"viewers"`
	Goroutines               int              `json:"goroutines"`
	GeneratedAt              time.Time        `json:"generated_at"`
}

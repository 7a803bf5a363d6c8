package models

// CacheStatistics is a point-in-time snapshot of the classification cache's
// counters. Counters live in the backing store and are updated with atomic
// remote increments, so a snapshot is eventually consistent with in-flight
// operations.
type CacheStatistics struct {
	HitCount   int64 `json:"hit_count"`
	MissCount  int64 `json:"miss_count"`
	TotalItems int64 `json:"total_items"`
}

// HitRate returns hits/(hits+misses). A cache that has served no requests
// reports 1.0: dashboards treat the cold-start value as "nothing missed
// yet", not as an error.
func (s CacheStatistics) HitRate() float64 {
	total := s.HitCount + s.MissCount
	if total == 0 {
		return 1.0
	}
	return float64(s.HitCount) / float64(total)
}

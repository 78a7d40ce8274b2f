package history

import (
	"math"
	"slices"
	"time"

	"github.com/angelmondragon/docreview-backend/pkg/enums"
)

// Stats is a read-only projection over Query results.
type Stats struct {
	Total    int                          `json:"total"`
	ByStatus map[enums.DocumentStatus]int `json:"by_status"`
	Latency  LatencyStats                 `json:"latency"`
	Daily    []DailyCount                 `json:"daily"`
}

// LatencyStats summarises DecidedAt - UploadedAt over decided rows, in seconds.
type LatencyStats struct {
	Count       int     `json:"count"`
	MeanSeconds float64 `json:"mean_seconds"`
	P50Seconds  float64 `json:"p50_seconds"`
	P90Seconds  float64 `json:"p90_seconds"`
	MaxSeconds  float64 `json:"max_seconds"`
}

// DailyCount is one point of the per-day chart series, keyed by UTC date.
type DailyCount struct {
	Day        string `json:"day"`
	Pending    int    `json:"pending"`
	Authorized int    `json:"authorized"`
	Rejected   int    `json:"rejected"`
}

// Summarize builds Stats from ledger rows.
func Summarize(entries []Entry) Stats {
	stats := Stats{
		Total: len(entries),
		ByStatus: map[enums.DocumentStatus]int{
			enums.DocumentStatusPending:    0,
			enums.DocumentStatusAuthorized: 0,
			enums.DocumentStatusRejected:   0,
		},
		Daily: []DailyCount{},
	}

	latencies := make([]time.Duration, 0, len(entries))
	days := map[string]*DailyCount{}
	for _, e := range entries {
		stats.ByStatus[e.Status]++

		if e.DecidedAt != nil && !e.UploadedAt.IsZero() {
			d := e.DecidedAt.Sub(e.UploadedAt)
			if d < 0 {
				d = 0
			}
			latencies = append(latencies, d)
		}

		key := e.Timestamp.UTC().Format(time.DateOnly)
		day, ok := days[key]
		if !ok {
			day = &DailyCount{Day: key}
			days[key] = day
		}
		switch e.Status {
		case enums.DocumentStatusPending:
			day.Pending++
		case enums.DocumentStatusAuthorized:
			day.Authorized++
		case enums.DocumentStatusRejected:
			day.Rejected++
		}
	}

	for _, day := range days {
		stats.Daily = append(stats.Daily, *day)
	}
	slices.SortFunc(stats.Daily, func(a, b DailyCount) int {
		switch {
		case a.Day < b.Day:
			return -1
		case a.Day > b.Day:
			return 1
		default:
			return 0
		}
	})

	stats.Latency = summarizeLatency(latencies)
	return stats
}

func summarizeLatency(values []time.Duration) LatencyStats {
	if len(values) == 0 {
		return LatencyStats{}
	}
	slices.Sort(values)

	var total time.Duration
	for _, v := range values {
		total += v
	}

	return LatencyStats{
		Count:       len(values),
		MeanSeconds: (total / time.Duration(len(values))).Seconds(),
		P50Seconds:  nearestRank(values, 50).Seconds(),
		P90Seconds:  nearestRank(values, 90).Seconds(),
		MaxSeconds:  values[len(values)-1].Seconds(),
	}
}

// nearestRank expects sorted input.
func nearestRank(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

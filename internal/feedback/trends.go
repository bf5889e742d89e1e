package feedback

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"speakwise-feedback/internal/backend"
)

// Window is a trend look-back period in whole months.
type Window int

const (
	Window3  Window = 3
	Window6  Window = 6
	Window12 Window = 12

	DefaultWindow = Window6
)

// ParseWindow parses a month count; only 3, 6 and 12 are supported.
func ParseWindow(raw string) (Window, error) {
	if raw == "" {
		return DefaultWindow, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, newError(ErrUnsupportedWindow, fmt.Sprintf("months must be one of 3, 6 or 12, got %q.", raw), err)
	}
	switch w := Window(n); w {
	case Window3, Window6, Window12:
		return w, nil
	default:
		return 0, newError(ErrUnsupportedWindow, fmt.Sprintf("months must be one of 3, 6 or 12, got %d.", n), nil)
	}
}

// includes reports whether a record ageMonths old belongs to the window. The
// widest window covers every record regardless of age.
func (w Window) includes(ageMonths int) bool {
	return w == Window12 || ageMonths < int(w)
}

type TrendStatus string

const (
	TrendNoData   TrendStatus = "no_data"
	TrendSnapshot TrendStatus = "snapshot"
	TrendSeries   TrendStatus = "trend"
)

// SeriesStats summarises one criterion series.
type SeriesStats struct {
	Current     float64 `json:"current"`
	Improvement float64 `json:"improvement"`
	Average     float64 `json:"average"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
}

type TrendStats struct {
	Overall            SeriesStats `json:"overall"`
	Engagement         SeriesStats `json:"engagement"`
	Clarity            SeriesStats `json:"clarity"`
	ContentDepth       SeriesStats `json:"content_depth"`
	SpeakerKnowledge   SeriesStats `json:"speaker_knowledge"`
	PracticalRelevance SeriesStats `json:"practical_relevance"`
}

// Trend is the monthly rating series of one subject. The six value series
// are index aligned with Labels.
type Trend struct {
	Status             TrendStatus `json:"status"`
	WindowMonths       int         `json:"window_months"`
	Records            int         `json:"records"`
	Labels             []string    `json:"labels"`
	Overall            []float64   `json:"overall"`
	Engagement         []float64   `json:"engagement"`
	Clarity            []float64   `json:"clarity"`
	ContentDepth       []float64   `json:"content_depth"`
	SpeakerKnowledge   []float64   `json:"speaker_knowledge"`
	PracticalRelevance []float64   `json:"practical_relevance"`
	Stats              *TrendStats `json:"stats,omitempty"`
}

const seriesCount = 6

type bucketKey struct {
	year  int
	month time.Month
}

func (k bucketKey) before(o bucketKey) bool {
	if k.year != o.year {
		return k.year < o.year
	}
	return k.month < o.month
}

type bucket struct {
	count int
	sums  [seriesCount]float64
}

func recordValues(r *backend.FeedbackRecord) [seriesCount]float64 {
	return [seriesCount]float64{
		float64(r.OverallRating),
		float64(r.Engagement),
		float64(r.Clarity),
		float64(r.ContentDepth),
		float64(r.SpeakerKnowledge),
		float64(r.PracticalRelevance),
	}
}

// monthsSince is the whole number of 30 day periods between created and now.
func monthsSince(created, now time.Time) int {
	days := int(math.Floor(now.Sub(created).Hours() / 24))
	return days / 30
}

// ComputeTrend buckets records by calendar month of creation within window,
// relative to now. Records without a usable timestamp count as created now.
// The result depends only on its arguments.
func ComputeTrend(records []backend.FeedbackRecord, window Window, now time.Time) Trend {
	now = now.UTC()
	buckets := make(map[bucketKey]*bucket)
	included := 0

	for i := range records {
		created := now
		if records[i].CreatedAt.Valid {
			created = records[i].CreatedAt.Time.UTC()
		}
		if !window.includes(monthsSince(created, now)) {
			continue
		}

		key := bucketKey{year: created.Year(), month: created.Month()}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.count++
		values := recordValues(&records[i])
		for s := 0; s < seriesCount; s++ {
			b.sums[s] += values[s]
		}
		included++
	}

	keys := make([]bucketKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].before(keys[j]) })

	trend := Trend{
		WindowMonths: int(window),
		Records:      included,
		Labels:       make([]string, 0, len(keys)),
	}
	var series [seriesCount][]float64
	for s := range series {
		series[s] = make([]float64, 0, len(keys))
	}
	for _, k := range keys {
		b := buckets[k]
		trend.Labels = append(trend.Labels, k.month.String()[:3])
		for s := 0; s < seriesCount; s++ {
			series[s] = append(series[s], round1(b.sums[s]/float64(b.count)))
		}
	}
	trend.Overall = series[0]
	trend.Engagement = series[1]
	trend.Clarity = series[2]
	trend.ContentDepth = series[3]
	trend.SpeakerKnowledge = series[4]
	trend.PracticalRelevance = series[5]

	switch len(keys) {
	case 0:
		trend.Status = TrendNoData
	case 1:
		trend.Status = TrendSnapshot
		trend.Stats = statsFor(series, snapshotStats)
	default:
		trend.Status = TrendSeries
		trend.Stats = statsFor(series, seriesStats)
	}
	return trend
}

func statsFor(series [seriesCount][]float64, fn func([]float64) SeriesStats) *TrendStats {
	return &TrendStats{
		Overall:            fn(series[0]),
		Engagement:         fn(series[1]),
		Clarity:            fn(series[2]),
		ContentDepth:       fn(series[3]),
		SpeakerKnowledge:   fn(series[4]),
		PracticalRelevance: fn(series[5]),
	}
}

// snapshotStats never reports a slope for a single point.
func snapshotStats(values []float64) SeriesStats {
	v := values[0]
	return SeriesStats{Current: v, Improvement: 0, Average: v, Min: v, Max: v}
}

func seriesStats(values []float64) SeriesStats {
	first, last := values[0], values[len(values)-1]
	stats := SeriesStats{
		Current:     last,
		Improvement: round1(last - first),
		Min:         values[0],
		Max:         values[0],
	}
	sum := 0.0
	for _, v := range values {
		sum += v
		stats.Min = math.Min(stats.Min, v)
		stats.Max = math.Max(stats.Max, v)
	}
	stats.Average = round1(sum / float64(len(values)))
	return stats
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

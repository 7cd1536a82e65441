package latency

import (
	"math"
	"sort"
)

// Percentiles summarizes one timing series in milliseconds.
type Percentiles struct {
	Count int     `json:"count"`
	P50   float64 `json:"p50_ms"`
	P95   float64 `json:"p95_ms"`
	Max   float64 `json:"max_ms"`
}

// ModeSummary holds the timings recorded for one runtime mode.
type ModeSummary struct {
	Mode      string       `json:"mode"`
	Checks    int          `json:"checks"`
	CacheHits int          `json:"cache_hits"`
	Fast      Percentiles  `json:"fast"`
	Semantic  *Percentiles `json:"semantic,omitempty"`
}

// HitRate is the fraction of checks answered from the cache.
func (m ModeSummary) HitRate() float64 {
	if m.Checks == 0 {
		return 0
	}
	return float64(m.CacheHits) / float64(m.Checks)
}

// Summarize groups records by mode, sorted by mode name. Cache hits count
// toward Checks and CacheHits but not toward the fast-path percentiles.
func Summarize(records []Record) []ModeSummary {
	type series struct {
		checks, hits int
		fast, sem    []float64
	}
	byMode := make(map[string]*series)
	for _, rec := range records {
		s, ok := byMode[rec.Mode]
		if !ok {
			s = &series{}
			byMode[rec.Mode] = s
		}
		s.checks++
		if rec.CacheHit {
			s.hits++
			continue
		}
		s.fast = append(s.fast, rec.DtFastMS)
		if rec.DtSemMS != nil {
			s.sem = append(s.sem, *rec.DtSemMS)
		}
	}

	modes := make([]string, 0, len(byMode))
	for m := range byMode {
		modes = append(modes, m)
	}
	sort.Strings(modes)

	out := make([]ModeSummary, 0, len(modes))
	for _, m := range modes {
		s := byMode[m]
		sum := ModeSummary{
			Mode:      m,
			Checks:    s.checks,
			CacheHits: s.hits,
			Fast:      summarize(s.fast),
		}
		if len(s.sem) > 0 {
			sem := summarize(s.sem)
			sum.Semantic = &sem
		}
		out = append(out, sum)
	}
	return out
}

func summarize(values []float64) Percentiles {
	if len(values) == 0 {
		return Percentiles{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return Percentiles{
		Count: len(sorted),
		P50:   Percentile(sorted, 0.50),
		P95:   Percentile(sorted, 0.95),
		Max:   sorted[len(sorted)-1],
	}
}

// Percentile returns the p-th quantile (0..1) of sorted values using
// linear interpolation between closest ranks. Empty input yields NaN.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	k := float64(len(sorted)-1) * p
	lo := math.Floor(k)
	hi := math.Ceil(k)
	if lo == hi {
		return sorted[int(k)]
	}
	return sorted[int(lo)]*(hi-k) + sorted[int(hi)]*(k-lo)
}

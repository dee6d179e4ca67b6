// Package rank scores enriched releases and orders them for presentation.
package rank

import (
	"math"
	"regexp"
	"sort"
	"time"

	"github.com/relaycore/relaycore/models"
)

// Weights are the scoring coefficients; defaults sum to 1.0.
type Weights struct {
	Seeders   float64
	Freshness float64
	Quality   float64
	Size      float64
}

// DefaultWeights mirrors the documented default scoring profile.
func DefaultWeights() Weights {
	return Weights{Seeders: 0.40, Freshness: 0.20, Quality: 0.25, Size: 0.15}
}

var (
	quality2160 = regexp.MustCompile(`(?i)\b(2160p|4k|uhd)\b`)
	quality1080 = regexp.MustCompile(`(?i)\b1080(p|i)\b`)
	quality720  = regexp.MustCompile(`(?i)\b720p\b`)
	qualityLow  = regexp.MustCompile(`(?i)\b(480p|dvdrip|sdtv|cam|ts)\b`)
)

// Ranker scores and orders enriched releases.
type Ranker struct {
	weights Weights
	now     func() time.Time
}

// New builds a Ranker with the given weights. A zero Weights falls back to
// DefaultWeights.
func New(weights Weights) *Ranker {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	return &Ranker{weights: weights, now: time.Now}
}

// Score computes the weighted score for one release.
func (rk *Ranker) Score(r models.EnhancedReleaseResult) float64 {
	w := rk.weights
	return w.Seeders*seederScore(r.Seeders) +
		w.Freshness*freshnessScore(r.PublishDate, rk.now()) +
		w.Quality*qualityScore(r.Title) +
		w.Size*sizeScore(r.Size)
}

func seederScore(seeders int) float64 {
	if seeders <= 0 {
		return 0
	}
	v := math.Log10(float64(seeders)+1) / 3
	if v > 1 {
		return 1
	}
	return v
}

func freshnessScore(publishDate, now time.Time) float64 {
	if publishDate.IsZero() {
		return 0
	}
	ageDays := now.Sub(publishDate).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-ageDays / 30)
}

func qualityScore(title string) float64 {
	switch {
	case quality2160.MatchString(title):
		return 1.0
	case quality1080.MatchString(title):
		return 0.8
	case quality720.MatchString(title):
		return 0.6
	case qualityLow.MatchString(title):
		return 0.3
	default:
		return 0.4
	}
}

// sizeScore is neutral (0.5) when size is unknown or non-positive, rather
// than penalizing a release for missing size metadata.
func sizeScore(sizeBytes int64) float64 {
	if sizeBytes <= 0 {
		return 0.5
	}
	sizeGB := float64(sizeBytes) / (1 << 30)
	switch {
	case sizeGB < 1:
		return 0.3
	case sizeGB >= 2 && sizeGB <= 15:
		capped := sizeGB
		if capped > 10 {
			capped = 10
		}
		return 0.8 + capped/10*0.2
	case sizeGB > 30:
		return 0.7
	default:
		return 0.6
	}
}

// Rank scores every release, sorts descending by score (stable, so earlier
// dedup preference survives ties), and writes TotalScore back onto each
// entry.
func (rk *Ranker) Rank(releases []models.EnhancedReleaseResult) []models.EnhancedReleaseResult {
	out := make([]models.EnhancedReleaseResult, len(releases))
	copy(out, releases)
	for i := range out {
		out[i].TotalScore = rk.Score(out[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalScore > out[j].TotalScore
	})
	return out
}

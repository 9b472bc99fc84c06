// Package matcher decides which enrolled student, if any, a query embedding
// belongs to. Everything here is pure: no I/O, no locking, no mutation of the
// candidate set.
package matcher

import (
	"fmt"
	"math"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

// Metric is the distance function used system-wide.
type Metric string

const (
	Cosine    Metric = "cosine"
	Euclidean Metric = "euclidean"
)

// TieEpsilon is the distance difference under which two candidates are tied.
const TieEpsilon = 1e-9

// Config holds the decision parameters.
type Config struct {
	Metric    Metric
	Threshold float64
}

// DefaultConfig matches the service defaults (cosine, 0.30).
func DefaultConfig() Config {
	return Config{Metric: Cosine, Threshold: 0.30}
}

// ParseMetric validates a metric name from configuration.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case Cosine, Euclidean:
		return Metric(s), nil
	default:
		return "", fmt.Errorf("unknown metric %q", s)
	}
}

// Distance computes the metric between a and b. Both must have the same
// non-zero length. Identical vectors are at distance exactly 0.
func Distance(metric Metric, a, b domain.Embedding) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, domain.ErrInvalidEmbedding.WithError(
			fmt.Errorf("length mismatch: %d vs %d", len(a), len(b)))
	}
	if equal(a, b) {
		return 0, nil
	}

	switch metric {
	case Euclidean:
		return euclidean(a, b), nil
	case Cosine:
		return cosine(a, b), nil
	default:
		return 0, fmt.Errorf("unknown metric %q", metric)
	}
}

func equal(a, b domain.Embedding) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func euclidean(a, b domain.Embedding) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// cosine distance is 1 - cosine similarity, in [0, 2]. A zero vector has no
// direction and is treated as orthogonal to everything else.
func cosine(a, b domain.Embedding) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 1
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	sim = math.Max(-1, math.Min(1, sim))
	return 1 - sim
}

// Match scans every candidate and returns the nearest one when its distance
// is <= cfg.Threshold. Candidates whose embedding length differs from the
// query are skipped. Candidates within TieEpsilon of the minimum are tied and
// the lowest ID wins, so the result does not depend on candidate order.
func Match(query domain.Embedding, candidates []domain.Candidate, cfg Config) (domain.MatchResult, error) {
	if len(query) == 0 {
		return domain.NoMatch(), domain.ErrInvalidEmbedding.WithError(fmt.Errorf("empty query"))
	}
	if _, err := ParseMetric(string(cfg.Metric)); err != nil {
		return domain.NoMatch(), err
	}

	distances := make([]float64, len(candidates))
	minDist := math.Inf(1)
	for i, c := range candidates {
		if len(c.Embedding) != len(query) {
			distances[i] = math.NaN()
			continue
		}
		d, err := Distance(cfg.Metric, query, c.Embedding)
		if err != nil {
			return domain.NoMatch(), err
		}
		distances[i] = d
		if d < minDist {
			minDist = d
		}
	}

	best := -1
	for i, d := range distances {
		if math.IsNaN(d) || d-minDist > TieEpsilon {
			continue
		}
		if best == -1 || candidates[i].ID < candidates[best].ID {
			best = i
		}
	}

	if best == -1 || distances[best] > cfg.Threshold {
		return domain.NoMatch(), nil
	}

	return domain.MatchResult{
		Matched:   true,
		StudentID: candidates[best].ID,
		Distance:  distances[best],
	}, nil
}

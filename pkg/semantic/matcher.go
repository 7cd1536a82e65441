package semantic

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
)

// DefaultThreshold is the cosine similarity at which text is considered a
// match when neither the check nor the matcher configures one.
const DefaultThreshold = 0.80

// Embedder turns texts into embedding vectors, one per input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Matcher compares text against prohibited phrases by embedding similarity.
// It is safe for concurrent use.
type Matcher struct {
	embedder  Embedder
	threshold float64
	logger    *slog.Logger

	mu      sync.Mutex
	phrases map[string][][]float32

	warmOnce sync.Once
	warmErr  error
}

// NewMatcher creates a matcher. A threshold outside (0, 1] falls back to
// DefaultThreshold.
func NewMatcher(embedder Embedder, threshold float64) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Matcher{
		embedder:  embedder,
		threshold: threshold,
		logger:    slog.Default().With("component", "semantic.matcher"),
		phrases:   make(map[string][][]float32),
	}
}

// Threshold returns the matcher's default threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Warm performs one throwaway embedding so that the first real request does
// not pay model load time. Only the first call does any work; later calls
// return its result.
func (m *Matcher) Warm(ctx context.Context) error {
	m.warmOnce.Do(func() {
		if _, err := m.embedder.Embed(ctx, []string{"warmup"}); err != nil {
			m.warmErr = fmt.Errorf("semantic warmup: %w", err)
			m.logger.Warn("semantic embedder warmup failed", "error", err)
			return
		}
		m.logger.Debug("semantic embedder warm")
	})
	return m.warmErr
}

// Match implements rules.SemanticMatcher. Phrases are trimmed and empty ones
// ignored; with no phrases left the text never matches. A zero threshold
// uses the matcher default.
func (m *Matcher) Match(ctx context.Context, text string, phrases []string, threshold float64) (bool, string, error) {
	cleaned := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return false, "", nil
	}
	if threshold <= 0 {
		threshold = m.threshold
	}

	phraseVecs, err := m.phraseVectors(ctx, cleaned)
	if err != nil {
		return false, "", err
	}
	textVecs, err := m.embedder.Embed(ctx, []string{text})
	if err != nil {
		return false, "", fmt.Errorf("embed text: %w", err)
	}
	if len(textVecs) != 1 {
		return false, "", fmt.Errorf("embed text: expected 1 vector, got %d", len(textVecs))
	}

	best, bestSim := 0, math.Inf(-1)
	for i, pv := range phraseVecs {
		if sim := Cosine(textVecs[0], pv); sim > bestSim {
			best, bestSim = i, sim
		}
	}

	if bestSim >= threshold {
		return true, fmt.Sprintf("closest=%q sim=%.3f >= %.3f", cleaned[best], bestSim, threshold), nil
	}
	return false, "", nil
}

func (m *Matcher) phraseVectors(ctx context.Context, phrases []string) ([][]float32, error) {
	sum := sha256.Sum256([]byte(strings.Join(phrases, "\n")))
	key := hex.EncodeToString(sum[:])

	m.mu.Lock()
	vecs, ok := m.phrases[key]
	m.mu.Unlock()
	if ok {
		return vecs, nil
	}

	vecs, err := m.embedder.Embed(ctx, phrases)
	if err != nil {
		return nil, fmt.Errorf("embed phrases: %w", err)
	}
	if len(vecs) != len(phrases) {
		return nil, fmt.Errorf("embed phrases: expected %d vectors, got %d", len(phrases), len(vecs))
	}

	m.mu.Lock()
	m.phrases[key] = vecs
	m.mu.Unlock()
	return vecs, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

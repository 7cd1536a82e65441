package semantic

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashingDimensions is the vector size of HashingEmbedder.
const DefaultHashingDimensions = 512

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "on": true, "for": true, "with": true, "is": true,
	"are": true, "was": true, "be": true, "it": true, "this": true, "that": true,
	"here": true, "there": true, "how": true, "what": true, "i": true, "you": true,
	"me": true, "my": true, "your": true, "so": true, "can": true, "do": true,
}

// HashingEmbedder maps text to a fixed-size vector by hashing word unigrams
// and bigrams (stopwords removed) into signed buckets.
type HashingEmbedder struct {
	Dimensions int
}

// NewHashingEmbedder returns an embedder with DefaultHashingDimensions.
func NewHashingEmbedder() *HashingEmbedder {
	return &HashingEmbedder{Dimensions: DefaultHashingDimensions}
}

// Embed implements Embedder. It never fails.
func (h *HashingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	dims := h.Dimensions
	if dims <= 0 {
		dims = DefaultHashingDimensions
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = h.embed(text, dims)
	}
	return out, nil
}

func (h *HashingEmbedder) embed(text string, dims int) []float32 {
	vec := make([]float32, dims)
	tokens := tokenize(text)

	add := func(feature string) {
		hasher := fnv.New64a()
		hasher.Write([]byte(feature))
		sum := hasher.Sum64()
		idx := int(sum % uint64(dims))
		if sum&(1<<63) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	for i, tok := range tokens {
		add(tok)
		if i > 0 {
			add(tokens[i-1] + " " + tok)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := words[:0]
	for _, w := range words {
		if !stopwords[w] {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// Package semantic implements rules.SemanticMatcher on top of a pluggable
// text Embedder.
//
// Two embedders are provided. HashingEmbedder is a deterministic,
// dependency-free bag-of-words embedding that works offline and is the
// default. OllamaEmbedder calls an Ollama-compatible /api/embed endpoint for
// model-quality sentence embeddings.
//
// The matcher embeds the candidate text, compares it to each prohibited
// phrase by cosine similarity, and blocks when the best score reaches the
// threshold. Phrase vectors are cached per phrase set.
package semantic

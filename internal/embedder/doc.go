// Package embedder turns text into fixed-dimension vectors for course retrieval.
//
// Two providers are available:
//
//   - local: an offline hashed bag-of-words model (384 dimensions). Unigrams and
//     bigrams are hashed into signed buckets and the result is L2 normalised.
//     An optional YAML weight table down-weights or drops tokens.
//   - openai: any OpenAI-compatible embeddings endpoint, with retry and a
//     circuit breaker.
//
// Providers are created through New, which returns a Lazy embedder. The model
// is loaded on the first embedding request, once per process, and concurrent
// first callers wait for that single load:
//
//	emb, err := embedder.New(embedder.Config{Provider: "local"})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	vec, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "Learn Docker programming development course tutorial",
//	})
//
// Every provider returns a zero vector for blank text instead of failing.
//
// # Vector spaces
//
// Identifier names the vector space of an embedder as provider/model/dimension.
// Indexes are tagged with it so vectors from different models are never mixed.
//
// # Caching
//
// Cache is an LRU keyed by the SHA-256 of the text. Get returns a copy, so
// callers may modify the vector freely.
package embedder

// Package embedder turns text chunks into vector embeddings.
//
// Three backends are available, chosen once at startup by New:
//
//   - OpenAI, via the /embeddings endpoint (1536 dimensions by default)
//   - Jina AI, which speaks the same protocol (1024 dimensions)
//   - Hash, a deterministic offline fallback: the SHA-1 digest of the
//     text with each byte scaled to [0, 1] (20 dimensions)
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{
//	    OpenAIKey: os.Getenv(embedder.EnvOpenAIAPIKey),
//	    CacheSize: 10000,
//	})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	vectors, err := embedder.EmbedTexts(ctx, emb, texts, 4)
//
// # Batching
//
// EmbedTexts sends texts in windows of batchSize. Some providers answer a
// multi-text request with a single flat vector; when a window comes back
// with the wrong number of vectors, or the batch call fails outright, the
// window is embedded again one text at a time. The result always holds
// exactly one vector per input text, in input order.
//
// # Provider Selection
//
//  1. Config.Provider, when set ("openai", "jina", "hash" or "local")
//  2. OpenAI when an OpenAI key is configured
//  3. Jina when a Jina key is configured
//  4. Hash embeddings
//
// A network provider with a missing key, or an APIVersion outside
// SupportedAPIVersions, degrades to hash embeddings with a warning.
//
// # Caching
//
// Network providers share an LRU cache keyed by the SHA-256 of the text, so
// re-indexing unchanged chunks does not hit the API twice.
package embedder

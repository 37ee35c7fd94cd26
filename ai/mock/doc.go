// Package mock provides a test double implementation of ai.Embedder.
//
// The mock returns deterministic vectors derived from the text hash, so the
// same text always embeds identically. Custom behavior can be injected via
// the function fields:
//
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("embedding service down")
//	}
package mock

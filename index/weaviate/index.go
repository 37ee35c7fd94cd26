package weaviate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/poiesic/convoflow/ai"
	"github.com/poiesic/convoflow/core"
	"github.com/poiesic/convoflow/index"
)

const (
	defaultClassName   = "Conversation"
	defaultDialTimeout = 5 * time.Second
)

// Config holds connection settings for the Weaviate-backed index.
type Config struct {
	// URL is the Weaviate server URL (e.g. "http://localhost:8080").
	URL string

	// ClassName is the collection the conversations live in.
	// Default: "Conversation".
	ClassName string

	// DialTimeout bounds the initial readiness probe.
	// Default: 5s.
	DialTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.ClassName == "" {
		c.ClassName = defaultClassName
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
}

// Index implements index.Index over a Weaviate collection. Vectors are
// computed client-side through the injected embedder (the collection has no
// vectorizer); the conversation fields ride along as object properties.
type Index struct {
	client   *weaviate.Client
	embedder ai.Embedder
	class    string
	logger   *slog.Logger
}

var _ index.Index = (*Index)(nil)

// NewIndex connects to Weaviate and returns an index over cfg.ClassName.
// Readiness is probed once; an unreachable server is a construction error so
// misconfiguration aborts at startup.
//
// Returns the index.Index interface to enforce abstraction.
func NewIndex(cfg Config, embedder ai.Embedder) (index.Index, error) {
	if embedder == nil {
		return nil, index.ErrEmbedderRequired
	}
	cfg.applyDefaults()

	client, err := newClient(cfg.URL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	ready, err := client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", index.ErrIndexUnavailable, err)
	}
	if !ready {
		return nil, index.ErrIndexUnavailable
	}

	return &Index{
		client:   client,
		embedder: embedder,
		class:    cfg.ClassName,
		logger:   slog.Default().With("component", "weaviate-index"),
	}, nil
}

func newClient(url string) (*weaviate.Client, error) {
	cfg := weaviate.Config{
		Host:   url,
		Scheme: "http",
	}
	if strings.HasPrefix(url, "https://") {
		cfg.Scheme = "https"
		cfg.Host = strings.TrimPrefix(url, "https://")
	} else if strings.HasPrefix(url, "http://") {
		cfg.Host = strings.TrimPrefix(url, "http://")
	}

	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return client, nil
}

// Upsert embeds the batch's transcripts and writes the objects in one batch
// call. Object ids are the rows' deterministic UUIDs, so a replayed batch
// overwrites rather than duplicates.
func (i *Index) Upsert(ctx context.Context, rows []index.Row) error {
	if len(rows) == 0 {
		return nil
	}

	texts := make([]string, len(rows))
	for n, row := range rows {
		texts[n] = row.Texts
	}

	vectors, err := i.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(rows) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(rows), len(vectors))
	}

	objects := make([]*models.Object, len(rows))
	for n, row := range rows {
		objects[n] = &models.Object{
			Class:      i.class,
			ID:         strfmt.UUID(row.ID),
			Vector:     models.C11yVector(vectors[n]),
			Properties: properties(row.Meta),
		}
	}

	resp, err := i.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("batch upsert: %w", err)
	}

	var rejected int
	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			rejected++
			i.logger.Warn("object rejected by index",
				"id", obj.ID, "reason", obj.Result.Errors.Error[0].Message)
		}
	}
	if rejected > 0 {
		return fmt.Errorf("%w: %d of %d objects rejected", index.ErrPartialBatch, rejected, len(rows))
	}

	i.logger.Debug("upserted batch", "count", len(rows))
	return nil
}

// SimilaritySearch embeds the query and runs a nearVector search.
func (i *Index) SimilaritySearch(ctx context.Context, query string, k int) ([]index.Match, error) {
	vector, err := i.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	nearVector := i.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	fields := []graphql.Field{
		{Name: "chat_id"},
		{Name: "conversation_id"},
		{Name: "start_timestamp"},
		{Name: "end_timestamp"},
		{Name: "texts"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	result, err := i.client.GraphQL().Get().
		WithClassName(i.class).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("similarity search: %s", result.Errors[0].Message)
	}

	return parseMatches(result, i.class)
}

// Close is a no-op: the Weaviate HTTP client holds no persistent resources.
func (i *Index) Close() error {
	return nil
}

func properties(conv core.Conversation) map[string]interface{} {
	return map[string]interface{}{
		"chat_id":         conv.ChatID,
		"conversation_id": fmt.Sprintf("%d", conv.ID),
		"start_timestamp": conv.StartTimestamp,
		"end_timestamp":   conv.EndTimestamp,
		"texts":           conv.Texts,
	}
}

func parseMatches(result *models.GraphQLResponse, class string) ([]index.Match, error) {
	get, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected graphql response shape")
	}
	objects, ok := get[class].([]interface{})
	if !ok {
		return nil, nil
	}

	matches := make([]index.Match, 0, len(objects))
	for _, raw := range objects {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}

		match := index.Match{}
		if texts, ok := obj["texts"].(string); ok {
			match.Texts = texts
			match.Meta.Texts = texts
		}
		if v, ok := obj["chat_id"].(float64); ok {
			match.Meta.ChatID = int64(v)
		}
		if v, ok := obj["start_timestamp"].(float64); ok {
			match.Meta.StartTimestamp = int64(v)
		}
		if v, ok := obj["end_timestamp"].(float64); ok {
			match.Meta.EndTimestamp = int64(v)
		}
		match.Meta.ID = core.ConversationID(match.Meta.ChatID, match.Meta.StartTimestamp)

		if additional, ok := obj["_additional"].(map[string]interface{}); ok {
			if distance, ok := additional["distance"].(float64); ok {
				// Cosine distance in [0,2]; closer is better.
				match.Score = 1 - float32(distance)
			}
		}

		matches = append(matches, match)
	}
	return matches, nil
}

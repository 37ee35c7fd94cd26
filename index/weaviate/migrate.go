package weaviate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate/entities/models"
)

// Migrate creates the conversation collection if it does not exist.
// It is safe to run repeatedly; an existing collection is left untouched.
//
// The collection carries no vectorizer — vectors are computed client-side —
// and uses cosine distance for similarity.
func Migrate(ctx context.Context, cfg Config) error {
	cfg.applyDefaults()
	logger := slog.Default().With("component", "weaviate-migrate")

	client, err := newClient(cfg.URL)
	if err != nil {
		return err
	}

	exists, err := client.Schema().ClassExistenceChecker().
		WithClassName(cfg.ClassName).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", cfg.ClassName, err)
	}
	if exists {
		logger.Info("collection already exists", "class", cfg.ClassName)
		return nil
	}

	class := &models.Class{
		Class:       cfg.ClassName,
		Description: "One chat conversation session, reduced from a closed session window.",
		Vectorizer:  "none",
		VectorIndexConfig: map[string]interface{}{
			"distance": "cosine",
		},
		Properties: []*models.Property{
			{
				Name:        "chat_id",
				DataType:    []string{"int"},
				Description: "Conversation partner (chat/group) identity.",
			},
			{
				Name:        "conversation_id",
				DataType:    []string{"text"},
				Description: "Deterministic session identity derived from chat and start time.",
			},
			{
				Name:        "start_timestamp",
				DataType:    []string{"int"},
				Description: "Earliest message event time in the session, unix seconds.",
			},
			{
				Name:        "end_timestamp",
				DataType:    []string{"int"},
				Description: "Latest message event time in the session, unix seconds.",
			},
			{
				Name:         "texts",
				DataType:     []string{"text"},
				Description:  "Newline-joined transcript, one 'sender: text' line per message.",
				Tokenization: "word",
			},
		},
	}

	if err := client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("create collection %s: %w", cfg.ClassName, err)
	}

	logger.Info("created collection", "class", cfg.ClassName)
	return nil
}

package internal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/neuralos/internal/ai"
	"github.com/starford/neuralos/internal/noteservice"
	"github.com/starford/neuralos/internal/notification"
	"github.com/starford/neuralos/internal/preference"
	"github.com/starford/neuralos/internal/search"
	"github.com/starford/neuralos/internal/sse"
	"github.com/starford/neuralos/internal/stats"
	"github.com/starford/neuralos/internal/store"
	"github.com/starford/neuralos/internal/vector"
	"github.com/starford/neuralos/internal/vectorsync"
)

// components holds the wired services shared by every entry point.
type components struct {
	db            *store.DB
	index         vector.Index
	broker        *sse.Broker
	relay         *vectorsync.Relay
	notes         *noteservice.Service
	search        *search.Service
	stats         *stats.Service
	prefs         *preference.Service
	notifications *notification.Service
}

// buildComponents opens the stores and wires the services. withEvents
// attaches the SSE broker. The caller releases them with close.
func buildComponents(ctx context.Context, cfg *Config, logger *slog.Logger, withEvents bool) (*components, error) {
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	idx, err := openIndex(ctx, cfg.Vector)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init vector index: %w", err)
	}

	client := ai.NewClient(ai.Config{
		APIKey:            cfg.AI.APIKey,
		BaseURL:           cfg.AI.BaseURL,
		EmbeddingModel:    cfg.AI.EmbeddingModel,
		ChatModel:         cfg.AI.ChatModel,
		Temperature:       cfg.AI.Temperature,
		Dimensions:        cfg.Vector.Dimensions,
		Timeout:           cfg.AI.Timeout,
		RequestsPerSecond: cfg.AI.RequestsPerSecond,
		Burst:             cfg.AI.Burst,
	})

	c := &components{db: db, index: idx}

	syncer := vectorsync.NewSyncer(db, db, idx, client, logger)
	c.relay = vectorsync.NewRelay(syncer, db, vectorsync.RelayConfig{
		PollInterval:  cfg.Outbox.PollInterval,
		BatchSize:     cfg.Outbox.BatchSize,
		MaxAttempts:   cfg.Outbox.MaxAttempts,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		Grace:         cfg.Outbox.Grace,
	}, logger)

	noteOpts := []noteservice.Option{noteservice.WithLogger(logger)}
	var pub notification.Publisher
	if withEvents {
		c.broker = sse.NewBroker(cfg.Events.StatsThrottle, sse.WithHeartbeat(cfg.Events.Heartbeat))
		noteOpts = append(noteOpts, noteservice.WithEvents(c.broker))
		pub = c.broker
	}

	c.notes = noteservice.NewService(db, syncer, noteOpts...)
	c.search = search.NewService(idx, client, client, db, logger)
	c.stats = stats.NewService(db, logger)
	c.prefs = preference.NewService(db, logger)
	c.notifications = notification.NewService(db, pub, logger)
	return c, nil
}

func openIndex(ctx context.Context, cfg VectorConfig) (vector.Index, error) {
	switch cfg.Backend {
	case VectorMilvus:
		return vector.NewMilvus(ctx, vector.MilvusConfig{
			Address:    cfg.Milvus.Address,
			Username:   cfg.Milvus.Username,
			Password:   cfg.Milvus.Password,
			DBName:     cfg.Milvus.DBName,
			Collection: cfg.Milvus.Collection,
			Dim:        cfg.Dimensions,
		})
	case VectorPgVector:
		return vector.NewPgVector(ctx, cfg.PgVector.DSN, cfg.PgVector.Table, cfg.Dimensions)
	default:
		return vector.NewMemory(cfg.Dimensions), nil
	}
}

func (c *components) close(logger *slog.Logger) {
	c.search.Wait()
	if c.broker != nil {
		c.broker.Close()
	}
	if err := c.index.Close(); err != nil {
		logger.Warn("close vector index", slog.String("error", err.Error()))
	}
	if err := c.db.Close(); err != nil {
		logger.Warn("close store", slog.String("error", err.Error()))
	}
}

// Package redis stores workflow documents in Redis: one JSON string per workflow plus a sorted set
// indexing the ids by last update.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kchakrav/CRMApp-sub002/pkg/models"
	"github.com/kchakrav/CRMApp-sub002/pkg/persistence"
	redis "github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "canvasflow"
	pingTimeout   = 5 * time.Second
)

// Persistence implements persistence.Persistence on top of a Redis client.
type Persistence struct {
	client redis.UniversalClient
	logger *slog.Logger
	prefix string
}

// NewPersistence connects to the Redis server described by a redis:// or rediss:// URL.
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string) (*Persistence, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	p := NewWithClient(logger, redis.NewClient(opts), defaultPrefix)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := p.client.Ping(pingCtx).Err(); err != nil {
		_ = p.client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return p, nil
}

// NewWithClient wraps an existing client. Keys are namespaced under prefix.
func NewWithClient(logger *slog.Logger, client redis.UniversalClient, prefix string) *Persistence {
	return &Persistence{
		client: client,
		logger: logger.With("module", "redis_persistence"),
		prefix: prefix,
	}
}

func (p *Persistence) documentKey(id string) string {
	return p.prefix + ":workflow:" + id
}

func (p *Persistence) indexKey() string {
	return p.prefix + ":workflows"
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

// Workflows lists stored workflows ordered by id.
func (p *Persistence) Workflows(ctx context.Context) ([]persistence.WorkflowInfo, error) {
	entries, err := p.client.ZRangeWithScores(ctx, p.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	out := make([]persistence.WorkflowInfo, 0, len(entries))
	for _, entry := range entries {
		id, ok := entry.Member.(string)
		if !ok {
			continue
		}

		out = append(out, persistence.WorkflowInfo{
			ID:        id,
			UpdatedAt: time.UnixMilli(int64(entry.Score)).UTC(),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Document, error) {
	if err := persistence.ValidateWorkflowID(id); err != nil {
		return nil, err
	}

	body, err := p.client.Get(ctx, p.documentKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.NewWorkflowError("load", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("load", id, err)
	}

	doc, err := models.ParseDocument(body)
	if err != nil {
		return nil, persistence.NewWorkflowError("load", id, err)
	}

	return doc, nil
}

// SaveWorkflow writes the document and its index entry in one transaction.
func (p *Persistence) SaveWorkflow(ctx context.Context, id string, doc *models.Document) error {
	if err := persistence.ValidateWorkflowID(id); err != nil {
		return err
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return persistence.NewWorkflowError("save", id, err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.documentKey(id), body, 0)
		pipe.ZAdd(ctx, p.indexKey(), redis.Z{Score: float64(time.Now().UnixMilli()), Member: id})

		return nil
	})
	if err != nil {
		return persistence.NewWorkflowError("save", id, err)
	}

	return nil
}

func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	if err := persistence.ValidateWorkflowID(id); err != nil {
		return err
	}

	var deleted *redis.IntCmd

	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, p.documentKey(id))
		pipe.ZRem(ctx, p.indexKey(), id)

		return nil
	})
	if err != nil {
		return persistence.NewWorkflowError("delete", id, err)
	}

	if deleted.Val() == 0 {
		return persistence.NewWorkflowError("delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

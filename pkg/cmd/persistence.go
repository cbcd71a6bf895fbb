// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kchakrav/CRMApp-sub002/pkg/persistence"
	"github.com/kchakrav/CRMApp-sub002/pkg/persistence/file"
	"github.com/kchakrav/CRMApp-sub002/pkg/persistence/postgresql"
	"github.com/kchakrav/CRMApp-sub002/pkg/persistence/redis"
)

// NewPersistence picks the storage backend from the URL scheme. A URL without a scheme is a
// directory for file storage.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "file":
		return file.NewPersistence(databaseURL), nil
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "redis", "rediss":
		return redis.NewPersistence(ctx, logger, databaseURL)
	default:
		return nil, fmt.Errorf("unsupported persistence provider in %q", databaseURL)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}

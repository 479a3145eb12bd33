// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chatrail/chatrail/pkg/persistence"
	"github.com/chatrail/chatrail/pkg/persistence/memory"
	"github.com/chatrail/chatrail/pkg/persistence/postgresql"
)

// NewPersistence selects a storage backend from the database URL scheme.
// postgres:// and postgresql:// URLs get the SQL backend; anything else,
// including an empty URL, falls back to the in-memory store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres persistence: %w", err)
		}

		return store, nil
	default:
		return memory.NewPersistence(), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "memory"
	}

	if scheme == "postgres" || scheme == "postgresql" {
		return "postgresql"
	}

	return "memory"
}

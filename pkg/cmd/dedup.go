package cmd

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/chatrail/chatrail/pkg/automation"
)

// NewDedupStore builds the automation dedup store. A redis:// URL enables
// the shared Redis store so multiple engine instances suppress duplicates
// together; an empty URL keeps deduplication local to the process.
func NewDedupStore(logger *slog.Logger, redisURL string) (automation.DedupStore, error) {
	if redisURL == "" {
		return automation.NewMemoryDedupStore(automation.DedupWindow), nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	logger.Info("Using Redis dedup store", "addr", opts.Addr)

	return automation.NewRedisDedupStore(redis.NewClient(opts), automation.DedupWindow), nil
}

package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"market-stream/src/logger"
	"market-stream/src/models"
)

// -----------------------------------------------------------------------------
// Tracker marks users online in Redis while they hold an authenticated
// session. Keys carry a TTL so a crashed gateway never leaves ghosts; the
// session's liveness pings refresh the mark.
// -----------------------------------------------------------------------------

const presenceTTL = 90 * time.Second

type Tracker struct {
	client *redis.Client
	logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewTracker(cfg models.MRedisConfig, log *logger.Logger) (*Tracker, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Tracker{client: client, logger: log}, nil
}

// -----------------------------------------------------------------------------

func userKey(userID int64) string {
	return fmt.Sprintf("presence:user:%d", userID)
}

// -----------------------------------------------------------------------------

// MarkOnline sets (or refreshes) the user's presence mark.
func (t *Tracker) MarkOnline(ctx context.Context, userID int64) {
	if err := t.client.Set(ctx, userKey(userID), "online", presenceTTL).Err(); err != nil {
		t.logger.Warning("Failed to mark user %d online: %v", userID, err)
	}
}

// -----------------------------------------------------------------------------

// MarkOffline clears the user's presence mark.
func (t *Tracker) MarkOffline(ctx context.Context, userID int64) {
	if err := t.client.Del(ctx, userKey(userID)).Err(); err != nil {
		t.logger.Warning("Failed to mark user %d offline: %v", userID, err)
	}
}

// -----------------------------------------------------------------------------

func (t *Tracker) Close() error {
	return t.client.Close()
}

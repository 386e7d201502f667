package redis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"astroconsole-backend/internal/database"
	"astroconsole-backend/pkg/logger"
)

// PresenceRepository reads counterpart online status from Redis. The
// marketplace backend maintains `presence:<id>` keys with a TTL; this
// side only looks them up for roster ranking.
type PresenceRepository struct {
	client *database.RedisClient
}

// NewPresenceRepository creates a new PresenceRepository
func NewPresenceRepository(client *database.RedisClient) *PresenceRepository {
	return &PresenceRepository{client: client}
}

// IsOnline reports whether a counterpart currently has a presence key.
// Lookup failures rank the counterpart offline; ranking is cosmetic and
// must never fail the roster.
func (r *PresenceRepository) IsOnline(ctx context.Context, counterpartID string) bool {
	key := fmt.Sprintf("presence:%s", counterpartID)

	exists, err := r.client.Client.Exists(ctx, key).Result()
	if err != nil {
		logger.Debug("presence lookup failed",
			zap.String("counterpart_id", counterpartID), zap.Error(err))
		return false
	}
	return exists > 0
}

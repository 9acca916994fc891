package cache

import (
	"fmt"

	"github.com/bloopsocial/bloop/internal/common/config"
	"github.com/bloopsocial/bloop/internal/realtime"
	"go.uber.org/zap"
)

// NewUnreadCache creates the unread counter cache selected by configuration
func NewUnreadCache(logger *zap.Logger, cfg *config.CacheConfig) (realtime.UnreadCache, error) {
	logger.Info("Initializing unread cache", zap.String("type", cfg.Type))
	switch cfg.Type {
	case "memory":
		return NewMemoryCache(cfg.TTL), nil
	case "redis":
		return NewRedisCache(cfg.Redis, cfg.TTL)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

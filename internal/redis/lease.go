package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the lease only while it still carries the caller's
// token, so an expired holder can never drop a lease someone else now owns.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LeaseService hands out short-lived exclusive leases backed by SET NX PX.
type LeaseService struct {
	client *Client
	logger *zap.Logger
}

// NewLeaseService creates a new lease service.
func NewLeaseService(client *Client, logger *zap.Logger) *LeaseService {
	return &LeaseService{
		client: client,
		logger: logger,
	}
}

func (s *LeaseService) buildKey(name string) string {
	return fmt.Sprintf("lease:%s", name)
}

// Acquire tries to take the named lease for ttl. It returns the holder token
// and ok=true on success, ok=false if the lease is already held.
func (s *LeaseService) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()

	set, err := s.client.rdb.SetNX(ctx, s.buildKey(name), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis setnx failed: %w", err)
	}
	if !set {
		s.logger.Debug("lease already held", zap.String("lease", name))
		return "", false, nil
	}

	return token, true, nil
}

// Release gives the lease back if token still owns it. Releasing an expired
// or foreign lease is not an error.
func (s *LeaseService) Release(ctx context.Context, name, token string) error {
	deleted, err := releaseScript.Run(ctx, s.client.rdb, []string{s.buildKey(name)}, token).Int()
	if err != nil {
		return fmt.Errorf("redis release failed: %w", err)
	}

	if deleted == 0 {
		s.logger.Warn("lease expired before release", zap.String("lease", name))
	}
	return nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	generationQuotaKeyPrefix = "sia:quota:gen:"
	generationQuotaTTL       = 24 * time.Hour
)

// QuotaRepository counts activity generations per user per day in Redis.
type QuotaRepository struct {
	Redis *redis.Client
	now   func() time.Time
}

func NewQuotaRepository(rdb *redis.Client) *QuotaRepository {
	return &QuotaRepository{Redis: rdb, now: time.Now}
}

// Enabled reports whether counting is possible at all.
func (r *QuotaRepository) Enabled() bool {
	return r != nil && r.Redis != nil
}

// IncrementDaily bumps today's counter for userID and returns the new value.
// The key expires a day after its first increment.
func (r *QuotaRepository) IncrementDaily(ctx context.Context, userID string) (int64, error) {
	key := r.dailyKey(userID)
	n, err := r.Redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := r.Redis.Expire(ctx, key, generationQuotaTTL).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// ReleaseDaily gives back one unit, used when generation fails after the
// counter was taken.
func (r *QuotaRepository) ReleaseDaily(ctx context.Context, userID string) error {
	return r.Redis.Decr(ctx, r.dailyKey(userID)).Err()
}

func (r *QuotaRepository) dailyKey(userID string) string {
	return fmt.Sprintf("%s%s:%s", generationQuotaKeyPrefix, userID, r.now().Format("20060102"))
}

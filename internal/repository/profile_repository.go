package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sia_backend/internal/model"
	"sia_backend/pkg/logger"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	profileCacheKeyPrefix = "sia:profile:"
	profileCacheTTL       = 10 * time.Minute
)

// ProfileRepository stores patient profiles. Reads go through Redis when a
// client is configured; a nil client reads straight from the database.
type ProfileRepository struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewProfileRepository(db *gorm.DB, rdb *redis.Client) *ProfileRepository {
	return &ProfileRepository{DB: db, Redis: rdb}
}

// FindByUserID returns (nil, nil) when the user has no profile yet.
func (r *ProfileRepository) FindByUserID(ctx context.Context, userID string) (*model.PatientProfile, error) {
	if p := r.readCache(ctx, userID); p != nil {
		return p, nil
	}

	var p model.PatientProfile
	if err := r.DB.WithContext(ctx).First(&p, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	r.writeCache(ctx, &p)
	return &p, nil
}

// Save upserts the profile and drops the cached copy.
func (r *ProfileRepository) Save(ctx context.Context, p *model.PatientProfile) error {
	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "age", "city", "language", "diagnosis", "severity",
			"address", "state", "country", "profession", "education", "updated_at",
		}),
	}).Create(p).Error
	if err != nil {
		return err
	}

	if r.Redis != nil {
		if err := r.Redis.Del(ctx, profileCacheKeyPrefix+p.UserID).Err(); err != nil {
			logger.Log.Warn("failed to evict profile cache", zap.String("user_id", p.UserID), zap.Error(err))
		}
	}
	return nil
}

func (r *ProfileRepository) readCache(ctx context.Context, userID string) *model.PatientProfile {
	if r.Redis == nil {
		return nil
	}
	val, err := r.Redis.Get(ctx, profileCacheKeyPrefix+userID).Result()
	if err == redis.Nil {
		return nil
	} else if err != nil {
		logger.Log.Warn("profile cache read failed", zap.String("user_id", userID), zap.Error(err))
		return nil
	}

	var p model.PatientProfile
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return nil
	}
	return &p
}

func (r *ProfileRepository) writeCache(ctx context.Context, p *model.PatientProfile) {
	if r.Redis == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := r.Redis.Set(ctx, profileCacheKeyPrefix+p.UserID, data, profileCacheTTL).Err(); err != nil {
		logger.Log.Warn("profile cache write failed", zap.String("user_id", p.UserID), zap.Error(err))
	}
}

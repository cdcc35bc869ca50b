package service

import (
	"context"
	"errors"
	"fmt"
	"sia_backend/internal/config"
	"sia_backend/internal/model"
	"sia_backend/internal/repository"
	"sia_backend/internal/util"
	"sia_backend/pkg/logger"
	"sia_backend/pkg/monitoring"
	"sia_backend/pkg/tracing"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GenerationSettings are the activity settings that may change at runtime.
type GenerationSettings struct {
	DefaultMaxRetries    int
	ItemsPerActivity     int
	DailyGenerationLimit int
}

func GenerationSettingsFrom(cfg config.ActivityConfig) GenerationSettings {
	return GenerationSettings{
		DefaultMaxRetries:    cfg.DefaultMaxRetries,
		ItemsPerActivity:     cfg.ItemsPerActivity,
		DailyGenerationLimit: cfg.DailyGenerationLimit,
	}
}

type ActivityService struct {
	DB           *gorm.DB
	ActivityRepo *repository.ActivityRepository
	ProfileRepo  *repository.ProfileRepository
	QuotaRepo    *repository.QuotaRepository
	Generator    ContentGenerator

	mu       sync.RWMutex
	settings GenerationSettings
}

func NewActivityService(
	db *gorm.DB,
	activityRepo *repository.ActivityRepository,
	profileRepo *repository.ProfileRepository,
	quotaRepo *repository.QuotaRepository,
	generator ContentGenerator,
	settings GenerationSettings,
) *ActivityService {
	return &ActivityService{
		DB:           db,
		ActivityRepo: activityRepo,
		ProfileRepo:  profileRepo,
		QuotaRepo:    quotaRepo,
		Generator:    generator,
		settings:     settings,
	}
}

// UpdateGenerationConfig swaps the generation settings; used by the config
// watcher on reload.
func (s *ActivityService) UpdateGenerationConfig(settings GenerationSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

func (s *ActivityService) generationSettings() GenerationSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// CreateActivity generates a new activity for the user and stores it with
// all its items in one transaction.
func (s *ActivityService) CreateActivity(ctx context.Context, userID string) (*model.Activity, error) {
	ctx, span := tracing.Tracer.Start(ctx, "ActivityService.CreateActivity")
	defer span.End()

	settings := s.generationSettings()

	profile, err := s.ProfileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, classifyStorageError(err)
	}
	if profile == nil {
		return nil, util.ErrProfileNotFound
	}

	quotaTaken, err := s.takeQuota(ctx, userID, settings.DailyGenerationLimit)
	if err != nil {
		return nil, err
	}
	release := func() {
		if quotaTaken {
			if err := s.QuotaRepo.ReleaseDaily(context.WithoutCancel(ctx), userID); err != nil {
				logger.Ctx(ctx).Warn("failed to release generation quota", zap.String("user_id", userID), zap.Error(err))
			}
		}
	}

	generated, err := s.Generator.Generate(ctx, ContentRequest{Profile: profile, ItemCount: settings.ItemsPerActivity})
	if err != nil {
		release()
		monitoring.UpstreamFailures.WithLabelValues("content_generator").Inc()
		return nil, errors.Join(util.ErrUpstreamFailure, err)
	}
	if err := ValidateGeneratedActivity(generated); err != nil {
		release()
		monitoring.UpstreamFailures.WithLabelValues("content_generator").Inc()
		return nil, errors.Join(util.ErrUpstreamFailure, err)
	}

	activity := &model.Activity{UserID: userID, Status: model.ActivityIdle}
	if title := strings.TrimSpace(generated.Title); title != "" {
		activity.GeneratedTitle = &title
	}
	items := make([]model.ActivityItem, 0, len(generated.Items))
	for _, def := range generated.Items {
		maxRetries := settings.DefaultMaxRetries
		if def.MaxRetries != nil {
			maxRetries = *def.MaxRetries
		}
		items = append(items, model.ActivityItem{
			ActivityType:             def.ActivityType,
			MaxRetries:               maxRetries,
			AttemptedRetries:         0,
			Status:                   model.ItemNotTerminated,
			Position:                 def.QuestionConfig.Order,
			QuestionConfig:           datatypes.NewJSONType(def.QuestionConfig),
			QuestionEvaluationConfig: datatypes.NewJSONType(def.QuestionEvaluationConfig),
		})
	}

	if err := s.ActivityRepo.CreateWithItems(ctx, activity, items); err != nil {
		release()
		return nil, classifyStorageError(err)
	}

	monitoring.ActivitiesCreated.Inc()
	span.SetAttributes(attribute.String("activity.id", activity.ID), attribute.Int("activity.items", len(items)))
	logger.Log.Info("activity created",
		zap.String("activity_id", activity.ID),
		zap.String("user_id", userID),
		zap.Int("items", len(items)))
	return activity, nil
}

func (s *ActivityService) takeQuota(ctx context.Context, userID string, limit int) (bool, error) {
	if limit <= 0 || !s.QuotaRepo.Enabled() {
		return false, nil
	}
	n, err := s.QuotaRepo.IncrementDaily(ctx, userID)
	if err != nil {
		// 配额计数失败不阻塞生成
		logger.Ctx(ctx).Warn("generation quota check failed", zap.String("user_id", userID), zap.Error(err))
		return false, nil
	}
	if n > int64(limit) {
		if err := s.QuotaRepo.ReleaseDaily(ctx, userID); err != nil {
			logger.Ctx(ctx).Warn("failed to release generation quota", zap.String("user_id", userID), zap.Error(err))
		}
		return false, util.ErrGenerationLimit
	}
	return true, nil
}

// ValidateGeneratedActivity rejects generator output that cannot be stored
// as a well-formed activity.
func ValidateGeneratedActivity(g *model.GeneratedActivity) error {
	if g == nil || len(g.Items) == 0 {
		return errors.New("generated activity has no items")
	}
	seen := make(map[int]bool, len(g.Items))
	for i, def := range g.Items {
		if !def.ActivityType.Valid() {
			return fmt.Errorf("item %d: unknown activity type %q", i, def.ActivityType)
		}
		if def.QuestionConfig.ActivityType != def.ActivityType || def.QuestionEvaluationConfig.ActivityType != def.ActivityType {
			return fmt.Errorf("item %d: payload type does not match %q", i, def.ActivityType)
		}
		if err := def.QuestionConfig.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		if err := def.QuestionEvaluationConfig.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		if def.MaxRetries != nil && *def.MaxRetries < 0 {
			return fmt.Errorf("item %d: negative max_retries", i)
		}
		if seen[def.QuestionConfig.Order] {
			return fmt.Errorf("item %d: duplicate order %d", i, def.QuestionConfig.Order)
		}
		seen[def.QuestionConfig.Order] = true
	}
	return nil
}

// StartActivity moves an IDLE activity to ONGOING and returns the first item
// still to be answered. Starting an ONGOING activity again is allowed.
func (s *ActivityService) StartActivity(ctx context.Context, userID, activityID string) (*model.ActivityItem, error) {
	ctx, span := tracing.Tracer.Start(ctx, "ActivityService.StartActivity")
	defer span.End()
	span.SetAttributes(attribute.String("activity.id", activityID))

	var next *model.ActivityItem
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.ActivityRepo.WithTx(tx)

		activity, err := repo.LockActivity(ctx, activityID)
		if err != nil {
			return err
		}
		if activity == nil {
			return util.ErrActivityNotFound
		}
		if activity.UserID != userID {
			return util.ErrPermissionDenied
		}
		if activity.Status == model.ActivityCompleted {
			return util.ErrActivityCompleted
		}

		if _, err := repo.AdvanceActivityStatus(ctx, activityID, model.ActivityOngoing); err != nil {
			return err
		}

		next, err = repo.FindNextPendingItem(ctx, activityID)
		if err != nil {
			return err
		}
		if next == nil {
			return util.ErrNoPendingItem
		}
		return nil
	})
	if err != nil {
		return nil, classifyStorageError(err)
	}
	return next, nil
}

func (s *ActivityService) ListActivities(ctx context.Context, userID string) ([]model.Activity, error) {
	activities, err := s.ActivityRepo.ListActivitiesByUser(ctx, userID)
	if err != nil {
		return nil, classifyStorageError(err)
	}
	return activities, nil
}

func (s *ActivityService) GetActivityItem(ctx context.Context, userID, activityID, itemID string) (*model.ActivityItem, error) {
	if _, err := s.ownedActivity(ctx, userID, activityID); err != nil {
		return nil, err
	}
	item, err := s.ActivityRepo.FindItem(ctx, activityID, itemID)
	if err != nil {
		return nil, classifyStorageError(err)
	}
	if item == nil {
		return nil, util.ErrActivityItemNotFound
	}
	return item, nil
}

func (s *ActivityService) GetActivityDetails(ctx context.Context, userID, activityID string) (*model.ActivityDetails, error) {
	if _, err := s.ownedActivity(ctx, userID, activityID); err != nil {
		return nil, err
	}
	details, err := s.ActivityRepo.GetActivityDetails(ctx, activityID)
	if err != nil {
		return nil, classifyStorageError(err)
	}
	if details == nil {
		return nil, util.ErrActivityNotFound
	}
	return details, nil
}

func (s *ActivityService) ownedActivity(ctx context.Context, userID, activityID string) (*model.Activity, error) {
	activity, err := s.ActivityRepo.FindActivityByID(ctx, activityID)
	if err != nil {
		return nil, classifyStorageError(err)
	}
	if activity == nil {
		return nil, util.ErrActivityNotFound
	}
	if activity.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	return activity, nil
}

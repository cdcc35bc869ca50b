package service

import (
	"context"
	"errors"
	"net/http"
	"sia_backend/internal/model"
	"sia_backend/internal/repository"
	"sia_backend/internal/util"
	"sia_backend/pkg/database"
	"sia_backend/pkg/logger"
	"sia_backend/pkg/monitoring"
	"sia_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 死锁或序列化冲突时整笔事务重跑的次数上限
const maxSubmitAttempts = 3

// SubmitAnswerRequest is one patient submission for an item.
type SubmitAnswerRequest struct {
	ActivityType model.ActivityType  `json:"activity_type" binding:"required"`
	Answer       model.AnswerPayload `json:"answer"`
	Skip         bool                `json:"skip"`
	// IsCorrect is the caller's verdict. When absent the configured grader decides.
	IsCorrect *bool `json:"is_correct"`
}

type AnswerResult struct {
	NextItemID       *string                  `json:"next_item_id"`
	Hints            []model.Hint             `json:"hints"`
	SuccessVerdict   bool                     `json:"success_verdict"`
	ActivityComplete bool                     `json:"activity_complete"`
	ActivityType     model.ActivityType       `json:"activity_type"`
	ItemStatus       model.ActivityItemStatus `json:"item_status"`
	AttemptedRetries int                      `json:"attempted_retries"`
}

type AnswerService struct {
	DB           *gorm.DB
	ActivityRepo *repository.ActivityRepository
	Grader       Grader
	HintGen      HintGenerator
}

func NewAnswerService(db *gorm.DB, activityRepo *repository.ActivityRepository, grader Grader, hintGen HintGenerator) *AnswerService {
	return &AnswerService{
		DB:           db,
		ActivityRepo: activityRepo,
		Grader:       grader,
		HintGen:      hintGen,
	}
}

// verdict is the grading outcome fixed before the transaction starts.
type verdict struct {
	isCorrect      bool
	isIntelligible *bool
}

// SubmitAnswer records one submission and advances the item and activity
// state. All writes happen in a single transaction that holds the activity
// row lock, so submissions on the same activity are serialised.
func (s *AnswerService) SubmitAnswer(ctx context.Context, userID, activityID, itemID string, req *SubmitAnswerRequest) (*AnswerResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "AnswerService.SubmitAnswer")
	defer span.End()
	span.SetAttributes(
		attribute.String("activity.id", activityID),
		attribute.String("activity_item.id", itemID),
		attribute.Bool("answer.skip", req.Skip),
	)

	if err := normalizeAnswerRequest(req); err != nil {
		return nil, err
	}

	v, err := s.decideVerdict(ctx, userID, activityID, itemID, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var (
		result      *AnswerResult
		completedBy bool
		item        *model.ActivityItem
	)
	for attempt := 1; ; attempt++ {
		result, item, completedBy, err = s.submitInTx(ctx, userID, activityID, itemID, req, v)
		if err == nil || attempt >= maxSubmitAttempts || !database.IsRetryable(err) {
			break
		}
		logger.Ctx(ctx).Warn("retrying answer transaction",
			zap.String("activity_id", activityID),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, classifyStorageError(err)
	}

	monitoring.AnswersSubmitted.WithLabelValues(string(result.ItemStatus)).Inc()
	if completedBy {
		monitoring.ActivitiesCompleted.Inc()
		logger.Log.Info("activity completed", zap.String("activity_id", activityID), zap.String("user_id", userID))
	}
	span.SetAttributes(attribute.String("activity_item.status", string(result.ItemStatus)))

	if len(result.Hints) > 0 && s.HintGen != nil {
		result.Hints = s.appendGeneratedHint(ctx, item, req, result.Hints)
	}
	return result, nil
}

func normalizeAnswerRequest(req *SubmitAnswerRequest) error {
	if !req.ActivityType.Valid() {
		return util.ErrInvalidAnswer
	}
	if req.Answer.ActivityType == "" {
		req.Answer.ActivityType = req.ActivityType
	}
	if req.Answer.ActivityType != req.ActivityType {
		return util.ErrInvalidAnswer
	}
	if req.Skip && req.Answer.FreeTextAnswer == nil {
		req.Answer.FreeTextAnswer = &model.FreeTextAnswer{}
	}
	if err := req.Answer.Validate(); err != nil {
		return errors.Join(util.ErrInvalidAnswer, err)
	}
	return nil
}

// decideVerdict settles is_correct before any lock is taken. The grader may
// be a slow remote call and must not run while rows are locked.
func (s *AnswerService) decideVerdict(ctx context.Context, userID, activityID, itemID string, req *SubmitAnswerRequest) (verdict, error) {
	if req.IsCorrect != nil {
		return verdict{isCorrect: *req.IsCorrect}, nil
	}
	if req.Skip || s.Grader == nil {
		return verdict{}, nil
	}

	item, err := s.loadOwnedItem(ctx, userID, activityID, itemID)
	if err != nil {
		return verdict{}, err
	}
	if item.Status.IsTerminal() {
		return verdict{}, util.ErrItemTerminated
	}

	res, err := s.Grader.Grade(ctx, GradeRequest{
		ActivityType: item.ActivityType,
		Prompt:       item.QuestionConfig.Data().PromptText(),
		Expected:     item.QuestionEvaluationConfig.Data().ExpectedText(),
		Response:     req.Answer.ResponseText(),
	})
	if err != nil {
		monitoring.UpstreamFailures.WithLabelValues("grader").Inc()
		return verdict{}, errors.Join(util.ErrUpstreamFailure, err)
	}
	return verdict{isCorrect: res.IsCorrect, isIntelligible: res.IsIntelligible}, nil
}

func (s *AnswerService) loadOwnedItem(ctx context.Context, userID, activityID, itemID string) (*model.ActivityItem, error) {
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
	item, err := s.ActivityRepo.FindItem(ctx, activityID, itemID)
	if err != nil {
		return nil, classifyStorageError(err)
	}
	if item == nil {
		return nil, util.ErrActivityItemNotFound
	}
	return item, nil
}

func (s *AnswerService) submitInTx(ctx context.Context, userID, activityID, itemID string, req *SubmitAnswerRequest, v verdict) (*AnswerResult, *model.ActivityItem, bool, error) {
	var (
		result      *AnswerResult
		refreshed   *model.ActivityItem
		completedBy bool
	)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.ActivityRepo.WithTx(tx)

		// 锁顺序：先活动，后题目
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

		item, err := repo.LockItem(ctx, activityID, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return util.ErrActivityItemNotFound
		}
		if item.Status.IsTerminal() {
			return util.ErrItemTerminated
		}
		if item.ActivityType != req.ActivityType {
			return util.ErrInvalidAnswer
		}
		previous := item.Status

		if err := repo.IncrementAttempts(ctx, item.ID); err != nil {
			return err
		}

		answer := &model.ActivityAnswer{
			ActivityItemID: item.ID,
			ActivityType:   req.ActivityType,
			Answer:         datatypes.NewJSONType(req.Answer),
			Skip:           req.Skip,
			IsCorrect:      v.isCorrect,
			IsIntelligible: v.isIntelligible,
		}
		if err := repo.CreateAnswer(ctx, answer); err != nil {
			return err
		}

		refreshed, err = repo.FindItem(ctx, activityID, item.ID)
		if err != nil {
			return err
		}
		if refreshed == nil {
			return util.ErrActivityItemNotFound
		}

		if next := DecideNewStatus(refreshed, v.isCorrect, req.Skip); next != nil && *next != previous {
			if err := repo.UpdateItemStatus(ctx, refreshed.ID, *next); err != nil {
				return err
			}
			refreshed.Status = *next
		}

		items, err := repo.ListItems(ctx, activityID)
		if err != nil {
			return err
		}
		complete := IsActivityComplete(items)
		if complete && activity.Status != model.ActivityCompleted {
			completedBy, err = repo.AdvanceActivityStatus(ctx, activityID, model.ActivityCompleted)
			if err != nil {
				return err
			}
		}

		result = &AnswerResult{
			Hints:            []model.Hint{},
			SuccessVerdict:   v.isCorrect,
			ActivityComplete: complete,
			ActivityType:     refreshed.ActivityType,
			ItemStatus:       refreshed.Status,
			AttemptedRetries: refreshed.AttemptedRetries,
		}
		if advancesToNextItem(refreshed.Status) {
			next, err := repo.FindNextPendingItem(ctx, activityID)
			if err != nil {
				return err
			}
			if next != nil {
				result.NextItemID = &next.ID
			}
		}
		if hintsVisible(refreshed.Status, v.isCorrect) {
			result.Hints = append(result.Hints, refreshed.Hints()...)
		}
		return nil
	})
	if err != nil {
		return nil, nil, false, err
	}
	return result, refreshed, completedBy, nil
}

// appendGeneratedHint adds one model-written hint. The submission has already
// committed, so a failure only drops the extra hint.
func (s *AnswerService) appendGeneratedHint(ctx context.Context, item *model.ActivityItem, req *SubmitAnswerRequest, hints []model.Hint) []model.Hint {
	hint, err := s.HintGen.GenerateHint(ctx, HintRequest{
		ActivityType:  item.ActivityType,
		Prompt:        item.QuestionConfig.Data().PromptText(),
		Expected:      item.QuestionEvaluationConfig.Data().ExpectedText(),
		Response:      req.Answer.ResponseText(),
		PreviousHints: hints,
	})
	if err != nil {
		monitoring.UpstreamFailures.WithLabelValues("hint_generator").Inc()
		logger.Ctx(ctx).Warn("hint generation failed",
			zap.String("activity_item_id", item.ID),
			zap.Error(err))
		return hints
	}
	return append(hints, *hint)
}

// classifyStorageError tags errors that are not already domain errors as
// storage failures.
func classifyStorageError(err error) error {
	if err == nil || util.StatusFor(err) != http.StatusInternalServerError || errors.Is(err, util.ErrUpstreamFailure) || errors.Is(err, util.ErrStorageFailure) {
		return err
	}
	return errors.Join(util.ErrStorageFailure, err)
}

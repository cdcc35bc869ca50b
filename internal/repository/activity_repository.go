package repository

import (
	"context"
	"errors"
	"sia_backend/internal/model"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActivityRepository is the query/read layer over activities, their items and
// answers, plus the narrow writes the answer handler needs. Lookups return
// (nil, nil) when nothing matches.
type ActivityRepository struct {
	DB *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{DB: db}
}

// WithTx returns a repository whose reads and writes run inside tx.
func (r *ActivityRepository) WithTx(tx *gorm.DB) *ActivityRepository {
	return &ActivityRepository{DB: tx}
}

func notFoundAsNil(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

// CreateWithItems 在同一事务中写入活动及其全部题目
func (r *ActivityRepository) CreateWithItems(ctx context.Context, activity *model.Activity, items []model.ActivityItem) error {
	if len(items) == 0 {
		return errors.New("activity must be created with at least one item")
	}
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(activity).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].ActivityID = activity.ID
		}
		return tx.Create(&items).Error
	})
}

func (r *ActivityRepository) FindActivityByID(ctx context.Context, id string) (*model.Activity, error) {
	var a model.Activity
	if err := r.DB.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &a, nil
}

func (r *ActivityRepository) ListActivitiesByUser(ctx context.Context, userID string) ([]model.Activity, error) {
	activities := []model.Activity{}
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&activities).Error
	return activities, err
}

// FindItem looks an item up by id scoped to its activity, so an id that
// belongs to another activity is indistinguishable from a missing one.
func (r *ActivityRepository) FindItem(ctx context.Context, activityID, itemID string) (*model.ActivityItem, error) {
	var item model.ActivityItem
	err := r.DB.WithContext(ctx).
		Where("id = ? AND activity_id = ?", itemID, activityID).
		First(&item).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &item, nil
}

func (r *ActivityRepository) ListItems(ctx context.Context, activityID string) ([]model.ActivityItem, error) {
	items := []model.ActivityItem{}
	err := r.DB.WithContext(ctx).
		Where("activity_id = ?", activityID).
		Order("created_at ASC").
		Order("position ASC").
		Find(&items).Error
	return items, err
}

// FindNextPendingItem returns the lowest-order NOT_TERMINATED item.
func (r *ActivityRepository) FindNextPendingItem(ctx context.Context, activityID string) (*model.ActivityItem, error) {
	var item model.ActivityItem
	err := r.DB.WithContext(ctx).
		Where("activity_id = ? AND status = ?", activityID, model.ItemNotTerminated).
		Order("position ASC").
		Order("created_at ASC").
		First(&item).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &item, nil
}

func (r *ActivityRepository) ListAnswersByItem(ctx context.Context, itemID string) ([]model.ActivityAnswer, error) {
	answers := []model.ActivityAnswer{}
	err := r.DB.WithContext(ctx).
		Where("activity_item_id = ?", itemID).
		Order("attempted_at ASC").
		Find(&answers).Error
	return answers, err
}

// GetActivityDetails loads the full aggregate. Answers are grouped by item in
// item order, oldest attempt first within each item.
func (r *ActivityRepository) GetActivityDetails(ctx context.Context, activityID string) (*model.ActivityDetails, error) {
	activity, err := r.FindActivityByID(ctx, activityID)
	if err != nil || activity == nil {
		return nil, err
	}

	items, err := r.ListItems(ctx, activityID)
	if err != nil {
		return nil, err
	}

	details := &model.ActivityDetails{
		Activity:        activity,
		ActivityItems:   items,
		ActivityAnswers: []model.ActivityAnswer{},
	}
	if len(items) == 0 {
		return details, nil
	}

	itemIDs := make([]string, len(items))
	rank := make(map[string]int, len(items))
	for i, item := range items {
		itemIDs[i] = item.ID
		rank[item.ID] = i
	}

	var answers []model.ActivityAnswer
	if err := r.DB.WithContext(ctx).
		Where("activity_item_id IN ?", itemIDs).
		Order("attempted_at ASC").
		Find(&answers).Error; err != nil {
		return nil, err
	}
	sort.SliceStable(answers, func(i, j int) bool {
		return rank[answers[i].ActivityItemID] < rank[answers[j].ActivityItemID]
	})
	details.ActivityAnswers = append(details.ActivityAnswers, answers...)
	return details, nil
}

// LockActivity reads the activity with a row lock held until the enclosing
// transaction ends. Must be called on a repository bound with WithTx.
func (r *ActivityRepository) LockActivity(ctx context.Context, id string) (*model.Activity, error) {
	var a model.Activity
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &a, nil
}

func (r *ActivityRepository) LockItem(ctx context.Context, activityID, itemID string) (*model.ActivityItem, error) {
	var item model.ActivityItem
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND activity_id = ?", itemID, activityID).
		First(&item).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &item, nil
}

func (r *ActivityRepository) IncrementAttempts(ctx context.Context, itemID string) error {
	res := r.DB.WithContext(ctx).
		Model(&model.ActivityItem{}).
		Where("id = ?", itemID).
		UpdateColumn("attempted_retries", gorm.Expr("attempted_retries + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return errors.New("increment attempts: item row not updated")
	}
	return nil
}

// UpdateItemStatus moves a NOT_TERMINATED item to status. Terminal items are
// never rewritten.
func (r *ActivityRepository) UpdateItemStatus(ctx context.Context, itemID string, status model.ActivityItemStatus) error {
	res := r.DB.WithContext(ctx).
		Model(&model.ActivityItem{}).
		Where("id = ? AND status = ?", itemID, model.ItemNotTerminated).
		UpdateColumn("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return errors.New("update item status: item is not in NOT_TERMINATED")
	}
	return nil
}

// AdvanceActivityStatus moves the activity forward to status if its current
// status ranks lower. It reports whether a row changed.
func (r *ActivityRepository) AdvanceActivityStatus(ctx context.Context, activityID string, status model.ActivityStatus) (bool, error) {
	var lower []model.ActivityStatus
	for _, s := range []model.ActivityStatus{model.ActivityIdle, model.ActivityOngoing, model.ActivityCompleted} {
		if s.Rank() < status.Rank() {
			lower = append(lower, s)
		}
	}
	if len(lower) == 0 {
		return false, nil
	}
	res := r.DB.WithContext(ctx).
		Model(&model.Activity{}).
		Where("id = ? AND status IN ?", activityID, lower).
		Update("status", status)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ActivityRepository) CreateAnswer(ctx context.Context, answer *model.ActivityAnswer) error {
	return r.DB.WithContext(ctx).Create(answer).Error
}

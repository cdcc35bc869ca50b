package repository

import (
	"context"
	"testing"
	"time"

	"sia_backend/internal/model"
	"sia_backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func TestActivityRepository_CreateWithItems(t *testing.T) {
	db := testutil.DB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "a@example.com")

	activity := &model.Activity{UserID: user.ID, Status: model.ActivityIdle}
	items := []model.ActivityItem{testutil.FreeTextItem(0, 3), testutil.FreeTextItem(1, 3)}
	require.NoError(t, repo.CreateWithItems(ctx, activity, items))
	require.NotEmpty(t, activity.ID)

	got, err := repo.ListItems(ctx, activity.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Position)
	assert.Equal(t, "Question 1?", got[0].QuestionConfig.Data().PromptText())
	assert.Equal(t, "Answer 2", got[1].QuestionEvaluationConfig.Data().ExpectedText())
	assert.Len(t, got[1].Hints(), 1)
}

func TestActivityRepository_CreateWithItemsRequiresItems(t *testing.T) {
	db := testutil.DB(t)
	repo := NewActivityRepository(db)
	user := testutil.SeedUser(t, db, "a@example.com")

	err := repo.CreateWithItems(context.Background(), &model.Activity{UserID: user.ID, Status: model.ActivityIdle}, nil)
	require.Error(t, err)

	var n int64
	require.NoError(t, db.Model(&model.Activity{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestActivityRepository_FindMissingReturnsNil(t *testing.T) {
	db := testutil.DB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()

	a, err := repo.FindActivityByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, a)

	item, err := repo.FindItem(ctx, "missing", "missing")
	require.NoError(t, err)
	assert.Nil(t, item)

	details, err := repo.GetActivityDetails(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, details)
}

func TestActivityRepository_FindItemScopedToActivity(t *testing.T) {
	db := testutil.DB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "a@example.com")
	a1, items1 := testutil.SeedActivity(t, db, user.ID, 1, 3)
	a2, _ := testutil.SeedActivity(t, db, user.ID, 1, 3)

	item, err := repo.FindItem(ctx, a1.ID, items1[0].ID)
	require.NoError(t, err)
	require.NotNil(t, item)

	item, err = repo.FindItem(ctx, a2.ID, items1[0].ID)
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestActivityRepository_ListActivitiesByUserNewestFirst(t *testing.T) {
	db := testutil.DB(t)
	repo := NewActivityRepository(db)
	user := testutil.SeedUser(t, db, "a@example.com")
	other := testutil.SeedUser(t, db, "b@example.com")

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		a := &model.Activity{UserID: user.ID, Status: model.ActivityIdle}
		a.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, db.Create(a).Error)
	}
	testutil.SeedActivity(t, db, other.ID, 1, 3)

	list, err := repo.ListActivitiesByUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
	assert.True(t, list[1].CreatedAt.After(list[2].CreatedAt))

	empty, err := repo.ListActivitiesByUser(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestActivityRepository_FindNextPendingItem(t *testing.T) {
	db := testutil.DB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "a@example.com")
	a, items := testutil.SeedActivity(t, db, user.ID, 3, 3)

	next, err := repo.FindNextPendingItem(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, items[0].ID, next.ID)

	require.NoError(t, repo.UpdateItemStatus(ctx, items[0].ID, model.ItemSuccess))
	next, err = repo.FindNextPendingItem(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, items[1].ID, next.ID)

	require.NoError(t, repo.UpdateItemStatus(ctx, items[1].ID, model.ItemSkip))
	require.NoError(t, repo.UpdateItemStatus(ctx, items[2].ID, model.ItemRetriesExhaust))
	next, err = repo.FindNextPendingItem(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestActivityRepository_UpdateItemStatusNeverRewritesTerminal(t *testing.T) {
	db := testutil.DB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "a@example.com")
	_, items := testutil.SeedActivity(t, db, user.ID, 1, 3)

	require.NoError(t, repo.UpdateItemStatus(ctx, items[0].ID, model.ItemSuccess))
	require.Error(t, repo.UpdateItemStatus(ctx, items[0].ID, model.ItemSkip))
	assert.Equal(t, model.ItemSuccess, testutil.ReloadItem(t, db, items[0].ID).Status)
}

func TestActivityRepository_IncrementAttempts(t *testing.T) {
	db := testutil.DB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "a@example.com")
	_, items := testutil.SeedActivity(t, db, user.ID, 1, 3)

	require.NoError(t, repo.IncrementAttempts(ctx, items[0].ID))
	require.NoError(t, repo.IncrementAttempts(ctx, items[0].ID))
	assert.Equal(t, 2, testutil.ReloadItem(t, db, items[0].ID).AttemptedRetries)

	require.Error(t, repo.IncrementAttempts(ctx, "missing"))
}

func TestActivityRepository_AdvanceActivityStatusIsMonotonic(t *testing.T) {
	db := testutil.DB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "a@example.com")
	a, _ := testutil.SeedActivity(t, db, user.ID, 1, 3)

	changed, err := repo.AdvanceActivityStatus(ctx, a.ID, model.ActivityOngoing)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.AdvanceActivityStatus(ctx, a.ID, model.ActivityOngoing)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = repo.AdvanceActivityStatus(ctx, a.ID, model.ActivityCompleted)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.AdvanceActivityStatus(ctx, a.ID, model.ActivityOngoing)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = repo.AdvanceActivityStatus(ctx, a.ID, model.ActivityIdle)
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Equal(t, model.ActivityCompleted, testutil.ReloadActivity(t, db, a.ID).Status)
}

func TestActivityRepository_GetActivityDetails(t *testing.T) {
	db := testutil.DB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "a@example.com")
	a, items := testutil.SeedActivity(t, db, user.ID, 2, 3)

	base := time.Now().Add(-time.Minute)
	answer := func(itemID, text string, at time.Time) {
		require.NoError(t, repo.CreateAnswer(ctx, &model.ActivityAnswer{
			ActivityItemID: itemID,
			ActivityType:   model.ActivityTypeFreeText,
			Answer: datatypes.NewJSONType(model.AnswerPayload{
				ActivityType:   model.ActivityTypeFreeText,
				FreeTextAnswer: &model.FreeTextAnswer{Text: text},
			}),
			AttemptedAt: at,
		}))
	}
	answer(items[1].ID, "second item", base)
	answer(items[0].ID, "first try", base.Add(time.Second))
	answer(items[0].ID, "second try", base.Add(2*time.Second))

	details, err := repo.GetActivityDetails(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, details)
	assert.Equal(t, a.ID, details.Activity.ID)
	require.Len(t, details.ActivityItems, 2)
	require.Len(t, details.ActivityAnswers, 3)
	assert.Equal(t, "first try", details.ActivityAnswers[0].Answer.Data().ResponseText())
	assert.Equal(t, "second try", details.ActivityAnswers[1].Answer.Data().ResponseText())
	assert.Equal(t, "second item", details.ActivityAnswers[2].Answer.Data().ResponseText())

	answers, err := repo.ListAnswersByItem(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Len(t, answers, 2)
}

func TestActivityRepository_WithTxRollsBack(t *testing.T) {
	db := testutil.DB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "a@example.com")
	a, items := testutil.SeedActivity(t, db, user.ID, 1, 3)

	err := db.Transaction(func(tx *gorm.DB) error {
		txRepo := repo.WithTx(tx)
		locked, err := txRepo.LockActivity(ctx, a.ID)
		require.NoError(t, err)
		require.NotNil(t, locked)
		item, err := txRepo.LockItem(ctx, a.ID, items[0].ID)
		require.NoError(t, err)
		require.NotNil(t, item)
		require.NoError(t, txRepo.IncrementAttempts(ctx, item.ID))
		return gorm.ErrInvalidTransaction
	})
	require.ErrorIs(t, err, gorm.ErrInvalidTransaction)
	assert.Equal(t, 0, testutil.ReloadItem(t, db, items[0].ID).AttemptedRetries)
}

package service

import (
	"context"
	"errors"
	"testing"

	"sia_backend/internal/model"
	"sia_backend/internal/repository"
	"sia_backend/internal/testutil"
	"sia_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubGenerator struct {
	out *model.GeneratedActivity
	err error
}

func (g stubGenerator) Generate(ctx context.Context, req ContentRequest) (*model.GeneratedActivity, error) {
	return g.out, g.err
}

func newActivityService(t *testing.T, db *gorm.DB, gen ContentGenerator) *ActivityService {
	t.Helper()
	if gen == nil {
		static, err := NewStaticContentGenerator("")
		require.NoError(t, err)
		gen = static
	}
	return NewActivityService(
		db,
		repository.NewActivityRepository(db),
		repository.NewProfileRepository(db, nil),
		repository.NewQuotaRepository(nil),
		gen,
		GenerationSettings{DefaultMaxRetries: 2, ItemsPerActivity: 3},
	)
}

func TestCreateActivity_FromStaticBank(t *testing.T) {
	db := testutil.DB(t)
	svc := newActivityService(t, db, nil)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "a@example.com")
	testutil.SeedProfile(t, db, user.ID)

	activity, err := svc.CreateActivity(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ActivityIdle, activity.Status)
	require.NotNil(t, activity.GeneratedTitle)
	assert.Equal(t, "Daily routine naming", *activity.GeneratedTitle)

	items, err := svc.ActivityRepo.ListItems(ctx, activity.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for i, item := range items {
		assert.Equal(t, i, item.Position)
		assert.Equal(t, 2, item.MaxRetries)
		assert.Zero(t, item.AttemptedRetries)
		assert.Equal(t, model.ItemNotTerminated, item.Status)
	}
	assert.Equal(t, "toothbrush", items[0].QuestionEvaluationConfig.Data().ExpectedText())
}

func TestCreateActivity_RequiresProfile(t *testing.T) {
	db := testutil.DB(t)
	svc := newActivityService(t, db, nil)
	user := testutil.SeedUser(t, db, "a@example.com")

	_, err := svc.CreateActivity(context.Background(), user.ID)
	require.ErrorIs(t, err, util.ErrProfileNotFound)
}

func TestCreateActivity_GeneratorFailures(t *testing.T) {
	maxRetries := -1
	bad := freeTextDefinition(0, "Q?", "A", nil, &maxRetries)
	dup := freeTextDefinition(0, "Q?", "A", nil, nil)
	noPrompt := freeTextDefinition(1, "", "A", nil, nil)

	tests := []struct {
		name string
		gen  stubGenerator
	}{
		{"generator error", stubGenerator{err: errors.New("boom")}},
		{"no items", stubGenerator{out: &model.GeneratedActivity{Title: "t"}}},
		{"negative retries", stubGenerator{out: &model.GeneratedActivity{Items: []model.ActivityItemDefinition{bad}}}},
		{"duplicate order", stubGenerator{out: &model.GeneratedActivity{Items: []model.ActivityItemDefinition{dup, dup}}}},
		{"missing prompt", stubGenerator{out: &model.GeneratedActivity{Items: []model.ActivityItemDefinition{noPrompt}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.DB(t)
			svc := newActivityService(t, db, tt.gen)
			user := testutil.SeedUser(t, db, "a@example.com")
			testutil.SeedProfile(t, db, user.ID)

			_, err := svc.CreateActivity(context.Background(), user.ID)
			require.ErrorIs(t, err, util.ErrUpstreamFailure)

			var n int64
			require.NoError(t, db.Model(&model.Activity{}).Count(&n).Error)
			assert.Zero(t, n)
		})
	}
}

func TestCreateActivity_ExplicitMaxRetriesKept(t *testing.T) {
	zero := 0
	gen := stubGenerator{out: &model.GeneratedActivity{
		Title: "t",
		Items: []model.ActivityItemDefinition{freeTextDefinition(0, "Q?", "A", nil, &zero)},
	}}
	db := testutil.DB(t)
	svc := newActivityService(t, db, gen)
	user := testutil.SeedUser(t, db, "a@example.com")
	testutil.SeedProfile(t, db, user.ID)

	activity, err := svc.CreateActivity(context.Background(), user.ID)
	require.NoError(t, err)
	items, err := svc.ActivityRepo.ListItems(context.Background(), activity.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Zero(t, items[0].MaxRetries)
}

func TestUpdateGenerationConfig(t *testing.T) {
	db := testutil.DB(t)
	svc := newActivityService(t, db, nil)
	user := testutil.SeedUser(t, db, "a@example.com")
	testutil.SeedProfile(t, db, user.ID)

	svc.UpdateGenerationConfig(GenerationSettings{DefaultMaxRetries: 4, ItemsPerActivity: 1})
	activity, err := svc.CreateActivity(context.Background(), user.ID)
	require.NoError(t, err)
	items, err := svc.ActivityRepo.ListItems(context.Background(), activity.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 4, items[0].MaxRetries)
}

func TestStartActivity(t *testing.T) {
	db := testutil.DB(t)
	svc := newActivityService(t, db, nil)
	ctx := context.Background()
	owner := testutil.SeedUser(t, db, "a@example.com")
	other := testutil.SeedUser(t, db, "b@example.com")
	a, items := testutil.SeedActivity(t, db, owner.ID, 2, 3)

	_, err := svc.StartActivity(ctx, owner.ID, "missing")
	assert.ErrorIs(t, err, util.ErrActivityNotFound)

	_, err = svc.StartActivity(ctx, other.ID, a.ID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
	assert.Equal(t, model.ActivityIdle, testutil.ReloadActivity(t, db, a.ID).Status)

	item, err := svc.StartActivity(ctx, owner.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, items[0].ID, item.ID)
	assert.Equal(t, model.ActivityOngoing, testutil.ReloadActivity(t, db, a.ID).Status)

	// restarting an ongoing activity resumes at the first open item
	require.NoError(t, db.Model(&model.ActivityItem{}).Where("id = ?", items[0].ID).Update("status", model.ItemSuccess).Error)
	item, err = svc.StartActivity(ctx, owner.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, items[1].ID, item.ID)

	require.NoError(t, db.Model(&model.ActivityItem{}).Where("id = ?", items[1].ID).Update("status", model.ItemSkip).Error)
	_, err = svc.StartActivity(ctx, owner.ID, a.ID)
	assert.ErrorIs(t, err, util.ErrNoPendingItem)

	require.NoError(t, db.Model(&model.Activity{}).Where("id = ?", a.ID).Update("status", model.ActivityCompleted).Error)
	_, err = svc.StartActivity(ctx, owner.ID, a.ID)
	assert.ErrorIs(t, err, util.ErrActivityCompleted)
}

func TestActivityReadsEnforceOwnership(t *testing.T) {
	db := testutil.DB(t)
	svc := newActivityService(t, db, nil)
	ctx := context.Background()
	owner := testutil.SeedUser(t, db, "a@example.com")
	other := testutil.SeedUser(t, db, "b@example.com")
	a, items := testutil.SeedActivity(t, db, owner.ID, 2, 3)

	list, err := svc.ListActivities(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = svc.ListActivities(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	item, err := svc.GetActivityItem(ctx, owner.ID, a.ID, items[1].ID)
	require.NoError(t, err)
	assert.Equal(t, items[1].ID, item.ID)

	_, err = svc.GetActivityItem(ctx, owner.ID, a.ID, "missing")
	assert.ErrorIs(t, err, util.ErrActivityItemNotFound)

	_, err = svc.GetActivityItem(ctx, other.ID, a.ID, items[1].ID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	details, err := svc.GetActivityDetails(ctx, owner.ID, a.ID)
	require.NoError(t, err)
	assert.Len(t, details.ActivityItems, 2)
	assert.Empty(t, details.ActivityAnswers)

	_, err = svc.GetActivityDetails(ctx, other.ID, a.ID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	_, err = svc.GetActivityDetails(ctx, owner.ID, "missing")
	assert.ErrorIs(t, err, util.ErrActivityNotFound)
}

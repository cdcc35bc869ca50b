package service

import (
	"testing"

	"sia_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideNewStatus(t *testing.T) {
	tests := []struct {
		name      string
		attempted int
		max       int
		correct   bool
		skip      bool
		want      *model.ActivityItemStatus
	}{
		{"skip wins over correct", 1, 3, true, true, statusPtr(model.ItemSkip)},
		{"skip on last attempt", 3, 3, false, true, statusPtr(model.ItemSkip)},
		{"correct", 1, 3, true, false, statusPtr(model.ItemSuccess)},
		{"correct on last attempt", 3, 3, true, false, statusPtr(model.ItemSuccess)},
		{"wrong with retries left", 1, 3, false, false, nil},
		{"wrong second of three", 2, 3, false, false, nil},
		{"wrong exhausts at max", 3, 3, false, false, statusPtr(model.ItemRetriesExhaust)},
		{"max one exhausts first wrong", 1, 1, false, false, statusPtr(model.ItemRetriesExhaust)},
		{"max zero exhausts first wrong", 1, 0, false, false, statusPtr(model.ItemRetriesExhaust)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &model.ActivityItem{AttemptedRetries: tt.attempted, MaxRetries: tt.max}
			got := DecideNewStatus(item, tt.correct, tt.skip)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestIsActivityComplete(t *testing.T) {
	items := func(statuses ...model.ActivityItemStatus) []model.ActivityItem {
		out := make([]model.ActivityItem, len(statuses))
		for i, s := range statuses {
			out[i].Status = s
		}
		return out
	}

	assert.False(t, IsActivityComplete(nil))
	assert.False(t, IsActivityComplete(items(model.ItemSuccess, model.ItemNotTerminated)))
	assert.True(t, IsActivityComplete(items(model.ItemSuccess, model.ItemSkip, model.ItemRetriesExhaust)))
	assert.True(t, IsActivityComplete(items(model.ItemRetriesExhaust)))
}

func TestAdvanceActivityStatus(t *testing.T) {
	s, changed := AdvanceActivityStatus(model.ActivityIdle, model.ActivityOngoing)
	assert.True(t, changed)
	assert.Equal(t, model.ActivityOngoing, s)

	s, changed = AdvanceActivityStatus(model.ActivityIdle, model.ActivityCompleted)
	assert.True(t, changed)
	assert.Equal(t, model.ActivityCompleted, s)

	s, changed = AdvanceActivityStatus(model.ActivityCompleted, model.ActivityOngoing)
	assert.False(t, changed)
	assert.Equal(t, model.ActivityCompleted, s)

	s, changed = AdvanceActivityStatus(model.ActivityOngoing, model.ActivityOngoing)
	assert.False(t, changed)
	assert.Equal(t, model.ActivityOngoing, s)
}

func TestHintsAndNextItemVisibility(t *testing.T) {
	assert.True(t, hintsVisible(model.ItemNotTerminated, false))
	assert.True(t, hintsVisible(model.ItemRetriesExhaust, false))
	assert.False(t, hintsVisible(model.ItemSkip, false))
	assert.False(t, hintsVisible(model.ItemSuccess, true))

	assert.True(t, advancesToNextItem(model.ItemSkip))
	assert.True(t, advancesToNextItem(model.ItemSuccess))
	assert.False(t, advancesToNextItem(model.ItemRetriesExhaust))
	assert.False(t, advancesToNextItem(model.ItemNotTerminated))
}

func statusPtr(s model.ActivityItemStatus) *model.ActivityItemStatus {
	return &s
}

package service

import "sia_backend/internal/model"

// DecideNewStatus returns the status an item moves to after a submission, or
// nil when it stays NOT_TERMINATED. item must already carry this submission's
// attempt increment.
func DecideNewStatus(item *model.ActivityItem, isCorrect, skip bool) *model.ActivityItemStatus {
	var s model.ActivityItemStatus
	switch {
	case skip:
		s = model.ItemSkip
	case isCorrect:
		s = model.ItemSuccess
	case item.AttemptedRetries >= item.MaxRetries:
		s = model.ItemRetriesExhaust
	default:
		return nil
	}
	return &s
}

// IsActivityComplete 所有题目均为终止状态时活动完成；空列表不算完成
func IsActivityComplete(items []model.ActivityItem) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if !item.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// AdvanceActivityStatus applies a forward-only move. It returns the resulting
// status and whether it changed.
func AdvanceActivityStatus(current, target model.ActivityStatus) (model.ActivityStatus, bool) {
	if target.Rank() > current.Rank() {
		return target, true
	}
	return current, false
}

// hintsVisible reports whether configured hints accompany a verdict.
func hintsVisible(status model.ActivityItemStatus, isCorrect bool) bool {
	if isCorrect {
		return false
	}
	return status == model.ItemNotTerminated || status == model.ItemRetriesExhaust
}

// advancesToNextItem reports whether the response should point at the next item.
func advancesToNextItem(status model.ActivityItemStatus) bool {
	return status == model.ItemSkip || status == model.ItemSuccess
}

package model

type ActivityStatus string

const (
	ActivityIdle      ActivityStatus = "IDLE"
	ActivityOngoing   ActivityStatus = "ONGOING"
	ActivityCompleted ActivityStatus = "COMPLETED"
)

// Rank orders activity statuses; a status may only be replaced by one of higher rank.
func (s ActivityStatus) Rank() int {
	switch s {
	case ActivityIdle:
		return 0
	case ActivityOngoing:
		return 1
	case ActivityCompleted:
		return 2
	}
	return -1
}

type ActivityItemStatus string

const (
	ItemNotTerminated  ActivityItemStatus = "NOT_TERMINATED"
	ItemRetriesExhaust ActivityItemStatus = "RETRIES_EXHAUST"
	ItemSkip           ActivityItemStatus = "SKIP"
	ItemSuccess        ActivityItemStatus = "SUCCESS"
)

// TerminalItemStatuses 终止状态集合
var TerminalItemStatuses = []ActivityItemStatus{ItemRetriesExhaust, ItemSkip, ItemSuccess}

func (s ActivityItemStatus) IsTerminal() bool {
	switch s {
	case ItemRetriesExhaust, ItemSkip, ItemSuccess:
		return true
	}
	return false
}

// ActivityType discriminates the polymorphic question / evaluation / answer payloads.
type ActivityType string

const (
	ActivityTypeFreeText ActivityType = "FREE_TEXT"
)

func (t ActivityType) Valid() bool {
	return t == ActivityTypeFreeText
}

type HintKind string

const (
	HintDescriptive HintKind = "descriptive"
	HintPhonetic    HintKind = "phonetic"
	HintGenerated   HintKind = "generated"
)

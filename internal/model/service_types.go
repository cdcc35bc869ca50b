package model

// ActivityDetails 活动聚合视图：活动 + 全部题目 + 全部作答记录
type ActivityDetails struct {
	Activity        *Activity        `json:"activity"`
	ActivityItems   []ActivityItem   `json:"activity_items"`
	ActivityAnswers []ActivityAnswer `json:"activity_answers"`
}

// ActivityItemDefinition is one generated item before it is persisted.
type ActivityItemDefinition struct {
	ActivityType             ActivityType             `json:"activity_type"`
	MaxRetries               *int                     `json:"max_retries,omitempty"`
	QuestionConfig           QuestionConfig           `json:"question_config"`
	QuestionEvaluationConfig QuestionEvaluationConfig `json:"question_evaluation_config"`
}

// GeneratedActivity 内容生成器的输出
type GeneratedActivity struct {
	Title string                   `json:"title"`
	Items []ActivityItemDefinition `json:"items"`
}

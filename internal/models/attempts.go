package models

import "time"

// UserAttempt is an immutable answer event. Rows are append-only; nothing in
// the application updates or deletes them.
type UserAttempt struct {
	ID              int       `json:"id"`
	UserID          int       `json:"user_id"`
	QuestionID      int       `json:"question_id"`
	SelectedOptions []int     `json:"selected_options"`
	IsCorrect       bool      `json:"is_correct"`
	TimeSpent       int       `json:"time_spent"` // seconds
	CreatedAt       time.Time `json:"created_at"`
}

// UserQuestionState holds per-(user, question) mutable flags. At most one row
// per pair, enforced by a unique constraint; writes are upserts.
type UserQuestionState struct {
	ID         int       `json:"id"`
	UserID     int       `json:"user_id"`
	QuestionID int       `json:"question_id"`
	IsUsed     bool      `json:"is_used"`
	IsMarked   bool      `json:"is_marked"`
	IsCorrect  bool      `json:"is_correct"` // latest attempt correctness
	UpdatedAt  time.Time `json:"updated_at"`
}

// QuestionStatus is the per-user status of a candidate question, derived from
// UserQuestionState and the attempt ledger. Input to the status filters.
type QuestionStatus struct {
	QuestionID          int
	IsUsed              bool
	IsMarked            bool
	HasCorrectAttempt   bool
	HasIncorrectAttempt bool
}

// UserTopicProgress carries per-(user, topic) running counters. All counters
// are monotonically non-decreasing except Streak, which resets to 0 on an
// incorrect attempt; BestStreak is the running maximum of Streak.
type UserTopicProgress struct {
	ID                 int       `json:"id"`
	UserID             int       `json:"user_id"`
	TopicID            int       `json:"topic_id"`
	QuestionsAttempted int       `json:"questions_attempted"`
	QuestionsCorrect   int       `json:"questions_correct"`
	TotalTimeSpent     int       `json:"total_time_spent"`
	Streak             int       `json:"streak"`
	BestStreak         int       `json:"best_streak"`
	LastPracticedAt    time.Time `json:"last_practiced_at"`
}

// UserStepProgress mirrors UserTopicProgress keyed by exam step
type UserStepProgress struct {
	ID                 int       `json:"id"`
	UserID             int       `json:"user_id"`
	StepID             int       `json:"step_id"`
	QuestionsAttempted int       `json:"questions_attempted"`
	QuestionsCorrect   int       `json:"questions_correct"`
	TotalTimeSpent     int       `json:"total_time_spent"`
	Streak             int       `json:"streak"`
	BestStreak         int       `json:"best_streak"`
	LastPracticedAt    time.Time `json:"last_practiced_at"`
}

// Trend indicates the direction of recent performance
type Trend string

// Trend values
const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// TopicProgressCard is the read-only projection behind the topic progress view
type TopicProgressCard struct {
	TopicID            int        `json:"topic_id"`
	TopicName          string     `json:"topic_name"`
	QuestionsAttempted int        `json:"questions_attempted"`
	QuestionsCorrect   int        `json:"questions_correct"`
	TotalQuestions     int        `json:"total_questions"`
	Accuracy           float64    `json:"accuracy"`
	Streak             int        `json:"streak"`
	BestStreak         int        `json:"best_streak"`
	Trend              Trend      `json:"trend"`
	StatusText         string     `json:"status_text"`
	LastPracticedAt    *time.Time `json:"last_practiced_at"`
}

// SubtopicProgressRow is one row of the subtopic progress table
type SubtopicProgressRow struct {
	SubtopicID         int        `json:"subtopic_id"`
	SubtopicName       string     `json:"subtopic_name"`
	TotalQuestions     int        `json:"total_questions"`
	QuestionsAttempted int        `json:"questions_attempted"`
	QuestionsCorrect   int        `json:"questions_correct"`
	Accuracy           float64    `json:"accuracy"`
	LastPracticedAt    *time.Time `json:"last_practiced_at"`
}

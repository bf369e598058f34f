package models

import "time"

// SetStatus is the state of a user's play session over a practice set
type SetStatus string

// Session states. NOT_STARTED and IN_PROGRESS are derived from the attempt
// ledger when listing; COMPLETED is derived when every generated question has
// at least one attempt; PAUSED is only ever set explicitly.
const (
	SetStatusNotStarted SetStatus = "NOT_STARTED"
	SetStatusInProgress SetStatus = "IN_PROGRESS"
	SetStatusCompleted  SetStatus = "COMPLETED"
	SetStatusPaused     SetStatus = "PAUSED"
)

// CustomPracticeSet is a named, user-owned immutable set definition. The
// question list is fixed at creation time and never changes afterward.
type CustomPracticeSet struct {
	ID             int       `json:"id"`
	UserID         int       `json:"user_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	TotalQuestions int       `json:"total_questions"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// UserCustomPracticeSet is a per-user play session over a CustomPracticeSet
type UserCustomPracticeSet struct {
	ID            int       `json:"id"`
	UserID        int       `json:"user_id"`
	PracticeSetID int       `json:"practice_set_id"`
	Status        SetStatus `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// GeneratedQuestion is one ordered question reference inside a play session.
// DisplayOrder is 1-based and contiguous within a session.
type GeneratedQuestion struct {
	ID           int `json:"id"`
	SessionID    int `json:"session_id"`
	QuestionID   int `json:"question_id"`
	DisplayOrder int `json:"display_order"`
}

// PracticeSetSummary is the per-user listing row with derived session state
type PracticeSetSummary struct {
	ID             int        `json:"id"`
	PracticeSetID  int        `json:"practice_set_id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	TotalQuestions int        `json:"total_questions"`
	Status         SetStatus  `json:"status"`
	AttemptedCount int        `json:"attempted_count"`
	BestScore      int        `json:"best_score"`
	LastAttempted  *time.Time `json:"last_attempted"`
	CreatedAt      time.Time  `json:"created_at"`
}

package models

import "time"

// Feedback is a free-form user-submitted report
type Feedback struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Category  string    `json:"category"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

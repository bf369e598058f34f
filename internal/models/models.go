// Package models defines data structures used throughout the USMLE prep application.
package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Difficulty is the question difficulty bucket
type Difficulty string

// Difficulty levels
const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// ValidDifficulty reports whether d is one of the known difficulty buckets
func ValidDifficulty(d Difficulty) bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// User represents a user in the system
type User struct {
	ID           int            `json:"id" yaml:"id"`
	Username     string         `json:"username" yaml:"username"`
	Email        sql.NullString `json:"email" yaml:"email"`
	PasswordHash sql.NullString `json:"-" yaml:"-"` // Omit from JSON responses
	IsAdmin      bool           `json:"is_admin" yaml:"is_admin"`
	LastActive   sql.NullTime   `json:"last_active" yaml:"last_active"`
	CreatedAt    time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" yaml:"updated_at"`
}

// MarshalJSON customizes JSON marshaling for User to handle sql.Null types properly
func (u User) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID         int        `json:"id"`
		Username   string     `json:"username"`
		Email      *string    `json:"email"`
		IsAdmin    bool       `json:"is_admin"`
		LastActive *time.Time `json:"last_active"`
		CreatedAt  time.Time  `json:"created_at"`
		UpdatedAt  time.Time  `json:"updated_at"`
	}{
		ID:         u.ID,
		Username:   u.Username,
		Email:      nullStringToPointer(u.Email),
		IsAdmin:    u.IsAdmin,
		LastActive: nullTimeToPointer(u.LastActive),
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	})
}

// Helper functions for converting sql.Null types to pointers
func nullStringToPointer(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

func nullTimeToPointer(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

// Step represents a USMLE exam step (Step 1, Step 2 CK, ...)
type Step struct {
	ID         int       `json:"id" yaml:"id"`
	StepNumber int       `json:"step_number" yaml:"step_number"`
	Name       string    `json:"name" yaml:"name"`
	IsActive   bool      `json:"is_active" yaml:"is_active"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

// Topic is a content classification under a step
type Topic struct {
	ID           int       `json:"id" yaml:"id"`
	StepID       int       `json:"step_id" yaml:"step_id"`
	Name         string    `json:"name" yaml:"name"`
	Description  string    `json:"description,omitempty" yaml:"description"`
	DisplayOrder int       `json:"display_order" yaml:"display_order"`
	IsActive     bool      `json:"is_active" yaml:"is_active"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
}

// Subtopic is a content classification under a topic
type Subtopic struct {
	ID           int       `json:"id" yaml:"id"`
	TopicID      int       `json:"topic_id" yaml:"topic_id"`
	Name         string    `json:"name" yaml:"name"`
	Description  string    `json:"description,omitempty" yaml:"description"`
	DisplayOrder int       `json:"display_order" yaml:"display_order"`
	IsActive     bool      `json:"is_active" yaml:"is_active"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
}

// Question represents a multiple-choice question. System and Discipline are
// denormalized single tags; the full tag sets live in the association tables.
type Question struct {
	ID          int            `json:"id" yaml:"id"`
	Title       string         `json:"title" yaml:"title"`
	Body        string         `json:"body" yaml:"body"`
	Explanation string         `json:"explanation,omitempty" yaml:"explanation"`
	Difficulty  Difficulty     `json:"difficulty" yaml:"difficulty"`
	Type        string         `json:"type" yaml:"type"`
	System      sql.NullString `json:"system" yaml:"system"`
	Discipline  sql.NullString `json:"discipline" yaml:"discipline"`
	IsActive    bool           `json:"is_active" yaml:"is_active"`
	CreatedAt   time.Time      `json:"created_at" yaml:"created_at"`
	Options     []Option       `json:"options,omitempty" yaml:"options,omitempty"`
}

// MarshalJSON flattens the nullable tag columns
func (q Question) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID          int        `json:"id"`
		Title       string     `json:"title"`
		Body        string     `json:"body"`
		Explanation string     `json:"explanation,omitempty"`
		Difficulty  Difficulty `json:"difficulty"`
		Type        string     `json:"type"`
		System      *string    `json:"system"`
		Discipline  *string    `json:"discipline"`
		IsActive    bool       `json:"is_active"`
		CreatedAt   time.Time  `json:"created_at"`
		Options     []Option   `json:"options,omitempty"`
	}{
		ID:          q.ID,
		Title:       q.Title,
		Body:        q.Body,
		Explanation: q.Explanation,
		Difficulty:  q.Difficulty,
		Type:        q.Type,
		System:      nullStringToPointer(q.System),
		Discipline:  nullStringToPointer(q.Discipline),
		IsActive:    q.IsActive,
		CreatedAt:   q.CreatedAt,
		Options:     q.Options,
	})
}

// Option is an answer choice belonging to a question
type Option struct {
	ID           int    `json:"id" yaml:"id"`
	QuestionID   int    `json:"question_id" yaml:"question_id"`
	Text         string `json:"text" yaml:"text"`
	IsCorrect    bool   `json:"is_correct,omitempty" yaml:"is_correct"`
	DisplayOrder int    `json:"display_order" yaml:"display_order"`
}

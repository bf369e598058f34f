//go:build integration

package services

import (
	"context"
	"testing"

	"usmleapp/internal/models"
	contextutils "usmleapp/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptService_RecordAttempt_LedgerIsAppendOnly_Integration(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()
	ctx := context.Background()

	userID := seedTestUser(t, db, "student")
	topicID := seedTestTopic(t, db, 1, "Cardiology")
	questionID := seedTestQuestion(t, db, topicID, models.DifficultyMedium, "", "")

	attempts := NewAttemptService(db, testConfig(t), noopLogger())

	first, err := attempts.RecordAttempt(ctx, userID, models.RecordAttemptRequest{
		QuestionID:      questionID,
		SelectedOptions: []int{1},
		IsCorrect:       boolPtr(false),
		TimeSpent:       intPtr(40),
	})
	require.NoError(t, err)

	second, err := attempts.RecordAttempt(ctx, userID, models.RecordAttemptRequest{
		QuestionID:      questionID,
		SelectedOptions: []int{2},
		IsCorrect:       boolPtr(true),
		TimeSpent:       intPtr(25),
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// Both attempts survive; re-answering never rewrites history
	history, total, err := attempts.ListAttempts(ctx, userID, questionID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, history, 2)
	// Newest first
	assert.Equal(t, second.ID, history[0].ID)
	assert.True(t, history[0].IsCorrect)
	assert.False(t, history[1].IsCorrect)

	// Snapshot reflects only the latest outcome
	var isUsed bool
	var isCorrect *bool
	require.NoError(t, db.QueryRow(
		"SELECT is_used, is_correct FROM user_question_state WHERE user_id = $1 AND question_id = $2",
		userID, questionID,
	).Scan(&isUsed, &isCorrect))
	assert.True(t, isUsed)
	require.NotNil(t, isCorrect)
	assert.True(t, *isCorrect)
}

func TestAttemptService_RecordAttempt_RollsUpProgress_Integration(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()
	ctx := context.Background()

	userID := seedTestUser(t, db, "student")
	topicID := seedTestTopic(t, db, 1, "Cardiology")
	q1 := seedTestQuestion(t, db, topicID, models.DifficultyMedium, "", "")
	q2 := seedTestQuestion(t, db, topicID, models.DifficultyMedium, "", "")
	q3 := seedTestQuestion(t, db, topicID, models.DifficultyMedium, "", "")

	attempts := NewAttemptService(db, testConfig(t), noopLogger())

	record := func(questionID int, correct bool) {
		_, err := attempts.RecordAttempt(ctx, userID, models.RecordAttemptRequest{
			QuestionID:      questionID,
			SelectedOptions: []int{1},
			IsCorrect:       boolPtr(correct),
			TimeSpent:       intPtr(30),
		})
		require.NoError(t, err)
	}

	record(q1, true)
	record(q2, true)
	record(q3, false)

	var attempted, correct, streak, bestStreak, timeSpent int
	require.NoError(t, db.QueryRow(`
		SELECT questions_attempted, questions_correct, streak, best_streak, total_time_spent
		FROM user_topic_progress WHERE user_id = $1 AND topic_id = $2`,
		userID, topicID,
	).Scan(&attempted, &correct, &streak, &bestStreak, &timeSpent))

	assert.Equal(t, 3, attempted)
	assert.Equal(t, 2, correct)
	assert.Equal(t, 0, streak, "incorrect attempt resets the streak")
	assert.Equal(t, 2, bestStreak)
	assert.Equal(t, 90, timeSpent)

	// Step counters roll up alongside topic counters
	var stepAttempted int
	require.NoError(t, db.QueryRow(`
		SELECT questions_attempted FROM user_step_progress usp
		JOIN steps s ON s.id = usp.step_id
		WHERE usp.user_id = $1 AND s.step_number = 1`,
		userID,
	).Scan(&stepAttempted))
	assert.Equal(t, 3, stepAttempted)
}

func TestAttemptService_RecordAttempt_UnknownQuestion_Integration(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()
	ctx := context.Background()

	userID := seedTestUser(t, db, "student")
	attempts := NewAttemptService(db, testConfig(t), noopLogger())

	_, err := attempts.RecordAttempt(ctx, userID, models.RecordAttemptRequest{
		QuestionID:      99999,
		SelectedOptions: []int{1},
		IsCorrect:       boolPtr(true),
		TimeSpent:       intPtr(10),
	})
	assert.ErrorIs(t, err, contextutils.ErrQuestionNotFound)
}

func TestAttemptService_SetBookmark_Idempotent_Integration(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()
	ctx := context.Background()

	userID := seedTestUser(t, db, "student")
	topicID := seedTestTopic(t, db, 1, "Cardiology")
	questionID := seedTestQuestion(t, db, topicID, models.DifficultyEasy, "", "")

	attempts := NewAttemptService(db, testConfig(t), noopLogger())

	marked := func() bool {
		var m bool
		require.NoError(t, db.QueryRow(
			"SELECT is_marked FROM user_question_state WHERE user_id = $1 AND question_id = $2",
			userID, questionID,
		).Scan(&m))
		return m
	}

	require.NoError(t, attempts.SetBookmark(ctx, userID, questionID, true))
	assert.True(t, marked())

	// Repeating the same bookmark is a no-op, not an error
	require.NoError(t, attempts.SetBookmark(ctx, userID, questionID, true))
	assert.True(t, marked())

	require.NoError(t, attempts.SetBookmark(ctx, userID, questionID, false))
	assert.False(t, marked())

	// Bookmarking never marks the question as used
	var isUsed bool
	require.NoError(t, db.QueryRow(
		"SELECT is_used FROM user_question_state WHERE user_id = $1 AND question_id = $2",
		userID, questionID,
	).Scan(&isUsed))
	assert.False(t, isUsed)
}

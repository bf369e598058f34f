package services

import (
	"testing"
	"time"

	"usmleapp/internal/models"
	contextutils "usmleapp/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyAttemptToProgress_CorrectExtendsStreak(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	p := &models.UserTopicProgress{
		QuestionsAttempted: 4,
		QuestionsCorrect:   2,
		TotalTimeSpent:     300,
		Streak:             2,
		BestStreak:         3,
	}

	applyAttemptToProgress(p, true, 45, now)

	assert.Equal(t, 5, p.QuestionsAttempted)
	assert.Equal(t, 3, p.QuestionsCorrect)
	assert.Equal(t, 3, p.Streak)
	assert.Equal(t, 3, p.BestStreak)
	assert.Equal(t, 345, p.TotalTimeSpent)
	assert.Equal(t, now, p.LastPracticedAt)
}

func TestApplyAttemptToProgress_IncorrectResetsStreak(t *testing.T) {
	now := time.Now()
	p := &models.UserTopicProgress{
		QuestionsAttempted: 10,
		QuestionsCorrect:   8,
		Streak:             5,
		BestStreak:         5,
	}

	applyAttemptToProgress(p, false, 30, now)

	assert.Equal(t, 11, p.QuestionsAttempted)
	assert.Equal(t, 8, p.QuestionsCorrect, "incorrect attempts do not count as correct")
	assert.Equal(t, 0, p.Streak)
	assert.Equal(t, 5, p.BestStreak, "best streak survives a reset")
}

func TestApplyAttemptToProgress_NewBestStreak(t *testing.T) {
	now := time.Now()
	p := &models.UserTopicProgress{Streak: 6, BestStreak: 6}

	applyAttemptToProgress(p, true, 20, now)

	assert.Equal(t, 7, p.Streak)
	assert.Equal(t, 7, p.BestStreak)
}

func TestApplyAttemptToProgress_FirstAttempt(t *testing.T) {
	now := time.Now()
	p := &models.UserTopicProgress{}

	applyAttemptToProgress(p, true, 60, now)

	assert.Equal(t, 1, p.QuestionsAttempted)
	assert.Equal(t, 1, p.QuestionsCorrect)
	assert.Equal(t, 1, p.Streak)
	assert.Equal(t, 1, p.BestStreak)
	assert.Equal(t, 60, p.TotalTimeSpent)
}

func TestRecordAttemptRequest_Validation(t *testing.T) {
	yes := true
	zero := 0

	t.Run("valid request", func(t *testing.T) {
		req := models.RecordAttemptRequest{
			QuestionID:      42,
			SelectedOptions: []int{3},
			IsCorrect:       &yes,
			TimeSpent:       &zero,
		}
		appErr, fieldErrs := contextutils.ValidateStruct(req)
		assert.Nil(t, appErr)
		assert.Empty(t, fieldErrs)
	})

	t.Run("missing fields", func(t *testing.T) {
		req := models.RecordAttemptRequest{QuestionID: 42}
		appErr, fieldErrs := contextutils.ValidateStruct(req)
		require.NotNil(t, appErr)
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fe.Field)
		}
		assert.Contains(t, fields, "SelectedOptions")
		assert.Contains(t, fields, "IsCorrect")
		assert.Contains(t, fields, "TimeSpent")
	})

	t.Run("empty selected options", func(t *testing.T) {
		req := models.RecordAttemptRequest{
			QuestionID:      42,
			SelectedOptions: []int{},
			IsCorrect:       &yes,
			TimeSpent:       &zero,
		}
		appErr, _ := contextutils.ValidateStruct(req)
		assert.NotNil(t, appErr)
	})

	t.Run("negative time spent", func(t *testing.T) {
		neg := -5
		req := models.RecordAttemptRequest{
			QuestionID:      42,
			SelectedOptions: []int{1},
			IsCorrect:       &yes,
			TimeSpent:       &neg,
		}
		appErr, _ := contextutils.ValidateStruct(req)
		assert.NotNil(t, appErr)
	})
}

//go:build integration

package services

import (
	"context"
	"database/sql"
	"testing"

	"usmleapp/internal/models"
	contextutils "usmleapp/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPracticeServices(t *testing.T, db *sql.DB) (*FilterService, *PracticeSetService, *AttemptService) {
	t.Helper()
	cfg := testConfig(t)
	logger := noopLogger()
	filter := NewFilterService(db, cfg, logger)
	practice := NewPracticeSetService(db, cfg, filter, logger)
	attempts := NewAttemptService(db, cfg, logger)
	return filter, practice, attempts
}

func TestPracticeSetService_CreateCustomSet_Integration(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()
	ctx := context.Background()

	userID := seedTestUser(t, db, "creator")
	topicID := seedTestTopic(t, db, 1, "Cardiology")
	for i := 0; i < 5; i++ {
		seedTestQuestion(t, db, topicID, models.DifficultyMedium, "Cardiovascular", "Physiology")
	}

	_, practice, _ := newPracticeServices(t, db)

	resp, err := practice.CreateCustomSet(ctx, userID, models.CreateCustomSetRequest{
		Name:         "Cardio warmup",
		MaxQuestions: 3,
		Step:         1,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.TotalQuestions)
	assert.Equal(t, models.SetStatusNotStarted, resp.Status)

	// One row per table, all created atomically
	var setCount, sessionCount, generatedCount int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM custom_practice_sets WHERE user_id = $1", userID).Scan(&setCount))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM user_custom_practice_sets WHERE user_id = $1", userID).Scan(&sessionCount))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM generated_questions WHERE session_id = $1", resp.ID).Scan(&generatedCount))
	assert.Equal(t, 1, setCount)
	assert.Equal(t, 1, sessionCount)
	assert.Equal(t, 3, generatedCount)

	ids, err := practice.QuestionIDsForSet(ctx, userID, resp.ID)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
}

func TestPracticeSetService_CreateCustomSet_EmptyPool_Integration(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()
	ctx := context.Background()

	userID := seedTestUser(t, db, "creator")
	topicID := seedTestTopic(t, db, 1, "Cardiology")
	seedTestQuestion(t, db, topicID, models.DifficultyMedium, "Cardiovascular", "Physiology")

	_, practice, _ := newPracticeServices(t, db)

	_, err := practice.CreateCustomSet(ctx, userID, models.CreateCustomSetRequest{
		Name:         "Impossible",
		MaxQuestions: 10,
		Step:         1,
		Filters: models.FilterRequest{
			Systems: []string{"Respiratory"},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, contextutils.ErrNoMatchingQuestions)

	// Nothing persisted from the failed create
	var setCount int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM custom_practice_sets WHERE user_id = $1", userID).Scan(&setCount))
	assert.Equal(t, 0, setCount)
}

func TestPracticeSetService_DeleteSet_Cascades_Integration(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()
	ctx := context.Background()

	userID := seedTestUser(t, db, "owner")
	otherID := seedTestUser(t, db, "other")
	topicID := seedTestTopic(t, db, 1, "Cardiology")
	for i := 0; i < 3; i++ {
		seedTestQuestion(t, db, topicID, models.DifficultyEasy, "", "")
	}

	_, practice, _ := newPracticeServices(t, db)

	resp, err := practice.CreateCustomSet(ctx, userID, models.CreateCustomSetRequest{
		Name:         "To delete",
		MaxQuestions: 3,
		Step:         1,
	})
	require.NoError(t, err)

	// A stranger cannot delete it, and cannot tell it exists
	err = practice.DeleteSet(ctx, otherID, resp.PracticeSetID)
	assert.ErrorIs(t, err, contextutils.ErrPracticeSetNotFound)

	require.NoError(t, practice.DeleteSet(ctx, userID, resp.PracticeSetID))

	var remaining int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM generated_questions WHERE session_id = $1", resp.ID).Scan(&remaining))
	assert.Equal(t, 0, remaining)
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM user_custom_practice_sets WHERE user_id = $1", userID).Scan(&remaining))
	assert.Equal(t, 0, remaining)
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM custom_practice_sets WHERE user_id = $1", userID).Scan(&remaining))
	assert.Equal(t, 0, remaining)
}

func TestPracticeSetService_DerivedStatus_Integration(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()
	ctx := context.Background()

	userID := seedTestUser(t, db, "student")
	topicID := seedTestTopic(t, db, 1, "Cardiology")
	for i := 0; i < 2; i++ {
		seedTestQuestion(t, db, topicID, models.DifficultyMedium, "", "")
	}

	_, practice, attempts := newPracticeServices(t, db)

	resp, err := practice.CreateCustomSet(ctx, userID, models.CreateCustomSetRequest{
		Name:         "Two questions",
		MaxQuestions: 2,
		Step:         1,
	})
	require.NoError(t, err)

	ids, err := practice.QuestionIDsForSet(ctx, userID, resp.ID)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	sets, err := practice.ListSetsForUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, models.SetStatusNotStarted, sets[0].Status)

	_, err = attempts.RecordAttempt(ctx, userID, models.RecordAttemptRequest{
		QuestionID:      ids[0],
		SelectedOptions: []int{1},
		IsCorrect:       boolPtr(true),
		TimeSpent:       intPtr(30),
	})
	require.NoError(t, err)

	sets, err = practice.ListSetsForUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, models.SetStatusInProgress, sets[0].Status)

	_, err = attempts.RecordAttempt(ctx, userID, models.RecordAttemptRequest{
		QuestionID:      ids[1],
		SelectedOptions: []int{2},
		IsCorrect:       boolPtr(false),
		TimeSpent:       intPtr(45),
	})
	require.NoError(t, err)

	sets, err = practice.ListSetsForUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, models.SetStatusCompleted, sets[0].Status)

	// Pausing sticks regardless of attempt counts
	require.NoError(t, practice.UpdateSessionStatus(ctx, userID, resp.ID, models.SetStatusPaused))
	sets, err = practice.ListSetsForUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, models.SetStatusPaused, sets[0].Status)
}

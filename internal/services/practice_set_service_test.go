package services

import (
	"testing"

	"usmleapp/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestSampleQuestions_TruncatesToMax(t *testing.T) {
	pool := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	sampled := sampleQuestions(pool, 4)

	assert.Len(t, sampled, 4)
	seen := map[int]bool{}
	for _, id := range sampled {
		assert.Contains(t, pool, id)
		assert.False(t, seen[id], "sampled ids must be unique")
		seen[id] = true
	}
}

func TestSampleQuestions_PoolSmallerThanMax(t *testing.T) {
	pool := []int{7, 8, 9}

	sampled := sampleQuestions(pool, 50)

	assert.ElementsMatch(t, pool, sampled)
}

func TestSampleQuestions_DoesNotMutatePool(t *testing.T) {
	pool := []int{1, 2, 3, 4, 5}

	_ = sampleQuestions(pool, 2)

	assert.Equal(t, []int{1, 2, 3, 4, 5}, pool)
}

func TestDeriveSetStatus(t *testing.T) {
	tests := []struct {
		name      string
		stored    models.SetStatus
		attempted int
		total     int
		want      models.SetStatus
	}{
		{"no attempts", models.SetStatusNotStarted, 0, 10, models.SetStatusNotStarted},
		{"some attempts", models.SetStatusNotStarted, 3, 10, models.SetStatusInProgress},
		{"all attempted", models.SetStatusInProgress, 10, 10, models.SetStatusCompleted},
		{"over-attempted still completed", models.SetStatusInProgress, 12, 10, models.SetStatusCompleted},
		{"paused wins over attempts", models.SetStatusPaused, 5, 10, models.SetStatusPaused},
		{"paused wins even when finished", models.SetStatusPaused, 10, 10, models.SetStatusPaused},
		{"stale stored status is recomputed", models.SetStatusCompleted, 0, 10, models.SetStatusNotStarted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveSetStatus(tt.stored, tt.attempted, tt.total))
		})
	}
}

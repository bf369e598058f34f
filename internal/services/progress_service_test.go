package services

import (
	"testing"
	"time"

	"usmleapp/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestAccuracyPercent(t *testing.T) {
	assert.Equal(t, float64(0), accuracyPercent(0, 0), "no attempts means zero accuracy, not NaN")
	assert.Equal(t, float64(0), accuracyPercent(0, 10))
	assert.Equal(t, float64(50), accuracyPercent(5, 10))
	assert.Equal(t, float64(100), accuracyPercent(7, 7))
	assert.InDelta(t, 66.666, accuracyPercent(2, 3), 0.01)
}

func TestDeriveTrend(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-2 * 24 * time.Hour)
	stale := now.Add(-10 * 24 * time.Hour)

	tests := []struct {
		name          string
		streak        int
		attempted     int
		lastPracticed *time.Time
		want          models.Trend
	}{
		{"never attempted", 0, 0, nil, models.TrendNeutral},
		{"attempted but no timestamp", 3, 5, nil, models.TrendNeutral},
		{"recent with live streak", 3, 5, &recent, models.TrendUp},
		{"recent with broken streak", 0, 5, &recent, models.TrendDown},
		{"stale practice", 4, 5, &stale, models.TrendNeutral},
		{"stale broken streak", 0, 5, &stale, models.TrendNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveTrend(tt.streak, tt.attempted, tt.lastPracticed, now))
		})
	}
}

func TestStatusText(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-24 * time.Hour)
	stale := now.Add(-30 * 24 * time.Hour)

	t.Run("not started", func(t *testing.T) {
		assert.Equal(t, "Not started yet. Jump in!", statusText(0, 0, 0, nil, now))
	})

	t.Run("stale practice wins over accuracy", func(t *testing.T) {
		assert.Equal(t, "It's been a while. Time for a refresher.",
			statusText(95, 10, 20, &stale, now))
	})

	t.Run("streak takes priority", func(t *testing.T) {
		assert.Equal(t, "On fire! 6 correct in a row.",
			statusText(40, 6, 20, &recent, now))
	})

	t.Run("high accuracy", func(t *testing.T) {
		assert.Equal(t, "Strong performance. Keep it up!",
			statusText(85, 2, 20, &recent, now))
	})

	t.Run("middling accuracy", func(t *testing.T) {
		assert.Equal(t, "Making progress. Keep practicing.",
			statusText(60, 0, 20, &recent, now))
	})

	t.Run("low accuracy", func(t *testing.T) {
		assert.Equal(t, "This topic needs more work.",
			statusText(30, 0, 20, &recent, now))
	})

	t.Run("no timestamp falls through to accuracy", func(t *testing.T) {
		assert.Equal(t, "Strong performance. Keep it up!",
			statusText(90, 1, 5, nil, now))
	})
}

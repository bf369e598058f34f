package services

import (
	"testing"

	"usmleapp/internal/models"

	"github.com/stretchr/testify/assert"
)

func statusPool() []models.QuestionStatus {
	return []models.QuestionStatus{
		{QuestionID: 1},                                                                      // untouched
		{QuestionID: 2, IsUsed: true, HasCorrectAttempt: true},                               // answered correctly
		{QuestionID: 3, IsUsed: true, HasIncorrectAttempt: true},                             // answered incorrectly
		{QuestionID: 4, IsUsed: true, HasCorrectAttempt: true, HasIncorrectAttempt: true},    // mixed history
		{QuestionID: 5, IsMarked: true},                                                      // bookmarked, unattempted
		{QuestionID: 6, IsUsed: true, IsMarked: true, HasIncorrectAttempt: true},             // bookmarked, incorrect
		{QuestionID: 7, IsUsed: true},                                                        // used via set membership, never answered
	}
}

func TestApplyStatusFilters_DefaultsKeepEverything(t *testing.T) {
	spec := models.DefaultFilterSpec()

	ids := applyStatusFilters(spec, statusPool())

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, ids)
}

func TestApplyStatusFilters_UsageAxis(t *testing.T) {
	spec := models.DefaultFilterSpec()
	spec.IncludeUsed = false

	ids := applyStatusFilters(spec, statusPool())
	assert.Equal(t, []int{1, 5}, ids, "only untouched questions survive an unused-only filter")

	spec = models.DefaultFilterSpec()
	spec.IncludeUnused = false

	ids = applyStatusFilters(spec, statusPool())
	assert.Equal(t, []int{2, 3, 4, 6, 7}, ids)

	spec = models.DefaultFilterSpec()
	spec.IncludeUsed = false
	spec.IncludeUnused = false

	assert.Empty(t, applyStatusFilters(spec, statusPool()),
		"excluding both usage states matches nothing")
}

func TestApplyStatusFilters_MarkedNarrowsOnly(t *testing.T) {
	spec := models.DefaultFilterSpec()
	spec.IncludeMarked = true

	ids := applyStatusFilters(spec, statusPool())
	assert.Equal(t, []int{5, 6}, ids, "marked filter narrows to bookmarked questions")

	// Marked combines with the other axes rather than overriding them.
	spec.IncludeUsed = false
	ids = applyStatusFilters(spec, statusPool())
	assert.Equal(t, []int{5}, ids)
}

func TestApplyStatusFilters_CorrectnessAxis(t *testing.T) {
	spec := models.DefaultFilterSpec()
	spec.IncludeCorrect = true

	ids := applyStatusFilters(spec, statusPool())
	assert.Equal(t, []int{2, 4}, ids,
		"correct-only drops unattempted questions and incorrect-only histories")

	spec = models.DefaultFilterSpec()
	spec.IncludeIncorrect = true

	ids = applyStatusFilters(spec, statusPool())
	assert.Equal(t, []int{3, 4, 6}, ids)

	spec = models.DefaultFilterSpec()
	spec.IncludeCorrect = true
	spec.IncludeIncorrect = true

	ids = applyStatusFilters(spec, statusPool())
	assert.Equal(t, []int{1, 4, 5, 7}, ids,
		"requesting both correctness properties keeps mixed histories and unattempted questions")
}

func TestApplyStatusFilters_UsedButNeverAnswered(t *testing.T) {
	// A question pulled into a set but never answered counts as used with no
	// correctness history.
	spec := models.DefaultFilterSpec()
	spec.IncludeUnused = false
	spec.IncludeIncorrect = true

	ids := applyStatusFilters(spec, statusPool())
	assert.Equal(t, []int{3, 4, 6}, ids)
	assert.NotContains(t, ids, 7)
}

func TestApplyStatusFilters_EmptyPool(t *testing.T) {
	ids := applyStatusFilters(models.DefaultFilterSpec(), nil)
	assert.Empty(t, ids)
}

func TestEmptyIfNil(t *testing.T) {
	assert.Equal(t, []string{}, emptyIfNil(nil))
	assert.Equal(t, []string{"Cardiovascular"}, emptyIfNil([]string{"Cardiovascular"}))
}

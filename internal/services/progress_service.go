package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"usmleapp/internal/config"
	"usmleapp/internal/models"
	"usmleapp/internal/observability"
	contextutils "usmleapp/internal/utils"
)

// ProgressServiceInterface defines the interface for progress projections.
// This allows for easier mocking in tests.
type ProgressServiceInterface interface {
	TopicProgressCards(ctx context.Context, userID, stepNumber int) ([]models.TopicProgressCard, error)
	SubtopicProgress(ctx context.Context, userID, topicID int) ([]models.SubtopicProgressRow, error)
	StepProgress(ctx context.Context, userID, stepNumber int) (*models.UserStepProgress, error)
}

// ProgressService derives display data by joining the content hierarchy with
// per-user progress rows. Pure projection; nothing here writes.
type ProgressService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

// NewProgressService creates a new progress service
func NewProgressService(db *sql.DB, cfg *config.Config, logger *observability.Logger) *ProgressService {
	return &ProgressService{db: db, cfg: cfg, logger: logger}
}

// accuracyPercent is correct/attempted*100, 0 when nothing was attempted
func accuracyPercent(correct, attempted int) float64 {
	if attempted == 0 {
		return 0
	}
	return float64(correct) / float64(attempted) * 100
}

// deriveTrend maps streak and recency to a trend indicator. A live streak
// within the recency window trends up; a broken streak on recent practice
// trends down; stale or unattempted topics are neutral.
func deriveTrend(streak, attempted int, lastPracticed *time.Time, now time.Time) models.Trend {
	if attempted == 0 || lastPracticed == nil {
		return models.TrendNeutral
	}
	recent := now.Sub(*lastPracticed) <= time.Duration(config.RecencyWindowDays)*24*time.Hour
	if !recent {
		return models.TrendNeutral
	}
	if streak > 0 {
		return models.TrendUp
	}
	return models.TrendDown
}

// statusText builds the templated encouragement line from accuracy, streak
// and recency thresholds
func statusText(accuracy float64, streak, attempted int, lastPracticed *time.Time, now time.Time) string {
	if attempted == 0 {
		return "Not started yet. Jump in!"
	}
	if lastPracticed != nil && now.Sub(*lastPracticed) > time.Duration(config.RecencyWindowDays)*24*time.Hour {
		return "It's been a while. Time for a refresher."
	}
	switch {
	case streak >= 5:
		return fmt.Sprintf("On fire! %d correct in a row.", streak)
	case accuracy >= 80:
		return "Strong performance. Keep it up!"
	case accuracy >= 50:
		return "Making progress. Keep practicing."
	default:
		return "This topic needs more work."
	}
}

// TopicProgressCards returns one card per active topic of the step, combining
// total question counts with the user's progress counters
func (s *ProgressService) TopicProgressCards(ctx context.Context, userID, stepNumber int) (result0 []models.TopicProgressCard, err error) {
	ctx, span := observability.TraceProgressFunction(ctx, "topic_progress_cards",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	var stepID int
	err = s.db.QueryRowContext(ctx,
		"SELECT id FROM steps WHERE step_number = $1 AND is_active = TRUE",
		stepNumber,
	).Scan(&stepID)
	if err == sql.ErrNoRows {
		return nil, contextutils.ErrStepNotFound
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to resolve step")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id,
		       t.name,
		       COALESCE(utp.questions_attempted, 0),
		       COALESCE(utp.questions_correct, 0),
		       COALESCE(utp.streak, 0),
		       COALESCE(utp.best_streak, 0),
		       utp.last_practiced_at,
		       (SELECT COUNT(*) FROM question_topics qt
		        JOIN questions q ON q.id = qt.question_id
		        WHERE qt.topic_id = t.id AND q.is_active = TRUE) AS total_questions
		FROM topics t
		LEFT JOIN user_topic_progress utp
		       ON utp.topic_id = t.id AND utp.user_id = $1
		WHERE t.step_id = $2 AND t.is_active = TRUE
		ORDER BY t.display_order, t.id`,
		userID, stepID,
	)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query topic progress")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	now := time.Now()
	cards := []models.TopicProgressCard{}
	for rows.Next() {
		var card models.TopicProgressCard
		var lastPracticed sql.NullTime
		if err := rows.Scan(
			&card.TopicID,
			&card.TopicName,
			&card.QuestionsAttempted,
			&card.QuestionsCorrect,
			&card.Streak,
			&card.BestStreak,
			&lastPracticed,
			&card.TotalQuestions,
		); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan topic progress")
		}
		if lastPracticed.Valid {
			t := lastPracticed.Time
			card.LastPracticedAt = &t
		}
		card.Accuracy = accuracyPercent(card.QuestionsCorrect, card.QuestionsAttempted)
		card.Trend = deriveTrend(card.Streak, card.QuestionsAttempted, card.LastPracticedAt, now)
		card.StatusText = statusText(card.Accuracy, card.Streak, card.QuestionsAttempted, card.LastPracticedAt, now)
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// SubtopicProgress returns the per-subtopic rows for a topic, computed from
// the attempt ledger since progress counters are kept per topic, not subtopic
func (s *ProgressService) SubtopicProgress(ctx context.Context, userID, topicID int) (result0 []models.SubtopicProgressRow, err error) {
	ctx, span := observability.TraceProgressFunction(ctx, "subtopic_progress",
		observability.AttributeUserID(userID),
		observability.AttributeTopicID(topicID),
	)
	defer observability.FinishSpan(span, &err)

	var exists bool
	err = s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM topics WHERE id = $1 AND is_active = TRUE)",
		topicID,
	).Scan(&exists)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to check topic")
	}
	if !exists {
		return nil, contextutils.ErrRecordNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT st.id,
		       st.name,
		       (SELECT COUNT(*) FROM question_subtopics qs
		        JOIN questions q ON q.id = qs.question_id
		        WHERE qs.subtopic_id = st.id AND q.is_active = TRUE) AS total_questions,
		       COUNT(DISTINCT ua.question_id) AS attempted,
		       COUNT(DISTINCT ua.question_id) FILTER (WHERE latest.is_correct) AS correct,
		       MAX(ua.created_at) AS last_practiced
		FROM subtopics st
		LEFT JOIN question_subtopics qs ON qs.subtopic_id = st.id
		LEFT JOIN user_attempts ua
		       ON ua.question_id = qs.question_id AND ua.user_id = $1
		LEFT JOIN LATERAL (
			SELECT l.is_correct
			FROM user_attempts l
			WHERE l.user_id = $1 AND l.question_id = qs.question_id
			ORDER BY l.created_at DESC, l.id DESC
			LIMIT 1
		) latest ON TRUE
		WHERE st.topic_id = $2 AND st.is_active = TRUE
		GROUP BY st.id
		ORDER BY st.display_order, st.id`,
		userID, topicID,
	)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query subtopic progress")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	out := []models.SubtopicProgressRow{}
	for rows.Next() {
		var row models.SubtopicProgressRow
		var lastPracticed sql.NullTime
		if err := rows.Scan(
			&row.SubtopicID,
			&row.SubtopicName,
			&row.TotalQuestions,
			&row.QuestionsAttempted,
			&row.QuestionsCorrect,
			&lastPracticed,
		); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan subtopic progress")
		}
		if lastPracticed.Valid {
			t := lastPracticed.Time
			row.LastPracticedAt = &t
		}
		row.Accuracy = accuracyPercent(row.QuestionsCorrect, row.QuestionsAttempted)
		out = append(out, row)
	}
	return out, rows.Err()
}

// StepProgress returns the user's aggregate counters for one exam step, or a
// zero-valued row when the user has not practiced that step yet
func (s *ProgressService) StepProgress(ctx context.Context, userID, stepNumber int) (result0 *models.UserStepProgress, err error) {
	ctx, span := observability.TraceProgressFunction(ctx, "step_progress",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	var stepID int
	err = s.db.QueryRowContext(ctx,
		"SELECT id FROM steps WHERE step_number = $1 AND is_active = TRUE",
		stepNumber,
	).Scan(&stepID)
	if err == sql.ErrNoRows {
		return nil, contextutils.ErrStepNotFound
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to resolve step")
	}

	progress := &models.UserStepProgress{UserID: userID, StepID: stepID}
	err = s.db.QueryRowContext(ctx, `
		SELECT id, questions_attempted, questions_correct, total_time_spent, streak, best_streak, last_practiced_at
		FROM user_step_progress
		WHERE user_id = $1 AND step_id = $2`,
		userID, stepID,
	).Scan(
		&progress.ID,
		&progress.QuestionsAttempted,
		&progress.QuestionsCorrect,
		&progress.TotalTimeSpent,
		&progress.Streak,
		&progress.BestStreak,
		&progress.LastPracticedAt,
	)
	if err == sql.ErrNoRows {
		return progress, nil
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query step progress")
	}
	return progress, nil
}

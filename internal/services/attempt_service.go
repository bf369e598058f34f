package services

import (
	"context"
	"database/sql"
	"time"

	"usmleapp/internal/config"
	"usmleapp/internal/models"
	"usmleapp/internal/observability"
	contextutils "usmleapp/internal/utils"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

// AttemptServiceInterface defines the interface for attempt recording and
// per-question state. This allows for easier mocking in tests.
type AttemptServiceInterface interface {
	RecordAttempt(ctx context.Context, userID int, req models.RecordAttemptRequest) (*models.UserAttempt, error)
	ListAttempts(ctx context.Context, userID, questionID, limit, offset int) ([]models.UserAttempt, int, error)
	SetBookmark(ctx context.Context, userID, questionID int, marked bool) error
}

// AttemptService records answer events and keeps the derived per-topic and
// per-step counters consistent. The attempt ledger is authoritative; the
// rollup is best effort.
type AttemptService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

// NewAttemptService creates a new attempt service
func NewAttemptService(db *sql.DB, cfg *config.Config, logger *observability.Logger) *AttemptService {
	return &AttemptService{db: db, cfg: cfg, logger: logger}
}

// RecordAttempt validates and durably writes one answer event, upserts the
// per-question state, then rolls attempt counters up into topic and step
// progress. The rollup runs after the attempt commit and its failure is
// logged and swallowed, never surfaced to the caller.
func (s *AttemptService) RecordAttempt(ctx context.Context, userID int, req models.RecordAttemptRequest) (result0 *models.UserAttempt, err error) {
	ctx, span := observability.TraceAttemptFunction(ctx, "record_attempt",
		observability.AttributeUserID(userID),
		observability.AttributeQuestionID(req.QuestionID),
	)
	defer observability.FinishSpan(span, &err)

	if appErr, fieldErrs := contextutils.ValidateStruct(req); appErr != nil {
		return nil, appErr.WithFieldErrors(fieldErrs)
	}

	var exists bool
	err = s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM questions WHERE id = $1 AND is_active = TRUE)",
		req.QuestionID,
	).Scan(&exists)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to check question")
	}
	if !exists {
		return nil, contextutils.ErrQuestionNotFound
	}

	isCorrect := *req.IsCorrect
	timeSpent := *req.TimeSpent

	attempt := &models.UserAttempt{
		UserID:          userID,
		QuestionID:      req.QuestionID,
		SelectedOptions: req.SelectedOptions,
		IsCorrect:       isCorrect,
		TimeSpent:       timeSpent,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO user_attempts (user_id, question_id, selected_options, is_correct, time_spent)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		userID, req.QuestionID, pq.Array(req.SelectedOptions), isCorrect, timeSpent,
	).Scan(&attempt.ID, &attempt.CreatedAt)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to insert attempt")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_question_state (user_id, question_id, is_used, is_marked, is_correct, updated_at)
		VALUES ($1, $2, TRUE, FALSE, $3, NOW())
		ON CONFLICT (user_id, question_id)
		DO UPDATE SET is_used = TRUE, is_correct = $3, updated_at = NOW()`,
		userID, req.QuestionID, isCorrect,
	)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to upsert question state")
	}

	// The attempt is committed; from here on failures must not undo it
	if rollupErr := s.rollupProgress(ctx, userID, req.QuestionID, isCorrect, timeSpent); rollupErr != nil {
		s.logger.Error(ctx, "Progress rollup failed after attempt write", rollupErr, map[string]interface{}{
			"user_id":     userID,
			"question_id": req.QuestionID,
			"attempt_id":  attempt.ID,
		})
	}

	return attempt, nil
}

// rollupProgress upserts topic and step counters for every topic the question
// belongs to. A question may belong to more than one topic and step.
func (s *AttemptService) rollupProgress(ctx context.Context, userID, questionID int, isCorrect bool, timeSpent int) (err error) {
	ctx, span := observability.TraceProgressFunction(ctx, "rollup_progress",
		observability.AttributeUserID(userID),
		observability.AttributeQuestionID(questionID),
	)
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.step_id
		FROM question_topics qt
		JOIN topics t ON t.id = qt.topic_id
		WHERE qt.question_id = $1`,
		questionID,
	)
	if err != nil {
		return contextutils.WrapError(err, "failed to query question topics")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	type topicStep struct{ topicID, stepID int }
	var pairs []topicStep
	stepIDs := map[int]bool{}
	for rows.Next() {
		var ts topicStep
		if err := rows.Scan(&ts.topicID, &ts.stepID); err != nil {
			return contextutils.WrapError(err, "failed to scan topic")
		}
		pairs = append(pairs, ts)
		stepIDs[ts.stepID] = true
	}
	if err := rows.Err(); err != nil {
		return contextutils.WrapError(err, "failed to iterate topics")
	}

	now := time.Now()
	for _, ts := range pairs {
		if err := s.upsertProgress(ctx, "user_topic_progress", "topic_id", userID, ts.topicID, isCorrect, timeSpent, now); err != nil {
			return err
		}
	}
	for stepID := range stepIDs {
		if err := s.upsertProgress(ctx, "user_step_progress", "step_id", userID, stepID, isCorrect, timeSpent, now); err != nil {
			return err
		}
	}

	span.SetAttributes(
		attribute.Int("progress.topics", len(pairs)),
		attribute.Int("progress.steps", len(stepIDs)),
	)
	return nil
}

// upsertProgress applies one attempt to a progress row. The streak is
// recomputed on every attempt, including the existing-row path: reset to 0 on
// incorrect, incremented on correct, with best_streak the running maximum.
func (s *AttemptService) upsertProgress(ctx context.Context, table, keyColumn string, userID, keyID int, isCorrect bool, timeSpent int, now time.Time) error {
	correctInc := 0
	if isCorrect {
		correctInc = 1
	}
	query := `
		INSERT INTO ` + table + ` (user_id, ` + keyColumn + `, questions_attempted, questions_correct, total_time_spent, streak, best_streak, last_practiced_at)
		VALUES ($1, $2, 1, $3, $4, $3, $3, $5)
		ON CONFLICT (user_id, ` + keyColumn + `)
		DO UPDATE SET
			questions_attempted = ` + table + `.questions_attempted + 1,
			questions_correct   = ` + table + `.questions_correct + $3,
			total_time_spent    = ` + table + `.total_time_spent + $4,
			streak              = CASE WHEN $6 THEN ` + table + `.streak + 1 ELSE 0 END,
			best_streak         = GREATEST(` + table + `.best_streak, CASE WHEN $6 THEN ` + table + `.streak + 1 ELSE 0 END),
			last_practiced_at   = $5`
	_, err := s.db.ExecContext(ctx, query, userID, keyID, correctInc, timeSpent, now, isCorrect)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to upsert %s", table)
	}
	return nil
}

// applyAttemptToProgress applies one attempt to an in-memory progress row.
// Mirrors the SQL upsert so the counter math is testable without a database.
func applyAttemptToProgress(p *models.UserTopicProgress, isCorrect bool, timeSpent int, now time.Time) {
	p.QuestionsAttempted++
	if isCorrect {
		p.QuestionsCorrect++
		p.Streak++
	} else {
		p.Streak = 0
	}
	if p.Streak > p.BestStreak {
		p.BestStreak = p.Streak
	}
	p.TotalTimeSpent += timeSpent
	p.LastPracticedAt = now
}

// ListAttempts returns a page of the user's attempt history, optionally
// restricted to one question, newest first, plus the total count
func (s *AttemptService) ListAttempts(ctx context.Context, userID, questionID, limit, offset int) (result0 []models.UserAttempt, result1 int, err error) {
	ctx, span := observability.TraceAttemptFunction(ctx, "list_attempts",
		observability.AttributeUserID(userID),
		observability.AttributeLimit(limit),
	)
	defer observability.FinishSpan(span, &err)

	if limit <= 0 {
		limit = config.DefaultPageSize
	}
	if limit > config.MaxPageSize {
		limit = config.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_attempts
		WHERE user_id = $1 AND ($2 = 0 OR question_id = $2)`,
		userID, questionID,
	).Scan(&total)
	if err != nil {
		return nil, 0, contextutils.WrapError(err, "failed to count attempts")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, question_id, selected_options, is_correct, time_spent, created_at
		FROM user_attempts
		WHERE user_id = $1 AND ($2 = 0 OR question_id = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`,
		userID, questionID, limit, offset,
	)
	if err != nil {
		return nil, 0, contextutils.WrapError(err, "failed to query attempts")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	attempts := []models.UserAttempt{}
	for rows.Next() {
		var a models.UserAttempt
		var selected pq.Int64Array
		if err := rows.Scan(&a.ID, &a.UserID, &a.QuestionID, &selected, &a.IsCorrect, &a.TimeSpent, &a.CreatedAt); err != nil {
			return nil, 0, contextutils.WrapError(err, "failed to scan attempt")
		}
		a.SelectedOptions = make([]int, len(selected))
		for i, v := range selected {
			a.SelectedOptions[i] = int(v)
		}
		attempts = append(attempts, a)
	}
	return attempts, total, rows.Err()
}

// SetBookmark upserts the user's bookmark flag for a question. Idempotent;
// concurrent writes collapse to last-writer-wins on the unique row.
func (s *AttemptService) SetBookmark(ctx context.Context, userID, questionID int, marked bool) (err error) {
	ctx, span := observability.TraceAttemptFunction(ctx, "set_bookmark",
		observability.AttributeUserID(userID),
		observability.AttributeQuestionID(questionID),
		attribute.Bool("bookmark.marked", marked),
	)
	defer observability.FinishSpan(span, &err)

	var exists bool
	err = s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM questions WHERE id = $1 AND is_active = TRUE)",
		questionID,
	).Scan(&exists)
	if err != nil {
		return contextutils.WrapError(err, "failed to check question")
	}
	if !exists {
		return contextutils.ErrQuestionNotFound
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_question_state (user_id, question_id, is_used, is_marked, is_correct, updated_at)
		VALUES ($1, $2, FALSE, $3, NULL, NOW())
		ON CONFLICT (user_id, question_id)
		DO UPDATE SET is_marked = $3, updated_at = NOW()`,
		userID, questionID, marked,
	)
	if err != nil {
		return contextutils.WrapError(err, "failed to upsert bookmark")
	}
	return nil
}

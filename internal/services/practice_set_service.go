package services

import (
	"context"
	"database/sql"
	"math/rand"

	"usmleapp/internal/config"
	"usmleapp/internal/models"
	"usmleapp/internal/observability"
	contextutils "usmleapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// PracticeSetServiceInterface defines the interface for custom practice set operations.
// This allows for easier mocking in tests.
type PracticeSetServiceInterface interface {
	CreateCustomSet(ctx context.Context, userID int, req models.CreateCustomSetRequest) (*models.CreateCustomSetResponse, error)
	DeleteSet(ctx context.Context, userID, practiceSetID int) error
	ListSetsForUser(ctx context.Context, userID int) ([]models.PracticeSetSummary, error)
	QuestionIDsForSet(ctx context.Context, userID, sessionID int) ([]int, error)
	UpdateSessionStatus(ctx context.Context, userID, sessionID int, status models.SetStatus) error
}

// PracticeSetService materializes filtered question pools into durable,
// immutable practice sets and manages their per-user play sessions.
type PracticeSetService struct {
	db     *sql.DB
	cfg    *config.Config
	filter FilterServiceInterface
	logger *observability.Logger
}

// NewPracticeSetService creates a new practice set service
func NewPracticeSetService(db *sql.DB, cfg *config.Config, filter FilterServiceInterface, logger *observability.Logger) *PracticeSetService {
	return &PracticeSetService{db: db, cfg: cfg, filter: filter, logger: logger}
}

// sampleQuestions draws a uniformly shuffled sample of min(maxQuestions, len(pool))
// ids from the pool. The input slice is not modified. Order is random and not
// reproducible; the shuffle is non-cryptographic on purpose.
func sampleQuestions(pool []int, maxQuestions int) []int {
	sampled := make([]int, len(pool))
	copy(sampled, pool)
	rand.Shuffle(len(sampled), func(i, j int) {
		sampled[i], sampled[j] = sampled[j], sampled[i]
	})
	if maxQuestions < len(sampled) {
		sampled = sampled[:maxQuestions]
	}
	return sampled
}

// CreateCustomSet filters the question pool, samples up to req.MaxQuestions
// ids and atomically creates the set definition, the play session and the
// ordered question snapshot. All three writes commit together or not at all.
func (s *PracticeSetService) CreateCustomSet(ctx context.Context, userID int, req models.CreateCustomSetRequest) (result0 *models.CreateCustomSetResponse, err error) {
	ctx, span := observability.TracePracticeFunction(ctx, "create_custom_set",
		observability.AttributeUserID(userID),
		attribute.Int("set.max_questions", req.MaxQuestions),
		attribute.Int("step.number", req.Step),
	)
	defer observability.FinishSpan(span, &err)

	if appErr, fieldErrs := contextutils.ValidateStruct(req); appErr != nil {
		return nil, appErr.WithFieldErrors(fieldErrs)
	}

	stepID, err := s.filter.ResolveStep(ctx, req.Step)
	if err != nil {
		return nil, err
	}

	pool, err := s.filter.MatchingQuestionIDs(ctx, userID, stepID, req.Filters.ToSpec())
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, contextutils.ErrNoMatchingQuestions
	}

	maxQuestions := req.MaxQuestions
	if limit := s.cfg.Server.MaxQuestionsPerSet; limit > 0 && maxQuestions > limit {
		maxQuestions = limit
	}
	sampled := sampleQuestions(pool, maxQuestions)
	span.SetAttributes(
		attribute.Int("set.pool_size", len(pool)),
		attribute.Int("set.sampled", len(sampled)),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				s.logger.Error(ctx, "Failed to rollback transaction", rollbackErr, map[string]interface{}{
					"user_id": userID,
				})
			}
		}
	}()

	var practiceSetID int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO custom_practice_sets (user_id, name, description, total_questions, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id`,
		userID, req.Name, req.Description, len(sampled),
	).Scan(&practiceSetID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to insert practice set")
	}

	var sessionID int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO user_custom_practice_sets (user_id, practice_set_id, status)
		VALUES ($1, $2, $3)
		RETURNING id`,
		userID, practiceSetID, models.SetStatusNotStarted,
	).Scan(&sessionID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to insert practice session")
	}

	for i, questionID := range sampled {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO generated_questions (session_id, question_id, display_order)
			VALUES ($1, $2, $3)`,
			sessionID, questionID, i+1,
		)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to insert generated question")
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, contextutils.WrapError(err, "failed to commit transaction")
	}

	s.logger.Info(ctx, "Custom practice set created", map[string]interface{}{
		"user_id":         userID,
		"practice_set_id": practiceSetID,
		"session_id":      sessionID,
		"total_questions": len(sampled),
	})

	return &models.CreateCustomSetResponse{
		ID:             sessionID,
		PracticeSetID:  practiceSetID,
		Name:           req.Name,
		Description:    req.Description,
		TotalQuestions: len(sampled),
		Status:         models.SetStatusNotStarted,
		Message:        "Practice set created successfully",
	}, nil
}

// DeleteSet removes a practice set the user owns, cascading in dependency
// order inside one transaction: generated questions, then sessions, then the
// set itself. Partial deletion is never observable.
func (s *PracticeSetService) DeleteSet(ctx context.Context, userID, practiceSetID int) (err error) {
	ctx, span := observability.TracePracticeFunction(ctx, "delete_set",
		observability.AttributeUserID(userID),
		observability.AttributeSetID(practiceSetID),
	)
	defer observability.FinishSpan(span, &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return contextutils.WrapError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				s.logger.Error(ctx, "Failed to rollback transaction", rollbackErr, map[string]interface{}{
					"user_id":         userID,
					"practice_set_id": practiceSetID,
				})
			}
		}
	}()

	var owner int
	err = tx.QueryRowContext(ctx,
		"SELECT user_id FROM custom_practice_sets WHERE id = $1",
		practiceSetID,
	).Scan(&owner)
	if err == sql.ErrNoRows {
		return contextutils.ErrPracticeSetNotFound
	}
	if err != nil {
		return contextutils.WrapError(err, "failed to look up practice set")
	}
	if owner != userID {
		// Do not reveal other users' set ids
		return contextutils.ErrPracticeSetNotFound
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM generated_questions
		WHERE session_id IN (
			SELECT id FROM user_custom_practice_sets WHERE practice_set_id = $1
		)`,
		practiceSetID,
	)
	if err != nil {
		return contextutils.WrapError(err, "failed to delete generated questions")
	}

	_, err = tx.ExecContext(ctx,
		"DELETE FROM user_custom_practice_sets WHERE practice_set_id = $1",
		practiceSetID,
	)
	if err != nil {
		return contextutils.WrapError(err, "failed to delete practice sessions")
	}

	_, err = tx.ExecContext(ctx,
		"DELETE FROM custom_practice_sets WHERE id = $1",
		practiceSetID,
	)
	if err != nil {
		return contextutils.WrapError(err, "failed to delete practice set")
	}

	if err = tx.Commit(); err != nil {
		return contextutils.WrapError(err, "failed to commit transaction")
	}

	s.logger.Info(ctx, "Practice set deleted", map[string]interface{}{
		"user_id":         userID,
		"practice_set_id": practiceSetID,
	})
	return nil
}

// ListSetsForUser returns the user's play sessions with derived status,
// attempt counts, best score and last-attempted timestamp
func (s *PracticeSetService) ListSetsForUser(ctx context.Context, userID int) (result0 []models.PracticeSetSummary, err error) {
	ctx, span := observability.TracePracticeFunction(ctx, "list_sets_for_user",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT ucps.id,
		       cps.id,
		       cps.name,
		       cps.description,
		       cps.total_questions,
		       ucps.status,
		       cps.created_at,
		       COUNT(DISTINCT gq.question_id) FILTER (WHERE ua.id IS NOT NULL) AS attempted,
		       COUNT(DISTINCT gq.question_id) FILTER (WHERE correct.question_id IS NOT NULL) AS best_score,
		       MAX(ua.created_at) AS last_attempted
		FROM user_custom_practice_sets ucps
		JOIN custom_practice_sets cps ON cps.id = ucps.practice_set_id
		LEFT JOIN generated_questions gq ON gq.session_id = ucps.id
		LEFT JOIN user_attempts ua
		       ON ua.user_id = ucps.user_id AND ua.question_id = gq.question_id
		LEFT JOIN LATERAL (
			SELECT 1 AS question_id
			FROM user_attempts c
			WHERE c.user_id = ucps.user_id AND c.question_id = gq.question_id AND c.is_correct = TRUE
			LIMIT 1
		) correct ON TRUE
		WHERE ucps.user_id = $1 AND cps.is_active = TRUE
		GROUP BY ucps.id, cps.id
		ORDER BY cps.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to list practice sets")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	summaries := []models.PracticeSetSummary{}
	for rows.Next() {
		var sum models.PracticeSetSummary
		var stored models.SetStatus
		var lastAttempted sql.NullTime
		if err := rows.Scan(
			&sum.ID,
			&sum.PracticeSetID,
			&sum.Name,
			&sum.Description,
			&sum.TotalQuestions,
			&stored,
			&sum.CreatedAt,
			&sum.AttemptedCount,
			&sum.BestScore,
			&lastAttempted,
		); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan practice set summary")
		}
		if lastAttempted.Valid {
			t := lastAttempted.Time
			sum.LastAttempted = &t
		}
		sum.Status = deriveSetStatus(stored, sum.AttemptedCount, sum.TotalQuestions)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// deriveSetStatus computes the listing status from the attempt ledger. An
// explicitly paused session stays paused; otherwise the status follows the
// attempted-question count, with COMPLETED once every question has an attempt.
func deriveSetStatus(stored models.SetStatus, attempted, total int) models.SetStatus {
	if stored == models.SetStatusPaused {
		return models.SetStatusPaused
	}
	switch {
	case attempted == 0:
		return models.SetStatusNotStarted
	case total > 0 && attempted >= total:
		return models.SetStatusCompleted
	default:
		return models.SetStatusInProgress
	}
}

// QuestionIDsForSet returns the session's question ids in display order
func (s *PracticeSetService) QuestionIDsForSet(ctx context.Context, userID, sessionID int) (result0 []int, err error) {
	ctx, span := observability.TracePracticeFunction(ctx, "question_ids_for_set",
		observability.AttributeUserID(userID),
		observability.AttributeSetID(sessionID),
	)
	defer observability.FinishSpan(span, &err)

	var owner int
	err = s.db.QueryRowContext(ctx,
		"SELECT user_id FROM user_custom_practice_sets WHERE id = $1",
		sessionID,
	).Scan(&owner)
	if err == sql.ErrNoRows {
		return nil, contextutils.ErrPracticeSetNotFound
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to look up practice session")
	}
	if owner != userID {
		return nil, contextutils.ErrPracticeSetNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT question_id FROM generated_questions
		WHERE session_id = $1
		ORDER BY display_order`,
		sessionID,
	)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query generated questions")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan question id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateSessionStatus sets the explicit session status, used for pausing and
// resuming. The question snapshot itself never changes.
func (s *PracticeSetService) UpdateSessionStatus(ctx context.Context, userID, sessionID int, status models.SetStatus) (err error) {
	ctx, span := observability.TracePracticeFunction(ctx, "update_session_status",
		observability.AttributeUserID(userID),
		observability.AttributeSetID(sessionID),
		attribute.String("set.status", string(status)),
	)
	defer observability.FinishSpan(span, &err)

	switch status {
	case models.SetStatusNotStarted, models.SetStatusInProgress, models.SetStatusCompleted, models.SetStatusPaused:
	default:
		return contextutils.NewAppError(contextutils.ErrorCodeInvalidInput, contextutils.SeverityWarn, "invalid session status", string(status))
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE user_custom_practice_sets
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3`,
		status, sessionID, userID,
	)
	if err != nil {
		return contextutils.WrapError(err, "failed to update session status")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to read rows affected")
	}
	if affected == 0 {
		return contextutils.ErrPracticeSetNotFound
	}
	return nil
}

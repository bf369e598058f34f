package services

import (
	"context"
	"database/sql"

	"usmleapp/internal/models"
	"usmleapp/internal/observability"
	contextutils "usmleapp/internal/utils"
)

// FeedbackServiceInterface defines the interface for feedback operations
type FeedbackServiceInterface interface {
	SubmitFeedback(ctx context.Context, userID int, req models.FeedbackRequest) (*models.Feedback, error)
	ListFeedback(ctx context.Context, limit, offset int) ([]models.Feedback, int, error)
}

// FeedbackService stores user-submitted feedback
type FeedbackService struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewFeedbackService creates a new feedback service
func NewFeedbackService(db *sql.DB, logger *observability.Logger) *FeedbackService {
	return &FeedbackService{db: db, logger: logger}
}

// SubmitFeedback validates and stores one feedback record
func (s *FeedbackService) SubmitFeedback(ctx context.Context, userID int, req models.FeedbackRequest) (result0 *models.Feedback, err error) {
	ctx, span := observability.TraceHandlerFunction(ctx, "submit_feedback",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	if appErr, fieldErrs := contextutils.ValidateStruct(req); appErr != nil {
		return nil, appErr.WithFieldErrors(fieldErrs)
	}

	fb := &models.Feedback{UserID: userID, Category: req.Category, Text: req.Text}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO feedback (user_id, category, text)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		userID, req.Category, req.Text,
	).Scan(&fb.ID, &fb.CreatedAt)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to insert feedback")
	}
	return fb, nil
}

// ListFeedback returns a page of feedback, newest first, for admin review
func (s *FeedbackService) ListFeedback(ctx context.Context, limit, offset int) (result0 []models.Feedback, result1 int, err error) {
	ctx, span := observability.TraceHandlerFunction(ctx, "list_feedback",
		observability.AttributeLimit(limit),
	)
	defer observability.FinishSpan(span, &err)

	var total int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feedback").Scan(&total)
	if err != nil {
		return nil, 0, contextutils.WrapError(err, "failed to count feedback")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, category, text, created_at
		FROM feedback
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, contextutils.WrapError(err, "failed to query feedback")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	items := []models.Feedback{}
	for rows.Next() {
		var fb models.Feedback
		if err := rows.Scan(&fb.ID, &fb.UserID, &fb.Category, &fb.Text, &fb.CreatedAt); err != nil {
			return nil, 0, contextutils.WrapError(err, "failed to scan feedback")
		}
		items = append(items, fb)
	}
	return items, total, rows.Err()
}

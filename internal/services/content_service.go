package services

import (
	"context"
	"database/sql"

	"usmleapp/internal/config"
	"usmleapp/internal/models"
	"usmleapp/internal/observability"
	contextutils "usmleapp/internal/utils"
)

// ContentServiceInterface defines the interface for browsing the content
// hierarchy. This allows for easier mocking in tests.
type ContentServiceInterface interface {
	ListSteps(ctx context.Context) ([]models.Step, error)
	ListTopics(ctx context.Context, stepNumber int) ([]models.Topic, error)
	ListSubtopics(ctx context.Context, topicID int) ([]models.Subtopic, error)
	GetQuestion(ctx context.Context, userID, questionID int, reveal bool) (*models.Question, error)
}

// ContentService reads the steps/topics/subtopics/questions hierarchy
type ContentService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

// NewContentService creates a new content service
func NewContentService(db *sql.DB, cfg *config.Config, logger *observability.Logger) *ContentService {
	return &ContentService{db: db, cfg: cfg, logger: logger}
}

// ListSteps returns the active exam steps in step-number order
func (s *ContentService) ListSteps(ctx context.Context) (result0 []models.Step, err error) {
	ctx, span := observability.TraceQuestionFunction(ctx, "list_steps")
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, step_number, name, is_active, created_at
		FROM steps
		WHERE is_active = TRUE
		ORDER BY step_number`,
	)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query steps")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	steps := []models.Step{}
	for rows.Next() {
		var step models.Step
		if err := rows.Scan(&step.ID, &step.StepNumber, &step.Name, &step.IsActive, &step.CreatedAt); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan step")
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// ListTopics returns the active topics of a step in display order
func (s *ContentService) ListTopics(ctx context.Context, stepNumber int) (result0 []models.Topic, err error) {
	ctx, span := observability.TraceQuestionFunction(ctx, "list_topics")
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
		SELECT id, step_id, name, COALESCE(description, ''), display_order, is_active, created_at
		FROM topics
		WHERE step_id = $1 AND is_active = TRUE
		ORDER BY display_order, id`,
		stepID,
	)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query topics")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	topics := []models.Topic{}
	for rows.Next() {
		var topic models.Topic
		if err := rows.Scan(&topic.ID, &topic.StepID, &topic.Name, &topic.Description, &topic.DisplayOrder, &topic.IsActive, &topic.CreatedAt); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan topic")
		}
		topics = append(topics, topic)
	}
	return topics, rows.Err()
}

// ListSubtopics returns the active subtopics of a topic in display order
func (s *ContentService) ListSubtopics(ctx context.Context, topicID int) (result0 []models.Subtopic, err error) {
	ctx, span := observability.TraceQuestionFunction(ctx, "list_subtopics",
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
		SELECT id, topic_id, name, COALESCE(description, ''), display_order, is_active, created_at
		FROM subtopics
		WHERE topic_id = $1 AND is_active = TRUE
		ORDER BY display_order, id`,
		topicID,
	)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query subtopics")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	subtopics := []models.Subtopic{}
	for rows.Next() {
		var st models.Subtopic
		if err := rows.Scan(&st.ID, &st.TopicID, &st.Name, &st.Description, &st.DisplayOrder, &st.IsActive, &st.CreatedAt); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan subtopic")
		}
		subtopics = append(subtopics, st)
	}
	return subtopics, rows.Err()
}

// GetQuestion loads a question with its options. Correctness flags and the
// explanation are stripped unless reveal is set and the user has attempted
// the question.
func (s *ContentService) GetQuestion(ctx context.Context, userID, questionID int, reveal bool) (result0 *models.Question, err error) {
	ctx, span := observability.TraceQuestionFunction(ctx, "get_question",
		observability.AttributeUserID(userID),
		observability.AttributeQuestionID(questionID),
	)
	defer observability.FinishSpan(span, &err)

	question := &models.Question{}
	err = s.db.QueryRowContext(ctx, `
		SELECT id, title, body, COALESCE(explanation, ''), difficulty, type, system, discipline, is_active, created_at
		FROM questions
		WHERE id = $1 AND is_active = TRUE`,
		questionID,
	).Scan(
		&question.ID,
		&question.Title,
		&question.Body,
		&question.Explanation,
		&question.Difficulty,
		&question.Type,
		&question.System,
		&question.Discipline,
		&question.IsActive,
		&question.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, contextutils.ErrQuestionNotFound
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query question")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question_id, text, is_correct, display_order
		FROM question_options
		WHERE question_id = $1
		ORDER BY display_order, id`,
		questionID,
	)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query options")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	for rows.Next() {
		var opt models.Option
		if err := rows.Scan(&opt.ID, &opt.QuestionID, &opt.Text, &opt.IsCorrect, &opt.DisplayOrder); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan option")
		}
		question.Options = append(question.Options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate options")
	}

	if reveal {
		var attempted bool
		err = s.db.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM user_attempts WHERE user_id = $1 AND question_id = $2)",
			userID, questionID,
		).Scan(&attempted)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to check attempts")
		}
		reveal = attempted
	}
	if !reveal {
		question.Explanation = ""
		for i := range question.Options {
			question.Options[i].IsCorrect = false
		}
	}
	return question, nil
}

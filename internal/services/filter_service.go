package services

import (
	"context"
	"database/sql"
	"fmt"

	"usmleapp/internal/config"
	"usmleapp/internal/models"
	"usmleapp/internal/observability"
	contextutils "usmleapp/internal/utils"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

// FilterServiceInterface defines the interface for the question filter engine.
// This allows for easier mocking in tests.
type FilterServiceInterface interface {
	MatchingQuestionIDs(ctx context.Context, userID, stepID int, spec models.FilterSpec) ([]int, error)
	CountMatching(ctx context.Context, userID, stepID int, spec models.FilterSpec) (int, error)
	FilterCounts(ctx context.Context, userID, stepID int, systems, disciplines []string) (*models.FilterCountsResponse, error)
	ResolveStep(ctx context.Context, stepNumber int) (int, error)
}

// FilterService computes, for a user and a declarative filter specification,
// the set of active questions satisfying every criterion. It is read-only and
// idempotent; the live-count preview calls it on every filter change.
type FilterService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

// NewFilterService creates a new filter service
func NewFilterService(db *sql.DB, cfg *config.Config, logger *observability.Logger) *FilterService {
	return &FilterService{db: db, cfg: cfg, logger: logger}
}

// ResolveStep maps an exam step number to its id, or ErrStepNotFound
func (s *FilterService) ResolveStep(ctx context.Context, stepNumber int) (result0 int, err error) {
	ctx, span := observability.TraceFilterFunction(ctx, "resolve_step",
		attribute.Int("step.number", stepNumber),
	)
	defer observability.FinishSpan(span, &err)

	var stepID int
	err = s.db.QueryRowContext(ctx,
		"SELECT id FROM steps WHERE step_number = $1 AND is_active = TRUE",
		stepNumber,
	).Scan(&stepID)
	if err == sql.ErrNoRows {
		return 0, contextutils.ErrStepNotFound
	}
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to resolve step")
	}
	return stepID, nil
}

// candidateStatusQuery selects the per-user status of every active question of
// a step that survives the difficulty/system/discipline constraints. The
// system and discipline axes each OR the denormalized tag with the
// association-table match, and the two axes combine with AND.
const candidateStatusQuery = `
	SELECT q.id,
	       COALESCE(uqs.is_used, FALSE) OR EXISTS (
	           SELECT 1 FROM user_attempts ua
	           WHERE ua.user_id = $1 AND ua.question_id = q.id
	       ) AS is_used,
	       COALESCE(uqs.is_marked, FALSE) AS is_marked,
	       EXISTS (
	           SELECT 1 FROM user_attempts ua
	           WHERE ua.user_id = $1 AND ua.question_id = q.id AND ua.is_correct = TRUE
	       ) AS has_correct,
	       EXISTS (
	           SELECT 1 FROM user_attempts ua
	           WHERE ua.user_id = $1 AND ua.question_id = q.id AND ua.is_correct = FALSE
	       ) AS has_incorrect
	FROM questions q
	LEFT JOIN user_question_state uqs
	       ON uqs.user_id = $1 AND uqs.question_id = q.id
	WHERE q.is_active = TRUE
	  AND EXISTS (
	      SELECT 1 FROM question_topics qt
	      JOIN topics t ON t.id = qt.topic_id
	      WHERE qt.question_id = q.id AND t.step_id = $2
	  )
	  AND (cardinality($3::text[]) = 0 OR q.difficulty = ANY($3))
	  AND (cardinality($4::text[]) = 0
	       OR q.system = ANY($4)
	       OR EXISTS (
	           SELECT 1 FROM question_systems qs
	           WHERE qs.question_id = q.id AND qs.system = ANY($4)
	       ))
	  AND (cardinality($5::text[]) = 0
	       OR q.discipline = ANY($5)
	       OR EXISTS (
	           SELECT 1 FROM question_disciplines qd
	           WHERE qd.question_id = q.id AND qd.discipline = ANY($5)
	       ))
	ORDER BY q.id
`

// candidateStatuses runs the SQL layer of the filter: active questions of the
// step constrained by difficulty/system/discipline, each annotated with the
// user's usage, bookmark and correctness status
func (s *FilterService) candidateStatuses(ctx context.Context, userID, stepID int, spec models.FilterSpec) (result0 []models.QuestionStatus, err error) {
	ctx, span := observability.TraceFilterFunction(ctx, "candidate_statuses",
		observability.AttributeUserID(userID),
		observability.AttributeStepID(stepID),
	)
	defer observability.FinishSpan(span, &err)

	difficulties := make([]string, 0, len(spec.Difficulties))
	for _, d := range spec.Difficulties {
		difficulties = append(difficulties, string(d))
	}

	rows, err := s.db.QueryContext(ctx, candidateStatusQuery,
		userID,
		stepID,
		pq.Array(difficulties),
		pq.Array(emptyIfNil(spec.Systems)),
		pq.Array(emptyIfNil(spec.Disciplines)),
	)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query candidate questions")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var statuses []models.QuestionStatus
	for rows.Next() {
		var st models.QuestionStatus
		if err := rows.Scan(&st.QuestionID, &st.IsUsed, &st.IsMarked, &st.HasCorrectAttempt, &st.HasIncorrectAttempt); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan question status")
		}
		statuses = append(statuses, st)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate candidate questions")
	}

	span.SetAttributes(attribute.Int("filter.candidates", len(statuses)))
	return statuses, nil
}

// MatchingQuestionIDs returns the ids of every question satisfying the full
// filter specification. An empty result is a valid outcome, not an error.
func (s *FilterService) MatchingQuestionIDs(ctx context.Context, userID, stepID int, spec models.FilterSpec) (result0 []int, err error) {
	ctx, span := observability.TraceFilterFunction(ctx, "matching_question_ids",
		observability.AttributeUserID(userID),
		observability.AttributeStepID(stepID),
	)
	defer observability.FinishSpan(span, &err)

	statuses, err := s.candidateStatuses(ctx, userID, stepID, spec)
	if err != nil {
		return nil, err
	}

	ids := applyStatusFilters(spec, statuses)
	span.SetAttributes(attribute.Int("filter.matches", len(ids)))
	return ids, nil
}

// CountMatching returns the live count for the filter preview
func (s *FilterService) CountMatching(ctx context.Context, userID, stepID int, spec models.FilterSpec) (result0 int, err error) {
	ctx, span := observability.TraceFilterFunction(ctx, "count_matching",
		observability.AttributeUserID(userID),
		observability.AttributeStepID(stepID),
	)
	defer observability.FinishSpan(span, &err)

	ids, err := s.MatchingQuestionIDs(ctx, userID, stepID, spec)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// applyStatusFilters applies the per-user status rules to the candidate list.
// Pure function over the derived statuses so the predicate logic is testable
// without a database.
//
// Rules, in order:
//   - usage: drop used questions unless IncludeUsed, drop unused unless
//     IncludeUnused
//   - marked: when IncludeMarked is set it narrows to bookmarked questions
//     only, it never widens the set
//   - correctness: attempted questions must carry every requested correctness
//     property; an unattempted question is dropped when exactly one of
//     IncludeCorrect/IncludeIncorrect is set, and kept when both or neither
//     are set
func applyStatusFilters(spec models.FilterSpec, statuses []models.QuestionStatus) []int {
	ids := make([]int, 0, len(statuses))
	for _, st := range statuses {
		if st.IsUsed && !spec.IncludeUsed {
			continue
		}
		if !st.IsUsed && !spec.IncludeUnused {
			continue
		}
		if spec.IncludeMarked && !st.IsMarked {
			continue
		}
		attempted := st.HasCorrectAttempt || st.HasIncorrectAttempt
		if attempted {
			if spec.IncludeCorrect && !st.HasCorrectAttempt {
				continue
			}
			if spec.IncludeIncorrect && !st.HasIncorrectAttempt {
				continue
			}
		} else if spec.IncludeCorrect != spec.IncludeIncorrect {
			continue
		}
		ids = append(ids, st.QuestionID)
	}
	return ids
}

// tagCountsSQL builds the per-tag count query for one axis. The column name
// is interpolated from a fixed set ("system" or "discipline"), never from
// user input.
func tagCountsSQL(column string) string {
	return fmt.Sprintf(`
	SELECT tag, COUNT(DISTINCT question_id) FROM (
	    SELECT q.id AS question_id, q.%[1]s AS tag
	    FROM questions q
	    WHERE q.is_active = TRUE AND q.%[1]s IS NOT NULL
	    UNION
	    SELECT a.question_id, a.%[1]s AS tag
	    FROM question_%[1]ss a
	    JOIN questions q ON q.id = a.question_id
	    WHERE q.is_active = TRUE
	) tags
	JOIN question_topics qt ON qt.question_id = tags.question_id
	JOIN topics t ON t.id = qt.topic_id
	WHERE t.step_id = $1
	GROUP BY tag
	ORDER BY tag
`, column)
}

// FilterCounts returns the per-axis breakdown for the filter UI: counts per
// system/discipline tag, per status bucket and per difficulty, restricted to
// the candidate pool for the given tag constraints.
func (s *FilterService) FilterCounts(ctx context.Context, userID, stepID int, systems, disciplines []string) (result0 *models.FilterCountsResponse, err error) {
	ctx, span := observability.TraceFilterFunction(ctx, "filter_counts",
		observability.AttributeUserID(userID),
		observability.AttributeStepID(stepID),
	)
	defer observability.FinishSpan(span, &err)

	spec := models.DefaultFilterSpec()
	spec.Systems = systems
	spec.Disciplines = disciplines

	statuses, err := s.candidateStatuses(ctx, userID, stepID, spec)
	if err != nil {
		return nil, err
	}

	difficulties, err := s.difficultyByQuestion(ctx, stepID)
	if err != nil {
		return nil, err
	}

	counts := models.FilterCounts{
		Systems:     map[string]int{},
		Disciplines: map[string]int{},
	}
	for _, st := range statuses {
		counts.Total++
		if st.IsUsed {
			counts.UsedQuestions++
		} else {
			counts.UnusedQuestions++
		}
		if st.HasCorrectAttempt {
			counts.CorrectQuestions++
		}
		if st.HasIncorrectAttempt {
			counts.IncorrectQuestions++
		}
		if st.IsMarked {
			counts.MarkedQuestions++
		}
		switch difficulties[st.QuestionID] {
		case models.DifficultyEasy:
			counts.EasyQuestions++
		case models.DifficultyMedium:
			counts.MediumQuestions++
		case models.DifficultyHard:
			counts.HardQuestions++
		}
	}

	available := models.AvailableFilters{Systems: []string{}, Disciplines: []string{}}
	for _, axis := range []struct {
		column string
		counts map[string]int
		tags   *[]string
	}{
		{"system", counts.Systems, &available.Systems},
		{"discipline", counts.Disciplines, &available.Disciplines},
	} {
		if err := s.tagCounts(ctx, stepID, axis.column, axis.counts, axis.tags); err != nil {
			return nil, err
		}
	}

	return &models.FilterCountsResponse{Counts: counts, AvailableFilters: available}, nil
}

func (s *FilterService) tagCounts(ctx context.Context, stepID int, column string, out map[string]int, tags *[]string) (err error) {
	query := tagCountsSQL(column)
	rows, err := s.db.QueryContext(ctx, query, stepID)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to count %s tags", column)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	for rows.Next() {
		var tag string
		var count int
		if err := rows.Scan(&tag, &count); err != nil {
			return contextutils.WrapError(err, "failed to scan tag count")
		}
		out[tag] = count
		*tags = append(*tags, tag)
	}
	return rows.Err()
}

func (s *FilterService) difficultyByQuestion(ctx context.Context, stepID int) (result0 map[int]models.Difficulty, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT q.id, q.difficulty
		FROM questions q
		JOIN question_topics qt ON qt.question_id = q.id
		JOIN topics t ON t.id = qt.topic_id
		WHERE q.is_active = TRUE AND t.step_id = $1`,
		stepID,
	)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query question difficulties")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	out := make(map[int]models.Difficulty)
	for rows.Next() {
		var id int
		var d models.Difficulty
		if err := rows.Scan(&id, &d); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan question difficulty")
		}
		out[id] = d
	}
	return out, rows.Err()
}

func emptyIfNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

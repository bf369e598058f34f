package commands

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xeipuuv/gojsonschema"

	"usmleapp/internal/observability"
	contextutils "usmleapp/internal/utils"
)

// questionImportSchema validates one JSONL record of the question import
// format. Topics and subtopics reference existing ids; at least one topic and
// one correct option are required.
const questionImportSchema = `{
	"type": "object",
	"required": ["title", "body", "difficulty", "options", "topics"],
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"body": {"type": "string", "minLength": 1},
		"explanation": {"type": "string"},
		"difficulty": {"type": "string", "enum": ["EASY", "MEDIUM", "HARD"]},
		"type": {"type": "string"},
		"system": {"type": "string"},
		"discipline": {"type": "string"},
		"systems": {"type": "array", "items": {"type": "string", "minLength": 1}},
		"disciplines": {"type": "array", "items": {"type": "string", "minLength": 1}},
		"topics": {"type": "array", "minItems": 1, "items": {"type": "integer", "minimum": 1}},
		"subtopics": {"type": "array", "items": {"type": "integer", "minimum": 1}},
		"options": {
			"type": "array",
			"minItems": 2,
			"items": {
				"type": "object",
				"required": ["text", "isCorrect"],
				"properties": {
					"text": {"type": "string", "minLength": 1},
					"isCorrect": {"type": "boolean"}
				}
			}
		}
	}
}`

// questionImportRecord mirrors one line of the JSONL import file
type questionImportRecord struct {
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Explanation string   `json:"explanation"`
	Difficulty  string   `json:"difficulty"`
	Type        string   `json:"type"`
	System      string   `json:"system"`
	Discipline  string   `json:"discipline"`
	Systems     []string `json:"systems"`
	Disciplines []string `json:"disciplines"`
	Topics      []int    `json:"topics"`
	Subtopics   []int    `json:"subtopics"`
	Options     []struct {
		Text      string `json:"text"`
		IsCorrect bool   `json:"isCorrect"`
	} `json:"options"`
}

// QuestionCommands returns the question management commands
func QuestionCommands(logger *observability.Logger, db *sql.DB) *cobra.Command {
	questionCmd := &cobra.Command{
		Use:   "questions",
		Short: "Question management commands",
		Long: `Question management commands for the exam prep backend.

Available commands:
  import - Import questions from a JSONL file`,
	}

	questionCmd.AddCommand(importQuestionsCmd(logger, db))

	return questionCmd
}

// importQuestionsCmd returns the import command
func importQuestionsCmd(logger *observability.Logger, db *sql.DB) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import questions from a JSONL file",
		Long: `Import questions from a JSONL file. Each line is a JSON object with the
question text, options, tags and the topic ids to attach it to. Lines are
validated against the import schema before anything is written; with --dry-run
the file is validated and nothing is inserted.`,
		Args: cobra.ExactArgs(1),
		RunE: runImportQuestions(logger, db, &dryRun),
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate the file without inserting anything")

	return cmd
}

// runImportQuestions returns a function that imports questions from a file
func runImportQuestions(logger *observability.Logger, db *sql.DB, dryRun *bool) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, args []string) error {
		ctx := context.Background()
		path := args[0]

		file, err := os.Open(path)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to open import file %s", path)
		}
		defer func() {
			if closeErr := file.Close(); closeErr != nil {
				logger.Warn(ctx, "Failed to close import file", map[string]interface{}{"error": closeErr.Error()})
			}
		}()

		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(questionImportSchema))
		if err != nil {
			return contextutils.WrapError(err, "failed to compile import schema")
		}

		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		var imported, skipped, lineNo int
		for scanner.Scan() {
			lineNo++
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			result, err := schema.Validate(gojsonschema.NewBytesLoader(line))
			if err != nil {
				return contextutils.WrapErrorf(err, "line %d: failed to validate", lineNo)
			}
			if !result.Valid() {
				for _, desc := range result.Errors() {
					fmt.Fprintf(os.Stderr, "line %d: %s\n", lineNo, desc)
				}
				skipped++
				continue
			}

			var record questionImportRecord
			if err := json.Unmarshal(line, &record); err != nil {
				return contextutils.WrapErrorf(err, "line %d: failed to decode", lineNo)
			}

			if *dryRun {
				imported++
				continue
			}

			if err := insertQuestion(ctx, db, &record); err != nil {
				return contextutils.WrapErrorf(err, "line %d: failed to insert question", lineNo)
			}
			imported++
		}
		if err := scanner.Err(); err != nil {
			return contextutils.WrapError(err, "failed to read import file")
		}

		action := "Imported"
		if *dryRun {
			action = "Validated"
		}
		fmt.Printf("%s %d questions (%d skipped)\n", action, imported, skipped)
		logger.Info(ctx, "Question import finished", map[string]interface{}{"imported": imported, "skipped": skipped, "dry_run": *dryRun})

		return nil
	}
}

// insertQuestion writes one question and its associations in a transaction
func insertQuestion(ctx context.Context, db *sql.DB, record *questionImportRecord) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return contextutils.WrapError(err, "failed to begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				fmt.Fprintf(os.Stderr, "Warning: rollback failed: %v\n", rbErr)
			}
		}
	}()

	questionType := record.Type
	if questionType == "" {
		questionType = "single_best_answer"
	}

	var questionID int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO questions (title, body, explanation, difficulty, type, system, discipline, is_active)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), TRUE)
		RETURNING id`,
		record.Title, record.Body, record.Explanation, record.Difficulty, questionType, record.System, record.Discipline,
	).Scan(&questionID)
	if err != nil {
		return contextutils.WrapError(err, "failed to insert question")
	}

	for i, opt := range record.Options {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO question_options (question_id, text, is_correct, display_order)
			VALUES ($1, $2, $3, $4)`,
			questionID, opt.Text, opt.IsCorrect, i+1,
		); err != nil {
			return contextutils.WrapError(err, "failed to insert option")
		}
	}

	for _, topicID := range record.Topics {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO question_topics (question_id, topic_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			questionID, topicID,
		); err != nil {
			return contextutils.WrapError(err, "failed to link topic")
		}
	}

	for _, subtopicID := range record.Subtopics {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO question_subtopics (question_id, subtopic_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			questionID, subtopicID,
		); err != nil {
			return contextutils.WrapError(err, "failed to link subtopic")
		}
	}

	for _, system := range record.Systems {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO question_systems (question_id, system) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			questionID, system,
		); err != nil {
			return contextutils.WrapError(err, "failed to link system tag")
		}
	}

	for _, discipline := range record.Disciplines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO question_disciplines (question_id, discipline) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			questionID, discipline,
		); err != nil {
			return contextutils.WrapError(err, "failed to link discipline tag")
		}
	}

	if err := tx.Commit(); err != nil {
		return contextutils.WrapError(err, "failed to commit question")
	}
	committed = true
	return nil
}

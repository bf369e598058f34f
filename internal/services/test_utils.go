//go:build integration

package services

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"usmleapp/internal/config"
	"usmleapp/internal/database"
	"usmleapp/internal/models"
	"usmleapp/internal/observability"

	"github.com/stretchr/testify/require"
)

// SharedTestDBSetup provides a clean, migrated database for an integration
// test. TEST_DATABASE_URL must point at a throwaway Postgres database.
func SharedTestDBSetup(t *testing.T) *sql.DB {
	t.Helper()

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Fatal("TEST_DATABASE_URL environment variable must be set for integration tests")
	}

	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	dbManager := database.NewManager(logger)

	db, err := dbManager.InitDB(databaseURL)
	require.NoError(t, err)

	CleanupTestDatabase(t, db)
	return db
}

// CleanupTestDatabase truncates all mutable tables. Steps stay; they are
// seeded by the migration.
func CleanupTestDatabase(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx := context.Background()

	tables := []string{
		"user_attempts",
		"user_question_state",
		"user_topic_progress",
		"user_step_progress",
		"generated_questions",
		"user_custom_practice_sets",
		"custom_practice_sets",
		"chat_messages",
		"conversations",
		"feedback",
		"question_options",
		"question_topics",
		"question_subtopics",
		"question_systems",
		"question_disciplines",
		"questions",
		"subtopics",
		"topics",
		"users",
	}
	for _, table := range tables {
		_, err := db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		require.NoError(t, err, "truncating %s", table)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			AdminUsername:      "admin",
			AdminPassword:      "password",
			MaxQuestionsPerSet: config.MaxQuestionsPerCustomSet,
		},
	}
}

func noopLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}

// seedTestUser inserts a user directly, bypassing the password machinery
func seedTestUser(t *testing.T, db *sql.DB, username string) int {
	t.Helper()
	var id int
	err := db.QueryRow(`
		INSERT INTO users (username, email, password_hash, is_admin)
		VALUES ($1, $1 || '@example.com', 'x', FALSE)
		RETURNING id`, username).Scan(&id)
	require.NoError(t, err)
	return id
}

// seedTestTopic creates a topic under the given exam step number
func seedTestTopic(t *testing.T, db *sql.DB, stepNumber int, name string) int {
	t.Helper()
	var id int
	err := db.QueryRow(`
		INSERT INTO topics (step_id, name)
		VALUES ((SELECT id FROM steps WHERE step_number = $1), $2)
		RETURNING id`, stepNumber, name).Scan(&id)
	require.NoError(t, err)
	return id
}

// seedTestQuestion creates an active question linked to the topic
func seedTestQuestion(t *testing.T, db *sql.DB, topicID int, difficulty models.Difficulty, system, discipline string) int {
	t.Helper()
	var id int
	err := db.QueryRow(`
		INSERT INTO questions (title, body, difficulty, system, discipline)
		VALUES ('Test question', 'Body', $1, NULLIF($2, ''), NULLIF($3, ''))
		RETURNING id`, string(difficulty), system, discipline).Scan(&id)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO question_topics (question_id, topic_id) VALUES ($1, $2)`, id, topicID)
	require.NoError(t, err)
	return id
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

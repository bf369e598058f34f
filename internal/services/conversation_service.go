package services

import (
	"context"
	"database/sql"
	"time"

	"usmleapp/internal/models"
	"usmleapp/internal/observability"
	contextutils "usmleapp/internal/utils"

	"github.com/google/uuid"
)

// ConversationServiceInterface defines the interface for study-assistant
// conversation storage
type ConversationServiceInterface interface {
	CreateConversation(ctx context.Context, userID int, title string) (*models.Conversation, error)
	GetConversation(ctx context.Context, userID int, conversationID string) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID, limit, offset int) ([]models.Conversation, int, error)
	GetMessages(ctx context.Context, userID int, conversationID string, limit, offset int) ([]models.ChatMessage, int, error)
	AppendMessage(ctx context.Context, userID int, conversationID string, role models.ChatRole, content string) (*models.ChatMessage, error)
	DeleteConversation(ctx context.Context, userID int, conversationID string) error
}

// ConversationService stores assistant conversations and their messages
type ConversationService struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewConversationService creates a new conversation service
func NewConversationService(db *sql.DB, logger *observability.Logger) *ConversationService {
	return &ConversationService{db: db, logger: logger}
}

// CreateConversation starts a new conversation for the user
func (s *ConversationService) CreateConversation(ctx context.Context, userID int, title string) (result0 *models.Conversation, err error) {
	ctx, span := observability.TraceChatFunction(ctx, "create_conversation",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	if title == "" {
		title = "New conversation"
	}

	now := time.Now()
	conv := &models.Conversation{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		conv.ID, conv.UserID, conv.Title, conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to create conversation")
	}
	return conv, nil
}

// GetConversation loads one conversation the user owns
func (s *ConversationService) GetConversation(ctx context.Context, userID int, conversationID string) (result0 *models.Conversation, err error) {
	ctx, span := observability.TraceChatFunction(ctx, "get_conversation",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	var conv models.Conversation
	err = s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE id = $1 AND user_id = $2`,
		conversationID, userID,
	).Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, contextutils.ErrRecordNotFound
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get conversation")
	}
	return &conv, nil
}

// ListConversations returns a page of the user's conversations, most recently
// updated first, plus the total count
func (s *ConversationService) ListConversations(ctx context.Context, userID, limit, offset int) (result0 []models.Conversation, result1 int, err error) {
	ctx, span := observability.TraceChatFunction(ctx, "list_conversations",
		observability.AttributeUserID(userID),
		observability.AttributeLimit(limit),
	)
	defer observability.FinishSpan(span, &err)

	var total int
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM conversations WHERE user_id = $1",
		userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, contextutils.WrapError(err, "failed to count conversations")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, contextutils.WrapError(err, "failed to list conversations")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	conversations := []models.Conversation{}
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, 0, contextutils.WrapError(err, "failed to scan conversation")
		}
		conversations = append(conversations, conv)
	}
	return conversations, total, rows.Err()
}

// GetMessages returns a page of a conversation's messages in chronological
// order, after verifying ownership
func (s *ConversationService) GetMessages(ctx context.Context, userID int, conversationID string, limit, offset int) (result0 []models.ChatMessage, result1 int, err error) {
	ctx, span := observability.TraceChatFunction(ctx, "get_messages",
		observability.AttributeUserID(userID),
		observability.AttributeLimit(limit),
	)
	defer observability.FinishSpan(span, &err)

	if _, err = s.GetConversation(ctx, userID, conversationID); err != nil {
		return nil, 0, err
	}

	var total int
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chat_messages WHERE conversation_id = $1",
		conversationID,
	).Scan(&total)
	if err != nil {
		return nil, 0, contextutils.WrapError(err, "failed to count messages")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM chat_messages
		WHERE conversation_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`,
		conversationID, limit, offset,
	)
	if err != nil {
		return nil, 0, contextutils.WrapError(err, "failed to query messages")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	messages := []models.ChatMessage{}
	for rows.Next() {
		var msg models.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, 0, contextutils.WrapError(err, "failed to scan message")
		}
		messages = append(messages, msg)
	}
	return messages, total, rows.Err()
}

// AppendMessage stores one message and bumps the conversation's updated_at
func (s *ConversationService) AppendMessage(ctx context.Context, userID int, conversationID string, role models.ChatRole, content string) (result0 *models.ChatMessage, err error) {
	ctx, span := observability.TraceChatFunction(ctx, "append_message",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	if _, err = s.GetConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	msg := &models.ChatMessage{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.CreatedAt,
	)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to insert message")
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE conversations SET updated_at = NOW() WHERE id = $1",
		conversationID,
	)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to touch conversation")
	}
	return msg, nil
}

// DeleteConversation removes a conversation and its messages
func (s *ConversationService) DeleteConversation(ctx context.Context, userID int, conversationID string) (err error) {
	ctx, span := observability.TraceChatFunction(ctx, "delete_conversation",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	if _, err = s.GetConversation(ctx, userID, conversationID); err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		"DELETE FROM chat_messages WHERE conversation_id = $1",
		conversationID,
	)
	if err != nil {
		return contextutils.WrapError(err, "failed to delete messages")
	}
	_, err = s.db.ExecContext(ctx,
		"DELETE FROM conversations WHERE id = $1 AND user_id = $2",
		conversationID, userID,
	)
	if err != nil {
		return contextutils.WrapError(err, "failed to delete conversation")
	}
	return nil
}

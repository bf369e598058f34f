package handlers

import (
	"errors"
	"net/http"

	"usmleapp/internal/models"
	"usmleapp/internal/observability"
	"usmleapp/internal/services"
	contextutils "usmleapp/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// ChatHandler manages assistant conversations and the realtime voice session
// endpoint. All conversation access is scoped to the authenticated user.
type ChatHandler struct {
	chatService         services.ChatServiceInterface
	conversationService services.ConversationServiceInterface
	logger              *observability.Logger
}

// NewChatHandler creates a new ChatHandler instance
func NewChatHandler(chatService services.ChatServiceInterface, conversationService services.ConversationServiceInterface, logger *observability.Logger) *ChatHandler {
	return &ChatHandler{
		chatService:         chatService,
		conversationService: conversationService,
		logger:              logger,
	}
}

// CreateConversation handles POST /v1/chat/conversations
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "create_conversation")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	var req models.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid request body",
			"",
			err,
		))
		return
	}

	if appErr, fieldErrs := contextutils.ValidateStruct(req); appErr != nil {
		HandleAppError(c, appErr.WithFieldErrors(fieldErrs))
		return
	}

	span.SetAttributes(observability.AttributeUserID(userID))

	conversation, err := h.conversationService.CreateConversation(c.Request.Context(), userID, req.Title)
	if err != nil {
		h.logger.Error(c.Request.Context(), "Failed to create conversation", err, map[string]interface{}{"user_id": userID})
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, conversation)
}

// ListConversations handles GET /v1/chat/conversations
func (h *ChatHandler) ListConversations(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "list_conversations")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	limit, offset := ParsePagination(c)
	span.SetAttributes(observability.AttributeUserID(userID), observability.AttributeLimit(limit))

	conversations, total, err := h.conversationService.ListConversations(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error(c.Request.Context(), "Failed to list conversations", err, map[string]interface{}{"user_id": userID})
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversations": conversations,
		"pagination": models.Pagination{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(conversations) < total,
		},
	})
}

// GetConversation handles GET /v1/chat/conversations/:id
func (h *ChatHandler) GetConversation(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_conversation")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	conversationID := c.Param("id")
	span.SetAttributes(observability.AttributeUserID(userID), attribute.String("chat.conversation_id", conversationID))

	conversation, err := h.conversationService.GetConversation(c.Request.Context(), userID, conversationID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, conversation)
}

// GetMessages handles GET /v1/chat/conversations/:id/messages
func (h *ChatHandler) GetMessages(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_conversation_messages")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	conversationID := c.Param("id")
	limit, offset := ParsePagination(c)
	span.SetAttributes(observability.AttributeUserID(userID), attribute.String("chat.conversation_id", conversationID))

	messages, total, err := h.conversationService.GetMessages(c.Request.Context(), userID, conversationID, limit, offset)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"pagination": models.Pagination{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(messages) < total,
		},
	})
}

// SendMessage handles POST /v1/chat/conversations/:id/messages. The user
// message is persisted and the assistant reply is returned synchronously.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "send_chat_message")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	conversationID := c.Param("id")

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid request body",
			"",
			err,
		))
		return
	}

	if appErr, fieldErrs := contextutils.ValidateStruct(req); appErr != nil {
		HandleAppError(c, appErr.WithFieldErrors(fieldErrs))
		return
	}

	span.SetAttributes(
		observability.AttributeUserID(userID),
		attribute.String("chat.conversation_id", conversationID),
		attribute.Int("chat.message_length", len(req.Content)),
	)

	reply, err := h.chatService.Reply(c.Request.Context(), userID, conversationID, req.Content)
	if err != nil {
		if !errors.Is(err, contextutils.ErrRecordNotFound) {
			h.logger.Error(c.Request.Context(), "Failed to generate assistant reply", err, map[string]interface{}{"user_id": userID, "conversation_id": conversationID})
		}
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, reply)
}

// DeleteConversation handles DELETE /v1/chat/conversations/:id
func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "delete_conversation")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	conversationID := c.Param("id")
	span.SetAttributes(observability.AttributeUserID(userID), attribute.String("chat.conversation_id", conversationID))

	if err := h.conversationService.DeleteConversation(c.Request.Context(), userID, conversationID); err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Conversation deleted"})
}

// CreateVoiceSession handles POST /v1/chat/voice-session. It mints a
// short-lived realtime token; the client connects to the voice provider
// directly and no audio transits this server.
func (h *ChatHandler) CreateVoiceSession(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "create_voice_session")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	span.SetAttributes(observability.AttributeUserID(userID))

	session, err := h.chatService.CreateVoiceSession(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error(c.Request.Context(), "Failed to create voice session", err, map[string]interface{}{"user_id": userID})
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

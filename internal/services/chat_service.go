package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"usmleapp/internal/config"
	"usmleapp/internal/models"
	"usmleapp/internal/observability"
	contextutils "usmleapp/internal/utils"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ChatServiceInterface defines the interface for the AI study assistant.
// This allows for easier mocking in tests.
type ChatServiceInterface interface {
	Reply(ctx context.Context, userID int, conversationID, userMessage string) (*models.ChatMessage, error)
	CreateVoiceSession(ctx context.Context, userID int) (*models.VoiceSession, error)
}

// tutorSystemPrompt frames the assistant for board-exam study help
const tutorSystemPrompt = `You are a USMLE study tutor. Explain medical concepts clearly and concisely, ` +
	`relate answers to high-yield exam material, and when discussing a practice question walk through ` +
	`why each option is right or wrong. Never fabricate citations.`

// ChatService talks to an OpenAI-compatible chat completions API and mints
// ephemeral realtime voice session tokens. The server never proxies audio;
// the realtime token lets the client connect to the provider directly.
type ChatService struct {
	cfg           *config.Config
	conversations ConversationServiceInterface
	httpClient    *http.Client
	logger        *observability.Logger
}

// NewChatService creates a new chat service with an instrumented HTTP client
func NewChatService(cfg *config.Config, conversations ConversationServiceInterface, logger *observability.Logger) *ChatService {
	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanOptions(trace.WithSpanKind(trace.SpanKindClient)),
		),
	}
	return &ChatService{
		cfg:           cfg,
		conversations: conversations,
		httpClient:    httpClient,
		logger:        logger,
	}
}

type chatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model     string                  `json:"model"`
	Messages  []chatCompletionMessage `json:"messages"`
	MaxTokens int                     `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
	} `json:"choices"`
}

// Reply appends the user message to the conversation, asks the provider for a
// completion over the full history and stores the assistant reply
func (s *ChatService) Reply(ctx context.Context, userID int, conversationID, userMessage string) (result0 *models.ChatMessage, err error) {
	ctx, span := observability.TraceChatFunction(ctx, "reply",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	if !s.cfg.AI.Enabled {
		return nil, contextutils.ErrAIProviderUnavailable
	}

	if _, err = s.conversations.AppendMessage(ctx, userID, conversationID, models.ChatRoleUser, userMessage); err != nil {
		return nil, err
	}

	history, _, err := s.conversations.GetMessages(ctx, userID, conversationID, config.MaxPageSize, 0)
	if err != nil {
		return nil, err
	}

	messages := make([]chatCompletionMessage, 0, len(history)+1)
	messages = append(messages, chatCompletionMessage{Role: string(models.ChatRoleSystem), Content: tutorSystemPrompt})
	for _, msg := range history {
		messages = append(messages, chatCompletionMessage{Role: string(msg.Role), Content: msg.Content})
	}

	content, err := s.complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	reply, err := s.conversations.AppendMessage(ctx, userID, conversationID, models.ChatRoleAssistant, content)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// complete performs one chat-completions round trip
func (s *ChatService) complete(ctx context.Context, messages []chatCompletionMessage) (result0 string, err error) {
	ctx, span := observability.TraceChatFunction(ctx, "complete",
		attribute.String("ai.model", s.cfg.AI.ChatModel),
		attribute.Int("ai.messages", len(messages)),
	)
	defer observability.FinishSpan(span, &err)

	body, err := json.Marshal(chatCompletionRequest{
		Model:     s.cfg.AI.ChatModel,
		Messages:  messages,
		MaxTokens: s.cfg.AI.MaxTokens,
	})
	if err != nil {
		return "", contextutils.WrapError(err, "failed to marshal completion request")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.cfg.AI.BaseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", contextutils.WrapError(err, "failed to build completion request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.AI.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrAIProviderUnavailable, "completion request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close response body", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", contextutils.WrapError(err, "failed to read completion response")
	}
	if resp.StatusCode != http.StatusOK {
		span.SetAttributes(attribute.Int("status_code", resp.StatusCode))
		return "", contextutils.WrapErrorf(contextutils.ErrAIRequestFailed,
			"completion request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return "", contextutils.WrapError(contextutils.ErrAIResponseInvalid, "failed to decode completion response")
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", contextutils.ErrAIResponseInvalid
	}
	return completion.Choices[0].Message.Content, nil
}

type realtimeSessionRequest struct {
	Model string `json:"model"`
	Voice string `json:"voice"`
}

type realtimeSessionResponse struct {
	ID           string `json:"id"`
	ClientSecret struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
	Model string `json:"model"`
	Voice string `json:"voice"`
}

// CreateVoiceSession mints an ephemeral realtime session token for the client
func (s *ChatService) CreateVoiceSession(ctx context.Context, userID int) (result0 *models.VoiceSession, err error) {
	ctx, span := observability.TraceChatFunction(ctx, "create_voice_session",
		observability.AttributeUserID(userID),
		attribute.String("ai.model", s.cfg.AI.RealtimeModel),
	)
	defer observability.FinishSpan(span, &err)

	if !s.cfg.AI.Enabled {
		return nil, contextutils.ErrAIProviderUnavailable
	}

	body, err := json.Marshal(realtimeSessionRequest{
		Model: s.cfg.AI.RealtimeModel,
		Voice: s.cfg.AI.RealtimeVoice,
	})
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to marshal session request")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.cfg.AI.BaseURL+"/realtime/sessions", bytes.NewBuffer(body))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to build session request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.AI.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrAIProviderUnavailable, "session request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close response body", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to read session response")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, contextutils.WrapErrorf(contextutils.ErrAIRequestFailed,
			"session request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var session realtimeSessionResponse
	if err := json.Unmarshal(respBody, &session); err != nil {
		return nil, contextutils.WrapError(contextutils.ErrAIResponseInvalid, "failed to decode session response")
	}
	if session.ClientSecret.Value == "" {
		return nil, contextutils.WrapError(contextutils.ErrAIResponseInvalid, "session response missing client secret")
	}

	s.logger.Info(ctx, "Voice session minted", map[string]interface{}{
		"user_id": userID,
		"model":   session.Model,
	})

	return &models.VoiceSession{
		ID:           session.ID,
		ClientSecret: session.ClientSecret.Value,
		Model:        session.Model,
		Voice:        session.Voice,
		ExpiresAt:    time.Unix(session.ClientSecret.ExpiresAt, 0),
	}, nil
}

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/inkwellco/spool/pkg/contextbuilder"
	"github.com/inkwellco/spool/pkg/docs"
	"github.com/inkwellco/spool/pkg/llm"
	"github.com/inkwellco/spool/pkg/storage"
)

const persistTimeout = 10 * time.Second

// ChatRequest is the JSON body of POST /v1/chat.
type ChatRequest struct {
	ConversationID string   `json:"conversation_id"`
	UserID         string   `json:"user_id"`
	Model          string   `json:"model"`
	Message        string   `json:"message"`
	Stream         bool     `json:"stream,omitempty"`
	SystemPrompt   string   `json:"system_prompt,omitempty"`
	TokenBudget    int      `json:"token_budget,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
}

// ChatResponse is the non-streaming response of POST /v1/chat.
type ChatResponse struct {
	ConversationID string        `json:"conversation_id"`
	Model          string        `json:"model"`
	Message        llm.Message   `json:"message"`
	Sources        []docs.Source `json:"sources,omitempty"`
}

// handleChat handles POST /v1/chat. The user message is persisted before
// context assembly so the retained-window step sees it; the assistant reply
// is persisted once fully received.
func (s *Server) handleChat(c *fiber.Ctx) error {
	if s.config.Router == nil || s.config.Assembler == nil || s.config.Storer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{
			Error: "chat is not configured",
		})
	}

	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "invalid request body",
		})
	}
	if req.Model == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "model is required",
		})
	}
	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "message is required",
		})
	}
	if req.ConversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "conversation_id is required",
		})
	}

	ctx := c.Context()

	userMsg := &storage.Message{
		ConversationID: req.ConversationID,
		Role:           llm.RoleUser,
		Content:        req.Message,
	}
	if err := s.config.Storer.CreateMessage(ctx, userMsg); err != nil {
		s.logger.Error("persisting user message", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: "failed to persist message",
		})
	}

	result, err := s.config.Assembler.BuildContext(ctx, contextbuilder.Request{
		ConversationID:     req.ConversationID,
		UserID:             req.UserID,
		CurrentQuery:       req.Message,
		CustomSystemPrompt: req.SystemPrompt,
		TokenBudget:        req.TokenBudget,
	})
	if err != nil {
		s.logger.Error("assembling context", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: "failed to assemble context",
		})
	}

	chatReq := &llm.ChatRequest{
		Model:       req.Model,
		Messages:    result.Messages,
		Stream:      req.Stream,
		Temperature: req.Temperature,
	}

	if req.Stream {
		return s.streamChat(c, req.ConversationID, chatReq)
	}

	resp, err := s.config.Router.ChatCompletion(ctx, chatReq)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{
			Error: err.Error(),
		})
	}

	s.persistAssistant(req.ConversationID, resp.Message.Content)

	return c.JSON(ChatResponse{
		ConversationID: req.ConversationID,
		Model:          req.Model,
		Message:        resp.Message,
		Sources:        result.Sources,
	})
}

// streamChat relays canonical stream events to the HTTP client as SSE.
// io.Pipe rather than SetBodyStreamWriter: pw.Write blocks until fasthttp's
// chunked writer has flushed to the socket, so each model chunk reaches the
// client as soon as it arrives instead of buffering in memory.
func (s *Server) streamChat(c *fiber.Ctx, conversationID string, chatReq *llm.ChatRequest) error {
	events, err := s.config.Router.StreamChatCompletion(c.Context(), chatReq)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{
			Error: err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("Connection", "keep-alive")

	pr, pw := io.Pipe()
	go s.relayStream(pw, conversationID, events)

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// relayStream writes SSE events to the pipe until the terminal event, then
// persists the accumulated assistant reply.
func (s *Server) relayStream(pw *io.PipeWriter, conversationID string, events <-chan llm.StreamEvent) {
	defer pw.Close()

	var full strings.Builder
	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error("encoding stream event", zap.Error(err))
			return
		}
		if _, err := fmt.Fprintf(pw, "data: %s\n\n", payload); err != nil {
			s.logger.Debug("client disconnected mid-stream", zap.Error(err))
			return
		}

		switch ev.Type {
		case llm.EventChunk:
			full.WriteString(ev.Text)
		case llm.EventError:
			s.logger.Warn("stream ended with error",
				zap.String("conversation_id", conversationID),
				zap.String("message", ev.Message),
			)
			return
		case llm.EventDone:
			fmt.Fprint(pw, "data: [DONE]\n\n")
			s.persistAssistant(conversationID, full.String())
			return
		}
	}
}

// persistAssistant stores the assistant reply with a fresh context so a
// finished or disconnected request cannot cancel the write.
func (s *Server) persistAssistant(conversationID, content string) {
	if content == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	msg := &storage.Message{
		ConversationID: conversationID,
		Role:           llm.RoleAssistant,
		Content:        content,
	}
	if err := s.config.Storer.CreateMessage(ctx, msg); err != nil {
		s.logger.Error("persisting assistant message",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
	}
}

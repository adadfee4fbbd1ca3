package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/inkwellco/spool/pkg/docs"
)

// AttachDocumentRequest is the JSON body of POST /v1/documents. It attaches
// one document excerpt to a conversation for later retrieval during context
// assembly.
type AttachDocumentRequest struct {
	ConversationID string `json:"conversation_id"`
	Filename       string `json:"filename"`
	Section        string `json:"section,omitempty"`
	Content        string `json:"content"`
}

// handleAttachDocument registers a document chunk against a conversation.
func (s *Server) handleAttachDocument(c *fiber.Ctx) error {
	if s.config.Documents == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "document attachment is not configured",
		})
	}

	var req AttachDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.ConversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "conversation_id is required",
		})
	}
	if req.Filename == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "filename is required",
		})
	}
	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "content is required",
		})
	}

	s.config.Documents.Attach(req.ConversationID, docs.Chunk{
		Filename: req.Filename,
		Section:  req.Section,
		Content:  req.Content,
	})

	s.logger.Debug("attached document chunk",
		zap.String("conversation_id", req.ConversationID),
		zap.String("filename", req.Filename),
	)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "attached",
	})
}

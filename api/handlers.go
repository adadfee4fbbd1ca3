package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/inkwellco/spool/pkg/breaker"
	"github.com/inkwellco/spool/pkg/llm"
	"github.com/inkwellco/spool/pkg/memory"
	"github.com/inkwellco/spool/pkg/search"
)

// SearchRequest is the JSON body of POST /v1/search.
type SearchRequest struct {
	OwnerID       string  `json:"owner_id"`
	Query         string  `json:"query"`
	Limit         int     `json:"limit,omitempty"`
	Category      string  `json:"category,omitempty"`
	MinConfidence float64 `json:"min_confidence,omitempty"`
}

// SearchResponse contains the facts matching a search query, best first.
type SearchResponse struct {
	Results []memory.Fact `json:"results"`
	Count   int           `json:"count"`
}

// HealthResponse reports liveness plus the state of each provider breaker.
type HealthResponse struct {
	Status   string                   `json:"status"`
	Breakers map[string]breaker.State `json:"breakers"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleHealth reports breaker states. Status degrades to "degraded" when
// any provider breaker is open.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	states := map[string]breaker.State{}
	if s.config.Router != nil {
		states = s.config.Router.BreakerStates()
	}

	status := "ok"
	for _, state := range states {
		if state == breaker.StateOpen {
			status = "degraded"
			break
		}
	}

	return c.JSON(HealthResponse{Status: status, Breakers: states})
}

// handleListModels returns models from every registered provider, merged.
func (s *Server) handleListModels(c *fiber.Ctx) error {
	if s.config.Router == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{
			Error: "no providers configured",
		})
	}

	models, err := s.config.Router.ListModels(c.Context())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(map[string]any{
		"models": models,
		"count":  len(models),
	})
}

// handleRefreshModels forces a background re-fetch of every provider's
// model list.
func (s *Server) handleRefreshModels(c *fiber.Ctx) error {
	if s.config.Router == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{
			Error: "no providers configured",
		})
	}

	s.config.Router.RefreshModels()

	return c.Status(fiber.StatusAccepted).JSON(map[string]any{
		"status": "refreshing",
	})
}

// handleSearch handles POST /v1/search requests.
func (s *Server) handleSearch(c *fiber.Ctx) error {
	if s.config.Searcher == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{
			Error: memory.ErrNotConfigured.Error(),
		})
	}

	var req SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "invalid request body",
		})
	}
	if req.OwnerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "owner_id is required",
		})
	}
	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "query is required",
		})
	}

	facts, err := s.config.Searcher.Search(c.Context(), req.OwnerID, req.Query, search.Options{
		Limit:         req.Limit,
		Category:      req.Category,
		MinConfidence: req.MinConfidence,
	})
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, search.ErrQueryEmbedding) {
			status = fiber.StatusBadGateway
		}
		s.logger.Warn("search failed", zap.String("owner_id", req.OwnerID), zap.Error(err))
		return c.Status(status).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	if facts == nil {
		facts = []memory.Fact{}
	}
	return c.JSON(SearchResponse{Results: facts, Count: len(facts)})
}

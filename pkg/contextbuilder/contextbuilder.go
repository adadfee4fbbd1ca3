// Package contextbuilder assembles the token-budgeted prompt for a chat
// turn: retrieved facts and document excerpts appended to the system prompt,
// an optional conversation summary, and a backward-windowed slice of recent
// messages.
package contextbuilder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/inkwellco/spool/pkg/docs"
	"github.com/inkwellco/spool/pkg/llm"
	"github.com/inkwellco/spool/pkg/memory"
	"github.com/inkwellco/spool/pkg/search"
	"github.com/inkwellco/spool/pkg/storage"
	"github.com/inkwellco/spool/pkg/tokens"
)

const (
	// DefaultTokenBudget caps the estimated size of the assembled prompt.
	DefaultTokenBudget = 4000

	// DefaultResponseReserve is held back from the budget for the model's
	// reply.
	DefaultResponseReserve = 100

	// DefaultDocBudget is the sub-budget handed to document retrieval.
	DefaultDocBudget = 2000

	// DefaultSystemPrompt opens the prompt when no override is supplied.
	DefaultSystemPrompt = "You are a helpful assistant. Use the provided context when it is relevant."

	// messageOverheadTokens is the per-message accounting overhead added
	// on top of the content estimate.
	messageOverheadTokens = 10

	// factHeader introduces the fact block appended to the system prompt.
	factHeader = "Relevant facts about the user:"

	// docHeader introduces the document block appended to the system prompt.
	docHeader = "Relevant document excerpts:"
)

// Request describes one context assembly call.
type Request struct {
	// ConversationID selects the message history and summary.
	ConversationID string

	// UserID scopes fact retrieval.
	UserID string

	// CurrentQuery is the new user utterance driving retrieval. Empty
	// disables both retrieval steps.
	CurrentQuery string

	// CustomSystemPrompt overrides the base system prompt when non-empty.
	CustomSystemPrompt string

	// TokenBudget caps the assembled prompt. Zero or negative falls back
	// to the assembler's configured budget.
	TokenBudget int
}

// Result is the assembled prompt plus citation metadata for the caller.
type Result struct {
	// Messages is the ordered prompt: system message, optional summary
	// system message, then the windowed recent messages chronologically.
	Messages []llm.Message

	// Sources is the citation metadata for retrieved document excerpts.
	Sources []docs.Source
}

// Assembler builds prompts from the retrieval and storage collaborators.
type Assembler struct {
	searcher  *search.Searcher
	store     memory.Store
	messages  storage.Driver
	retriever docs.Retriever

	budget     int
	searchOpts search.Options
	reserve    int
	docBudget  int
	logger     *zap.Logger
	now        func() time.Time
}

// Config holds configuration for an assembler. Searcher and Retriever are
// optional; a nil value disables that retrieval step.
type Config struct {
	// Searcher runs hybrid fact retrieval. Optional.
	Searcher *search.Searcher

	// Store receives the fire-and-forget fact touches. Optional; ignored
	// when Searcher is nil.
	Store memory.Store

	// Messages is the conversation history store. Required.
	Messages storage.Driver

	// Retriever supplies document excerpts. Optional.
	Retriever docs.Retriever

	// TokenBudget is the prompt budget used when a request does not carry
	// its own. Defaults to DefaultTokenBudget.
	TokenBudget int

	// SearchOptions tunes the fact retrieval step. Zero values fall back
	// to the search package defaults.
	SearchOptions search.Options

	// ResponseReserve is held back for the model's reply. Defaults to
	// DefaultResponseReserve.
	ResponseReserve int

	// DocBudget is the document retrieval sub-budget. Defaults to
	// DefaultDocBudget.
	DocBudget int

	// Logger is the provided zap logger.
	Logger *zap.Logger

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// NewAssembler creates an assembler around the given collaborators.
func NewAssembler(c Config) *Assembler {
	budget := c.TokenBudget
	if budget <= 0 {
		budget = DefaultTokenBudget
	}
	reserve := c.ResponseReserve
	if reserve <= 0 {
		reserve = DefaultResponseReserve
	}
	docBudget := c.DocBudget
	if docBudget <= 0 {
		docBudget = DefaultDocBudget
	}
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := c.Now
	if now == nil {
		now = time.Now
	}

	return &Assembler{
		searcher:   c.Searcher,
		store:      c.Store,
		messages:   c.Messages,
		retriever:  c.Retriever,
		budget:     budget,
		searchOpts: c.SearchOptions,
		reserve:    reserve,
		docBudget:  docBudget,
		logger:     logger,
		now:        now,
	}
}

// BuildContext assembles the prompt for one chat turn. Retrieval failures
// degrade to an empty contribution; only message-store failures surface as
// errors.
func (a *Assembler) BuildContext(ctx context.Context, req Request) (*Result, error) {
	budget := req.TokenBudget
	if budget <= 0 {
		budget = a.budget
	}

	systemPrompt := req.CustomSystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	var prompt strings.Builder
	prompt.WriteString(systemPrompt)

	var touched []string
	if a.searcher != nil && req.CurrentQuery != "" {
		facts, err := a.searcher.Search(ctx, req.UserID, req.CurrentQuery, a.searchOpts)
		if err != nil {
			// Retrieval never fails the whole assembly.
			a.logger.Warn("fact retrieval failed",
				zap.String("conversation_id", req.ConversationID),
				zap.Error(err),
			)
		} else if len(facts) > 0 {
			prompt.WriteString("\n\n")
			prompt.WriteString(factHeader)
			for _, fact := range facts {
				prompt.WriteString(fmt.Sprintf("\n- [%s] %s", fact.Category, fact.Content))
				touched = append(touched, fact.ID)
			}
		}
	}

	var sources []docs.Source
	if a.retriever != nil && req.CurrentQuery != "" {
		docText, docSources, err := a.retriever.RetrieveWithSources(ctx, req.ConversationID, req.CurrentQuery, a.docBudget)
		if err != nil {
			a.logger.Warn("document retrieval failed",
				zap.String("conversation_id", req.ConversationID),
				zap.Error(err),
			)
		} else if docText != "" {
			prompt.WriteString("\n\n")
			prompt.WriteString(docHeader)
			prompt.WriteString("\n")
			prompt.WriteString(docText)
			sources = docSources
		}
	}

	systemMessage := prompt.String()
	systemTokens := tokens.Estimate(systemMessage)

	summary, err := a.messages.LatestSummary(ctx, req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("fetching summary: %w", err)
	}
	summaryTokens := 0
	if summary != nil {
		summaryTokens = tokens.Estimate(summary.Content)
	}

	remaining := budget - systemTokens - summaryTokens - a.reserve
	if remaining < 0 {
		// A negative budget legitimately truncates all recent messages.
		remaining = 0
	}

	history, err := a.messages.ListMessages(ctx, req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}
	windowed := windowMessages(history, remaining)

	result := &Result{
		Messages: make([]llm.Message, 0, len(windowed)+2),
		Sources:  sources,
	}
	result.Messages = append(result.Messages, llm.Message{Role: llm.RoleSystem, Content: systemMessage})
	if summary != nil {
		result.Messages = append(result.Messages, llm.Message{Role: llm.RoleSystem, Content: summary.Content})
	}
	for _, msg := range windowed {
		result.Messages = append(result.Messages, llm.Message{Role: msg.Role, Content: msg.Content})
	}

	if len(touched) > 0 {
		a.touchFacts(touched)
	}

	a.logger.Debug("context assembled",
		zap.String("conversation_id", req.ConversationID),
		zap.Int("budget", budget),
		zap.Int("system_tokens", systemTokens),
		zap.Int("summary_tokens", summaryTokens),
		zap.Int("messages_kept", len(windowed)),
		zap.Int("messages_total", len(history)),
	)

	return result, nil
}

// windowMessages walks the history backward from the newest message,
// keeping messages while their estimated cost fits the remaining budget,
// and returns the kept messages in chronological order.
func windowMessages(history []storage.Message, remaining int) []storage.Message {
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := tokens.Estimate(history[i].Content) + messageOverheadTokens
		if cost > remaining {
			break
		}
		remaining -= cost
		start = i
	}
	return history[start:]
}

// touchFacts marks retrieved facts as recently accessed. Best-effort:
// the caller never waits on it and never sees its failures.
func (a *Assembler) touchFacts(ids []string) {
	if a.store == nil {
		return
	}
	at := a.now().UTC()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := a.store.Touch(ctx, ids, at); err != nil {
			a.logger.Debug("fact touch failed", zap.Error(err))
		}
	}()
}

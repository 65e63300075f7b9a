package response

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-chatbot-be/internal/pkg/logger"
	"ai-chatbot-be/pkg/errs"
	"ai-chatbot-be/pkg/llm"
	"ai-chatbot-be/pkg/normalizer"
	"ai-chatbot-be/pkg/rag/history"
	"ai-chatbot-be/pkg/rag/memory"
	"ai-chatbot-be/pkg/rag/prompt"
	"ai-chatbot-be/pkg/rag/search"
	"ai-chatbot-be/pkg/rag/session"
	"ai-chatbot-be/pkg/store"
)

// Retriever is the slice of the search orchestrator the generator needs
type Retriever interface {
	Retrieve(ctx context.Context, s *store.Session, query string, k int, minScore float64) ([]search.Result, error)
}

// Config encapsulates generation parameters
type Config struct {
	TopK        int
	MinScore    float64
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// DefaultConfig returns default generation configuration
func DefaultConfig() Config {
	return Config{
		TopK:        3,
		MinScore:    0.3,
		MaxTokens:   1024,
		Temperature: 0.7,
		Timeout:     60 * time.Second,
	}
}

// Reply is the outcome of one user turn
type Reply struct {
	SessionID string
	Message   string // normalized user message
	Text      string
	Evidence  []search.Result
	Timestamp time.Time
}

// Generator answers user messages from session memory and, optionally,
// retrieved document chunks
type Generator struct {
	registry    *session.Registry
	memory      *memory.Manager
	retriever   Retriever
	llmProvider llm.LLMProvider
	archive     history.Archive
	config      Config
	logger      logger.ILogger
	now         func() time.Time
}

// NewGenerator creates a new response generator. retriever may be nil, in
// which case retrieval is never attempted; archive may be nil.
func NewGenerator(
	registry *session.Registry,
	memoryManager *memory.Manager,
	retriever Retriever,
	llmProvider llm.LLMProvider,
	archive history.Archive,
	config Config,
	log logger.ILogger,
) *Generator {
	if archive == nil {
		archive = history.NopArchive{}
	}
	return &Generator{
		registry:    registry,
		memory:      memoryManager,
		retriever:   retriever,
		llmProvider: llmProvider,
		archive:     archive,
		config:      config,
		logger:      log,
		now:         time.Now,
	}
}

// SetClock replaces time.Now. Intended for tests.
func (g *Generator) SetClock(now func() time.Time) {
	g.now = now
}

// Generate answers userMessage within the session. The exchange is recorded
// only when the completion succeeds; on any error the session is unchanged.
func (g *Generator) Generate(ctx context.Context, sessionID, userMessage string, useRetrieval bool) (*Reply, error) {
	normalized, err := normalizer.Normalize(userMessage)
	if err != nil {
		return nil, err
	}
	if normalized == "" {
		return nil, fmt.Errorf("%w: message is empty", errs.ErrNormalization)
	}

	s, release, err := g.registry.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	mctx := g.memory.BuildContext(s)

	var evidence []search.Result
	if useRetrieval && g.retriever != nil {
		evidence, err = g.retriever.Retrieve(ctx, s, normalized, g.config.TopK, g.config.MinScore)
		if err != nil {
			// Answer without documents rather than fail the turn
			g.logger.Warn("RESPONSE", "Retrieval unavailable, answering without evidence", map[string]interface{}{
				"session_id": s.ID,
				"error":      err.Error(),
			})
			evidence = nil
		}
	}

	promptText := prompt.NewContextualBuilder(mctx.Summary, mctx.RecentTurns, normalized).
		WithEvidence(toEvidence(evidence)).
		WithTime(g.now()).
		Build()

	text, err := g.complete(ctx, promptText)
	if err != nil {
		g.logger.Error("RESPONSE", "Completion failed", map[string]interface{}{
			"session_id": s.ID,
			"error":      err.Error(),
		})
		return nil, err
	}

	now := g.now()
	userTurn := memory.NewTurn(store.RoleUser, userMessage, normalized, now)
	assistantTurn := memory.NewTurn(store.RoleAssistant, text, text, now)

	if err := g.memory.AppendExchange(ctx, s, userTurn, assistantTurn); err != nil && !errors.Is(err, errs.ErrCompactionDeferred) {
		return nil, err
	}

	if err := g.archive.Append(ctx, s.ID, userTurn, assistantTurn); err != nil {
		g.logger.Warn("RESPONSE", "Failed to archive exchange", map[string]interface{}{
			"session_id": s.ID,
			"error":      err.Error(),
		})
	}

	g.logger.Info("RESPONSE", "Reply generated", map[string]interface{}{
		"session_id": s.ID,
		"evidence":   len(evidence),
		"buffer":     len(s.ShortTerm),
		"reply_len":  len(text),
	})

	return &Reply{
		SessionID: s.ID,
		Message:   normalized,
		Text:      text,
		Evidence:  evidence,
		Timestamp: now,
	}, nil
}

func (g *Generator) complete(ctx context.Context, promptText string) (string, error) {
	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	opts := []llm.Option{}
	if g.config.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(g.config.MaxTokens))
	}
	if g.config.Temperature > 0 {
		opts = append(opts, llm.WithTemperature(g.config.Temperature))
	}

	text, err := g.llmProvider.Generate(ctx, promptText, opts...)
	if err != nil {
		if _, typed := errs.KindOf(err); !typed {
			err = errs.NewServiceError("completion", errs.KindUnavailable, err)
		}
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errs.NewServiceError("completion", errs.KindUnavailable, errors.New("empty completion"))
	}
	return text, nil
}

func toEvidence(results []search.Result) []prompt.Evidence {
	if len(results) == 0 {
		return nil
	}
	out := make([]prompt.Evidence, len(results))
	for i, r := range results {
		out[i] = prompt.Evidence{
			DocumentID: r.DocumentID,
			ChunkIndex: r.ChunkIndex,
			Text:       r.ChunkText,
			Score:      r.Score,
		}
	}
	return out
}

package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-chatbot-be/internal/pkg/logger"
	"ai-chatbot-be/pkg/errs"
	"ai-chatbot-be/pkg/llm"
	"ai-chatbot-be/pkg/rag/prompt"
	"ai-chatbot-be/pkg/store"
)

// Config holds memory bounds
type Config struct {
	ShortTermSize    int           // K: turns kept verbatim
	MinFold          int           // minimum turns folded per compaction
	SummaryMaxTokens int           // completion budget for the summary
	SummaryTimeout   time.Duration // deadline of one summarization call
}

// DefaultConfig returns default memory configuration
func DefaultConfig() Config {
	return Config{
		ShortTermSize:    10,
		MinFold:          1,
		SummaryMaxTokens: 256,
		SummaryTimeout:   60 * time.Second,
	}
}

// Context is what a prompt needs from memory. Both fields are copies.
type Context struct {
	Summary     string
	RecentTurns []store.Turn
}

// Manager keeps a session's short-term buffer bounded by folding the oldest
// turns into the long-term summary. Callers must hold the session guard.
type Manager struct {
	llm    llm.LLMProvider
	config Config
	logger logger.ILogger
}

func NewManager(provider llm.LLMProvider, config Config, log logger.ILogger) *Manager {
	if config.ShortTermSize <= 0 {
		config.ShortTermSize = DefaultConfig().ShortTermSize
	}
	if config.MinFold <= 0 {
		config.MinFold = 1
	}
	return &Manager{
		llm:    provider,
		config: config,
		logger: log,
	}
}

// NewTurn stamps a turn with the given role and contents.
func NewTurn(role, raw, normalized string, at time.Time) store.Turn {
	return store.Turn{
		Role:              role,
		RawContent:        raw,
		NormalizedContent: normalized,
		Timestamp:         at,
	}
}

// AppendTurn records turn and compacts if the buffer overflowed.
// A deferred compaction is reported as an error wrapping errs.ErrCompactionDeferred;
// the turn itself is always recorded.
func (m *Manager) AppendTurn(ctx context.Context, s *store.Session, turn store.Turn) error {
	s.ShortTerm = append(s.ShortTerm, turn)
	s.History = append(s.History, turn)
	_, err := m.MaybeCompact(ctx, s)
	return err
}

// AppendExchange records a user turn and its reply, compacting at most once.
func (m *Manager) AppendExchange(ctx context.Context, s *store.Session, user, assistant store.Turn) error {
	s.ShortTerm = append(s.ShortTerm, user, assistant)
	s.History = append(s.History, user, assistant)
	_, err := m.MaybeCompact(ctx, s)
	return err
}

// BuildContext copies the summary and recent turns, oldest first.
func (m *Manager) BuildContext(s *store.Session) Context {
	return Context{
		Summary:     s.LongTermSummary,
		RecentTurns: append([]store.Turn(nil), s.ShortTerm...),
	}
}

// MaybeCompact folds the oldest max(MinFold, len-K) turns into the summary
// when the buffer holds more than K turns. On failure nothing changes.
func (m *Manager) MaybeCompact(ctx context.Context, s *store.Session) (bool, error) {
	k := m.config.ShortTermSize
	if len(s.ShortTerm) <= k {
		return false, nil
	}

	fold := len(s.ShortTerm) - k
	if fold < m.config.MinFold {
		fold = m.config.MinFold
	}
	if fold > len(s.ShortTerm) {
		fold = len(s.ShortTerm)
	}
	folded := s.ShortTerm[:fold]

	summary, err := m.summarize(ctx, s.LongTermSummary, folded)
	if err != nil {
		m.logger.Warn("MEMORY", "Compaction deferred", map[string]interface{}{
			"session_id": s.ID,
			"buffer":     len(s.ShortTerm),
			"error":      err.Error(),
		})
		return false, fmt.Errorf("%w: %w", errs.ErrCompactionDeferred, err)
	}

	s.LongTermSummary = summary
	s.ShortTerm = append([]store.Turn(nil), s.ShortTerm[fold:]...)
	s.Compactions++

	m.logger.Info("MEMORY", "Compacted short-term buffer", map[string]interface{}{
		"session_id":  s.ID,
		"folded":      fold,
		"buffer":      len(s.ShortTerm),
		"summary_len": len(summary),
		"compactions": s.Compactions,
	})
	return true, nil
}

func (m *Manager) summarize(ctx context.Context, prior string, folded []store.Turn) (string, error) {
	if m.config.SummaryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.SummaryTimeout)
		defer cancel()
	}

	// roughly 0.75 words per token
	maxWords := m.config.SummaryMaxTokens * 3 / 4
	p := prompt.BuildSummaryPrompt(prior, folded, maxWords)

	opts := []llm.Option{llm.WithTemperature(0.2)}
	if m.config.SummaryMaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(m.config.SummaryMaxTokens))
	}

	summary, err := m.llm.Generate(ctx, p, opts...)
	if err != nil {
		return "", err
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", errors.New("empty summary")
	}
	return summary, nil
}

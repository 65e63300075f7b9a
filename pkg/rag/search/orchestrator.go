package search

import (
	"context"
	"fmt"
	"sort"

	"ai-chatbot-be/internal/pkg/logger"
	"ai-chatbot-be/pkg/embedding"
	"ai-chatbot-be/pkg/errs"
	"ai-chatbot-be/pkg/normalizer"
	"ai-chatbot-be/pkg/store"
	"ai-chatbot-be/pkg/vectorstore"
)

// Result is one retrieved chunk
type Result struct {
	ChunkText  string
	Score      float64
	DocumentID string
	ChunkIndex int
}

// Orchestrator handles vector search over a session's documents
type Orchestrator struct {
	embeddingProvider embedding.EmbeddingProvider
	store             vectorstore.Store
	logger            logger.ILogger
}

// NewOrchestrator creates a new search orchestrator
func NewOrchestrator(embeddingProvider embedding.EmbeddingProvider, vectorStore vectorstore.Store, log logger.ILogger) *Orchestrator {
	return &Orchestrator{
		embeddingProvider: embeddingProvider,
		store:             vectorStore,
		logger:            log,
	}
}

// Config encapsulates search parameters
type Config struct {
	TopK     int
	MinScore float64
}

// DefaultConfig returns default search configuration
func DefaultConfig() Config {
	return Config{
		TopK:     3,
		MinScore: 0.3,
	}
}

// Retrieve returns at most k chunks from the session's document scope scoring
// at least minScore, best first. The caller holds the session guard.
// A failing embedder or store yields errs.ErrRetrievalUnavailable and no results.
func (o *Orchestrator) Retrieve(ctx context.Context, s *store.Session, query string, k int, minScore float64) ([]Result, error) {
	if k <= 0 || len(s.DocumentScope) == 0 {
		return nil, nil
	}

	normalized, err := normalizer.Normalize(query)
	if err != nil {
		return nil, err
	}
	if normalized == "" {
		return nil, nil
	}

	vector, err := o.embeddingProvider.Embed(ctx, normalized)
	if err != nil {
		o.logger.Warn("SEARCH", "Query embedding failed", map[string]interface{}{
			"session_id": s.ID,
			"error":      err.Error(),
		})
		return nil, fmt.Errorf("%w: embed query: %w", errs.ErrRetrievalUnavailable, err)
	}

	matches, err := o.store.Query(ctx, vector, k, vectorstore.Filter{DocumentIDs: s.ScopeIDs()})
	if err != nil {
		o.logger.Warn("SEARCH", "Vector search failed", map[string]interface{}{
			"session_id": s.ID,
			"error":      err.Error(),
		})
		return nil, fmt.Errorf("%w: query store: %w", errs.ErrRetrievalUnavailable, err)
	}

	results := o.filterCandidates(s, matches, minScore)
	rank(results)
	if len(results) > k {
		results = results[:k]
	}

	o.logger.Debug("SEARCH", "Retrieved chunks", map[string]interface{}{
		"session_id": s.ID,
		"raw":        len(matches),
		"kept":       len(results),
	})
	return results, nil
}

func (o *Orchestrator) filterCandidates(s *store.Session, matches []vectorstore.Match, minScore float64) []Result {
	var candidates []Result
	seen := make(map[string]bool)

	for _, m := range matches {
		if m.Score < minScore {
			continue
		}
		// Stores may ignore the filter; scope is authoritative
		if _, ok := s.DocumentScope[m.Metadata.DocumentID]; !ok {
			continue
		}
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true

		candidates = append(candidates, Result{
			ChunkText:  m.Metadata.Text,
			Score:      m.Score,
			DocumentID: m.Metadata.DocumentID,
			ChunkIndex: m.Metadata.ChunkIndex,
		})
	}
	return candidates
}

// rank orders by score descending, ties by chunk index then document id.
func rank(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.ChunkIndex != b.ChunkIndex {
			return a.ChunkIndex < b.ChunkIndex
		}
		return a.DocumentID < b.DocumentID
	})
}

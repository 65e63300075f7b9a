// Package vectorstore defines the black-box similarity store used by ingestion
// and retrieval, with in-memory, chromem and pgvector adapters.
package vectorstore

import (
	"context"
	"sort"

	"ai-chatbot-be/pkg/store"
)

// Filter restricts a query. Empty DocumentIDs means no restriction.
type Filter struct {
	DocumentIDs []string
}

// Match is one query hit. Score is cosine similarity, higher is closer.
type Match struct {
	ID       string
	Score    float64
	Metadata store.RecordMetadata
}

// Store failures are reported as *errs.ServiceError with Service "vectorstore".
type Store interface {
	// Upsert writes records keyed by ID; an existing ID is replaced
	Upsert(ctx context.Context, records []store.VectorRecord) error

	// Query returns up to k matches, best first
	Query(ctx context.Context, vector []float32, k int, filter Filter) ([]Match, error)

	// ExistingIDs returns the subset of ids already stored
	ExistingIDs(ctx context.Context, ids []string) ([]string, error)

	// Delete removes records by ID; unknown IDs are ignored
	Delete(ctx context.Context, ids []string) error

	Close() error
}

// SortMatches orders matches best first. Equal scores fall back to chunk
// index, then document id, so the cut at k is deterministic.
func SortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Metadata.ChunkIndex != b.Metadata.ChunkIndex {
			return a.Metadata.ChunkIndex < b.Metadata.ChunkIndex
		}
		return a.Metadata.DocumentID < b.Metadata.DocumentID
	})
}

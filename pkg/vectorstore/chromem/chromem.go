package chromem

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"ai-chatbot-be/pkg/errs"
	"ai-chatbot-be/pkg/store"
	"ai-chatbot-be/pkg/vectorstore"

	chromem "github.com/philippgille/chromem-go"
)

const (
	metaDocumentID   = "document_id"
	metaChunkIndex   = "chunk_index"
	metaSessionScope = "session_scope"
)

// ChromemStore wraps chromem-go, a pure Go embedded vector database.
// All chunks live in one collection; document filtering uses metadata.
type ChromemStore struct {
	db  *chromem.DB
	col *chromem.Collection
}

var _ vectorstore.Store = &ChromemStore{}

// New opens an in-memory store, or a persistent one when path is set.
func New(path, collection string) (*ChromemStore, error) {
	db := chromem.NewDB()
	if path != "" {
		var err error
		db, err = chromem.NewPersistentDB(path, true)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}
	if collection == "" {
		collection = "chunks"
	}

	col, err := db.GetOrCreateCollection(
		collection,
		nil, // no collection metadata
		nil, // we provide embeddings
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{db: db, col: col}, nil
}

func (s *ChromemStore) Upsert(ctx context.Context, records []store.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Metadata.Text,
			Embedding: r.Vector,
			Metadata: map[string]string{
				metaDocumentID:   r.Metadata.DocumentID,
				metaChunkIndex:   strconv.Itoa(r.Metadata.ChunkIndex),
				metaSessionScope: r.Metadata.SessionScope,
			},
		}
	}

	// AddDocuments replaces documents with an existing ID
	if err := s.col.AddDocuments(ctx, docs, 1); err != nil {
		return errs.NewServiceError("vectorstore", errs.KindUnavailable, fmt.Errorf("add documents: %w", err))
	}
	return nil
}

func (s *ChromemStore) Query(ctx context.Context, vector []float32, k int, filter vectorstore.Filter) ([]vectorstore.Match, error) {
	// chromem-go requires nResults <= collection size
	n := k
	count := s.col.Count()
	if count < n {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}

	// where clauses are conjunctive, so each document is queried on its own
	wheres := []map[string]string{nil}
	if len(filter.DocumentIDs) > 0 {
		wheres = wheres[:0]
		for _, id := range filter.DocumentIDs {
			wheres = append(wheres, map[string]string{metaDocumentID: id})
		}
	}

	var matches []vectorstore.Match
	for _, where := range wheres {
		results, err := s.queryWithTies(ctx, vector, n, count, where)
		if err != nil {
			return nil, errs.NewServiceError("vectorstore", errs.KindUnavailable, fmt.Errorf("chromem query: %w", err))
		}
		for _, r := range results {
			matches = append(matches, toMatch(r))
		}
	}

	vectorstore.SortMatches(matches)
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// queryWithTies widens the limit while the last result scores the same as
// the n-th, so every record tied at the cut reaches SortMatches.
func (s *ChromemStore) queryWithTies(ctx context.Context, vector []float32, n, total int, where map[string]string) ([]chromem.Result, error) {
	limit := n
	for {
		results, err := s.queryShrinking(ctx, vector, limit, where)
		if err != nil || len(results) < limit || limit >= total {
			return results, err
		}
		if results[len(results)-1].Similarity != results[n-1].Similarity {
			return results, nil
		}
		limit *= 2
		if limit > total {
			limit = total
		}
	}
}

// queryShrinking retries with smaller limits while chromem rejects nResults
// as larger than the matching document set.
func (s *ChromemStore) queryShrinking(ctx context.Context, vector []float32, n int, where map[string]string) ([]chromem.Result, error) {
	for limit := n; limit >= 1; limit-- {
		results, err := s.col.QueryEmbedding(ctx, vector, limit, where, nil)
		if err == nil {
			return results, nil
		}
		if !isInsufficientDocsError(err) {
			return nil, err
		}
	}
	return nil, nil
}

func isInsufficientDocsError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}

// ExistingIDs looks ids up one by one; GetByID fails for unknown ids.
func (s *ChromemStore) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	var found []string
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, errs.NewServiceError("vectorstore", errs.KindUnavailable, err)
		}
		if _, err := s.col.GetByID(ctx, id); err == nil {
			found = append(found, id)
		}
	}
	return found, nil
}

func (s *ChromemStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.col.Delete(ctx, nil, nil, ids...); err != nil {
		return errs.NewServiceError("vectorstore", errs.KindUnavailable, fmt.Errorf("chromem delete: %w", err))
	}
	return nil
}

// Count reports the number of stored chunks.
func (s *ChromemStore) Count() int {
	return s.col.Count()
}

// Close is a no-op; persistent databases write through on every change.
func (s *ChromemStore) Close() error {
	return nil
}

func toMatch(r chromem.Result) vectorstore.Match {
	index, _ := strconv.Atoi(r.Metadata[metaChunkIndex])
	return vectorstore.Match{
		ID:    r.ID,
		Score: float64(r.Similarity),
		Metadata: store.RecordMetadata{
			DocumentID:   r.Metadata[metaDocumentID],
			ChunkIndex:   index,
			SessionScope: r.Metadata[metaSessionScope],
			Text:         r.Content,
		},
	}
}

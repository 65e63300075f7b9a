package memory

import (
	"context"
	"fmt"
	"sync"

	"ai-chatbot-be/pkg/errs"
	"ai-chatbot-be/pkg/store"
	"ai-chatbot-be/pkg/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]store.VectorRecord
}

var _ vectorstore.Store = &Storage{}

// NewStorage accepts any vector size when dimension is 0.
func NewStorage(dimension int) *Storage {
	return &Storage{
		dimension: dimension,
		records:   make(map[string]store.VectorRecord),
	}
}

func (s *Storage) Upsert(ctx context.Context, records []store.VectorRecord) error {
	if err := ctx.Err(); err != nil {
		return errs.NewServiceError("vectorstore", errs.KindUnavailable, err)
	}
	for _, r := range records {
		if s.dimension > 0 && len(r.Vector) != s.dimension {
			return errs.NewServiceError("vectorstore", errs.KindInvalidRequest,
				fmt.Errorf("vector dimension mismatch for %s: got %d, want %d", r.ID, len(r.Vector), s.dimension))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		r.Vector = append([]float32(nil), r.Vector...)
		s.records[r.ID] = r
	}
	return nil
}

func (s *Storage) Query(ctx context.Context, vector []float32, k int, filter vectorstore.Filter) ([]vectorstore.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.NewServiceError("vectorstore", errs.KindUnavailable, err)
	}
	if k <= 0 {
		return nil, nil
	}

	allowed := make(map[string]struct{}, len(filter.DocumentIDs))
	for _, id := range filter.DocumentIDs {
		allowed[id] = struct{}{}
	}

	s.mu.RLock()
	matches := make([]vectorstore.Match, 0, len(s.records))
	for _, r := range s.records {
		if len(allowed) > 0 {
			if _, ok := allowed[r.Metadata.DocumentID]; !ok {
				continue
			}
		}
		// vectors are assumed L2-normalized
		matches = append(matches, vectorstore.Match{
			ID:       r.ID,
			Score:    dot(r.Vector, vector),
			Metadata: r.Metadata,
		})
	}
	s.mu.RUnlock()

	vectorstore.SortMatches(matches)
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *Storage) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found []string
	for _, id := range ids {
		if _, ok := s.records[id]; ok {
			found = append(found, id)
		}
	}
	return found, nil
}

func (s *Storage) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

// Len reports the number of stored records.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Storage) Close() error {
	return nil
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

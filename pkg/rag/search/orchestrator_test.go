package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-chatbot-be/internal/pkg/logger"
	"ai-chatbot-be/pkg/embedding/hash"
	"ai-chatbot-be/pkg/errs"
	"ai-chatbot-be/pkg/store"
	"ai-chatbot-be/pkg/vectorstore"
	"ai-chatbot-be/pkg/vectorstore/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedEmbedder returns the same query vector for every input
type fixedEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return f.vec, f.err
}

func (f *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, f.err
}

func (f *fixedEmbedder) Dimensions() int { return len(f.vec) }

type failingStore struct {
	vectorstore.Store
	queries int
}

func (f *failingStore) Query(ctx context.Context, vector []float32, k int, filter vectorstore.Filter) ([]vectorstore.Match, error) {
	f.queries++
	return nil, errs.NewServiceError("vectorstore", errs.KindUnavailable, errors.New("connection refused"))
}

func record(doc string, idx int, vec []float32, text string) store.VectorRecord {
	return store.Chunk{DocumentID: doc, Index: idx, Text: text, Embedding: vec}.ToRecord("s")
}

func seededStore(t *testing.T) *memory.Storage {
	t.Helper()
	st := memory.NewStorage(2)
	require.NoError(t, st.Upsert(context.Background(), []store.VectorRecord{
		record("doc-a", 0, []float32{1, 0}, "a0"),
		record("doc-a", 1, []float32{0.8, 0.6}, "a1"),
		record("doc-a", 2, []float32{0.8, 0.6}, "a2"),
		record("doc-b", 0, []float32{0.6, 0.8}, "b0"),
		record("doc-b", 1, []float32{0, 1}, "b1"),
		record("doc-c", 0, []float32{1, 0}, "c0"),
	}))
	return st
}

func sessionWith(docs ...string) *store.Session {
	s := store.NewSession("s", time.Now())
	for _, d := range docs {
		s.Attach(d)
	}
	return s
}

func TestOrchestrator_Retrieve(t *testing.T) {
	tests := []struct {
		name     string
		scope    []string
		k        int
		minScore float64
		want     []string
	}{
		{
			name:     "orders by score then chunk index",
			scope:    []string{"doc-a", "doc-b"},
			k:        3,
			minScore: 0,
			want:     []string{"a0", "a1", "a2"},
		},
		{
			name:     "respects min score",
			scope:    []string{"doc-a", "doc-b"},
			k:        10,
			minScore: 0.7,
			want:     []string{"a0", "a1", "a2"},
		},
		{
			name:     "only documents in scope",
			scope:    []string{"doc-b"},
			k:        5,
			minScore: 0,
			want:     []string{"b0", "b1"},
		},
		{
			name:     "caps at k",
			scope:    []string{"doc-a", "doc-b", "doc-c"},
			k:        1,
			minScore: 0,
			want:     []string{"a0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOrchestrator(&fixedEmbedder{vec: []float32{1, 0}}, seededStore(t), logger.NewNopLogger())

			results, err := o.Retrieve(context.Background(), sessionWith(tt.scope...), "question", tt.k, tt.minScore)
			require.NoError(t, err)

			var got []string
			for _, r := range results {
				got = append(got, r.ChunkText)
				assert.GreaterOrEqual(t, r.Score, tt.minScore)
				assert.Contains(t, tt.scope, r.DocumentID)
			}
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(results), tt.k)
		})
	}
}

func TestOrchestrator_TiesBreakByDocumentID(t *testing.T) {
	o := NewOrchestrator(&fixedEmbedder{vec: []float32{1, 0}}, seededStore(t), logger.NewNopLogger())

	results, err := o.Retrieve(context.Background(), sessionWith("doc-a", "doc-c"), "q", 2, 0.9)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc-a", results[0].DocumentID)
	assert.Equal(t, "doc-c", results[1].DocumentID)
}

func TestOrchestrator_TieAtCutKeepsLowerChunkIndex(t *testing.T) {
	st := memory.NewStorage(2)
	require.NoError(t, st.Upsert(context.Background(), []store.VectorRecord{
		record("doc-a", 10, []float32{0, 1}, "a10"),
		record("doc-a", 2, []float32{0, 1}, "a2"),
	}))
	o := NewOrchestrator(&fixedEmbedder{vec: []float32{0, 1}}, st, logger.NewNopLogger())

	results, err := o.Retrieve(context.Background(), sessionWith("doc-a"), "q", 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].ChunkIndex)
	assert.Equal(t, "a2", results[0].ChunkText)
}

func TestOrchestrator_EmptyScopeMakesNoCalls(t *testing.T) {
	embedder := &fixedEmbedder{vec: []float32{1, 0}}
	st := &failingStore{}
	o := NewOrchestrator(embedder, st, logger.NewNopLogger())

	results, err := o.Retrieve(context.Background(), sessionWith(), "anything", 3, 0)

	assert.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, embedder.calls)
	assert.Equal(t, 0, st.queries)
}

func TestOrchestrator_Unavailable(t *testing.T) {
	t.Run("store fails", func(t *testing.T) {
		o := NewOrchestrator(&fixedEmbedder{vec: []float32{1, 0}}, &failingStore{}, logger.NewNopLogger())

		results, err := o.Retrieve(context.Background(), sessionWith("doc-a"), "q", 3, 0)

		assert.Empty(t, results)
		assert.True(t, errors.Is(err, errs.ErrRetrievalUnavailable))
		kind, ok := errs.KindOf(err)
		assert.True(t, ok)
		assert.Equal(t, errs.KindUnavailable, kind)
	})

	t.Run("embedder fails", func(t *testing.T) {
		embedder := &fixedEmbedder{err: errs.NewServiceError("embedding", errs.KindRateLimited, errors.New("slow down"))}
		o := NewOrchestrator(embedder, seededStore(t), logger.NewNopLogger())

		results, err := o.Retrieve(context.Background(), sessionWith("doc-a"), "q", 3, 0)

		assert.Empty(t, results)
		assert.True(t, errors.Is(err, errs.ErrRetrievalUnavailable))
	})
}

func TestOrchestrator_WithHashEmbedder(t *testing.T) {
	embedder := hash.NewProvider(256)
	st := memory.NewStorage(256)
	texts := []string{
		"Paris is the capital of France.",
		"Bananas are rich in potassium.",
	}
	vecs, err := embedder.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.NoError(t, st.Upsert(context.Background(), []store.VectorRecord{
		record("doc", 0, vecs[0], texts[0]),
		record("doc", 1, vecs[1], texts[1]),
	}))

	o := NewOrchestrator(embedder, st, logger.NewNopLogger())
	results, err := o.Retrieve(context.Background(), sessionWith("doc"), "What is the capital of France?", 1, 0.1)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, texts[0], results[0].ChunkText)
}

package chromem

import (
	"context"
	"testing"

	"ai-chatbot-be/pkg/store"
	"ai-chatbot-be/pkg/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(doc string, index int, text string, vec ...float32) store.VectorRecord {
	return store.Chunk{DocumentID: doc, Index: index, Text: text, Embedding: vec}.ToRecord("s1")
}

func TestChromemStore_RoundTrip(t *testing.T) {
	s, err := New("", "test")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []store.VectorRecord{
		record("doc-a", 0, "paris", 1, 0, 0),
		record("doc-a", 1, "london", 0, 1, 0),
		record("doc-b", 0, "rome", 0.6, 0.8, 0),
	}))
	assert.Equal(t, 3, s.Count())

	matches, err := s.Query(ctx, []float32{1, 0, 0}, 2, vectorstore.Filter{})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "doc-a:0", matches[0].ID)
	assert.Equal(t, "paris", matches[0].Metadata.Text)
	assert.Equal(t, 0, matches[0].Metadata.ChunkIndex)
	assert.Equal(t, "s1", matches[0].Metadata.SessionScope)
	assert.Equal(t, "doc-b:0", matches[1].ID)
}

func TestChromemStore_FilterAndUpsert(t *testing.T) {
	s, err := New("", "test")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []store.VectorRecord{
		record("doc-a", 0, "paris", 1, 0, 0),
		record("doc-b", 0, "rome", 0, 1, 0),
	}))
	// Same id replaces the old vector
	require.NoError(t, s.Upsert(ctx, []store.VectorRecord{record("doc-b", 0, "rome v2", 1, 0, 0)}))
	assert.Equal(t, 2, s.Count())

	matches, err := s.Query(ctx, []float32{1, 0, 0}, 5, vectorstore.Filter{DocumentIDs: []string{"doc-b"}})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "rome v2", matches[0].Metadata.Text)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-5)
}

func TestChromemStore_DeleteAndEmpty(t *testing.T) {
	s, err := New("", "test")
	require.NoError(t, err)
	ctx := context.Background()

	matches, err := s.Query(ctx, []float32{1, 0}, 3, vectorstore.Filter{})
	require.NoError(t, err)
	assert.Empty(t, matches)

	require.NoError(t, s.Upsert(ctx, []store.VectorRecord{record("d", 0, "x", 1, 0), record("d", 1, "y", 0, 1)}))
	require.NoError(t, s.Delete(ctx, []string{"d:0", "d:1"}))
	assert.Equal(t, 0, s.Count())
}

func TestChromemStore_TiesAtCutPreferLowerChunkIndex(t *testing.T) {
	s, err := New("", "test")
	require.NoError(t, err)
	ctx := context.Background()

	var records []store.VectorRecord
	for i := 0; i < 12; i++ {
		records = append(records, record("doc-a", i, "same", 0, 1, 0))
	}
	records = append(records, record("doc-b", 0, "other", 1, 0, 0))
	require.NoError(t, s.Upsert(ctx, records))

	tests := []struct {
		name   string
		filter vectorstore.Filter
	}{
		{"unfiltered", vectorstore.Filter{}},
		{"filtered", vectorstore.Filter{DocumentIDs: []string{"doc-a", "doc-b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := s.Query(ctx, []float32{0, 1, 0}, 3, tt.filter)
			require.NoError(t, err)
			require.Len(t, matches, 3)
			for i, m := range matches {
				assert.Equal(t, "doc-a", m.Metadata.DocumentID)
				assert.Equal(t, i, m.Metadata.ChunkIndex)
			}
		})
	}
}

func TestChromemStore_ExistingIDs(t *testing.T) {
	s, err := New("", "test")
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, []store.VectorRecord{record("doc-a", 0, "paris", 1, 0, 0)}))

	found, err := s.ExistingIDs(ctx, []string{"doc-a:0", "doc-a:1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-a:0"}, found)
}

package jina

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-chatbot-be/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJinaProvider_EmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[{"object":"embedding","index":0,"embedding":[0,5]},{"object":"embedding","index":1,"embedding":[5,0]}]}`))
	}))
	defer server.Close()

	p := NewJinaProvider("secret", server.URL, 2)
	vecs, err := p.EmbedBatch(context.Background(), []string{"a", "b"})

	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 0}}, vecs)
}

func TestJinaProvider_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"bad input"}`))
	}))
	defer server.Close()

	_, err := NewJinaProvider("secret", server.URL, 2).Embed(context.Background(), "a")

	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindInvalidRequest, kind)
}

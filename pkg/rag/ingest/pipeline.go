// Package ingest turns uploaded files into embedded, searchable chunks and
// attaches them to a session's retrieval scope.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"ai-chatbot-be/internal/pkg/logger"
	"ai-chatbot-be/internal/repository/memory"
	"ai-chatbot-be/pkg/embedding"
	"ai-chatbot-be/pkg/errs"
	"ai-chatbot-be/pkg/events"
	"ai-chatbot-be/pkg/extract"
	"ai-chatbot-be/pkg/normalizer"
	"ai-chatbot-be/pkg/rag/session"
	"ai-chatbot-be/pkg/store"
	"ai-chatbot-be/pkg/utils"
	"ai-chatbot-be/pkg/vectorstore"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Config encapsulates chunking and embedding parameters
type Config struct {
	ChunkSize      int
	ChunkOverlap   int
	EmbedBatchSize int
	Concurrency    int           // embedding batches in flight
	Dimensions     int           // expected vector size; 0 trusts the provider
	Timeout        time.Duration // bounds indexing shared between callers
}

// DefaultConfig returns default ingestion configuration
func DefaultConfig() Config {
	return Config{
		ChunkSize:      1000,
		ChunkOverlap:   200,
		EmbedBatchSize: 32,
		Concurrency:    4,
		Timeout:        5 * time.Minute,
	}
}

// Result describes a successful ingestion
type Result struct {
	DocumentID string
	Filename   string
	MimeType   string
	Chunks     int
	Reused     bool // content was already indexed; nothing was embedded
}

type Pipeline struct {
	registry  *session.Registry
	embedder  embedding.EmbeddingProvider
	store     vectorstore.Store
	catalog   *memory.DocumentRepository
	publisher events.Publisher
	config    Config
	logger    logger.ILogger
	inflight  singleflight.Group
	now       func() time.Time
}

func NewPipeline(
	registry *session.Registry,
	embedder embedding.EmbeddingProvider,
	vectorStore vectorstore.Store,
	catalog *memory.DocumentRepository,
	publisher events.Publisher,
	config Config,
	log logger.ILogger,
) *Pipeline {
	def := DefaultConfig()
	if config.ChunkSize <= 0 {
		config.ChunkSize = def.ChunkSize
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = 0
	}
	if config.EmbedBatchSize <= 0 {
		config.EmbedBatchSize = def.EmbedBatchSize
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Pipeline{
		registry:  registry,
		embedder:  embedder,
		store:     vectorStore,
		catalog:   catalog,
		publisher: publisher,
		config:    config,
		logger:    log,
		now:       time.Now,
	}
}

type indexed struct {
	doc    *store.Document
	reused bool
}

// Ingest extracts, chunks and embeds data, then attaches the document to the
// session. It is all-or-nothing: any failure returns *errs.IngestionError and
// leaves the session's scope and the catalog untouched. Identical content is
// embedded once no matter how many sessions upload it; the shared indexing
// outlives any one caller, so a caller that gives up fails alone and the
// others still get the document.
func (p *Pipeline) Ingest(ctx context.Context, sessionID, filename string, data []byte) (*Result, error) {
	s, release, err := p.registry.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	extracted, err := extract.Extract(filename, data)
	if err != nil {
		return nil, p.fail(s.ID, filename, err)
	}

	text, err := normalizer.NormalizeDocument(extracted.Text)
	if err != nil {
		return nil, p.fail(s.ID, filename, err)
	}
	if text == "" {
		return nil, p.fail(s.ID, filename, errs.ErrEmptyDocument)
	}

	sum := sha256.Sum256([]byte(text))
	contentHash := hex.EncodeToString(sum[:])

	flight := p.inflight.DoChan(contentHash, func() (interface{}, error) {
		if doc, ok := p.catalog.FindByHash(contentHash); ok {
			return &indexed{doc: doc, reused: true}, nil
		}

		ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.config.Timeout)
		defer cancel()

		doc, err := p.index(ictx, s.ID, filename, extracted.MimeType, contentHash, text)
		if err != nil {
			return nil, err
		}
		return &indexed{doc: p.catalog.Save(doc)}, nil
	})

	var res *indexed
	select {
	case r := <-flight:
		if r.Err != nil {
			return nil, p.fail(s.ID, filename, r.Err)
		}
		res = r.Val.(*indexed)
	case <-ctx.Done():
		return nil, p.fail(s.ID, filename, ctx.Err())
	}

	s.Attach(res.doc.ID)

	result := &Result{
		DocumentID: res.doc.ID,
		Filename:   filename,
		MimeType:   res.doc.MimeType,
		Chunks:     len(res.doc.Chunks),
		Reused:     res.reused,
	}

	p.logger.Info("INGEST", "Document attached", map[string]interface{}{
		"session_id":  s.ID,
		"document_id": result.DocumentID,
		"file":        filename,
		"chunks":      result.Chunks,
		"reused":      result.Reused,
	})

	event := events.DocumentIngested(s.ID, result.DocumentID, filename, result.Chunks, result.Reused)
	if err := p.publisher.Publish(ctx, event); err != nil {
		p.logger.Warn("INGEST", "Failed to publish ingestion event", map[string]interface{}{
			"document_id": result.DocumentID,
			"error":       err.Error(),
		})
	}

	return result, nil
}

// index embeds every chunk and upserts all records in one call.
func (p *Pipeline) index(ctx context.Context, sessionID, filename, mimeType, contentHash, text string) (*store.Document, error) {
	docID := store.DocumentIDFromHash(contentHash)
	pieces := utils.SplitText(text, p.config.ChunkSize, p.config.ChunkOverlap)

	chunks := make([]store.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = store.Chunk{DocumentID: docID, Index: i, Text: piece}
	}

	if err := p.embedChunks(ctx, chunks); err != nil {
		return nil, err
	}

	records := make([]store.VectorRecord, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		records[i] = c.ToRecord(sessionID)
		ids[i] = records[i].ID
	}

	existing, err := p.store.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("check stored chunks: %w", err)
	}

	if err := p.store.Upsert(ctx, records); err != nil {
		p.rollback(ctx, docID, without(ids, existing))
		return nil, fmt.Errorf("upsert chunks: %w", err)
	}

	return &store.Document{
		ID:             docID,
		SourceFilename: filename,
		ContentHash:    contentHash,
		MimeType:       mimeType,
		Chunks:         chunks,
		IngestedAt:     p.now(),
	}, nil
}

// embedChunks fills chunk embeddings batch by batch. Batches run concurrently
// and each writes only its own slice of chunks.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []store.Chunk) error {
	want := p.config.Dimensions
	if want == 0 {
		want = p.embedder.Dimensions()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)

	for start := 0; start < len(chunks); start += p.config.EmbedBatchSize {
		end := start + p.config.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Text
			}

			vectors, err := p.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", batch[0].Index, batch[len(batch)-1].Index, err)
			}
			if len(vectors) != len(batch) {
				return errs.NewServiceError("embedding", errs.KindInvalidRequest,
					fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(batch)))
			}
			for i, vec := range vectors {
				batch[i].Embedding = vec
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Without a configured size every vector must match the first
	if want == 0 && len(chunks) > 0 {
		want = len(chunks[0].Embedding)
	}
	for _, c := range chunks {
		if len(c.Embedding) != want || want == 0 {
			return errs.NewServiceError("embedding", errs.KindInvalidRequest,
				fmt.Errorf("chunk %d has dimension %d, want %d", c.Index, len(c.Embedding), want))
		}
	}
	return nil
}

// rollback removes whatever part of a failed upsert may have landed. Records
// stored before the upsert began are not passed in.
func (p *Pipeline) rollback(ctx context.Context, docID string, ids []string) {
	if len(ids) == 0 {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := p.store.Delete(cctx, ids); err != nil {
		p.logger.Error("INGEST", "Rollback of partial upsert failed", map[string]interface{}{
			"document_id": docID,
			"records":     len(ids),
			"error":       err.Error(),
		})
	}
}

func without(ids, drop []string) []string {
	if len(drop) == 0 {
		return ids
	}
	skip := make(map[string]struct{}, len(drop))
	for _, id := range drop {
		skip[id] = struct{}{}
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func (p *Pipeline) fail(sessionID, filename string, err error) error {
	ie := errs.NewIngestionError(filename, err)
	p.logger.Warn("INGEST", "Ingestion failed", map[string]interface{}{
		"session_id": sessionID,
		"file":       filename,
		"error":      ie.Error(),
	})
	return ie
}

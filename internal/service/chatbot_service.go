package service

import (
	"context"
	"fmt"

	"ai-chatbot-be/internal/dto"
	"ai-chatbot-be/internal/pkg/logger"
	"ai-chatbot-be/internal/repository/memory"
	"ai-chatbot-be/pkg/events"
	"ai-chatbot-be/pkg/rag/history"
	"ai-chatbot-be/pkg/rag/ingest"
	"ai-chatbot-be/pkg/rag/response"
	"ai-chatbot-be/pkg/rag/session"
	"ai-chatbot-be/pkg/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("ai-chatbot-be/internal/service")

// IChatbotService defines the chatbot service interface
type IChatbotService interface {
	CreateSession(ctx context.Context) (*dto.CreateSessionResponse, error)
	SendMessage(ctx context.Context, request *dto.SendMessageRequest) (*dto.SendMessageResponse, error)
	StreamMessage(ctx context.Context, request *dto.SendMessageRequest) <-chan response.Chunk
	GetHistory(ctx context.Context, sessionId string, limit int) ([]*dto.GetHistoryResponse, error)
	ResetSession(ctx context.Context, request *dto.ResetSessionRequest) error
	UploadDocument(ctx context.Context, sessionId, filename string, data []byte) (*dto.UploadDocumentResponse, error)
	Health(ctx context.Context) *dto.HealthResponse
}

// IngestStats reports counters gathered from the event stream.
type IngestStats interface {
	Snapshot() Stats
}

// chatbotService coordinates domain components
type chatbotService struct {
	registry  *session.Registry
	generator *response.Generator
	pipeline  *ingest.Pipeline
	archive   history.Archive
	catalog   *memory.DocumentRepository
	publisher events.Publisher
	stats     IngestStats
	logger    logger.ILogger
}

// NewChatbotService creates a new chatbot service. archive, publisher and
// stats may be nil.
func NewChatbotService(
	registry *session.Registry,
	generator *response.Generator,
	pipeline *ingest.Pipeline,
	archive history.Archive,
	catalog *memory.DocumentRepository,
	publisher events.Publisher,
	stats IngestStats,
	log logger.ILogger,
) IChatbotService {
	if archive == nil {
		archive = history.NopArchive{}
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &chatbotService{
		registry:  registry,
		generator: generator,
		pipeline:  pipeline,
		archive:   archive,
		catalog:   catalog,
		publisher: publisher,
		stats:     stats,
		logger:    log,
	}
}

func (c *chatbotService) CreateSession(ctx context.Context) (*dto.CreateSessionResponse, error) {
	_, span := tracer.Start(ctx, "ChatbotService.CreateSession")
	defer span.End()

	s := c.registry.Create()
	span.SetAttributes(attribute.String("session.id", s.ID))

	return &dto.CreateSessionResponse{SessionId: s.ID}, nil
}

func (c *chatbotService) SendMessage(ctx context.Context, request *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	sessionId := c.registry.Resolve(request.SessionId)
	ctx, span := tracer.Start(ctx, "ChatbotService.SendMessage", trace.WithAttributes(
		attribute.String("session.id", sessionId),
		attribute.Bool("rag.use_retrieval", request.UseRetrieval),
	))
	defer span.End()

	reply, err := c.generator.Generate(ctx, sessionId, request.Message, request.UseRetrieval)
	if err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.Int("rag.evidence", len(reply.Evidence)))

	return toSendMessageResponse(reply), nil
}

// StreamMessage delivers the reply in pieces. The channel is closed after a
// chunk with Done or Err set.
func (c *chatbotService) StreamMessage(ctx context.Context, request *dto.SendMessageRequest) <-chan response.Chunk {
	return c.generator.Stream(ctx, c.registry.Resolve(request.SessionId), request.Message, request.UseRetrieval)
}

// GetHistory returns the live session's turns, or the archived turns once the
// session has been evicted. limit <= 0 returns everything.
func (c *chatbotService) GetHistory(ctx context.Context, sessionId string, limit int) ([]*dto.GetHistoryResponse, error) {
	sessionId = c.registry.Resolve(sessionId)
	ctx, span := tracer.Start(ctx, "ChatbotService.GetHistory", trace.WithAttributes(
		attribute.String("session.id", sessionId),
	))
	defer span.End()

	var turns []store.Turn
	var err error
	if c.registry.Exists(sessionId) {
		turns, err = c.registry.History(ctx, sessionId)
		if limit > 0 && len(turns) > limit {
			turns = turns[len(turns)-limit:]
		}
	} else {
		turns, err = c.archive.Load(ctx, sessionId, limit)
		span.SetAttributes(attribute.Bool("history.archived", true))
	}
	if err != nil {
		return nil, fail(span, err)
	}

	res := make([]*dto.GetHistoryResponse, 0, len(turns))
	for _, t := range turns {
		res = append(res, &dto.GetHistoryResponse{
			Role:      t.Role,
			Content:   t.RawContent,
			CreatedAt: t.Timestamp,
		})
	}
	return res, nil
}

func (c *chatbotService) ResetSession(ctx context.Context, request *dto.ResetSessionRequest) error {
	sessionId := c.registry.Resolve(request.SessionId)
	ctx, span := tracer.Start(ctx, "ChatbotService.ResetSession", trace.WithAttributes(
		attribute.String("session.id", sessionId),
	))
	defer span.End()

	// Runs under the session guard; a failed clear leaves memory untouched.
	clearArchive := func(ctx context.Context, id string) error {
		if err := c.archive.Clear(ctx, id); err != nil {
			return fmt.Errorf("clear archived history: %w", err)
		}
		return nil
	}
	if err := c.registry.Reset(ctx, sessionId, clearArchive); err != nil {
		return fail(span, err)
	}

	if err := c.publisher.Publish(ctx, events.SessionReset(sessionId)); err != nil {
		c.logger.Warn("EVENTS", "Failed to publish reset event", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}
	return nil
}

func (c *chatbotService) UploadDocument(ctx context.Context, sessionId, filename string, data []byte) (*dto.UploadDocumentResponse, error) {
	sessionId = c.registry.Resolve(sessionId)
	ctx, span := tracer.Start(ctx, "ChatbotService.UploadDocument", trace.WithAttributes(
		attribute.String("session.id", sessionId),
		attribute.String("document.filename", filename),
		attribute.Int("document.bytes", len(data)),
	))
	defer span.End()

	res, err := c.pipeline.Ingest(ctx, sessionId, filename, data)
	if err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(
		attribute.String("document.id", res.DocumentID),
		attribute.Int("document.chunks", res.Chunks),
		attribute.Bool("document.reused", res.Reused),
	)

	return &dto.UploadDocumentResponse{
		SessionId:  sessionId,
		DocumentId: res.DocumentID,
		Filename:   res.Filename,
		Chunks:     res.Chunks,
		Reused:     res.Reused,
	}, nil
}

func (c *chatbotService) Health(ctx context.Context) *dto.HealthResponse {
	res := &dto.HealthResponse{
		Status:    "ok",
		Sessions:  c.registry.Count(),
		Documents: c.catalog.Count(),
	}
	if c.stats != nil {
		s := c.stats.Snapshot()
		res.DocumentsIngested = s.DocumentsIngested
		res.ChunksIndexed = s.ChunksIndexed
		res.SessionResets = s.SessionResets
	}
	return res
}

func toSendMessageResponse(reply *response.Reply) *dto.SendMessageResponse {
	res := &dto.SendMessageResponse{
		SessionId: reply.SessionID,
		Message:   reply.Message,
		Response:  reply.Text,
		CreatedAt: reply.Timestamp,
	}
	for _, e := range reply.Evidence {
		res.Evidence = append(res.Evidence, dto.EvidenceDTO{
			DocumentId: e.DocumentID,
			ChunkIndex: e.ChunkIndex,
			Score:      e.Score,
		})
	}
	return res
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

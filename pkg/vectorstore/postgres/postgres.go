package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"ai-chatbot-be/internal/model"
	"ai-chatbot-be/pkg/errs"
	"ai-chatbot-be/pkg/store"
	"ai-chatbot-be/pkg/vectorstore"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PgVectorStore keeps chunk vectors in Postgres with the pgvector extension
type PgVectorStore struct {
	db *gorm.DB
}

var _ vectorstore.Store = &PgVectorStore{}

func New(db *gorm.DB) *PgVectorStore {
	return &PgVectorStore{db: db}
}

// Migrate enables the extension and creates the chunk_embeddings table.
func (s *PgVectorStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("enable pgvector: %w", err)
	}
	return s.db.WithContext(ctx).AutoMigrate(&model.ChunkEmbedding{})
}

func (s *PgVectorStore) Upsert(ctx context.Context, records []store.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]*model.ChunkEmbedding, len(records))
	for i, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return errs.NewServiceError("vectorstore", errs.KindInvalidRequest, err)
		}
		rows[i] = &model.ChunkEmbedding{
			Id:             r.ID,
			DocumentId:     r.Metadata.DocumentID,
			ChunkIndex:     r.Metadata.ChunkIndex,
			SessionScope:   r.Metadata.SessionScope,
			Document:       r.Metadata.Text,
			EmbeddingValue: pgvector.NewVector(r.Vector),
			Metadata:       meta,
		}
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(rows).Error
	if err != nil {
		return errs.NewServiceError("vectorstore", errs.KindUnavailable, fmt.Errorf("upsert chunk embeddings: %w", err))
	}
	return nil
}

func (s *PgVectorStore) Query(ctx context.Context, vector []float32, k int, filter vectorstore.Filter) ([]vectorstore.Match, error) {
	if k <= 0 {
		return nil, nil
	}

	// Cosine distance in pgvector is: 1 - cosine_similarity
	type result struct {
		model.ChunkEmbedding
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(vector)
	query := s.db.WithContext(ctx).
		Table(model.ChunkEmbedding{}.TableName()).
		Select("chunk_embeddings.*, 1 - (embedding_value <=> ?) as similarity", queryVector)
	if len(filter.DocumentIDs) > 0 {
		query = query.Where("document_id IN ?", filter.DocumentIDs)
	}

	err := query.
		Order("similarity DESC").
		Order("chunk_index ASC").
		Limit(k).
		Scan(&results).Error
	if err != nil {
		return nil, errs.NewServiceError("vectorstore", errs.KindUnavailable, fmt.Errorf("search chunk embeddings: %w", err))
	}

	matches := make([]vectorstore.Match, len(results))
	for i, res := range results {
		matches[i] = vectorstore.Match{
			ID:    res.Id,
			Score: res.Similarity,
			Metadata: store.RecordMetadata{
				DocumentID:   res.DocumentId,
				ChunkIndex:   res.ChunkIndex,
				SessionScope: res.SessionScope,
				Text:         res.Document,
			},
		}
	}
	return matches, nil
}

func (s *PgVectorStore) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []string
	err := s.db.WithContext(ctx).
		Model(&model.ChunkEmbedding{}).
		Where("id IN ?", ids).
		Pluck("id", &found).Error
	if err != nil {
		return nil, errs.NewServiceError("vectorstore", errs.KindUnavailable, fmt.Errorf("lookup chunk embeddings: %w", err))
	}
	return found, nil
}

func (s *PgVectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.ChunkEmbedding{}).Error
	if err != nil {
		return errs.NewServiceError("vectorstore", errs.KindUnavailable, fmt.Errorf("delete chunk embeddings: %w", err))
	}
	return nil
}

func (s *PgVectorStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

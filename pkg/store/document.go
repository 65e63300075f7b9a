package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Document is an ingested source. Re-ingesting identical content is a no-op.
type Document struct {
	ID             string    `json:"id"`
	SourceFilename string    `json:"source_filename"`
	ContentHash    string    `json:"content_hash"`
	MimeType       string    `json:"mime_type"`
	Chunks         []Chunk   `json:"chunks"`
	IngestedAt     time.Time `json:"ingested_at"`
}

// Chunk is a contiguous window of a document's normalized text
type Chunk struct {
	DocumentID string    `json:"document_id"`
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
}

// RecordMetadata travels with every vector in the store
type RecordMetadata struct {
	DocumentID   string `json:"document_id"`
	ChunkIndex   int    `json:"chunk_index"`
	SessionScope string `json:"session_scope"`
	Text         string `json:"text"`
}

// VectorRecord is the stored form of one chunk
type VectorRecord struct {
	ID       string
	Vector   []float32
	Metadata RecordMetadata
}

// documentNamespace seeds name-based document ids
var documentNamespace = uuid.MustParse("6f1c4c52-8a0e-4f5e-9d7b-2b8f0f6f3c11")

// DocumentIDFromHash derives a stable id from a content hash.
func DocumentIDFromHash(contentHash string) string {
	return uuid.NewSHA1(documentNamespace, []byte(contentHash)).String()
}

// RecordID is the upsert key of a chunk's vector.
func RecordID(documentID string, index int) string {
	return fmt.Sprintf("%s:%d", documentID, index)
}

// ToRecord converts a chunk that has been embedded.
func (c Chunk) ToRecord(sessionScope string) VectorRecord {
	return VectorRecord{
		ID:     RecordID(c.DocumentID, c.Index),
		Vector: c.Embedding,
		Metadata: RecordMetadata{
			DocumentID:   c.DocumentID,
			ChunkIndex:   c.Index,
			SessionScope: sessionScope,
			Text:         c.Text,
		},
	}
}

package dto

import (
	"time"
)

type CreateSessionResponse struct {
	SessionId string `json:"session_id"`
}

type SendMessageRequest struct {
	SessionId    string `json:"session_id" validate:"max=128"`
	Message      string `json:"message" validate:"required,max=8000"`
	UseRetrieval bool   `json:"use_retrieval"`
}

type EvidenceDTO struct {
	DocumentId string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

type SendMessageResponse struct {
	SessionId string        `json:"session_id"`
	Message   string        `json:"message"`
	Response  string        `json:"response"`
	Evidence  []EvidenceDTO `json:"evidence,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

type GetHistoryResponse struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type ResetSessionRequest struct {
	SessionId string `json:"session_id" validate:"max=128"`
}

type UploadDocumentResponse struct {
	SessionId  string `json:"session_id"`
	DocumentId string `json:"document_id"`
	Filename   string `json:"filename"`
	Chunks     int    `json:"chunks"`
	Reused     bool   `json:"reused"`
}

// SocketFrame is the envelope exchanged over the chat websocket.
type SocketFrame struct {
	Type         string `json:"type"` // "message" inbound; "chunk", "done" or "error" outbound
	SessionId    string `json:"session_id,omitempty"`
	Message      string `json:"message,omitempty"`
	UseRetrieval bool   `json:"use_retrieval,omitempty"`
	Text         string `json:"text,omitempty"`
	Error        string `json:"error,omitempty"`
}

type HealthResponse struct {
	Status            string `json:"status"`
	Sessions          int    `json:"sessions"`
	Documents         int    `json:"documents"`
	DocumentsIngested int64  `json:"documents_ingested"`
	ChunksIndexed     int64  `json:"chunks_indexed"`
	SessionResets     int64  `json:"session_resets"`
}

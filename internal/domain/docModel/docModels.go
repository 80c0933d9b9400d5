package docModel

import (
	"context"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

type RetryReason string

const (
	RetryNone         RetryReason = ""
	RetryTransient    RetryReason = "transient"
	RetryLowRetention RetryReason = "low_retention"
	RetryStuck        RetryReason = "stuck"
)

// RetryState replaces retry counters embedded in error-message strings.
type RetryState struct {
	Attempt int         `json:"attempt"`
	Reason  RetryReason `json:"reason"`
}

type Document struct {
	Id              string    `json:"id"`
	Filename        string    `json:"filename"`
	ExtractedText   string    `json:"extracted_text"`
	Markdown        string    `json:"markdown,omitempty"` //set by finalization only
	Status          Status    `json:"status"`
	TotalChunks     int       `json:"total_chunks"`
	ProcessedChunks int       `json:"processed_chunks"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedTime     time.Time `json:"created_time"`
	ExpiresAt       time.Time `json:"expires_at"`
}

type DocumentChunk struct {
	Id               string     `json:"id"`
	DocumentId       string     `json:"document_id"`
	ChunkIndex       int        `json:"chunk_index"` //0-based, contiguous per document
	Content          string     `json:"content"`
	ProcessedContent string     `json:"processed_content,omitempty"`
	Status           Status     `json:"status"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	Retry            RetryState `json:"retry"`
	UpdatedTime      time.Time  `json:"updated_time"`
}

// DocumentUpdate is a partial update. Nil fields are left untouched.
type DocumentUpdate struct {
	Status          *Status
	Markdown        *string
	TotalChunks     *int
	ProcessedChunks *int
	ErrorMessage    *string
	ExtractedText   *string
}

// ChunkUpdate is a partial update. Nil fields are left untouched.
// The store stamps UpdatedTime on every chunk update.
type ChunkUpdate struct {
	Status           *Status
	ProcessedContent *string
	ErrorMessage     *string
	Retry            *RetryState
}

type DocumentStore interface {
	CreateDocument(ctx context.Context, doc Document) (Document, error)
	CreateChunks(ctx context.Context, chunks []DocumentChunk) error
	GetDocument(ctx context.Context, id string) (Document, bool)
	GetDocumentsByStatus(ctx context.Context, status Status) ([]Document, error)
	GetDocumentChunks(ctx context.Context, documentId string) ([]DocumentChunk, error)
	GetStuckChunks(ctx context.Context, threshold time.Duration) ([]DocumentChunk, error)
	UpdateDocument(ctx context.Context, id string, update DocumentUpdate) (Document, error)
	UpdateDocumentChunk(ctx context.Context, id string, update ChunkUpdate) (DocumentChunk, error)
	CleanupExpiredDocuments(ctx context.Context) (int, error)
}

func StatusPtr(s Status) *Status        { return &s }
func StringPtr(s string) *string        { return &s }
func IntPtr(i int) *int                 { return &i }
func RetryPtr(r RetryState) *RetryState { return &r }

package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/cunning-folk/Document-Processor/internal/chunker"
	"github.com/cunning-folk/Document-Processor/internal/config"
	"github.com/cunning-folk/Document-Processor/internal/domain/docModel"
	"github.com/cunning-folk/Document-Processor/internal/extract"
	"github.com/cunning-folk/Document-Processor/internal/metrics"
	"github.com/cunning-folk/Document-Processor/pkg/logger_i"
	"github.com/google/uuid"
)

// Service takes an uploaded file from raw bytes to a processing document:
// extraction runs synchronously so the caller sees extraction failures
// directly; the chunk rewrite happens in the background afterwards.
type Service struct {
	store     docModel.DocumentStore
	extractor *extract.Extractor
	logger    *logger_i.Logger
}

func NewService(store docModel.DocumentStore, extractor *extract.Extractor) *Service {
	return &Service{
		store:     store,
		extractor: extractor,
		logger:    logger_i.NewLogger("ingest"),
	}
}

func (s *Service) SubmitDocument(ctx context.Context, filename string, data []byte) (docModel.Document, error) {
	started := time.Now()
	result, err := s.extractor.Extract(ctx, data, filename)
	metrics.CaptureExecutionMetrics("extraction", time.Since(started))
	if err != nil {
		metrics.IncrementExtractionAttempts("cascade", "failure")
		s.logger.Warn("Extraction failed", "filename", filename, "error", err)
		return docModel.Document{}, err
	}
	metrics.IncrementExtractionAttempts(result.Method, "success")
	s.logger.Info("Extracted document", "filename", filename,
		"method", result.Method, "pages", result.PageCount, "chars", len(result.Text))

	doc, err := s.store.CreateDocument(ctx, docModel.Document{
		Id:            uuid.New().String(),
		Filename:      filename,
		ExtractedText: result.Text,
		Status:        docModel.StatusPending,
	})
	if err != nil {
		return docModel.Document{}, fmt.Errorf("creating document: %w", err)
	}

	parts := chunker.Split(result.Text, config.MaxChunkSize)
	chunks := make([]docModel.DocumentChunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, docModel.DocumentChunk{
			Id:         uuid.New().String(),
			DocumentId: doc.Id,
			ChunkIndex: i,
			Content:    part,
			Status:     docModel.StatusPending,
		})
	}
	if err := s.store.CreateChunks(ctx, chunks); err != nil {
		return docModel.Document{}, fmt.Errorf("creating chunks: %w", err)
	}

	doc, err = s.store.UpdateDocument(ctx, doc.Id, docModel.DocumentUpdate{
		Status:      docModel.StatusPtr(docModel.StatusProcessing),
		TotalChunks: docModel.IntPtr(len(chunks)),
	})
	if err != nil {
		return docModel.Document{}, fmt.Errorf("queueing document: %w", err)
	}

	s.logger.Info("Document queued", "docId", doc.Id, "chunks", len(chunks))
	return doc, nil
}

// GetDocument reads the current state, including the assembled markdown once
// the document is completed.
func (s *Service) GetDocument(ctx context.Context, id string) (docModel.Document, bool) {
	return s.store.GetDocument(ctx, id)
}

// RetryDocument puts a failed document back into the pipeline. Failed chunks
// are reset to pending with a fresh retry state; completed chunks keep their
// output.
func (s *Service) RetryDocument(ctx context.Context, id string) (docModel.Document, error) {
	doc, found := s.store.GetDocument(ctx, id)
	if !found {
		return docModel.Document{}, fmt.Errorf("document %s not found", id)
	}
	if doc.Status != docModel.StatusFailed {
		return docModel.Document{}, fmt.Errorf("document %s is %s, only failed documents can be retried", id, doc.Status)
	}

	chunks, err := s.store.GetDocumentChunks(ctx, id)
	if err != nil {
		return docModel.Document{}, fmt.Errorf("listing chunks of %s: %w", id, err)
	}
	for _, chunk := range chunks {
		if chunk.Status != docModel.StatusFailed {
			continue
		}
		_, err := s.store.UpdateDocumentChunk(ctx, chunk.Id, docModel.ChunkUpdate{
			Status:       docModel.StatusPtr(docModel.StatusPending),
			ErrorMessage: docModel.StringPtr(""),
			Retry:        docModel.RetryPtr(docModel.RetryState{}),
		})
		if err != nil {
			return docModel.Document{}, fmt.Errorf("resetting chunk %s: %w", chunk.Id, err)
		}
	}

	doc, err = s.store.UpdateDocument(ctx, id, docModel.DocumentUpdate{
		Status:       docModel.StatusPtr(docModel.StatusProcessing),
		ErrorMessage: docModel.StringPtr(""),
	})
	if err != nil {
		return docModel.Document{}, fmt.Errorf("requeueing document %s: %w", id, err)
	}
	s.logger.Info("Document requeued", "docId", id)
	return doc, nil
}

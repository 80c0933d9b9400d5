package ingest

import (
	"context"
	"testing"

	"github.com/cunning-folk/Document-Processor/internal/data/store"
	"github.com/cunning-folk/Document-Processor/internal/domain/docModel"
	"github.com/cunning-folk/Document-Processor/internal/extract"
)

func TestSubmitDocumentQueuesTextFile(t *testing.T) {
	s := store.InitInMemoryDocumentStore()
	svc := NewService(s, extract.NewExtractor())

	content := "# Meeting notes\n\nFirst point.\n\nSecond point."
	doc, err := svc.SubmitDocument(context.Background(), "notes.txt", []byte(content))
	if err != nil {
		t.Fatalf("SubmitDocument: %v", err)
	}

	if doc.Status != docModel.StatusProcessing {
		t.Errorf("document status = %s, want processing", doc.Status)
	}
	if doc.TotalChunks != 1 {
		t.Errorf("total chunks = %d, want 1", doc.TotalChunks)
	}
	if doc.ExtractedText != content {
		t.Errorf("extracted text = %q", doc.ExtractedText)
	}

	chunks, err := s.GetDocumentChunks(context.Background(), doc.Id)
	if err != nil {
		t.Fatalf("GetDocumentChunks: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Content != content {
		t.Errorf("chunks = %+v, want one pending chunk with the full text", chunks)
	}
	if chunks[0].Status != docModel.StatusPending {
		t.Errorf("chunk status = %s, want pending", chunks[0].Status)
	}
}

func TestSubmitDocumentRejectsUnsupportedType(t *testing.T) {
	s := store.InitInMemoryDocumentStore()
	svc := NewService(s, extract.NewExtractor())

	_, err := svc.SubmitDocument(context.Background(), "photo.jpeg", []byte{0xff, 0xd8})
	if err == nil {
		t.Fatal("expected an error for an unsupported file type")
	}
	if !extract.IsKind(err, extract.KindUnprocessable) {
		t.Errorf("error = %v, want unprocessable kind", err)
	}

	docs, _ := s.GetDocumentsByStatus(context.Background(), docModel.StatusPending)
	if len(docs) != 0 {
		t.Errorf("no document should be created on extraction failure, got %d", len(docs))
	}
}

func TestRetryDocumentResetsFailedChunks(t *testing.T) {
	s := store.InitInMemoryDocumentStore()
	svc := NewService(s, extract.NewExtractor())

	_, err := s.CreateDocument(context.Background(), docModel.Document{
		Id:          "doc-1",
		Status:      docModel.StatusFailed,
		TotalChunks: 2,
	})
	if err != nil {
		t.Fatalf("creating document: %v", err)
	}
	chunks := []docModel.DocumentChunk{
		{Id: "c0", DocumentId: "doc-1", ChunkIndex: 0, ProcessedContent: "ok", Status: docModel.StatusCompleted},
		{Id: "c1", DocumentId: "doc-1", ChunkIndex: 1, ErrorMessage: "model refused", Status: docModel.StatusFailed,
			Retry: docModel.RetryState{Attempt: 2, Reason: docModel.RetryTransient}},
	}
	if err := s.CreateChunks(context.Background(), chunks); err != nil {
		t.Fatalf("creating chunks: %v", err)
	}

	doc, err := svc.RetryDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("RetryDocument: %v", err)
	}
	if doc.Status != docModel.StatusProcessing {
		t.Errorf("document status = %s, want processing", doc.Status)
	}

	got, _ := s.GetDocumentChunks(context.Background(), "doc-1")
	if got[0].Status != docModel.StatusCompleted || got[0].ProcessedContent != "ok" {
		t.Errorf("completed chunk must keep its output, got %+v", got[0])
	}
	if got[1].Status != docModel.StatusPending {
		t.Errorf("failed chunk status = %s, want pending", got[1].Status)
	}
	if got[1].Retry.Attempt != 0 || got[1].ErrorMessage != "" {
		t.Errorf("failed chunk must be reset, got %+v", got[1])
	}
}

func TestRetryDocumentRejectsNonFailedDocument(t *testing.T) {
	s := store.InitInMemoryDocumentStore()
	svc := NewService(s, extract.NewExtractor())

	_, err := s.CreateDocument(context.Background(), docModel.Document{
		Id:     "doc-1",
		Status: docModel.StatusProcessing,
	})
	if err != nil {
		t.Fatalf("creating document: %v", err)
	}

	if _, err := svc.RetryDocument(context.Background(), "doc-1"); err == nil {
		t.Fatal("expected an error retrying a processing document")
	}
}

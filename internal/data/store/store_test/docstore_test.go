package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cunning-folk/Document-Processor/internal/config"
	"github.com/cunning-folk/Document-Processor/internal/data/redisStore"
	"github.com/cunning-folk/Document-Processor/internal/data/store"
	"github.com/cunning-folk/Document-Processor/internal/domain/docModel"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) *store.RedisDocumentStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return store.TestDocumentStore(redisStore.NewTestStore(client))
}

func TestRedisDocumentStore_Lifecycle(t *testing.T) {
	docStore := newTestStore(t)
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")

	t.Run("Save and Get Roundtrip", func(t *testing.T) {
		created, err := docStore.CreateDocument(ctx, docModel.Document{
			Id:            "doc_abc_123",
			Filename:      "contract.pdf",
			ExtractedText: "extracted body",
		})
		if err != nil {
			t.Fatalf("CreateDocument failed: %v", err)
		}
		if created.Status != docModel.StatusPending {
			t.Errorf("default status = %s, want pending", created.Status)
		}
		if created.ExpiresAt.IsZero() {
			t.Error("ExpiresAt must be stamped on create")
		}

		got, found := docStore.GetDocument(ctx, "doc_abc_123")
		if !found {
			t.Fatal("Document was saved but not found in Redis")
		}
		if got.ExtractedText != "extracted body" {
			t.Errorf("Data mismatch! Got %s, want extracted body", got.ExtractedText)
		}
	})

	t.Run("Get Non-Existent Document", func(t *testing.T) {
		if _, found := docStore.GetDocument(ctx, "nope"); found {
			t.Error("found a document that was never saved")
		}
	})

	t.Run("Status Index Follows Updates", func(t *testing.T) {
		pending, err := docStore.GetDocumentsByStatus(ctx, docModel.StatusPending)
		if err != nil {
			t.Fatalf("GetDocumentsByStatus failed: %v", err)
		}
		if len(pending) != 1 {
			t.Fatalf("pending documents = %d, want 1", len(pending))
		}

		if _, err := docStore.UpdateDocument(ctx, "doc_abc_123", docModel.DocumentUpdate{
			Status: docModel.StatusPtr(docModel.StatusProcessing),
		}); err != nil {
			t.Fatalf("UpdateDocument failed: %v", err)
		}

		pending, _ = docStore.GetDocumentsByStatus(ctx, docModel.StatusPending)
		processing, _ := docStore.GetDocumentsByStatus(ctx, docModel.StatusProcessing)
		if len(pending) != 0 || len(processing) != 1 {
			t.Errorf("status index stale: pending=%d processing=%d", len(pending), len(processing))
		}
	})

	t.Run("Update Non-Existent Document", func(t *testing.T) {
		_, err := docStore.UpdateDocument(ctx, "nope", docModel.DocumentUpdate{
			Status: docModel.StatusPtr(docModel.StatusFailed),
		})
		if err != store.ErrNotFound {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestRedisDocumentStore_Chunks(t *testing.T) {
	docStore := newTestStore(t)
	ctx := context.Background()

	if _, err := docStore.CreateDocument(ctx, docModel.Document{Id: "doc-1"}); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	chunks := []docModel.DocumentChunk{
		{Id: "c1", DocumentId: "doc-1", ChunkIndex: 1, Content: "second part"},
		{Id: "c0", DocumentId: "doc-1", ChunkIndex: 0, Content: "first part"},
	}
	if err := docStore.CreateChunks(ctx, chunks); err != nil {
		t.Fatalf("CreateChunks failed: %v", err)
	}

	t.Run("Chunks Come Back Sorted By Index", func(t *testing.T) {
		got, err := docStore.GetDocumentChunks(ctx, "doc-1")
		if err != nil {
			t.Fatalf("GetDocumentChunks failed: %v", err)
		}
		if len(got) != 2 || got[0].Id != "c0" || got[1].Id != "c1" {
			t.Errorf("chunks out of order: %+v", got)
		}
	})

	t.Run("Partial Chunk Update", func(t *testing.T) {
		updated, err := docStore.UpdateDocumentChunk(ctx, "c0", docModel.ChunkUpdate{
			Status:           docModel.StatusPtr(docModel.StatusCompleted),
			ProcessedContent: docModel.StringPtr("# first part"),
		})
		if err != nil {
			t.Fatalf("UpdateDocumentChunk failed: %v", err)
		}
		if updated.Content != "first part" {
			t.Errorf("untouched field changed: %q", updated.Content)
		}
		if updated.ProcessedContent != "# first part" {
			t.Errorf("processed content = %q", updated.ProcessedContent)
		}
		if updated.UpdatedTime.IsZero() {
			t.Error("UpdatedTime must be stamped on update")
		}
	})

	t.Run("Stuck Chunk Scan", func(t *testing.T) {
		if _, err := docStore.UpdateDocumentChunk(ctx, "c1", docModel.ChunkUpdate{
			Status: docModel.StatusPtr(docModel.StatusProcessing),
		}); err != nil {
			t.Fatalf("UpdateDocumentChunk failed: %v", err)
		}

		time.Sleep(5 * time.Millisecond)
		stuck, err := docStore.GetStuckChunks(ctx, time.Millisecond)
		if err != nil {
			t.Fatalf("GetStuckChunks failed: %v", err)
		}
		if len(stuck) != 1 || stuck[0].Id != "c1" {
			t.Errorf("stuck = %+v, want c1", stuck)
		}

		//a fresh chunk is not stuck
		stuck, _ = docStore.GetStuckChunks(ctx, time.Hour)
		if len(stuck) != 0 {
			t.Errorf("fresh chunk reported stuck: %+v", stuck)
		}

		//leaving processing removes the chunk from the scan
		if _, err := docStore.UpdateDocumentChunk(ctx, "c1", docModel.ChunkUpdate{
			Status: docModel.StatusPtr(docModel.StatusCompleted),
		}); err != nil {
			t.Fatalf("UpdateDocumentChunk failed: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
		stuck, _ = docStore.GetStuckChunks(ctx, time.Millisecond)
		if len(stuck) != 0 {
			t.Errorf("completed chunk reported stuck: %+v", stuck)
		}
	})
}

func TestRedisDocumentStore_CleanupExpired(t *testing.T) {
	docStore := newTestStore(t)
	ctx := context.Background()

	_, err := docStore.CreateDocument(ctx, docModel.Document{
		Id:        "old-doc",
		Status:    docModel.StatusCompleted,
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	if err := docStore.CreateChunks(ctx, []docModel.DocumentChunk{
		{Id: "old-chunk", DocumentId: "old-doc", ChunkIndex: 0},
	}); err != nil {
		t.Fatalf("CreateChunks failed: %v", err)
	}
	_, err = docStore.CreateDocument(ctx, docModel.Document{
		Id:     "fresh-doc",
		Status: docModel.StatusCompleted,
	})
	if err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}

	removed, err := docStore.CleanupExpiredDocuments(ctx)
	if err != nil {
		t.Fatalf("CleanupExpiredDocuments failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, found := docStore.GetDocument(ctx, "old-doc"); found {
		t.Error("expired document still present")
	}
	if chunks, _ := docStore.GetDocumentChunks(ctx, "old-doc"); len(chunks) != 0 {
		t.Errorf("expired document chunks still present: %+v", chunks)
	}
	if _, found := docStore.GetDocument(ctx, "fresh-doc"); !found {
		t.Error("fresh document removed by cleanup")
	}
}

package store

import (
	"context"
	"sync"
	"time"

	"github.com/cunning-folk/Document-Processor/internal/config"
	"github.com/cunning-folk/Document-Processor/internal/domain/docModel"
	"github.com/cunning-folk/Document-Processor/pkg/logger_i"
	"github.com/google/uuid"
)

var inMemLogger = logger_i.NewLogger("InMem DocumentStore")

// InMemoryDocumentStore backs the pipeline when Redis is offline and doubles
// as the test store. The now field is swappable for clock-sensitive tests.
type InMemoryDocumentStore struct {
	mutex  *sync.RWMutex
	docs   map[string]docModel.Document
	chunks map[string]docModel.DocumentChunk
	now    func() time.Time
}

func InitInMemoryDocumentStore() *InMemoryDocumentStore {
	return &InMemoryDocumentStore{
		mutex:  new(sync.RWMutex),
		docs:   make(map[string]docModel.Document),
		chunks: make(map[string]docModel.DocumentChunk),
		now:    time.Now,
	}
}

func (s *InMemoryDocumentStore) CreateDocument(ctx context.Context, doc docModel.Document) (docModel.Document, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if doc.Id == "" {
		doc.Id = uuid.New().String()
	}
	if doc.CreatedTime.IsZero() {
		doc.CreatedTime = s.now()
	}
	if doc.ExpiresAt.IsZero() {
		doc.ExpiresAt = doc.CreatedTime.Add(config.DocumentRetention)
	}
	if doc.Status == "" {
		doc.Status = docModel.StatusPending
	}
	s.docs[doc.Id] = doc
	return doc, nil
}

func (s *InMemoryDocumentStore) CreateChunks(ctx context.Context, chunks []docModel.DocumentChunk) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for i := range chunks {
		chunk := chunks[i]
		if chunk.Id == "" {
			chunk.Id = uuid.New().String()
		}
		if chunk.Status == "" {
			chunk.Status = docModel.StatusPending
		}
		chunk.UpdatedTime = s.now()
		s.chunks[chunk.Id] = chunk
	}
	return nil
}

func (s *InMemoryDocumentStore) GetDocument(ctx context.Context, id string) (docModel.Document, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	doc, found := s.docs[id]
	return doc, found
}

func (s *InMemoryDocumentStore) GetDocumentsByStatus(ctx context.Context, status docModel.Status) ([]docModel.Document, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var docs []docModel.Document
	for _, doc := range s.docs {
		if doc.Status == status {
			docs = append(docs, doc)
		}
	}
	sortDocumentsByCreation(docs)
	return docs, nil
}

func (s *InMemoryDocumentStore) GetDocumentChunks(ctx context.Context, documentId string) ([]docModel.DocumentChunk, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var chunks []docModel.DocumentChunk
	for _, chunk := range s.chunks {
		if chunk.DocumentId == documentId {
			chunks = append(chunks, chunk)
		}
	}
	sortChunksByIndex(chunks)
	return chunks, nil
}

func (s *InMemoryDocumentStore) GetStuckChunks(ctx context.Context, threshold time.Duration) ([]docModel.DocumentChunk, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	cutoff := s.now().Add(-threshold)
	var stuck []docModel.DocumentChunk
	for _, chunk := range s.chunks {
		if chunk.Status == docModel.StatusProcessing && chunk.UpdatedTime.Before(cutoff) {
			stuck = append(stuck, chunk)
		}
	}
	sortChunksByIndex(stuck)
	return stuck, nil
}

func (s *InMemoryDocumentStore) UpdateDocument(ctx context.Context, id string, update docModel.DocumentUpdate) (docModel.Document, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, found := s.docs[id]
	if !found {
		return docModel.Document{}, ErrNotFound
	}
	applyDocumentUpdate(&doc, update)
	s.docs[id] = doc
	return doc, nil
}

func (s *InMemoryDocumentStore) UpdateDocumentChunk(ctx context.Context, id string, update docModel.ChunkUpdate) (docModel.DocumentChunk, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	chunk, found := s.chunks[id]
	if !found {
		return docModel.DocumentChunk{}, ErrNotFound
	}
	applyChunkUpdate(&chunk, update)
	chunk.UpdatedTime = s.now()
	s.chunks[id] = chunk
	return chunk, nil
}

func (s *InMemoryDocumentStore) CleanupExpiredDocuments(ctx context.Context) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	removed := 0
	for id, doc := range s.docs {
		if doc.ExpiresAt.After(now) {
			continue
		}
		delete(s.docs, id)
		for chunkId, chunk := range s.chunks {
			if chunk.DocumentId == id {
				delete(s.chunks, chunkId)
			}
		}
		removed++
	}
	if removed > 0 {
		inMemLogger.Info("Removed expired documents", "count", removed)
	}
	return removed, nil
}

// SetClock replaces the store's clock. Tests only.
func (s *InMemoryDocumentStore) SetClock(now func() time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.now = now
}

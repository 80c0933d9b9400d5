package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cunning-folk/Document-Processor/internal/config"
	"github.com/cunning-folk/Document-Processor/internal/data/redisStore"
	"github.com/cunning-folk/Document-Processor/internal/domain/docModel"
	"github.com/cunning-folk/Document-Processor/pkg/logger_i"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("record not found")

const (
	docKeyPrefix       = "doc:"
	chunkKeyPrefix     = "chunk:"
	statusSetPrefix    = "docs:status:"
	docChunkSetSuffix  = ":chunks"
	processingChunkSet = "chunks:processing"
)

type RedisDocumentStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func GetRedisDocumentStore(ctx context.Context) *RedisDocumentStore {
	inner := redisStore.GetRedisStore(ctx, config.RedisDocumentStore)
	if inner == nil {
		return nil
	}
	return &RedisDocumentStore{
		store:  inner,
		logger: logger_i.NewLogger("DocumentStore"),
	}
}

func (s *RedisDocumentStore) CreateDocument(ctx context.Context, doc docModel.Document) (docModel.Document, error) {
	if doc.Id == "" {
		doc.Id = uuid.New().String()
	}
	if doc.CreatedTime.IsZero() {
		doc.CreatedTime = time.Now()
	}
	if doc.ExpiresAt.IsZero() {
		doc.ExpiresAt = doc.CreatedTime.Add(config.DocumentRetention)
	}
	if doc.Status == "" {
		doc.Status = docModel.StatusPending
	}

	if err := s.saveDocument(ctx, doc); err != nil {
		return docModel.Document{}, err
	}
	if err := s.store.SetAdd(ctx, statusSetKey(doc.Status), doc.Id); err != nil {
		return docModel.Document{}, err
	}
	s.logger.Debug("Created document", "docId", doc.Id, "filename", doc.Filename)
	return doc, nil
}

func (s *RedisDocumentStore) CreateChunks(ctx context.Context, chunks []docModel.DocumentChunk) error {
	for i := range chunks {
		chunk := chunks[i]
		if chunk.Id == "" {
			chunk.Id = uuid.New().String()
		}
		if chunk.Status == "" {
			chunk.Status = docModel.StatusPending
		}
		chunk.UpdatedTime = time.Now()

		if err := s.saveChunk(ctx, chunk); err != nil {
			return err
		}
		if err := s.store.SetAdd(ctx, docChunkSetKey(chunk.DocumentId), chunk.Id); err != nil {
			return err
		}
	}
	return nil
}

func (s *RedisDocumentStore) GetDocument(ctx context.Context, id string) (docModel.Document, bool) {
	val, err := s.store.Get(ctx, docKeyPrefix+id)
	if err != nil {
		if !s.store.IsNil(err) {
			s.logger.Error("Error fetching document", "docId", id, "error", err)
		}
		return docModel.Document{}, false
	}

	var doc docModel.Document
	if err := json.Unmarshal([]byte(val), &doc); err != nil {
		s.logger.Error("Error unmarshalling document", "docId", id, "error", err)
		return docModel.Document{}, false
	}
	return doc, true
}

func (s *RedisDocumentStore) GetDocumentsByStatus(ctx context.Context, status docModel.Status) ([]docModel.Document, error) {
	ids, err := s.store.SetMembers(ctx, statusSetKey(status))
	if err != nil {
		return nil, err
	}

	var docs []docModel.Document
	for _, id := range ids {
		doc, found := s.GetDocument(ctx, id)
		if !found {
			//key expired underneath the index, heal the set
			_ = s.store.SetRemove(ctx, statusSetKey(status), id)
			continue
		}
		docs = append(docs, doc)
	}
	sortDocumentsByCreation(docs)
	return docs, nil
}

func (s *RedisDocumentStore) GetDocumentChunks(ctx context.Context, documentId string) ([]docModel.DocumentChunk, error) {
	ids, err := s.store.SetMembers(ctx, docChunkSetKey(documentId))
	if err != nil {
		return nil, err
	}

	var chunks []docModel.DocumentChunk
	for _, id := range ids {
		chunk, found := s.getChunk(ctx, id)
		if !found {
			continue
		}
		chunks = append(chunks, chunk)
	}
	sortChunksByIndex(chunks)
	return chunks, nil
}

func (s *RedisDocumentStore) GetStuckChunks(ctx context.Context, threshold time.Duration) ([]docModel.DocumentChunk, error) {
	ids, err := s.store.SetMembers(ctx, processingChunkSet)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-threshold)
	var stuck []docModel.DocumentChunk
	for _, id := range ids {
		chunk, found := s.getChunk(ctx, id)
		if !found {
			_ = s.store.SetRemove(ctx, processingChunkSet, id)
			continue
		}
		if chunk.Status == docModel.StatusProcessing && chunk.UpdatedTime.Before(cutoff) {
			stuck = append(stuck, chunk)
		}
	}
	return stuck, nil
}

func (s *RedisDocumentStore) UpdateDocument(ctx context.Context, id string, update docModel.DocumentUpdate) (docModel.Document, error) {
	doc, found := s.GetDocument(ctx, id)
	if !found {
		return docModel.Document{}, ErrNotFound
	}

	previousStatus := doc.Status
	applyDocumentUpdate(&doc, update)

	if err := s.saveDocument(ctx, doc); err != nil {
		return docModel.Document{}, err
	}
	if doc.Status != previousStatus {
		if err := s.store.SetRemove(ctx, statusSetKey(previousStatus), id); err != nil {
			return docModel.Document{}, err
		}
		if err := s.store.SetAdd(ctx, statusSetKey(doc.Status), id); err != nil {
			return docModel.Document{}, err
		}
	}
	return doc, nil
}

func (s *RedisDocumentStore) UpdateDocumentChunk(ctx context.Context, id string, update docModel.ChunkUpdate) (docModel.DocumentChunk, error) {
	chunk, found := s.getChunk(ctx, id)
	if !found {
		return docModel.DocumentChunk{}, ErrNotFound
	}

	previousStatus := chunk.Status
	applyChunkUpdate(&chunk, update)
	chunk.UpdatedTime = time.Now()

	if err := s.saveChunk(ctx, chunk); err != nil {
		return docModel.DocumentChunk{}, err
	}

	//keep the processing index current - it backs the stuck-chunk scan
	if chunk.Status == docModel.StatusProcessing && previousStatus != docModel.StatusProcessing {
		if err := s.store.SetAdd(ctx, processingChunkSet, id); err != nil {
			return docModel.DocumentChunk{}, err
		}
	}
	if chunk.Status != docModel.StatusProcessing && previousStatus == docModel.StatusProcessing {
		if err := s.store.SetRemove(ctx, processingChunkSet, id); err != nil {
			return docModel.DocumentChunk{}, err
		}
	}
	return chunk, nil
}

func (s *RedisDocumentStore) CleanupExpiredDocuments(ctx context.Context) (int, error) {
	now := time.Now()
	removed := 0

	for _, status := range []docModel.Status{docModel.StatusPending, docModel.StatusProcessing, docModel.StatusCompleted, docModel.StatusFailed} {
		docs, err := s.GetDocumentsByStatus(ctx, status)
		if err != nil {
			return removed, err
		}
		for _, doc := range docs {
			if doc.ExpiresAt.After(now) {
				continue
			}
			if err := s.deleteDocument(ctx, doc); err != nil {
				s.logger.Error("Error deleting expired document", "docId", doc.Id, "error", err)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("Removed expired documents", "count", removed)
	}
	return removed, nil
}

// private helpers

func (s *RedisDocumentStore) saveDocument(ctx context.Context, doc docModel.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, docKeyPrefix+doc.Id, data, config.RedisDocumentKeyTTL)
}

func (s *RedisDocumentStore) saveChunk(ctx context.Context, chunk docModel.DocumentChunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, chunkKeyPrefix+chunk.Id, data, config.RedisDocumentKeyTTL)
}

func (s *RedisDocumentStore) getChunk(ctx context.Context, id string) (docModel.DocumentChunk, bool) {
	val, err := s.store.Get(ctx, chunkKeyPrefix+id)
	if err != nil {
		if !s.store.IsNil(err) {
			s.logger.Error("Error fetching chunk", "chunkId", id, "error", err)
		}
		return docModel.DocumentChunk{}, false
	}

	var chunk docModel.DocumentChunk
	if err := json.Unmarshal([]byte(val), &chunk); err != nil {
		return docModel.DocumentChunk{}, false
	}
	return chunk, true
}

func (s *RedisDocumentStore) deleteDocument(ctx context.Context, doc docModel.Document) error {
	chunkIds, err := s.store.SetMembers(ctx, docChunkSetKey(doc.Id))
	if err != nil {
		return err
	}
	for _, chunkId := range chunkIds {
		if err := s.store.Del(ctx, chunkKeyPrefix+chunkId); err != nil {
			return err
		}
		_ = s.store.SetRemove(ctx, processingChunkSet, chunkId)
	}
	if err := s.store.Del(ctx, docChunkSetKey(doc.Id)); err != nil {
		return err
	}
	if err := s.store.SetRemove(ctx, statusSetKey(doc.Status), doc.Id); err != nil {
		return err
	}
	return s.store.Del(ctx, docKeyPrefix+doc.Id)
}

func statusSetKey(status docModel.Status) string {
	return statusSetPrefix + string(status)
}

func docChunkSetKey(documentId string) string {
	return documentId + docChunkSetSuffix
}

func TestDocumentStore(store *redisStore.Store) *RedisDocumentStore {
	return &RedisDocumentStore{
		store:  store,
		logger: logger_i.NewLogger("test redis"),
	}
}

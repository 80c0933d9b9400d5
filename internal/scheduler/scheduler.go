package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cunning-folk/Document-Processor/internal/config"
	"github.com/cunning-folk/Document-Processor/internal/domain/docModel"
	"github.com/cunning-folk/Document-Processor/internal/metrics"
	"github.com/cunning-folk/Document-Processor/pkg/logger_i"
)

// Processor is the piece of work the scheduler hands a chunk to.
type Processor interface {
	ProcessChunk(ctx context.Context, chunk docModel.DocumentChunk, totalChunks int) error
}

// Scheduler drives the background pipeline: on every tick it cleans up
// expired documents, rescues stuck chunks, processes at most one pending
// chunk, and finalizes documents whose chunks have all reached a terminal
// state. Instances are independent; there is no package-level singleton.
type Scheduler struct {
	store          docModel.DocumentStore
	processor      Processor
	interval       time.Duration
	stuckThreshold time.Duration
	logger         *logger_i.Logger

	running  atomic.Bool
	inFlight atomic.Bool
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewScheduler(store docModel.DocumentStore, processor Processor) *Scheduler {
	return &Scheduler{
		store:          store,
		processor:      processor,
		interval:       config.SchedulerTickInterval,
		stuckThreshold: config.StuckChunkThreshold,
		logger:         logger_i.NewLogger("scheduler"),
	}
}

// Start launches the tick loop. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.logger.Info("Scheduler started", "interval", s.interval)

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for it to exit. Idempotent.
func (s *Scheduler) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stop)
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// Tick runs one scheduling pass. At most one pass runs at a time; a tick
// arriving while the previous pass is still working is dropped.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Debug("Previous pass still in flight, skipping tick")
		return
	}
	defer s.inFlight.Store(false)

	s.cleanupExpired(ctx)
	s.recoverStuckChunks(ctx)
	s.advanceDocuments(ctx)
}

func (s *Scheduler) cleanupExpired(ctx context.Context) {
	removed, err := s.store.CleanupExpiredDocuments(ctx)
	if err != nil {
		s.logger.Error("Cleanup pass failed", "error", err)
		return
	}
	if removed > 0 {
		s.logger.Info("Removed expired documents", "count", removed)
	}
}

// recoverStuckChunks resets chunks that have sat in processing past the
// threshold, typically after a crash mid-chunk.
func (s *Scheduler) recoverStuckChunks(ctx context.Context) {
	stuck, err := s.store.GetStuckChunks(ctx, s.stuckThreshold)
	if err != nil {
		s.logger.Error("Stuck-chunk scan failed", "error", err)
		return
	}

	for _, chunk := range stuck {
		//repeated stalls mean the chunk itself is poison, stop rescuing it
		if chunk.Retry.Reason == docModel.RetryStuck && chunk.Retry.Attempt >= config.MaxStuckRecoveries {
			s.logger.Error("Chunk stalled past the recovery limit, failing it",
				"chunkId", chunk.Id, "documentId", chunk.DocumentId, "recoveries", chunk.Retry.Attempt)
			_, err := s.store.UpdateDocumentChunk(ctx, chunk.Id, docModel.ChunkUpdate{
				Status: docModel.StatusPtr(docModel.StatusFailed),
				ErrorMessage: docModel.StringPtr(
					fmt.Sprintf("chunk stalled in processing %d times", chunk.Retry.Attempt+1)),
			})
			if err != nil {
				s.logger.Error("Failed to fail stalled chunk", "chunkId", chunk.Id, "error", err)
			} else {
				metrics.IncrementChunksProcessed("failed")
			}
			continue
		}

		s.logger.Warn("Recovering stuck chunk", "chunkId", chunk.Id,
			"documentId", chunk.DocumentId, "lastUpdate", chunk.UpdatedTime)
		_, err := s.store.UpdateDocumentChunk(ctx, chunk.Id, docModel.ChunkUpdate{
			Status:       docModel.StatusPtr(docModel.StatusPending),
			ErrorMessage: docModel.StringPtr(""),
			Retry: docModel.RetryPtr(docModel.RetryState{
				Attempt: chunk.Retry.Attempt + 1,
				Reason:  docModel.RetryStuck,
			}),
		})
		if err != nil {
			s.logger.Error("Failed to reset stuck chunk", "chunkId", chunk.Id, "error", err)
			continue
		}
		metrics.IncrementStuckChunksRecovered()
	}
}

// advanceDocuments walks the processing documents oldest-first. The first
// pending chunk found is processed and ends the pass; documents with no
// remaining work are finalized along the way.
func (s *Scheduler) advanceDocuments(ctx context.Context) {
	docs, err := s.store.GetDocumentsByStatus(ctx, docModel.StatusProcessing)
	if err != nil {
		s.logger.Error("Listing processing documents failed", "error", err)
		return
	}

	pendingTotal := 0
	var nextChunk *docModel.DocumentChunk
	nextTotal := 0

	for _, doc := range docs {
		chunks, err := s.store.GetDocumentChunks(ctx, doc.Id)
		if err != nil {
			s.logger.Error("Listing chunks failed", "documentId", doc.Id, "error", err)
			continue
		}

		var next *docModel.DocumentChunk
		inProgress := false
		for i := range chunks {
			switch chunks[i].Status {
			case docModel.StatusPending:
				pendingTotal++
				if next == nil {
					next = &chunks[i]
				}
			case docModel.StatusProcessing:
				inProgress = true
			}
		}

		if next != nil {
			//oldest document wins, but keep scanning so the gauge and the
			//finalization pass cover every document
			if nextChunk == nil {
				nextChunk = next
				nextTotal = doc.TotalChunks
			}
			continue
		}
		if inProgress {
			continue
		}
		s.finalizeDocument(ctx, doc, chunks)
	}
	metrics.SetPendingChunks(pendingTotal)

	if nextChunk != nil {
		//one chunk per pass
		if err := s.processor.ProcessChunk(ctx, *nextChunk, nextTotal); err != nil {
			s.logger.Error("Chunk processing failed", "chunkId", nextChunk.Id, "error", err)
		}
	}
}

// finalizeDocument runs once every chunk of a document is terminal. Completed
// chunks are concatenated in chunk order; any failed chunk fails the
// document.
func (s *Scheduler) finalizeDocument(ctx context.Context, doc docModel.Document, chunks []docModel.DocumentChunk) {
	var failures []string
	for _, chunk := range chunks {
		if chunk.Status == docModel.StatusFailed {
			failures = append(failures, fmt.Sprintf("chunk %d: %s", chunk.ChunkIndex, chunk.ErrorMessage))
		}
	}

	if len(failures) > 0 {
		s.logger.Error("Document failed", "documentId", doc.Id, "failedChunks", len(failures))
		_, err := s.store.UpdateDocument(ctx, doc.Id, docModel.DocumentUpdate{
			Status:       docModel.StatusPtr(docModel.StatusFailed),
			ErrorMessage: docModel.StringPtr(strings.Join(failures, "; ")),
		})
		if err != nil {
			s.logger.Error("Failed to mark document failed", "documentId", doc.Id, "error", err)
			return
		}
		metrics.IncrementDocumentsFinalized("failed")
		return
	}

	//chunks arrive sorted by index, assembly preserves document order
	parts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		parts = append(parts, chunk.ProcessedContent)
	}
	markdown := strings.Join(parts, "\n\n")

	_, err := s.store.UpdateDocument(ctx, doc.Id, docModel.DocumentUpdate{
		Status:   docModel.StatusPtr(docModel.StatusCompleted),
		Markdown: docModel.StringPtr(markdown),
	})
	if err != nil {
		s.logger.Error("Failed to finalize document", "documentId", doc.Id, "error", err)
		return
	}
	s.logger.Info("Document finalized", "documentId", doc.Id, "chunks", len(chunks))
	metrics.IncrementDocumentsFinalized("completed")
}

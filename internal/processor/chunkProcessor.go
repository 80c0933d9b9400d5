package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/cunning-folk/Document-Processor/internal/config"
	"github.com/cunning-folk/Document-Processor/internal/domain/docModel"
	"github.com/cunning-folk/Document-Processor/internal/llm"
	"github.com/cunning-folk/Document-Processor/internal/metrics"
	"github.com/cunning-folk/Document-Processor/pkg/logger_i"
	"golang.org/x/time/rate"
)

type Config struct {
	HardCeiling         int
	RetentionThreshold  float64
	MaxRetentionRetries int
	MaxTransientRetries int
	PrimaryModel        string
	EscalationModel     string
	Temperature         float64
	RunPollInterval     time.Duration
	RunTimeout          time.Duration
}

func DefaultConfig() Config {
	return Config{
		HardCeiling:         config.ChunkHardCeiling,
		RetentionThreshold:  config.RetentionThreshold,
		MaxRetentionRetries: config.MaxRetentionRetries,
		MaxTransientRetries: 3,
		PrimaryModel:        config.RewriteModel,
		EscalationModel:     config.EscalationModel,
		Temperature:         config.ModelTemperature,
		RunPollInterval:     config.AssistantRunPollInterval,
		RunTimeout:          config.AssistantRunTimeout,
	}
}

// ChunkProcessor rewrites one chunk of extracted text into markdown. A
// stateless completion is tried first; if it errors and a session runner is
// configured, the stateful assistant path is the fallback.
type ChunkProcessor struct {
	store     docModel.DocumentStore
	completer llm.Completer
	sessions  llm.SessionRunner //nil disables the fallback path
	limiter   *rate.Limiter
	cfg       Config
	logger    *logger_i.Logger

	//injectable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewChunkProcessor(store docModel.DocumentStore, completer llm.Completer, sessions llm.SessionRunner, cfg Config) *ChunkProcessor {
	return &ChunkProcessor{
		store:     store,
		completer: completer,
		sessions:  sessions,
		limiter:   rate.NewLimiter(rate.Limit(config.LLMRequestsPerSecond), config.LLMBurst),
		cfg:       cfg,
		logger:    logger_i.NewLogger("chunk_processor"),
		now:       time.Now,
		sleep:     sleepWithContext,
	}
}

// ProcessChunk takes a pending chunk to a new state: completed, failed, or
// back to pending with an updated retry state.
func (p *ChunkProcessor) ProcessChunk(ctx context.Context, chunk docModel.DocumentChunk, totalChunks int) error {
	started := p.now()

	if _, err := p.store.UpdateDocumentChunk(ctx, chunk.Id, docModel.ChunkUpdate{
		Status: docModel.StatusPtr(docModel.StatusProcessing),
	}); err != nil {
		return fmt.Errorf("marking chunk %s processing: %w", chunk.Id, err)
	}

	if len(chunk.Content) > p.cfg.HardCeiling {
		p.logger.Error("Chunk exceeds hard ceiling, failing without model call",
			"chunkId", chunk.Id, "size", len(chunk.Content))
		return p.failChunk(ctx, chunk, started,
			fmt.Sprintf("chunk of %d characters exceeds the %d character limit", len(chunk.Content), p.cfg.HardCeiling))
	}

	instruction := buildInstruction(chunk.ChunkIndex, totalChunks)
	model := p.pickModel(chunk)

	if err := p.limiter.Wait(ctx); err != nil {
		//the rewrite never started; release the chunk instead of leaving it
		//for the stuck scan to find
		if _, uerr := p.store.UpdateDocumentChunk(context.WithoutCancel(ctx), chunk.Id, docModel.ChunkUpdate{
			Status: docModel.StatusPtr(docModel.StatusPending),
		}); uerr != nil {
			p.logger.Error("Failed to release chunk after cancelled wait", "chunkId", chunk.Id, "error", uerr)
		}
		return err
	}

	result, err := p.rewrite(ctx, chunk.Content, model, instruction)
	if err != nil {
		return p.handleRewriteError(ctx, chunk, started, err)
	}

	if verdict := p.checkRetention(chunk, result); verdict != nil {
		p.logger.Warn("Rewrite below retention threshold, scheduling retry",
			"chunkId", chunk.Id, "attempt", verdict.Attempt,
			"inputLen", len(chunk.Content), "outputLen", len(result))
		_, uerr := p.store.UpdateDocumentChunk(ctx, chunk.Id, docModel.ChunkUpdate{
			Status: docModel.StatusPtr(docModel.StatusPending),
			Retry:  docModel.RetryPtr(*verdict),
		})
		metrics.IncrementChunksProcessed("retried")
		metrics.CaptureChunkMetrics("retried", p.now().Sub(started))
		return uerr
	}

	return p.completeChunk(ctx, chunk, started, result)
}

// rewrite is path A (stateless completion) with the stateful session as
// fallback when the completion call itself errors.
func (p *ChunkProcessor) rewrite(ctx context.Context, content string, model string, instruction string) (string, error) {
	callStart := p.now()
	result, err := p.completer.Complete(ctx, instruction, content, model, p.cfg.Temperature)
	metrics.CaptureExecutionMetrics("llm_complete", p.now().Sub(callStart))
	if err == nil {
		return result, nil
	}

	if p.sessions == nil {
		return "", err
	}
	p.logger.Warn("Completion failed, falling back to stateful session", "error", err)

	fallbackStart := p.now()
	result, ferr := p.runFallbackSession(ctx, content, model, instruction)
	metrics.CaptureExecutionMetrics("llm_session", p.now().Sub(fallbackStart))
	if ferr != nil {
		return "", fmt.Errorf("fallback session after completion error (%v): %w", err, ferr)
	}
	return result, nil
}

func (p *ChunkProcessor) runFallbackSession(ctx context.Context, content string, model string, instruction string) (string, error) {
	sessionId, err := p.sessions.CreateSession(ctx)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	if err := p.sessions.PostMessage(ctx, sessionId, content); err != nil {
		return "", fmt.Errorf("posting message: %w", err)
	}
	runId, err := p.sessions.StartRun(ctx, sessionId, model, instruction)
	if err != nil {
		return "", fmt.Errorf("starting run: %w", err)
	}

	deadline := p.now().Add(p.cfg.RunTimeout)
	for {
		status, err := p.sessions.GetRunStatus(ctx, sessionId, runId)
		if err != nil {
			return "", fmt.Errorf("polling run %s: %w", runId, err)
		}
		switch status {
		case llm.RunCompleted:
			return p.readAssistantReply(ctx, sessionId)
		case llm.RunFailed:
			return "", fmt.Errorf("run %s finished in failed state", runId)
		}

		if !p.now().Before(deadline) {
			return "", llm.ErrTimeout
		}
		if err := p.sleep(ctx, p.cfg.RunPollInterval); err != nil {
			return "", err
		}
	}
}

func (p *ChunkProcessor) readAssistantReply(ctx context.Context, sessionId string) (string, error) {
	messages, err := p.sessions.ListMessages(ctx, sessionId)
	if err != nil {
		return "", fmt.Errorf("listing messages: %w", err)
	}
	for _, msg := range messages {
		if msg.Role == "assistant" && msg.Content != "" {
			return msg.Content, nil
		}
	}
	return "", fmt.Errorf("session %s completed without an assistant reply", sessionId)
}

func (p *ChunkProcessor) handleRewriteError(ctx context.Context, chunk docModel.DocumentChunk, started time.Time, err error) error {
	transientAttempts := 0
	if chunk.Retry.Reason == docModel.RetryTransient {
		transientAttempts = chunk.Retry.Attempt
	}

	if llm.IsRetryable(err) && transientAttempts < p.cfg.MaxTransientRetries {
		p.logger.Warn("Transient rewrite failure, resetting chunk to pending",
			"chunkId", chunk.Id, "attempt", transientAttempts+1, "error", err)
		_, uerr := p.store.UpdateDocumentChunk(ctx, chunk.Id, docModel.ChunkUpdate{
			Status:       docModel.StatusPtr(docModel.StatusPending),
			ErrorMessage: docModel.StringPtr(err.Error()),
			Retry: docModel.RetryPtr(docModel.RetryState{
				Attempt: transientAttempts + 1,
				Reason:  docModel.RetryTransient,
			}),
		})
		metrics.IncrementChunksProcessed("retried")
		metrics.CaptureChunkMetrics("retried", p.now().Sub(started))
		return uerr
	}

	p.logger.Error("Rewrite failed", "chunkId", chunk.Id, "error", err)
	return p.failChunk(ctx, chunk, started, err.Error())
}

func (p *ChunkProcessor) failChunk(ctx context.Context, chunk docModel.DocumentChunk, started time.Time, message string) error {
	_, err := p.store.UpdateDocumentChunk(ctx, chunk.Id, docModel.ChunkUpdate{
		Status:       docModel.StatusPtr(docModel.StatusFailed),
		ErrorMessage: docModel.StringPtr(message),
	})
	metrics.IncrementChunksProcessed("failed")
	metrics.CaptureChunkMetrics("failed", p.now().Sub(started))
	return err
}

func (p *ChunkProcessor) completeChunk(ctx context.Context, chunk docModel.DocumentChunk, started time.Time, result string) error {
	if _, err := p.store.UpdateDocumentChunk(ctx, chunk.Id, docModel.ChunkUpdate{
		Status:           docModel.StatusPtr(docModel.StatusCompleted),
		ProcessedContent: docModel.StringPtr(result),
		ErrorMessage:     docModel.StringPtr(""),
	}); err != nil {
		return fmt.Errorf("completing chunk %s: %w", chunk.Id, err)
	}

	doc, found := p.store.GetDocument(ctx, chunk.DocumentId)
	if !found {
		return fmt.Errorf("document %s not found while recording chunk progress", chunk.DocumentId)
	}
	if _, err := p.store.UpdateDocument(ctx, doc.Id, docModel.DocumentUpdate{
		ProcessedChunks: docModel.IntPtr(doc.ProcessedChunks + 1),
	}); err != nil {
		return fmt.Errorf("recording chunk progress on %s: %w", doc.Id, err)
	}

	p.logger.Info("Chunk completed", "chunkId", chunk.Id,
		"documentId", chunk.DocumentId, "chunkIndex", chunk.ChunkIndex)
	metrics.IncrementChunksProcessed("completed")
	metrics.CaptureChunkMetrics("completed", p.now().Sub(started))
	return nil
}

// pickModel escalates after a low-retention retry.
func (p *ChunkProcessor) pickModel(chunk docModel.DocumentChunk) string {
	if chunk.Retry.Reason == docModel.RetryLowRetention && p.cfg.EscalationModel != "" {
		return p.cfg.EscalationModel
	}
	return p.cfg.PrimaryModel
}

// checkRetention returns the next retry state when the output is too short
// relative to the input, or nil when the result should be accepted. After the
// retry budget is spent the short result is accepted as-is.
func (p *ChunkProcessor) checkRetention(chunk docModel.DocumentChunk, result string) *docModel.RetryState {
	if len(chunk.Content) == 0 {
		return nil
	}
	ratio := float64(len(result)) / float64(len(chunk.Content))
	if ratio >= p.cfg.RetentionThreshold {
		return nil
	}

	attempts := 0
	if chunk.Retry.Reason == docModel.RetryLowRetention {
		attempts = chunk.Retry.Attempt
	}
	if attempts >= p.cfg.MaxRetentionRetries {
		p.logger.Warn("Accepting low-retention rewrite, retry budget spent",
			"chunkId", chunk.Id, "ratio", ratio)
		return nil
	}
	return &docModel.RetryState{Attempt: attempts + 1, Reason: docModel.RetryLowRetention}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

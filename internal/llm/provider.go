package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"google.golang.org/genai"
)

// ErrTimeout marks a stateful run that exceeded its wall-clock deadline.
var ErrTimeout = errors.New("llm run timed out")

// Completer is the stateless completion call. Path A of the chunk processor.
type Completer interface {
	Complete(ctx context.Context, systemInstruction string, userContent string, model string, temperature float64) (string, error)
}

type RunStatus string

const (
	RunQueued     RunStatus = "queued"
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

type Message struct {
	Role    string
	Content string
}

// SessionRunner is the stateful fallback surface. Path B of the chunk
// processor: create a session, post content, start a run, poll to a terminal
// state, read the response back.
type SessionRunner interface {
	CreateSession(ctx context.Context) (string, error)
	PostMessage(ctx context.Context, sessionId string, content string) error
	StartRun(ctx context.Context, sessionId string, model string, instructions string) (string, error)
	GetRunStatus(ctx context.Context, sessionId string, runId string) (RunStatus, error)
	ListMessages(ctx context.Context, sessionId string) ([]Message, error)
}

// IsRetryable reports whether a failure warrants resetting the chunk to
// pending: rate limits, timeouts, network errors and server-side 5xx.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) {
		return geminiErr.Code == http.StatusTooManyRequests || geminiErr.Code >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	text := strings.ToLower(err.Error())
	return strings.Contains(text, "rate limit") ||
		strings.Contains(text, "timeout") ||
		strings.Contains(text, "connection") ||
		strings.Contains(text, "temporarily")
}

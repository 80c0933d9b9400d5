package openai

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/cunning-folk/Document-Processor/internal/llm"
	"github.com/cunning-folk/Document-Processor/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type llmClient struct {
	client     openai.Client
	logger     *logger_i.Logger
	mu         sync.Mutex
	assistants map[string]string //model -> assistant id
}

var (
	instance *llmClient
	once     sync.Once
	logger   *logger_i.Logger
)

// GetOpenAIClient returns the shared client. Implements both the stateless
// Completer and the stateful SessionRunner fallback.
func GetOpenAIClient(ctx context.Context, apiKey string) *llmClient {
	once.Do(func() {
		logger = logger_i.NewLogger("llm_openai")
		if apiKey == "" {
			logger.Error("OpenAI API key is not set")
			return
		}
		instance = &llmClient{
			client:     openai.NewClient(option.WithAPIKey(apiKey)),
			logger:     logger,
			assistants: make(map[string]string),
		}
		logger.Info("OpenAI client created")
	})
	return instance
}

func (c *llmClient) Complete(ctx context.Context, systemInstruction string, userContent string, model string, temperature float64) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemInstruction),
			openai.UserMessage(userContent),
		},
		Model:       openai.ChatModel(model),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *llmClient) CreateSession(ctx context.Context) (string, error) {
	thread, err := c.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", err
	}
	c.logger.Debug("Created assistant thread", "threadId", thread.ID)
	return thread.ID, nil
}

func (c *llmClient) PostMessage(ctx context.Context, sessionId string, content string) error {
	_, err := c.client.Beta.Threads.Messages.New(ctx, sessionId, openai.BetaThreadMessageNewParams{
		Role: openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(content),
		},
	})
	return err
}

func (c *llmClient) StartRun(ctx context.Context, sessionId string, model string, instructions string) (string, error) {
	assistantId, err := c.ensureAssistant(ctx, model, instructions)
	if err != nil {
		return "", err
	}

	run, err := c.client.Beta.Threads.Runs.New(ctx, sessionId, openai.BetaThreadRunNewParams{
		AssistantID:  assistantId,
		Instructions: openai.String(instructions),
	})
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

func (c *llmClient) GetRunStatus(ctx context.Context, sessionId string, runId string) (llm.RunStatus, error) {
	run, err := c.client.Beta.Threads.Runs.Get(ctx, sessionId, runId)
	if err != nil {
		return "", err
	}

	switch string(run.Status) {
	case "completed":
		return llm.RunCompleted, nil
	case "failed", "cancelled", "expired", "incomplete":
		return llm.RunFailed, nil
	case "queued":
		return llm.RunQueued, nil
	default:
		return llm.RunInProgress, nil
	}
}

func (c *llmClient) ListMessages(ctx context.Context, sessionId string) ([]llm.Message, error) {
	page, err := c.client.Beta.Threads.Messages.List(ctx, sessionId, openai.BetaThreadMessageListParams{})
	if err != nil {
		return nil, err
	}

	var messages []llm.Message
	for _, msg := range page.Data {
		var sb strings.Builder
		for _, block := range msg.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text.Value)
			}
		}
		messages = append(messages, llm.Message{
			Role:    string(msg.Role),
			Content: sb.String(),
		})
	}
	return messages, nil
}

// ensureAssistant creates one assistant per model and reuses it across runs.
func (c *llmClient) ensureAssistant(ctx context.Context, model string, instructions string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, exists := c.assistants[model]; exists {
		return id, nil
	}

	assistant, err := c.client.Beta.Assistants.New(ctx, openai.BetaAssistantNewParams{
		Model:        openai.ChatModel(model),
		Name:         openai.String("document-rewriter"),
		Instructions: openai.String(instructions),
	})
	if err != nil {
		return "", err
	}
	c.assistants[model] = assistant.ID
	c.logger.Info("Created assistant", "model", model, "assistantId", assistant.ID)
	return assistant.ID, nil
}

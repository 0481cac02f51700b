package scheduler

import (
	"context"
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/shotaf-bot/shotaf/internal/tasks"
)

// Composer renders the reminder message for a due task.
type Composer interface {
	Compose(ctx context.Context, task *tasks.Task) string
}

// FallbackMessage is the templated reminder used whenever a richer
// composer is unavailable or fails.
func FallbackMessage(task *tasks.Task) string {
	return "⏰ תזכורת: " + task.Name
}

// TemplateComposer always uses the fallback template.
type TemplateComposer struct{}

func (TemplateComposer) Compose(_ context.Context, task *tasks.Task) string {
	return FallbackMessage(task)
}

const composeSystemPrompt = `Write a short, friendly WhatsApp reminder in Hebrew for the given task.
One sentence, no preamble, keep the task name intact.`

// LLMComposer phrases reminders with a chat model, falling back to the
// template on any failure so delivery never depends on the LLM.
type LLMComposer struct {
	client openai.Client
	model  string
}

func NewLLMComposer(apiKey, model string) *LLMComposer {
	return &LLMComposer{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (c *LLMComposer) Compose(ctx context.Context, task *tasks.Task) string {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(composeSystemPrompt),
			openai.UserMessage(task.Name),
		},
	})
	if err != nil || len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		if err != nil {
			slog.Warn("composing reminder, using fallback", "error", err, "task_id", task.ID)
		}
		return FallbackMessage(task)
	}
	return resp.Choices[0].Message.Content
}

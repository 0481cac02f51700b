package intent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/tidwall/gjson"

	"github.com/shotaf-bot/shotaf/internal/clock"
)

// Classifier turns a raw message into a Record. Implementations may
// omit any field; callers run Finalize to fill defaults.
type Classifier interface {
	Classify(ctx context.Context, message string, contextHints []string) (Record, error)
	ClassifyUpdate(ctx context.Context, message, taskName string) (ChangeSet, error)
}

const classifySystemPrompt = `You classify WhatsApp messages from a personal assistant user.
Reply with a single JSON object:
{"entry_type": "task"|"note"|"note_update"|"question"|"none",
 "task_name": string, "category": string, "due_date": "YYYY-MM-DD",
 "frequency": "daily"|"weekly"|"monthly"|"", "reminder_time": "HH:MM",
 "note_title": string, "note_body": string,
 "person_name": string, "person_role": string}
Omit fields you cannot determine. Messages are usually Hebrew.`

const updateSystemPrompt = `The user just created the task named %q and is now correcting it.
Reply with a single JSON object holding only the fields that change:
{"task_name": string, "category": string, "due_date": "YYYY-MM-DD",
 "reminder_time": "HH:MM", "frequency": "daily"|"weekly"|"monthly"|""}
If the message is not a correction, reply with {}.`

// OpenAIClassifier classifies messages with an OpenAI chat model in
// JSON mode.
type OpenAIClassifier struct {
	client openai.Client
	model  string
}

func NewOpenAIClassifier(apiKey, model string) *OpenAIClassifier {
	return &OpenAIClassifier{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (c *OpenAIClassifier) Classify(ctx context.Context, message string, contextHints []string) (Record, error) {
	user := message
	if len(contextHints) > 0 {
		user = "Context:\n" + strings.Join(contextHints, "\n") + "\n\nMessage:\n" + message
	}

	raw, err := c.complete(ctx, classifySystemPrompt, user)
	if err != nil {
		return Record{}, err
	}
	return parseRecord(raw), nil
}

func (c *OpenAIClassifier) ClassifyUpdate(ctx context.Context, message, taskName string) (ChangeSet, error) {
	raw, err := c.complete(ctx, fmt.Sprintf(updateSystemPrompt, taskName), message)
	if err != nil {
		return ChangeSet{}, err
	}
	return parseChangeSet(raw), nil
}

func (c *OpenAIClassifier) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func parseRecord(raw string) Record {
	root := gjson.Parse(raw)

	rec := Record{
		TaskName:     root.Get("task_name").String(),
		Category:     root.Get("category").String(),
		ReminderTime: root.Get("reminder_time").String(),
		NoteTitle:    root.Get("note_title").String(),
		NoteBody:     root.Get("note_body").String(),
		PersonName:   root.Get("person_name").String(),
		PersonRole:   root.Get("person_role").String(),
		Frequency:    clock.NormalizeFrequency(root.Get("frequency").String()),
	}

	switch root.Get("entry_type").String() {
	case "task":
		rec.Kind = KindTask
	case "note":
		rec.Kind = KindNote
	case "note_update":
		rec.Kind = KindNoteUpdate
	case "question":
		rec.Kind = KindQuestion
	default:
		rec.Kind = KindEmpty
	}

	if d := root.Get("due_date").String(); d != "" {
		if parsed, err := time.Parse("2006-01-02", d); err == nil {
			rec.DueDate = parsed
		}
	}
	return rec
}

func parseChangeSet(raw string) ChangeSet {
	root := gjson.Parse(raw)

	var cs ChangeSet
	if v := root.Get("task_name"); v.Exists() && v.String() != "" {
		s := v.String()
		cs.TaskName = &s
	}
	if v := root.Get("category"); v.Exists() && v.String() != "" {
		s := v.String()
		cs.Category = &s
	}
	if v := root.Get("due_date"); v.Exists() {
		if parsed, err := time.Parse("2006-01-02", v.String()); err == nil {
			cs.DueDate = &parsed
		}
	}
	if v := root.Get("reminder_time"); v.Exists() && v.String() != "" {
		s := v.String()
		cs.ReminderTime = &s
	}
	if v := root.Get("frequency"); v.Exists() {
		f := clock.NormalizeFrequency(v.String())
		cs.Frequency = &f
	}
	return cs
}

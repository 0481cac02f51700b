package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/shotaf-bot/shotaf/internal/clock"
	"github.com/shotaf-bot/shotaf/internal/intent"
	"github.com/shotaf-bot/shotaf/internal/metrics"
	"github.com/shotaf-bot/shotaf/internal/nats"
	"github.com/shotaf-bot/shotaf/internal/notes"
	"github.com/shotaf-bot/shotaf/internal/retrieval"
	"github.com/shotaf-bot/shotaf/internal/tasks"
	"github.com/shotaf-bot/shotaf/internal/usermemory"
	"github.com/shotaf-bot/shotaf/internal/users"
)

// Collaborator slices the orchestrator needs; the concrete services
// satisfy them.
type (
	TaskService interface {
		Create(ctx context.Context, userID, phone string, rec intent.Record, now time.Time) (*tasks.Task, error)
		RecentTask(ctx context.Context, userID string, now time.Time) (*tasks.Task, error)
		ApplyChanges(ctx context.Context, task *tasks.Task, cs intent.ChangeSet, now time.Time) (*tasks.Task, error)
	}

	NoteService interface {
		Create(ctx context.Context, userID, title, body string, now time.Time) (*notes.Note, error)
		Append(ctx context.Context, userID, title, body string, now time.Time) (*notes.Note, bool, error)
	}

	MemoryService interface {
		RecordTaskMention(ctx context.Context, userID, taskName string, freq clock.Frequency, reminderTime string) (bool, error)
		RecordPerson(ctx context.Context, userID, name, role string, now time.Time) error
		RecordKeyword(ctx context.Context, userID, keyword, kind string) error
		HandleReply(ctx context.Context, userID, reply string) (usermemory.ReplyOutcome, error)
		HasPending(ctx context.Context, userID string) (bool, error)
		MatchPeople(ctx context.Context, userID, text string) ([]string, error)
	}

	ContextService interface {
		FindContext(ctx context.Context, userID, query string) ([]string, error)
		Index(ctx context.Context, userID string, doc retrieval.Document) error
	}

	UserService interface {
		EnsureByPhone(ctx context.Context, phone string) (*users.User, error)
	}

	Authorizer interface {
		IsAuthorized(ctx context.Context, userID string) (bool, error)
	}

	Replier interface {
		PublishOutboundMessage(ctx context.Context, msg nats.OutboundMessage) error
	}

	ConversationStore interface {
		Append(ctx context.Context, userID, line string) error
		Recent(ctx context.Context, userID string, limit int) ([]string, error)
	}
)

// Orchestrator consumes inbound WhatsApp messages and runs them through
// classify → act → remember → reply. Every message from an authorized
// user gets a reply, degraded if classification fails.
type Orchestrator struct {
	consumer   jetstream.Consumer
	classifier intent.Classifier
	resolver   *clock.Resolver
	userSvc    UserService
	authorizer Authorizer
	taskSvc    TaskService
	noteSvc    NoteService
	memorySvc  MemoryService
	contextSvc ContextService
	conv       ConversationStore
	replier    Replier
}

type Config struct {
	Consumer   jetstream.Consumer
	Classifier intent.Classifier
	Resolver   *clock.Resolver
	Users      UserService
	Authorizer Authorizer
	Tasks      TaskService
	Notes      NoteService
	Memory     MemoryService
	Context    ContextService
	Conv       ConversationStore
	Replier    Replier
}

func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		consumer:   cfg.Consumer,
		classifier: cfg.Classifier,
		resolver:   cfg.Resolver,
		userSvc:    cfg.Users,
		authorizer: cfg.Authorizer,
		taskSvc:    cfg.Tasks,
		noteSvc:    cfg.Notes,
		memorySvc:  cfg.Memory,
		contextSvc: cfg.Context,
		conv:       cfg.Conv,
		replier:    cfg.Replier,
	}
}

// Run consumes inbound messages until ctx is canceled. Messages are
// acked even when processing degrades; redelivery would not improve a
// classification failure.
func (o *Orchestrator) Run(ctx context.Context) {
	slog.Info("orchestrator started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("orchestrator stopping")
			return
		default:
		}

		batch, err := o.consumer.Fetch(10, jetstream.FetchMaxWait(nats.FetchTimeout))
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				slog.Warn("fetching inbound messages", "error", err)
			}
			continue
		}

		for msg := range batch.Messages() {
			var inbound nats.InboundMessage
			if err := json.Unmarshal(msg.Data(), &inbound); err != nil {
				slog.Error("unmarshaling inbound message", "error", err)
				_ = msg.Ack()
				continue
			}

			if err := o.Process(ctx, inbound); err != nil {
				slog.Error("processing message", "error", err, "chat_id", inbound.ChatID)
			}
			_ = msg.Ack()
		}
	}
}

// Process runs one inbound message through the pipeline.
func (o *Orchestrator) Process(ctx context.Context, msg nats.InboundMessage) error {
	now := time.Now()

	user, err := o.userSvc.EnsureByPhone(ctx, msg.Phone)
	if err != nil {
		return fmt.Errorf("ensuring user: %w", err)
	}

	authorized, err := o.authorizer.IsAuthorized(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("checking authorization: %w", err)
	}
	if !authorized {
		slog.Debug("ignoring message from unauthorized user", "user_id", user.ID)
		return nil
	}

	reply := o.handle(ctx, user, msg, now)

	if err := o.conv.Append(ctx, user.ID, "user: "+msg.Body); err != nil {
		slog.Warn("appending conversation", "error", err)
	}
	if err := o.conv.Append(ctx, user.ID, "bot: "+reply); err != nil {
		slog.Warn("appending conversation", "error", err)
	}

	return o.reply(ctx, msg, reply)
}

func (o *Orchestrator) handle(ctx context.Context, user *users.User, msg nats.InboundMessage, now time.Time) string {
	// A pending habit suggestion intercepts yes/no replies before
	// classification.
	if pending, err := o.memorySvc.HasPending(ctx, user.ID); err == nil && pending {
		outcome, err := o.memorySvc.HandleReply(ctx, user.ID, msg.Body)
		if err != nil {
			slog.Error("handling suggestion reply", "error", err, "user_id", user.ID)
		}
		switch outcome {
		case usermemory.ReplyAccepted:
			return "סגור, קבעתי תזכורת קבועה ✅"
		case usermemory.ReplyDeclined:
			return "בסדר, בלי תזכורת קבועה 👍"
		}
		// Unrecognized replies fall through to normal handling.
	}

	// A message right after task creation may be a correction to it.
	if recent, err := o.taskSvc.RecentTask(ctx, user.ID, now); err == nil && recent != nil {
		cs, err := o.classifier.ClassifyUpdate(ctx, msg.Body, recent.Name)
		if err != nil {
			slog.Warn("classifying update", "error", err)
		} else if !cs.Empty() {
			updated, err := o.taskSvc.ApplyChanges(ctx, recent, cs, now)
			if err != nil {
				slog.Error("applying task changes", "error", err, "task_id", recent.ID)
				return "קיבלתי 👍"
			}
			metrics.MessagesProcessedTotal.WithLabelValues("task_update").Inc()
			return "עדכנתי: " + describeTask(updated, o.resolver.Location())
		}
	}

	hints, err := o.conv.Recent(ctx, user.ID, 10)
	if err != nil {
		slog.Warn("reading conversation context", "error", err)
	}

	rec, err := o.classifier.Classify(ctx, msg.Body, hints)
	if err != nil {
		// Degraded but never silent: the user still gets an ack.
		slog.Error("classifying message", "error", err, "user_id", user.ID)
		metrics.ClassifierFailuresTotal.Inc()
		rec = intent.Record{Kind: intent.KindEmpty}
	}
	rec = intent.Finalize(rec, msg.Body, o.resolver, now)

	metrics.MessagesProcessedTotal.WithLabelValues(kindLabel(rec.Kind)).Inc()

	switch rec.Kind {
	case intent.KindTask:
		return o.handleTask(ctx, user, rec, now)
	case intent.KindNote:
		return o.handleNote(ctx, user, rec, now)
	case intent.KindNoteUpdate:
		return o.handleNoteUpdate(ctx, user, rec, now)
	case intent.KindQuestion:
		return o.handleQuestion(ctx, user, msg.Body)
	default:
		return "קיבלתי 👍"
	}
}

func (o *Orchestrator) handleTask(ctx context.Context, user *users.User, rec intent.Record, now time.Time) string {
	task, err := o.taskSvc.Create(ctx, user.ID, user.Phone, rec, now)
	if err != nil {
		slog.Error("creating task", "error", err, "user_id", user.ID)
		return "קיבלתי 👍"
	}

	o.remember(ctx, user.ID, rec, now)

	if err := o.contextSvc.Index(ctx, user.ID, retrieval.Document{
		ID: task.ID, Kind: "task", Title: task.Name,
	}); err != nil {
		slog.Warn("indexing task", "error", err, "task_id", task.ID)
	}

	reply := "נרשם ✅ " + describeTask(task, o.resolver.Location())

	prompt, err := o.memorySvc.RecordTaskMention(ctx, user.ID, task.Name, task.Frequency, task.ReminderTime)
	if err != nil {
		slog.Warn("recording task mention", "error", err)
	}
	if prompt {
		reply += "\n" + usermemory.SuggestionPrompt(task.Name, task.Frequency)
	}
	return reply
}

func (o *Orchestrator) handleNote(ctx context.Context, user *users.User, rec intent.Record, now time.Time) string {
	note, err := o.noteSvc.Create(ctx, user.ID, rec.NoteTitle, rec.NoteBody, now)
	if err != nil {
		slog.Error("creating note", "error", err, "user_id", user.ID)
		return "קיבלתי 👍"
	}

	o.remember(ctx, user.ID, rec, now)
	if err := o.memorySvc.RecordKeyword(ctx, user.ID, note.Title, "note"); err != nil {
		slog.Warn("recording keyword", "error", err)
	}

	if err := o.contextSvc.Index(ctx, user.ID, retrieval.Document{
		ID: note.ID, Kind: "note", Title: note.Title, Body: note.Body,
	}); err != nil {
		slog.Warn("indexing note", "error", err, "note_id", note.ID)
	}

	return "שמרתי 📝 \"" + note.Title + "\""
}

func (o *Orchestrator) handleNoteUpdate(ctx context.Context, user *users.User, rec intent.Record, now time.Time) string {
	note, created, err := o.noteSvc.Append(ctx, user.ID, rec.NoteTitle, rec.NoteBody, now)
	if err != nil {
		slog.Error("updating note", "error", err, "user_id", user.ID)
		return "קיבלתי 👍"
	}

	if err := o.contextSvc.Index(ctx, user.ID, retrieval.Document{
		ID: note.ID, Kind: "note", Title: note.Title, Body: note.Body,
	}); err != nil {
		slog.Warn("indexing note", "error", err, "note_id", note.ID)
	}

	if created {
		return "לא מצאתי פתק מתאים, פתחתי חדש 📝 \"" + note.Title + "\""
	}
	return "הוספתי לפתק \"" + note.Title + "\" 📝"
}

func (o *Orchestrator) handleQuestion(ctx context.Context, user *users.User, query string) string {
	// Questions about a remembered contact ("מי זאת דנה?") answer from
	// the people map first.
	people, err := o.memorySvc.MatchPeople(ctx, user.ID, query)
	if err != nil {
		slog.Warn("matching people", "error", err, "user_id", user.ID)
	}

	lines, err := o.contextSvc.FindContext(ctx, user.ID, query)
	if err != nil {
		slog.Error("finding context", "error", err, "user_id", user.ID)
		if len(people) == 0 {
			return "קיבלתי 👍"
		}
		lines = nil
	}

	all := append(people, lines...)
	if len(all) == 0 {
		return "לא מצאתי כלום על זה 🤷"
	}

	reply := "הנה מה שמצאתי:"
	for _, line := range all {
		reply += "\n• " + line
	}
	return reply
}

func (o *Orchestrator) remember(ctx context.Context, userID string, rec intent.Record, now time.Time) {
	if rec.PersonName != "" {
		if err := o.memorySvc.RecordPerson(ctx, userID, rec.PersonName, rec.PersonRole, now); err != nil {
			slog.Warn("recording person", "error", err)
		}
	}
	if rec.Kind == intent.KindTask && rec.TaskName != "" {
		if err := o.memorySvc.RecordKeyword(ctx, userID, rec.TaskName, "task"); err != nil {
			slog.Warn("recording keyword", "error", err)
		}
	}
}

func (o *Orchestrator) reply(ctx context.Context, inbound nats.InboundMessage, text string) error {
	out := nats.OutboundMessage{
		ID:        uuid.New().String(),
		Phone:     inbound.Phone,
		Body:      text,
		InReplyTo: inbound.ID,
	}
	if err := o.replier.PublishOutboundMessage(ctx, out); err != nil {
		return fmt.Errorf("publishing reply: %w", err)
	}
	return nil
}

func describeTask(task *tasks.Task, loc *time.Location) string {
	desc := "\"" + task.Name + "\""
	if task.ReminderDatetime != nil {
		local := task.ReminderDatetime.In(loc)
		desc += " — " + local.Format("02/01") + " בשעה " + local.Format("15:04")
	}
	switch task.Frequency {
	case clock.FrequencyDaily:
		desc += " (כל יום)"
	case clock.FrequencyWeekly:
		desc += " (כל שבוע)"
	case clock.FrequencyMonthly:
		desc += " (כל חודש)"
	}
	return desc
}

func kindLabel(k intent.Kind) string {
	if k == intent.KindEmpty {
		return "empty"
	}
	return string(k)
}

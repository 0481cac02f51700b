package usermemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shotaf-bot/shotaf/internal/clock"
)

// Service mutates the per-user memory document. Every method loads the
// document, applies one change and saves it back whole.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) load(ctx context.Context, userID string) (*Memory, error) {
	mem, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if mem == nil {
		mem = NewMemory(userID)
	}
	mem.ensureMaps()
	return mem, nil
}

// RecordTaskMention bumps the repetition counter for a task name and
// reports whether a habit suggestion prompt should be sent. The prompt
// fires exactly when the counter reaches the threshold and a frequency
// was supplied; later mentions never re-trigger.
func (s *Service) RecordTaskMention(ctx context.Context, userID, taskName string, freq clock.Frequency, reminderTime string) (prompt bool, err error) {
	mem, err := s.load(ctx, userID)
	if err != nil {
		return false, err
	}

	key := "cnt_" + taskName
	mem.Counters[key]++

	if mem.Counters[key] == suggestionThreshold && freq != clock.FrequencyNone {
		mem.Pending = &PendingSuggestion{
			TaskName:  taskName,
			Frequency: freq,
			Time:      reminderTime,
		}
		prompt = true
	}

	if err := s.repo.Save(ctx, mem); err != nil {
		return false, err
	}
	return prompt, nil
}

// RecordPerson notes a contact mention, merging role and tags into the
// existing entry.
func (s *Service) RecordPerson(ctx context.Context, userID, name, role string, now time.Time) error {
	if name == "" {
		return nil
	}

	mem, err := s.load(ctx, userID)
	if err != nil {
		return err
	}

	p := mem.People[name]
	p.Mentions++
	p.LastUsed = now
	if role != "" {
		p.Role = role
	}
	mem.People[name] = p

	return s.repo.Save(ctx, mem)
}

// RecordKeyword tags a keyword with the kind of record it referred to.
func (s *Service) RecordKeyword(ctx context.Context, userID, keyword, kind string) error {
	if keyword == "" {
		return nil
	}

	mem, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	mem.Keywords[strings.ToLower(keyword)] = kind
	return s.repo.Save(ctx, mem)
}

// ReplyOutcome describes what a yes/no reply did to the pending
// suggestion.
type ReplyOutcome int

const (
	ReplyIgnored ReplyOutcome = iota // no pending slot, or unrecognized reply
	ReplyAccepted
	ReplyDeclined
)

// HandleReply resolves a pending habit suggestion. "yes" materializes
// the habit, "no" discards it, anything else leaves the slot untouched.
func (s *Service) HandleReply(ctx context.Context, userID, reply string) (ReplyOutcome, error) {
	mem, err := s.load(ctx, userID)
	if err != nil {
		return ReplyIgnored, err
	}
	if mem.Pending == nil {
		return ReplyIgnored, nil
	}

	switch normalizeReply(reply) {
	case "yes":
		mem.Habits[mem.Pending.TaskName] = Habit{
			Frequency: mem.Pending.Frequency,
			Time:      mem.Pending.Time,
		}
		mem.Pending = nil
		if err := s.repo.Save(ctx, mem); err != nil {
			return ReplyIgnored, err
		}
		return ReplyAccepted, nil
	case "no":
		mem.Pending = nil
		if err := s.repo.Save(ctx, mem); err != nil {
			return ReplyIgnored, err
		}
		return ReplyDeclined, nil
	default:
		return ReplyIgnored, nil
	}
}

// HasPending reports whether the user has a suggestion awaiting reply.
func (s *Service) HasPending(ctx context.Context, userID string) (bool, error) {
	mem, err := s.repo.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return mem != nil && mem.Pending != nil, nil
}

// MatchPeople returns answer lines for remembered contacts whose name
// appears in the text, sorted by name. "מי זאת דנה?" answers from the
// people map without touching retrieval.
func (s *Service) MatchPeople(ctx context.Context, userID, text string) ([]string, error) {
	mem, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if mem == nil {
		return nil, nil
	}

	var names []string
	for name := range mem.People {
		if name != "" && strings.Contains(text, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		if role := mem.People[name].Role; role != "" {
			lines = append(lines, name+" - "+role)
		} else {
			lines = append(lines, name)
		}
	}
	return lines, nil
}

// Get returns the full memory document, or an empty one.
func (s *Service) Get(ctx context.Context, userID string) (*Memory, error) {
	return s.load(ctx, userID)
}

// SuggestionPrompt renders the confirmation question for a task name.
func SuggestionPrompt(taskName string, freq clock.Frequency) string {
	return fmt.Sprintf("שמתי לב שאתה חוזר על \"%s\". לקבוע תזכורת %s? (כן/לא)", taskName, freqHebrew(freq))
}

func freqHebrew(freq clock.Frequency) string {
	switch freq {
	case clock.FrequencyDaily:
		return "יומית"
	case clock.FrequencyWeekly:
		return "שבועית"
	case clock.FrequencyMonthly:
		return "חודשית"
	}
	return "קבועה"
}

func normalizeReply(reply string) string {
	switch strings.ToLower(strings.TrimSpace(reply)) {
	case "כן", "yes", "y":
		return "yes"
	case "לא", "no", "n":
		return "no"
	}
	return ""
}

package usermemory

import (
	"time"

	"github.com/shotaf-bot/shotaf/internal/clock"
)

// suggestionThreshold is the repetition count at which the bot offers
// to turn a recurring task name into a habit. The trigger fires on the
// exact transition to this value, never again past it.
const suggestionThreshold = 3

// Person is one contact the user has mentioned.
type Person struct {
	Role     string    `json:"role,omitempty"`
	Mentions int       `json:"mentions"`
	Tags     []string  `json:"tags,omitempty"`
	LastUsed time.Time `json:"last_used"`
}

// Habit is a confirmed recurring task pattern.
type Habit struct {
	Frequency clock.Frequency `json:"frequency"`
	Time      string          `json:"time"`
}

// PendingSuggestion is a habit proposal awaiting the user's yes/no.
type PendingSuggestion struct {
	TaskName  string          `json:"task_name"`
	Frequency clock.Frequency `json:"frequency"`
	Time      string          `json:"time"`
}

// Memory is the single per-user memory document, written all-or-nothing.
type Memory struct {
	UserID   string             `json:"user_id"`
	People   map[string]Person  `json:"people,omitempty"`
	Keywords map[string]string  `json:"keywords,omitempty"` // keyword -> "task"|"note"|"file"
	Topics   []string           `json:"topics,omitempty"`
	Habits   map[string]Habit   `json:"habits,omitempty"`
	Counters map[string]int     `json:"counters,omitempty"`
	Pending  *PendingSuggestion `json:"pending,omitempty"`
}

// NewMemory returns an empty memory document for the user.
func NewMemory(userID string) *Memory {
	return &Memory{
		UserID:   userID,
		People:   make(map[string]Person),
		Keywords: make(map[string]string),
		Habits:   make(map[string]Habit),
		Counters: make(map[string]int),
	}
}

func (m *Memory) ensureMaps() {
	if m.People == nil {
		m.People = make(map[string]Person)
	}
	if m.Keywords == nil {
		m.Keywords = make(map[string]string)
	}
	if m.Habits == nil {
		m.Habits = make(map[string]Habit)
	}
	if m.Counters == nil {
		m.Counters = make(map[string]int)
	}
}

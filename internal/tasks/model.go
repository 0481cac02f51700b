package tasks

import (
	"time"

	"github.com/shotaf-bot/shotaf/internal/clock"
)

// Task is one future action the bot will remind the user about.
type Task struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Phone      string `json:"phone"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	PersonName string `json:"person_name,omitempty"`

	DueDate      *time.Time      `json:"due_date,omitempty"`
	ReminderTime string          `json:"reminder_time"`
	Frequency    clock.Frequency `json:"frequency"`

	// ReminderDatetime is the absolute next-fire instant. Nil means the
	// task never fires. Always >= its computation instant at write time.
	ReminderDatetime *time.Time `json:"reminder_datetime,omitempty"`

	// WasSent is terminal: set only after the final delivery of a
	// one-shot task. Recurring tasks never set it on success.
	WasSent bool `json:"was_sent"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Recurring reports whether the task rolls forward instead of
// terminating after delivery.
func (t *Task) Recurring() bool {
	return t.Frequency != clock.FrequencyNone
}

package intent

import (
	"time"

	"github.com/shotaf-bot/shotaf/internal/clock"
	"github.com/shotaf-bot/shotaf/internal/normalize"
)

// Kind discriminates what a classified message asks for.
type Kind string

const (
	KindEmpty      Kind = ""            // nothing actionable
	KindTask       Kind = "task"        // create a reminder/task
	KindNote       Kind = "note"        // store a note
	KindNoteUpdate Kind = "note_update" // append to an existing note
	KindQuestion   Kind = "question"    // answer from stored context
)

// noteTitleMaxLen caps auto-derived note titles.
const noteTitleMaxLen = 40

// Record is the normalized result of classifying one inbound message.
// All optional fields are explicit; consumers switch on Kind and only
// read the fields that kind defines.
type Record struct {
	Kind Kind

	// Task fields.
	TaskName     string
	Category     string
	DueDate      time.Time // zero when no date was resolved
	ReminderTime string    // "HH:MM"
	Frequency    clock.Frequency
	PersonName   string
	PersonRole   string

	// Note fields.
	NoteTitle string
	NoteBody  string
}

// ChangeSet carries corrections to a recently created task. Nil fields
// are left untouched.
type ChangeSet struct {
	TaskName     *string
	Category     *string
	DueDate      *time.Time
	ReminderTime *string
	Frequency    *clock.Frequency
}

// Empty reports whether the change set carries no corrections.
func (c ChangeSet) Empty() bool {
	return c.TaskName == nil && c.Category == nil && c.DueDate == nil &&
		c.ReminderTime == nil && c.Frequency == nil
}

// Finalize reconciles a classifier record with locally resolved
// date/time/frequency and fills defaults. Local phrase matches win over
// classifier output because the classifier is known to emit stale or
// absent temporal fields.
func Finalize(rec Record, message string, resolver *clock.Resolver, now time.Time) Record {
	res := resolver.Resolve(message, now)

	if !res.DueDate.IsZero() {
		rec.DueDate = res.DueDate
	}
	if !rec.DueDate.IsZero() {
		// Classifier dates arrive location-less; pin them to the
		// resolver's timezone before year correction.
		loc := resolver.Location()
		d := rec.DueDate
		rec.DueDate = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
		rec.DueDate = clock.CorrectYear(rec.DueDate, now.In(loc))
	}

	if rec.ReminderTime == "" || res.Time != clock.DefaultTime {
		rec.ReminderTime = res.Time
	}

	if local := clock.ParseFrequency(message); local != clock.FrequencyNone {
		rec.Frequency = local
	}

	switch rec.Kind {
	case KindTask:
		rec.Category = normalize.Slug(rec.Category)
	case KindNote, KindNoteUpdate:
		if rec.NoteTitle == "" {
			rec.NoteTitle = deriveTitle(rec.NoteBody)
		}
	}
	return rec
}

func deriveTitle(body string) string {
	runes := []rune(body)
	if len(runes) <= noteTitleMaxLen {
		return body
	}
	return string(runes[:noteTitleMaxLen])
}

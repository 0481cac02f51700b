package clock

import (
	"regexp"
	"strings"
	"time"
)

// DefaultTime is the reminder time used when no explicit time or period
// word appears in the message.
const DefaultTime = "12:00"

// Resolution holds the date and time extracted from a message. A zero
// DueDate means no date phrase matched; the caller supplies defaults.
type Resolution struct {
	DueDate time.Time // midnight in the resolver's location
	Time    string    // "HH:MM"
}

// Resolver normalizes relative Hebrew date/time phrases against a fixed
// timezone. All matching is an explicit phrase table, no NLP.
type Resolver struct {
	loc *time.Location
}

func NewResolver(loc *time.Location) *Resolver {
	return &Resolver{loc: loc}
}

func (r *Resolver) Location() *time.Location {
	return r.loc
}

// relativeDayRules maps day phrases to an offset from today. Longer
// phrases come first so "מחרתיים" wins over its prefix "מחר".
var relativeDayRules = []struct {
	phrase string
	days   int
}{
	{"מחרתיים", 2},
	{"מחר", 1},
	{"היום", 0},
	{"הערב", 0},
}

var weekdayRules = []struct {
	phrase  string
	weekday time.Weekday
}{
	{"ראשון", time.Sunday},
	{"שני", time.Monday},
	{"שלישי", time.Tuesday},
	{"רביעי", time.Wednesday},
	{"חמישי", time.Thursday},
	{"שישי", time.Friday},
	{"שבת", time.Saturday},
}

// Resolve extracts a due date and reminder time from the text, relative
// to now. The time falls back to DefaultTime when nothing matches; the
// date stays zero when no phrase matches.
func (r *Resolver) Resolve(text string, now time.Time) Resolution {
	res := Resolution{Time: ExtractTime(text)}

	local := now.In(r.loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.loc)

	for _, rule := range relativeDayRules {
		if strings.Contains(text, rule.phrase) {
			res.DueDate = today.AddDate(0, 0, rule.days)
			return res
		}
	}

	for _, rule := range weekdayRules {
		if strings.Contains(text, "יום "+rule.phrase) || strings.Contains(text, "בשבת") && rule.weekday == time.Saturday {
			days := int(rule.weekday-local.Weekday()+7) % 7
			if days == 0 {
				// Same weekday always means next week, never today.
				days = 7
			}
			res.DueDate = today.AddDate(0, 0, days)
			return res
		}
	}

	return res
}

var timePattern = regexp.MustCompile(`\b(0?[0-9]|1[0-9]|2[0-3]):([0-5][0-9])\b`)

// periodRules maps coarse Hebrew period words to fixed times. Checked in
// order; "אחר הצהריים" must precede the bare noon phrase.
var periodRules = []struct {
	phrase string
	value  string
}{
	{"אחר הצהריים", "17:00"},
	{"אחה\"צ", "17:00"},
	{"אחהצ", "17:00"},
	{"בצהריים", "13:00"},
	{"בבוקר", "08:00"},
	{"בערב", "20:00"},
	{"בלילה", "20:00"},
}

// ExtractTime pulls an explicit HH:MM out of the text, falling back to
// period words and finally DefaultTime.
func ExtractTime(text string) string {
	if m := timePattern.FindStringSubmatch(text); m != nil {
		hh := m[1]
		if len(hh) == 1 {
			hh = "0" + hh
		}
		return hh + ":" + m[2]
	}
	for _, rule := range periodRules {
		if strings.Contains(text, rule.phrase) {
			return rule.value
		}
	}
	return DefaultTime
}

// CorrectYear forces the date's year to the current year, bumping by one
// if that still lands in the past. Guards against a classifier emitting
// a stale year.
func CorrectYear(d, now time.Time) time.Time {
	if d.IsZero() {
		return d
	}
	corrected := time.Date(now.Year(), d.Month(), d.Day(), d.Hour(), d.Minute(), 0, 0, d.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, d.Location())
	if corrected.Before(today) {
		corrected = corrected.AddDate(1, 0, 0)
	}
	return corrected
}

// CombineDateTime merges a calendar date with an "HH:MM" time-of-day in
// the date's location. A malformed time falls back to DefaultTime.
func CombineDateTime(date time.Time, hhmm string) time.Time {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		t, _ = time.Parse("15:04", DefaultTime)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location())
}

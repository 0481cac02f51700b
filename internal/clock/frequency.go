package clock

import (
	"strings"
	"time"
)

// Frequency is the recurrence rule of a task. The empty value means
// one-shot: deliver once, then mark sent.
type Frequency string

const (
	FrequencyNone    Frequency = ""
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// frequencyRules maps Hebrew recurrence phrases to canonical values.
// The "every <weekday>" forms precede the bare "כל יום" so a weekly
// phrase is not misread as daily.
var frequencyRules = []struct {
	phrase string
	value  Frequency
}{
	{"כל יום ראשון", FrequencyWeekly},
	{"כל יום שני", FrequencyWeekly},
	{"כל יום שלישי", FrequencyWeekly},
	{"כל יום רביעי", FrequencyWeekly},
	{"כל יום חמישי", FrequencyWeekly},
	{"כל יום שישי", FrequencyWeekly},
	{"כל שבת", FrequencyWeekly},
	{"כל שבוע", FrequencyWeekly},
	{"שבועי", FrequencyWeekly},
	{"כל חודש", FrequencyMonthly},
	{"חודשי", FrequencyMonthly},
	{"כל יום", FrequencyDaily},
	{"כל בוקר", FrequencyDaily},
	{"כל ערב", FrequencyDaily},
	{"יומי", FrequencyDaily},
}

// ParseFrequency classifies a message's recurrence phrase. Text with no
// recurrence phrase yields FrequencyNone.
func ParseFrequency(text string) Frequency {
	for _, rule := range frequencyRules {
		if strings.Contains(text, rule.phrase) {
			return rule.value
		}
	}
	return FrequencyNone
}

// NormalizeFrequency canonicalizes a frequency value coming from the
// classifier, which may emit Hebrew words or English labels.
func NormalizeFrequency(raw string) Frequency {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "daily", "יומי":
		return FrequencyDaily
	case "weekly", "שבועי":
		return FrequencyWeekly
	case "monthly", "חודשי":
		return FrequencyMonthly
	case "", "none", "once", "one-shot":
		return FrequencyNone
	}
	// Unrecognized values fall through to the phrase table.
	return ParseFrequency(raw)
}

// NextOccurrence advances a fire instant by one recurrence period.
// Daily and weekly are exact wall-clock additions on the instant;
// monthly advances the calendar month, clamping to the last valid day
// when the target month is shorter.
func NextOccurrence(t time.Time, freq Frequency) time.Time {
	switch freq {
	case FrequencyDaily:
		return t.Add(24 * time.Hour)
	case FrequencyWeekly:
		return t.Add(7 * 24 * time.Hour)
	case FrequencyMonthly:
		return addMonthClamped(t)
	default:
		return t
	}
}

func addMonthClamped(t time.Time) time.Time {
	year, month, day := t.Date()
	firstOfNext := time.Date(year, month+1, 1, t.Hour(), t.Minute(), t.Second(), 0, t.Location())
	if last := daysIn(firstOfNext.Year(), firstOfNext.Month(), t.Location()); day > last {
		day = last
	}
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), day, t.Hour(), t.Minute(), t.Second(), 0, t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

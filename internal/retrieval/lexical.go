package retrieval

import (
	"strings"
	"unicode"
)

// MinLexicalScore is the default Jaccard cutoff below which a best match
// is treated as no match.
const MinLexicalScore = 0.25

// Candidate is one stored record a query is matched against.
type Candidate struct {
	ID    string
	Title string
	Body  string
}

// stopwords excluded from token sets before scoring. Mixed Hebrew and
// English because users write both.
var stopwords = map[string]struct{}{
	"של": {}, "את": {}, "על": {}, "עם": {}, "אני": {}, "זה": {}, "לא": {},
	"מה": {}, "יש": {}, "גם": {}, "אם": {}, "או": {}, "כל": {}, "לי": {},
	"הוא": {}, "היא": {}, "אבל": {}, "רק": {}, "כמה": {}, "איך": {},
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "to": {}, "of": {},
	"and": {}, "or": {}, "in": {}, "on": {}, "for": {}, "it": {}, "my": {},
}

// Tokenize lowercases the text, strips quote and punctuation glyphs,
// splits on the remaining separators and drops stopwords.
func Tokenize(text string) map[string]struct{} {
	lower := strings.ToLower(text)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, stop := stopwords[f]; stop {
			continue
		}
		tokens[f] = struct{}{}
	}
	return tokens
}

// Jaccard returns |a ∩ b| / |a ∪ b|, or 0 when the union is empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// BestMatch returns the candidate with the strictly highest Jaccard
// score against the query, or nil if the best score is below minScore.
// Ties keep the first-seen candidate so identical inputs always yield
// identical output.
func BestMatch(query string, candidates []Candidate, minScore float64) *Candidate {
	if len(candidates) == 0 {
		return nil
	}

	queryTokens := Tokenize(query)

	bestIdx := -1
	bestScore := 0.0
	for i, c := range candidates {
		score := Jaccard(queryTokens, Tokenize(c.Title+" "+c.Body))
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	if bestIdx < 0 || bestScore < minScore {
		return nil
	}
	return &candidates[bestIdx]
}

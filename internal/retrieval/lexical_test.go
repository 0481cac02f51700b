package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeStripsPunctuationAndStopwords(t *testing.T) {
	tokens := Tokenize(`שלחתי 120 ש"ח על חשמל!`)

	assert.Contains(t, tokens, "שלחתי")
	assert.Contains(t, tokens, "120")
	assert.Contains(t, tokens, "חשמל")
	assert.NotContains(t, tokens, "על")
}

func TestJaccard(t *testing.T) {
	a := Tokenize("חשמל מאי")
	b := Tokenize("חשמל יוני")

	// One shared token out of three distinct.
	assert.InDelta(t, 1.0/3.0, Jaccard(a, b), 1e-9)
	assert.Equal(t, 1.0, Jaccard(a, a))
	assert.Equal(t, 0.0, Jaccard(Tokenize(""), Tokenize("")))
}

func TestBestMatchElectricityBill(t *testing.T) {
	candidates := []Candidate{
		{ID: "ent_1", Title: "חשמל מאי", Body: `שלחתי 120 ש"ח`},
		{ID: "ent_2", Title: "קניות", Body: "חלב ולחם"},
	}

	best := BestMatch("עלות חשמל", candidates, MinLexicalScore)
	require.NotNil(t, best)
	assert.Equal(t, "ent_1", best.ID)
}

func TestBestMatchBelowThreshold(t *testing.T) {
	candidates := []Candidate{
		{ID: "ent_1", Title: "קניות", Body: "חלב ולחם"},
	}

	assert.Nil(t, BestMatch("עלות חשמל", candidates, MinLexicalScore))
}

func TestBestMatchEmptyCandidates(t *testing.T) {
	assert.Nil(t, BestMatch("anything", nil, MinLexicalScore))
}

func TestBestMatchTieKeepsFirstSeen(t *testing.T) {
	candidates := []Candidate{
		{ID: "ent_1", Title: "חשמל", Body: ""},
		{ID: "ent_2", Title: "חשמל", Body: ""},
	}

	best := BestMatch("חשמל", candidates, MinLexicalScore)
	require.NotNil(t, best)
	assert.Equal(t, "ent_1", best.ID)
}

func TestBestMatchDeterministic(t *testing.T) {
	candidates := []Candidate{
		{ID: "ent_1", Title: "חשבון חשמל", Body: "שולם"},
		{ID: "ent_2", Title: "חשבון מים", Body: "לא שולם"},
	}

	first := BestMatch("חשבון חשמל", candidates, MinLexicalScore)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, BestMatch("חשבון חשמל", candidates, MinLexicalScore))
	}
}

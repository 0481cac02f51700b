package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shotaf-bot/shotaf/internal/embedding"
)

// MinVectorScore gates semantic hits before they become conversational
// context.
const MinVectorScore = 0.6

// Document is a user-owned record that can serve as answer context.
type Document struct {
	ID    string
	Kind  string // "task" | "note"
	Title string
	Body  string
}

// DocumentSource lists a user's documents for retrieval.
type DocumentSource interface {
	ListDocuments(ctx context.Context, userID string) ([]Document, error)
}

// Service answers "what do I know about X" queries. It tries embedding
// similarity first and falls back to lexical Jaccard matching when the
// embedding path is unavailable or returns nothing above the gate.
type Service struct {
	embedder embedding.Client
	vectors  Repository
	source   DocumentSource
}

func NewService(embedder embedding.Client, vectors Repository, source DocumentSource) *Service {
	return &Service{embedder: embedder, vectors: vectors, source: source}
}

// FindContext returns formatted context lines relevant to the query, at
// most DefaultTopK of them. An empty slice means nothing relevant was
// found; that is not an error.
func (s *Service) FindContext(ctx context.Context, userID, query string) ([]string, error) {
	docs, err := s.source.ListDocuments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	byID := make(map[string]Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	if lines := s.semanticContext(ctx, userID, query, byID); lines != nil {
		return lines, nil
	}

	// Lexical fallback.
	candidates := make([]Candidate, len(docs))
	for i, d := range docs {
		candidates[i] = Candidate{ID: d.ID, Title: d.Title, Body: d.Body}
	}
	best := BestMatch(query, candidates, MinLexicalScore)
	if best == nil {
		return nil, nil
	}
	return []string{formatContext(byID[best.ID])}, nil
}

func (s *Service) semanticContext(ctx context.Context, userID, query string, byID map[string]Document) []string {
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		slog.Warn("embedding query, falling back to lexical match", "error", err)
		return nil
	}

	records, err := s.vectors.ListByOwner(ctx, userID)
	if err != nil {
		slog.Warn("listing vectors, falling back to lexical match", "error", err)
		return nil
	}

	var lines []string
	for _, hit := range TopK(queryVec, records, DefaultTopK) {
		if hit.Score <= MinVectorScore {
			continue
		}
		if doc, ok := byID[hit.ID]; ok {
			lines = append(lines, formatContext(doc))
		}
	}
	return lines
}

// Index embeds a document and stores its vector for later retrieval.
func (s *Service) Index(ctx context.Context, userID string, doc Document) error {
	vec, err := s.embedder.Embed(ctx, doc.Title+" "+doc.Body)
	if err != nil {
		return fmt.Errorf("embedding document %s: %w", doc.ID, err)
	}
	if err := s.vectors.Upsert(ctx, userID, doc.ID, doc.Kind, vec); err != nil {
		return fmt.Errorf("storing vector for %s: %w", doc.ID, err)
	}
	return nil
}

func formatContext(d Document) string {
	if d.Body == "" {
		return d.Title
	}
	return d.Title + ": " + d.Body
}

package notes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shotaf-bot/shotaf/internal/retrieval"
)

// Service owns note creation and note-update resolution. Updates are
// routed to the lexically closest existing note; with no close match a
// fresh note is created instead of guessing.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, userID, title, body string, now time.Time) (*Note, error) {
	note := &Note{
		ID:        fmt.Sprintf("ent_%d_%s", now.UnixMilli(), uuid.NewString()[:8]),
		UserID:    userID,
		Title:     title,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// Append finds the best-matching note for the update text and appends
// to it. Returns the target note and whether a new one had to be made.
func (s *Service) Append(ctx context.Context, userID, title, body string, now time.Time) (*Note, bool, error) {
	existing, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("listing notes for update: %w", err)
	}

	candidates := make([]retrieval.Candidate, len(existing))
	for i, n := range existing {
		candidates[i] = retrieval.Candidate{ID: n.ID, Title: n.Title, Body: n.Body}
	}

	best := retrieval.BestMatch(title+" "+body, candidates, retrieval.MinLexicalScore)
	if best == nil {
		note, err := s.Create(ctx, userID, title, body, now)
		return note, true, err
	}

	if err := s.repo.AppendBody(ctx, userID, best.ID, body); err != nil {
		return nil, false, err
	}
	note, err := s.repo.GetByID(ctx, userID, best.ID)
	return note, false, err
}

func (s *Service) List(ctx context.Context, userID string) ([]Note, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID, id string) (*Note, error) {
	return s.repo.GetByID(ctx, userID, id)
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, userID, id)
}

package notes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	notes    []*Note
	appended []string
}

func (f *fakeRepo) Create(_ context.Context, n *Note) error {
	f.notes = append(f.notes, n)
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, userID, id string) (*Note, error) {
	for _, n := range f.notes {
		if n.UserID == userID && n.ID == id {
			return n, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) ListByUser(_ context.Context, userID string) ([]Note, error) {
	var out []Note
	for _, n := range f.notes {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f *fakeRepo) AppendBody(_ context.Context, userID, id, addition string) error {
	f.appended = append(f.appended, id)
	for _, n := range f.notes {
		if n.UserID == userID && n.ID == id {
			n.Body += "\n" + addition
		}
	}
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, _, _ string) error { return nil }

func TestCreateIDsDistinctWithinSameMillisecond(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)
	now := time.Now()

	a, err := svc.Create(context.Background(), "usr_234567", "חשמל מאי", "120", now)
	require.NoError(t, err)
	b, err := svc.Create(context.Background(), "usr_765432", "קניות", "חלב", now)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Contains(t, a.ID, "ent_")
}

func TestAppendRoutesToClosestNote(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)
	now := time.Now()

	target, err := svc.Create(context.Background(), "usr_234567", "חשמל מאי", `שלחתי 120 ש"ח`, now)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "usr_234567", "קניות", "חלב ולחם", now)
	require.NoError(t, err)

	note, created, err := svc.Append(context.Background(), "usr_234567", "חשמל מאי", "הגיע אישור", now)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, target.ID, note.ID)
	assert.Contains(t, note.Body, "אישור")
}

func TestAppendWithNoMatchCreatesNewNote(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo)
	now := time.Now()

	_, err := svc.Create(context.Background(), "usr_234567", "קניות", "חלב ולחם", now)
	require.NoError(t, err)

	note, created, err := svc.Append(context.Background(), "usr_234567", "ביטוח רכב", "חודש הבא", now)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Empty(t, repo.appended)
	assert.Equal(t, "ביטוח רכב", note.Title)
}

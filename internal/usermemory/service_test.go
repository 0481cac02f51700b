package usermemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shotaf-bot/shotaf/internal/clock"
)

type fakeRepo struct {
	docs  map[string]*Memory
	saves int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{docs: make(map[string]*Memory)}
}

func (f *fakeRepo) Get(_ context.Context, userID string) (*Memory, error) {
	return f.docs[userID], nil
}

func (f *fakeRepo) Save(_ context.Context, mem *Memory) error {
	f.saves++
	f.docs[mem.UserID] = mem
	return nil
}

func TestRecordTaskMentionTriggersAtThree(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		prompt, err := svc.RecordTaskMention(ctx, "usr_234567", "לשלם חשבון", clock.FrequencyMonthly, "12:00")
		require.NoError(t, err)
		assert.False(t, prompt, "mention %d", i)
	}

	prompt, err := svc.RecordTaskMention(ctx, "usr_234567", "לשלם חשבון", clock.FrequencyMonthly, "12:00")
	require.NoError(t, err)
	assert.True(t, prompt)

	// A fourth mention must not re-trigger.
	prompt, err = svc.RecordTaskMention(ctx, "usr_234567", "לשלם חשבון", clock.FrequencyMonthly, "12:00")
	require.NoError(t, err)
	assert.False(t, prompt)
}

func TestRecordTaskMentionNoFrequencyNoPrompt(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		prompt, err := svc.RecordTaskMention(ctx, "usr_234567", "לקנות חלב", clock.FrequencyNone, "12:00")
		require.NoError(t, err)
		assert.False(t, prompt)
	}
}

func TestRecordTaskMentionCountersIndependent(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.RecordTaskMention(ctx, "usr_234567", "ספורט", clock.FrequencyWeekly, "18:00")
		require.NoError(t, err)
	}
	_, err := svc.RecordTaskMention(ctx, "usr_234567", "קניות", clock.FrequencyWeekly, "10:00")
	require.NoError(t, err)

	mem := repo.docs["usr_234567"]
	assert.Equal(t, 3, mem.Counters["cnt_ספורט"])
	assert.Equal(t, 1, mem.Counters["cnt_קניות"])
}

func TestHandleReplyYesCreatesHabit(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.RecordTaskMention(ctx, "usr_234567", "ספורט", clock.FrequencyWeekly, "18:00")
		require.NoError(t, err)
	}

	outcome, err := svc.HandleReply(ctx, "usr_234567", "כן")
	require.NoError(t, err)
	assert.Equal(t, ReplyAccepted, outcome)

	mem := repo.docs["usr_234567"]
	assert.Nil(t, mem.Pending)
	habit, ok := mem.Habits["ספורט"]
	require.True(t, ok)
	assert.Equal(t, clock.FrequencyWeekly, habit.Frequency)
	assert.Equal(t, "18:00", habit.Time)
}

func TestHandleReplyNoClearsPending(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.RecordTaskMention(ctx, "usr_234567", "ספורט", clock.FrequencyWeekly, "18:00")
		require.NoError(t, err)
	}

	outcome, err := svc.HandleReply(ctx, "usr_234567", "לא")
	require.NoError(t, err)
	assert.Equal(t, ReplyDeclined, outcome)

	mem := repo.docs["usr_234567"]
	assert.Nil(t, mem.Pending)
	assert.Empty(t, mem.Habits)
}

func TestHandleReplyOtherLeavesPending(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.RecordTaskMention(ctx, "usr_234567", "ספורט", clock.FrequencyWeekly, "18:00")
		require.NoError(t, err)
	}

	outcome, err := svc.HandleReply(ctx, "usr_234567", "אולי")
	require.NoError(t, err)
	assert.Equal(t, ReplyIgnored, outcome)
	assert.NotNil(t, repo.docs["usr_234567"].Pending)
}

func TestHandleReplyWithoutPending(t *testing.T) {
	svc := NewService(newFakeRepo())

	outcome, err := svc.HandleReply(context.Background(), "usr_234567", "כן")
	require.NoError(t, err)
	assert.Equal(t, ReplyIgnored, outcome)
}

func TestMatchPeopleAnswersFromPeopleMap(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, svc.RecordPerson(ctx, "usr_234567", "דנה", "רופאת שיניים", now))
	require.NoError(t, svc.RecordPerson(ctx, "usr_234567", "יוסי", "", now))

	lines, err := svc.MatchPeople(ctx, "usr_234567", "מי זאת דנה?")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "דנה - רופאת שיניים", lines[0])

	// A contact without a role still answers with the name alone.
	lines, err = svc.MatchPeople(ctx, "usr_234567", "מה עם יוסי?")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "יוסי", lines[0])

	lines, err = svc.MatchPeople(ctx, "usr_234567", "מי זה משה?")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestMatchPeopleUnknownUser(t *testing.T) {
	svc := NewService(newFakeRepo())

	lines, err := svc.MatchPeople(context.Background(), "usr_999999", "מי זאת דנה?")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestRecordPersonMergesRoleAndMentions(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, svc.RecordPerson(ctx, "usr_234567", "דנה", "", now))
	require.NoError(t, svc.RecordPerson(ctx, "usr_234567", "דנה", "רופאה", now.Add(time.Hour)))

	p := repo.docs["usr_234567"].People["דנה"]
	assert.Equal(t, 2, p.Mentions)
	assert.Equal(t, "רופאה", p.Role)
	assert.Equal(t, now.Add(time.Hour), p.LastUsed)
}

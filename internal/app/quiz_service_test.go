package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-night-service/internal/answerkey"
	"quiz-night-service/internal/app"
	"quiz-night-service/internal/domain"
	"quiz-night-service/internal/infra/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T) (*app.QuizService, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	return app.NewQuizService(memory.NewRecordStore(), app.Options{MaxRound: 10, Now: clock.Now}), clock
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func openRound(t *testing.T, svc *app.QuizService, round int) {
	t.Helper()
	_, err := svc.SetRoundState(context.Background(), intPtr(round), boolPtr(false))
	require.NoError(t, err)
}

func TestRoundStateDefaultsAndMerges(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	state, err := svc.RoundState(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundState{Round: 0, Closed: false}, state)

	state, err = svc.SetRoundState(ctx, intPtr(3), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundState{Round: 3, Closed: false}, state)

	state, err = svc.SetRoundState(ctx, nil, boolPtr(true))
	require.NoError(t, err)
	assert.Equal(t, domain.RoundState{Round: 3, Closed: true}, state)

	state, err = svc.SetRoundState(ctx, intPtr(-4), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, state.Round, "negative round keeps previous value")

	stored, err := svc.RoundState(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundState{Round: 3, Closed: true}, stored)
}

func TestSubmitValidationOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.SubmitAnswers(ctx, "", domain.Answers{"a"}, 1)
	assert.ErrorIs(t, err, domain.ErrBadPayload)
	_, err = svc.SubmitAnswers(ctx, "Alpha", nil, 1)
	assert.ErrorIs(t, err, domain.ErrBadPayload)

	// Bad payload wins over a closed round.
	_, err = svc.SubmitAnswers(ctx, "  ", domain.Answers{}, 5)
	assert.ErrorIs(t, err, domain.ErrBadPayload)

	_, err = svc.SubmitAnswers(ctx, "Alpha", domain.Answers{"a"}, 1)
	assert.ErrorIs(t, err, domain.ErrRoundNotOpen, "round 0 never accepts")
}

func TestRoundGating(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	openRound(t, svc, 2)

	_, err := svc.SubmitAnswers(ctx, "Alpha", domain.Answers{"a"}, 1)
	assert.ErrorIs(t, err, domain.ErrRoundNotOpen)
	_, err = svc.SubmitAnswers(ctx, "Alpha", domain.Answers{"a"}, 3)
	assert.ErrorIs(t, err, domain.ErrRoundNotOpen)
	_, err = svc.SubmitAnswers(ctx, "Alpha", domain.Answers{"a"}, 2)
	assert.NoError(t, err)

	_, err = svc.SetRoundState(ctx, nil, boolPtr(true))
	require.NoError(t, err)
	_, err = svc.SubmitAnswers(ctx, "Beta", domain.Answers{"b"}, 2)
	assert.ErrorIs(t, err, domain.ErrRoundNotOpen, "closed round rejects")
}

func TestRoundAboveMaxIsNotOpen(t *testing.T) {
	ctx := context.Background()
	svc := app.NewQuizService(memory.NewRecordStore(), app.Options{MaxRound: 6})
	openRound(t, svc, 7)

	_, err := svc.SubmitAnswers(ctx, "Alpha", domain.Answers{"a"}, 7)
	assert.ErrorIs(t, err, domain.ErrRoundNotOpen)
	assert.Equal(t, 6, svc.MaxRound())
}

func TestAtMostOneSubmission(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t)
	openRound(t, svc, 1)

	first, err := svc.SubmitAnswers(ctx, "Alpha", domain.Answers{"x", "y"}, 1)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = svc.SubmitAnswers(ctx, "Alpha", domain.Answers{"changed"}, 1)
	assert.ErrorIs(t, err, domain.ErrDuplicateSubmission)

	table, err := svc.Answers(ctx)
	require.NoError(t, err)
	stored := table["round_1"]["Alpha"]
	assert.Equal(t, domain.Answers{"x", "y"}, stored.Answers)
	assert.Equal(t, first.Timestamp, stored.Timestamp)
	assert.Equal(t, clock.Now().Add(-time.Minute).UnixMilli(), stored.Timestamp)
}

func TestEmptyAnswerListIsAccepted(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	openRound(t, svc, 1)

	_, err := svc.SubmitAnswers(ctx, "Alpha", domain.Answers{}, 1)
	require.NoError(t, err)
}

func TestConcurrentSubmissionsAreNotLost(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	openRound(t, svc, 1)

	const teams = 40
	var wg sync.WaitGroup
	errs := make(chan error, teams)
	for i := 0; i < teams; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.SubmitAnswers(ctx, fmt.Sprintf("Team %02d", i), domain.Answers{"a"}, 1)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	table, err := svc.Answers(ctx)
	require.NoError(t, err)
	assert.Len(t, table["round_1"], teams)
}

func TestConcurrentDuplicateSubmissionsAcceptOnce(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	openRound(t, svc, 1)

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted, duplicates := 0, 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SubmitAnswers(ctx, "Alpha", domain.Answers{"a"}, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, domain.ErrDuplicateSubmission):
				duplicates++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, accepted)
	assert.Equal(t, attempts-1, duplicates)
}

func TestRegisterTeam(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	name, err := svc.RegisterTeam(ctx, "  Alpha  ")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", name)

	_, err = svc.RegisterTeam(ctx, "Alpha")
	assert.ErrorIs(t, err, domain.ErrTeamExists)

	_, err = svc.RegisterTeam(ctx, "alpha")
	assert.NoError(t, err, "names are case sensitive")

	_, err = svc.RegisterTeam(ctx, "   ")
	assert.ErrorIs(t, err, domain.ErrBadPayload)

	teams, err := svc.Teams(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "alpha"}, teams)
}

func TestTokenStability(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t)

	first, err := svc.GetOrAssignToken(ctx, "Gamma")
	require.NoError(t, err)
	assert.Len(t, first, 48)

	clock.Advance(10 * time.Second)
	second, err := svc.GetOrAssignToken(ctx, "Gamma")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	active, err := svc.ActiveTeams(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, clock.Now().UnixMilli(), active[0].LastSeen, "second call refreshed lastSeen")

	other, err := svc.GetOrAssignToken(ctx, "Delta")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	_, err = svc.GetOrAssignToken(ctx, "")
	assert.ErrorIs(t, err, domain.ErrBadPayload)
}

func TestRejoinAndHeartbeat(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t)

	token, err := svc.GetOrAssignToken(ctx, "Gamma")
	require.NoError(t, err)

	clock.Advance(5 * time.Second)
	name, err := svc.Rejoin(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "Gamma", name)

	_, err = svc.Rejoin(ctx, "unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, svc.Heartbeat(ctx, token, boolPtr(true)))
	require.NoError(t, svc.Heartbeat(ctx, token, nil))

	active, err := svc.ActiveTeams(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.True(t, active[0].PageHidden, "heartbeat without flag keeps pageHidden")

	require.NoError(t, svc.Heartbeat(ctx, token, boolPtr(false)))
	active, _ = svc.ActiveTeams(ctx)
	assert.False(t, active[0].PageHidden)

	assert.ErrorIs(t, svc.Heartbeat(ctx, "unknown", nil), domain.ErrNotFound)
	assert.ErrorIs(t, svc.Heartbeat(ctx, "", nil), domain.ErrNotFound)
}

func TestPresenceWindow(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestService(t)

	_, err := svc.GetOrAssignToken(ctx, "Stale")
	require.NoError(t, err)
	clock.Advance(35 * time.Second)
	_, err = svc.GetOrAssignToken(ctx, "Fresh")
	require.NoError(t, err)
	clock.Advance(5 * time.Second)

	active, err := svc.ActiveTeams(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)

	assert.Equal(t, "Fresh", active[0].TeamName)
	assert.True(t, active[0].Active)
	assert.Equal(t, int64(5), active[0].AgoSeconds)

	assert.Equal(t, "Stale", active[1].TeamName)
	assert.False(t, active[1].Active)
	assert.Equal(t, int64(40), active[1].AgoSeconds)
}

func TestSaveAnswerKeyShapes(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	require.NoError(t, svc.SaveAnswerKey(ctx, 1, answerkey.FromList([]string{"x", "y"})))
	require.NoError(t, svc.SaveAnswerKey(ctx, 2, answerkey.FromMap(map[string]string{"5": "a", "2": "b", "10": "c"})))

	key, err := svc.AnswerKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.AnswerKeyTable{
		"round_1": {"question_1": "x", "question_2": "y"},
		"round_2": {"question_1": "b", "question_2": "a", "question_3": "c"},
	}, key)

	// Whole-round save replaces.
	require.NoError(t, svc.SaveAnswerKey(ctx, 1, answerkey.FromList([]string{"only"})))
	key, _ = svc.AnswerKey(ctx)
	assert.Equal(t, map[string]string{"question_1": "only"}, key["round_1"])

	assert.ErrorIs(t, svc.SaveAnswerKey(ctx, 0, answerkey.FromList(nil)), domain.ErrBadPayload)
}

func TestUpdateAnswerKeyQuestionMerges(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	require.NoError(t, svc.SaveAnswerKey(ctx, 1, answerkey.FromList([]string{"x", "y"})))
	require.NoError(t, svc.UpdateAnswerKeyQuestion(ctx, 1, 2, "why"))
	require.NoError(t, svc.UpdateAnswerKeyQuestion(ctx, 1, 4, "four"))
	require.NoError(t, svc.UpdateAnswerKeyQuestion(ctx, 3, 1, "fresh"))

	key, err := svc.AnswerKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"question_1": "x", "question_2": "why", "question_4": "four"}, key["round_1"])
	assert.Equal(t, map[string]string{"question_1": "fresh"}, key["round_3"])

	assert.ErrorIs(t, svc.UpdateAnswerKeyQuestion(ctx, 1, 0, "x"), domain.ErrBadPayload)
}

func TestUpdateAnswerKeyNormalizesLegacyRound(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRecordStore()
	require.NoError(t, store.Save(ctx, domain.RecordAnswerKey, []byte(`{"round_1":["a","b"],"round_2":{"7":"q","3":"p"}}`)))
	svc := app.NewQuizService(store, app.Options{})

	key, err := svc.AnswerKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"question_1": "p", "question_2": "q"}, key["round_2"], "reads are canonical")

	require.NoError(t, svc.UpdateAnswerKeyQuestion(ctx, 1, 3, "c"))

	raw, err := store.Load(ctx, domain.RecordAnswerKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"round_1": {"question_1": "a", "question_2": "b", "question_3": "c"},
		"round_2": {"7": "q", "3": "p"}
	}`, string(raw))
}

func TestScoresRoundTripVerbatim(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	table := domain.ScoreTable{
		"Alpha": []byte(`{"Runde 1":3,"Runde 2":4.5}`),
		"Beta":  []byte(`{"Runde 1":0}`),
	}
	require.NoError(t, svc.SaveScores(ctx, table))

	got, err := svc.Scores(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"Runde 1":3,"Runde 2":4.5}`, string(got["Alpha"]))

	require.NoError(t, svc.SaveScores(ctx, nil))
	got, err = svc.Scores(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResetPreservesAnswerKeyAndTokens(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	require.NoError(t, svc.SaveAnswerKey(ctx, 1, answerkey.FromList([]string{"x", "y"})))
	_, err := svc.RegisterTeam(ctx, "Alpha")
	require.NoError(t, err)
	token, err := svc.GetOrAssignToken(ctx, "Alpha")
	require.NoError(t, err)
	openRound(t, svc, 1)
	_, err = svc.SubmitAnswers(ctx, "Alpha", domain.Answers{"x"}, 1)
	require.NoError(t, err)
	require.NoError(t, svc.SaveScores(ctx, domain.ScoreTable{"Alpha": []byte(`{"Runde 1":1}`)}))

	require.NoError(t, svc.ResetSession(ctx))

	key, err := svc.AnswerKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.AnswerKeyTable{"round_1": {"question_1": "x", "question_2": "y"}}, key)

	teams, _ := svc.Teams(ctx)
	assert.Empty(t, teams)
	answers, _ := svc.Answers(ctx)
	assert.Empty(t, answers)
	scores, _ := svc.Scores(ctx)
	assert.Empty(t, scores)
	state, _ := svc.RoundState(ctx)
	assert.Equal(t, domain.RoundState{}, state)

	name, err := svc.Rejoin(ctx, token)
	require.NoError(t, err, "reset leaves tokens alone")
	assert.Equal(t, "Alpha", name)
}

func TestRemoveTeamIsTotal(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	for _, name := range []string{"Alpha", "Beta"} {
		_, err := svc.RegisterTeam(ctx, name)
		require.NoError(t, err)
	}
	betaToken, err := svc.GetOrAssignToken(ctx, "Beta")
	require.NoError(t, err)
	alphaToken, err := svc.GetOrAssignToken(ctx, "Alpha")
	require.NoError(t, err)

	openRound(t, svc, 1)
	for _, name := range []string{"Alpha", "Beta"} {
		_, err := svc.SubmitAnswers(ctx, name, domain.Answers{"a"}, 1)
		require.NoError(t, err)
	}
	openRound(t, svc, 2)
	_, err = svc.SubmitAnswers(ctx, "Beta", domain.Answers{"b"}, 2)
	require.NoError(t, err)
	require.NoError(t, svc.SaveScores(ctx, domain.ScoreTable{
		"Alpha": []byte(`{"Runde 1":1}`),
		"Beta":  []byte(`{"Runde 1":2}`),
	}))

	removed, err := svc.RemoveTeam(ctx, " Beta ")
	require.NoError(t, err)
	assert.Equal(t, "Beta", removed)

	teams, _ := svc.Teams(ctx)
	assert.Equal(t, []string{"Alpha"}, teams)

	answers, _ := svc.Answers(ctx)
	for round, byTeam := range answers {
		assert.NotContains(t, byTeam, "Beta", round)
	}
	assert.Contains(t, answers["round_1"], "Alpha")

	scores, _ := svc.Scores(ctx)
	assert.NotContains(t, scores, "Beta")
	assert.Contains(t, scores, "Alpha")

	_, err = svc.Rejoin(ctx, betaToken)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.Rejoin(ctx, alphaToken)
	assert.NoError(t, err)
}

func TestPaddedSubmissionNameIsTrimmed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.RegisterTeam(ctx, "Beta")
	require.NoError(t, err)
	openRound(t, svc, 1)

	_, err = svc.SubmitAnswers(ctx, "Beta ", domain.Answers{"a"}, 1)
	require.NoError(t, err)
	_, err = svc.SubmitAnswers(ctx, " Beta", domain.Answers{"b"}, 1)
	assert.ErrorIs(t, err, domain.ErrDuplicateSubmission)

	answers, err := svc.Answers(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Answers{"a"}, answers["round_1"]["Beta"].Answers)
	assert.NotContains(t, answers["round_1"], "Beta ")

	_, err = svc.RemoveTeam(ctx, "Beta ")
	require.NoError(t, err)
	answers, err = svc.Answers(ctx)
	require.NoError(t, err)
	assert.Empty(t, answers["round_1"])
}

func TestRemoveUnknownTeamIsNoop(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	removed, err := svc.RemoveTeam(ctx, "Ghost")
	require.NoError(t, err)
	assert.Equal(t, "Ghost", removed)

	_, err = svc.RemoveTeam(ctx, "")
	assert.ErrorIs(t, err, domain.ErrBadPayload)
}

func TestRoundFeedPublishesChanges(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	updates, cancel := svc.SubscribeRounds()
	defer cancel()

	openRound(t, svc, 4)
	assert.Equal(t, domain.RoundState{Round: 4}, <-updates)

	require.NoError(t, svc.ResetSession(ctx))
	assert.Equal(t, domain.RoundState{}, <-updates)
}

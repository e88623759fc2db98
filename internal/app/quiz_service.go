package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"quiz-night-service/internal/answerkey"
	"quiz-night-service/internal/domain"
)

// Options tunes a QuizService. Zero values pick the defaults.
type Options struct {
	MaxRound int
	Logger   *zap.Logger
	// Now is the clock used for timestamps and presence; tests pin it.
	Now func() time.Time
}

// QuizService contains the quiz session use cases.
type QuizService struct {
	records    *Records
	feed       *RoundFeed
	rounds     *Rounds
	ledger     *Ledger
	answerKeys *AnswerKeys
	teams      *Teams
	scores     *Scores
	resetter   *Resetter
	log        *zap.Logger
}

func NewQuizService(store RecordStore, opts Options) *QuizService {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	records := NewRecords(store, log)
	feed := NewRoundFeed()
	rounds := NewRounds(records, feed, opts.MaxRound)
	ledger := NewLedger(records, rounds, now)
	teams := NewTeams(records, now)
	scores := NewScores(records)

	return &QuizService{
		records:    records,
		feed:       feed,
		rounds:     rounds,
		ledger:     ledger,
		answerKeys: NewAnswerKeys(records),
		teams:      teams,
		scores:     scores,
		resetter:   NewResetter(records, teams, ledger, scores, feed, log),
		log:        log,
	}
}

func (s *QuizService) RegisterTeam(ctx context.Context, teamName string) (string, error) {
	name, err := s.teams.Register(ctx, teamName)
	if err == nil {
		s.log.Info("team registered", zap.String("team", name))
	}
	return name, err
}

func (s *QuizService) Teams(ctx context.Context) ([]string, error) {
	return s.teams.List(ctx)
}

func (s *QuizService) GetOrAssignToken(ctx context.Context, teamName string) (string, error) {
	return s.teams.Token(ctx, teamName)
}

func (s *QuizService) Rejoin(ctx context.Context, token string) (string, error) {
	return s.teams.Rejoin(ctx, token)
}

func (s *QuizService) Heartbeat(ctx context.Context, token string, pageHidden *bool) error {
	return s.teams.Heartbeat(ctx, token, pageHidden)
}

func (s *QuizService) ActiveTeams(ctx context.Context) ([]domain.Presence, error) {
	return s.teams.Active(ctx)
}

func (s *QuizService) RemoveTeam(ctx context.Context, teamName string) (string, error) {
	return s.resetter.RemoveTeam(ctx, teamName)
}

func (s *QuizService) RoundState(ctx context.Context) (domain.RoundState, error) {
	return s.rounds.Get(ctx)
}

func (s *QuizService) SetRoundState(ctx context.Context, round *int, closed *bool) (domain.RoundState, error) {
	state, err := s.rounds.Set(ctx, round, closed)
	if err == nil {
		s.log.Info("round state set", zap.Int("round", state.Round), zap.Bool("closed", state.Closed))
	}
	return state, err
}

// MaxRound is the configured upper bound for round numbers.
func (s *QuizService) MaxRound() int {
	return s.rounds.MaxRound()
}

// SubmitAnswers returns domain.ErrBadPayload, ErrRoundNotOpen or ErrDuplicateSubmission
// for rejected submissions.
func (s *QuizService) SubmitAnswers(ctx context.Context, teamName string, answers domain.Answers, round int) (domain.Submission, error) {
	return s.ledger.Submit(ctx, teamName, answers, round)
}

func (s *QuizService) Answers(ctx context.Context) (domain.AnswerTable, error) {
	return s.ledger.All(ctx)
}

func (s *QuizService) SaveAnswerKey(ctx context.Context, round int, payload answerkey.Payload) error {
	err := s.answerKeys.SaveRound(ctx, round, payload)
	if err == nil {
		s.log.Info("answer key saved", zap.Int("round", round), zap.Stringer("shape", payload.Kind()))
	}
	return err
}

func (s *QuizService) UpdateAnswerKeyQuestion(ctx context.Context, round, question int, answer string) error {
	return s.answerKeys.UpdateQuestion(ctx, round, question, answer)
}

func (s *QuizService) AnswerKey(ctx context.Context) (domain.AnswerKeyTable, error) {
	return s.answerKeys.All(ctx)
}

func (s *QuizService) SaveScores(ctx context.Context, table domain.ScoreTable) error {
	return s.scores.Save(ctx, table)
}

func (s *QuizService) Scores(ctx context.Context) (domain.ScoreTable, error) {
	return s.scores.All(ctx)
}

func (s *QuizService) ResetSession(ctx context.Context) error {
	return s.resetter.Reset(ctx)
}

// SubscribeRounds streams round-state changes. The caller must invoke cancel.
func (s *QuizService) SubscribeRounds() (<-chan domain.RoundState, func()) {
	return s.feed.Subscribe()
}

// RoundListeners is the number of live round-state subscriptions.
func (s *QuizService) RoundListeners() int {
	return s.feed.Subscribers()
}

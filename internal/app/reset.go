package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"quiz-night-service/internal/domain"
)

// Resetter owns the operations that mutate several records at once.
type Resetter struct {
	records *Records
	teams   *Teams
	ledger  *Ledger
	scores  *Scores
	feed    *RoundFeed
	log     *zap.Logger
}

func NewResetter(records *Records, teams *Teams, ledger *Ledger, scores *Scores, feed *RoundFeed, log *zap.Logger) *Resetter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resetter{records: records, teams: teams, ledger: ledger, scores: scores, feed: feed, log: log}
}

// Reset clears teams, submissions and scores and rewinds the round to {0, false}.
// The answer key and team tokens are left alone.
func (r *Resetter) Reset(ctx context.Context) error {
	unlock := r.records.lockAll(domain.RecordTeams, domain.RecordAnswers, domain.RecordScores, domain.RecordRound)
	defer unlock()

	err := r.records.saveMany(ctx, map[domain.Record]interface{}{
		domain.RecordTeams:   domain.DefaultTeams(),
		domain.RecordAnswers: domain.DefaultAnswerTable(),
		domain.RecordScores:  domain.DefaultScoreTable(),
		domain.RecordRound:   domain.DefaultRoundState(),
	})
	if err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	if r.feed != nil {
		r.feed.Publish(domain.DefaultRoundState())
	}
	r.log.Info("session reset")
	return nil
}

// RemoveTeam deletes every trace of name: list entry, token, submissions, score.
// All four records are attempted; any failure is reported as a storage error.
func (r *Resetter) RemoveTeam(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.ErrBadPayload
	}

	steps := []struct {
		record domain.Record
		run    func(context.Context, string) error
	}{
		{domain.RecordTeams, r.teams.removeFromList},
		{domain.RecordTokens, r.teams.removeToken},
		{domain.RecordAnswers, r.ledger.removeTeam},
		{domain.RecordScores, r.scores.removeTeam},
	}

	var errs []error
	for _, step := range steps {
		if err := step.run(ctx, name); err != nil {
			r.log.Error("remove team step failed",
				zap.String("team", name),
				zap.String("record", string(step.record)),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return "", fmt.Errorf("%w: remove team %q: %w", domain.ErrStorage, name, errors.Join(errs...))
	}
	r.log.Info("team removed", zap.String("team", name))
	return name, nil
}

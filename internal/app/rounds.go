package app

import (
	"context"

	"quiz-night-service/internal/domain"
)

// Rounds owns the current round number and its open/closed flag.
type Rounds struct {
	records  *Records
	feed     *RoundFeed
	maxRound int
}

func NewRounds(records *Records, feed *RoundFeed, maxRound int) *Rounds {
	if maxRound < 1 {
		maxRound = domain.DefaultMaxRound
	}
	return &Rounds{records: records, feed: feed, maxRound: maxRound}
}

// MaxRound is the highest round number that can accept submissions.
func (r *Rounds) MaxRound() int {
	return r.maxRound
}

// Get returns the round state, {0, false} if it was never set.
func (r *Rounds) Get(ctx context.Context) (domain.RoundState, error) {
	return read(ctx, r.records, domain.RecordRound, domain.DefaultRoundState)
}

// Set merges the supplied fields into the round state. A nil or negative round and a nil
// closed flag keep their previous values.
func (r *Rounds) Set(ctx context.Context, round *int, closed *bool) (domain.RoundState, error) {
	var next domain.RoundState
	err := update(ctx, r.records, domain.RecordRound, domain.DefaultRoundState, func(state *domain.RoundState) error {
		if round != nil && *round >= 0 {
			state.Round = *round
		}
		if closed != nil {
			state.Closed = *closed
		}
		next = *state
		return nil
	})
	if err != nil {
		return domain.RoundState{}, err
	}
	if r.feed != nil {
		r.feed.Publish(next)
	}
	return next, nil
}

// Accepts reports whether state lets a submission for round through.
func (r *Rounds) Accepts(state domain.RoundState, round int) bool {
	if state.Closed || state.Round != round {
		return false
	}
	return round >= 1 && round <= r.maxRound
}

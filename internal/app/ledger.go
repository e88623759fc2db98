package app

import (
	"context"
	"strings"
	"time"

	"quiz-night-service/internal/domain"
)

// Ledger accepts at most one submission per team per round.
type Ledger struct {
	records *Records
	rounds  *Rounds
	now     func() time.Time
}

func NewLedger(records *Records, rounds *Rounds, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{records: records, rounds: rounds, now: now}
}

// Submit stores answers for (round, teamName). Checks run in a fixed order: payload shape,
// round gate, then duplicate detection. The team name is trimmed like everywhere else.
func (l *Ledger) Submit(ctx context.Context, teamName string, answers domain.Answers, round int) (domain.Submission, error) {
	teamName = strings.TrimSpace(teamName)
	if teamName == "" || answers == nil {
		return domain.Submission{}, domain.ErrBadPayload
	}

	state, err := l.rounds.Get(ctx)
	if err != nil {
		return domain.Submission{}, err
	}
	if !l.rounds.Accepts(state, round) {
		return domain.Submission{}, domain.ErrRoundNotOpen
	}

	key := domain.RoundKey(round)
	var accepted domain.Submission
	err = update(ctx, l.records, domain.RecordAnswers, domain.DefaultAnswerTable, func(table *domain.AnswerTable) error {
		if *table == nil {
			*table = domain.AnswerTable{}
		}
		byTeam := (*table)[key]
		if byTeam == nil {
			byTeam = make(map[string]domain.Submission)
			(*table)[key] = byTeam
		}
		if _, exists := byTeam[teamName]; exists {
			return domain.ErrDuplicateSubmission
		}
		accepted = domain.Submission{
			Answers:   append(domain.Answers{}, answers...),
			Timestamp: domain.Millis(l.now()),
		}
		byTeam[teamName] = accepted
		return nil
	})
	if err != nil {
		return domain.Submission{}, err
	}
	return accepted, nil
}

// All returns every submission of every round.
func (l *Ledger) All(ctx context.Context) (domain.AnswerTable, error) {
	table, err := read(ctx, l.records, domain.RecordAnswers, domain.DefaultAnswerTable)
	if table == nil {
		table = domain.DefaultAnswerTable()
	}
	return table, err
}

// removeTeam drops teamName's submissions from every round.
func (l *Ledger) removeTeam(ctx context.Context, teamName string) error {
	return update(ctx, l.records, domain.RecordAnswers, domain.DefaultAnswerTable, func(table *domain.AnswerTable) error {
		if *table == nil {
			*table = domain.AnswerTable{}
		}
		for _, byTeam := range *table {
			delete(byTeam, teamName)
		}
		return nil
	})
}

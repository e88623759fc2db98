package app

import (
	"context"

	"quiz-night-service/internal/domain"
)

// Scores stores the host's score sheet verbatim.
type Scores struct {
	records *Records
}

func NewScores(records *Records) *Scores {
	return &Scores{records: records}
}

// Save replaces the whole score table.
func (s *Scores) Save(ctx context.Context, table domain.ScoreTable) error {
	if table == nil {
		table = domain.DefaultScoreTable()
	}
	unlock := s.records.lockAll(domain.RecordScores)
	defer unlock()
	return s.records.save(ctx, domain.RecordScores, table)
}

func (s *Scores) All(ctx context.Context) (domain.ScoreTable, error) {
	table, err := read(ctx, s.records, domain.RecordScores, domain.DefaultScoreTable)
	if table == nil {
		table = domain.DefaultScoreTable()
	}
	return table, err
}

func (s *Scores) removeTeam(ctx context.Context, teamName string) error {
	return update(ctx, s.records, domain.RecordScores, domain.DefaultScoreTable, func(table *domain.ScoreTable) error {
		if *table == nil {
			*table = domain.ScoreTable{}
		}
		delete(*table, teamName)
		return nil
	})
}

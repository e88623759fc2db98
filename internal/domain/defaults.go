package domain

// Default values for records that were never written.

func DefaultTeams() []string { return []string{} }

func DefaultRoundState() RoundState { return RoundState{Round: 0, Closed: false} }

func DefaultAnswerTable() AnswerTable { return AnswerTable{} }

func DefaultScoreTable() ScoreTable { return ScoreTable{} }

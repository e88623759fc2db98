package domain

// Record names one independently addressable piece of persisted session state.
type Record string

const (
	RecordTeams     Record = "teams"
	RecordTokens    Record = "tokens"
	RecordAnswers   Record = "answers"
	RecordAnswerKey Record = "answerKey"
	RecordRound     Record = "round"
	RecordScores    Record = "scores"
)

// AllRecords lists every record in a fixed order. Multi-record operations lock in this order.
var AllRecords = []Record{
	RecordTeams,
	RecordTokens,
	RecordAnswers,
	RecordAnswerKey,
	RecordRound,
	RecordScores,
}

// FileName is the on-disk name used by the file backend.
func (r Record) FileName() string {
	switch r {
	case RecordTeams:
		return "teams.json"
	case RecordTokens:
		return "teamTokens.json"
	case RecordAnswers:
		return "teamAnswers.json"
	case RecordAnswerKey:
		return "correctAnswers.json"
	case RecordRound:
		return "currentRound.json"
	case RecordScores:
		return "scores.json"
	}
	return string(r) + ".json"
}

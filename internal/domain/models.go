package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// PresenceWindow is how recently a token must have been seen for its team to count as active.
const PresenceWindow = 30 * time.Second

// DefaultMaxRound is the highest round number accepted when none is configured.
const DefaultMaxRound = 10

// RoundState is the singleton round record.
type RoundState struct {
	Round  int  `json:"round"`
	Closed bool `json:"closed"`
}

// UnmarshalJSON is lenient: the round may be stored as a number or numeric string and
// anything unparsable becomes 0, closed is true only for a literal true.
func (s *RoundState) UnmarshalJSON(data []byte) error {
	var raw struct {
		Round  json.RawMessage `json:"round"`
		Closed json.RawMessage `json:"closed"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Round = 0
	if n, ok := ParseInt(raw.Round); ok && n >= 0 {
		s.Round = n
	}
	s.Closed = string(raw.Closed) == "true"
	return nil
}

// TokenInfo is what a team token resolves to.
type TokenInfo struct {
	TeamName   string `json:"teamName"`
	LastSeen   int64  `json:"lastSeen"` // unix milliseconds
	PageHidden bool   `json:"pageHidden"`
}

// TokenIndex keeps the token -> info and name -> token indices together.
type TokenIndex struct {
	Tokens map[string]*TokenInfo `json:"tokens"`
	ByName map[string]string     `json:"byName"`
}

// NewTokenIndex returns an empty, initialized index.
func NewTokenIndex() *TokenIndex {
	return &TokenIndex{
		Tokens: make(map[string]*TokenInfo),
		ByName: make(map[string]string),
	}
}

// Presence is one row of the active-teams view.
type Presence struct {
	TeamName   string `json:"teamName"`
	LastSeen   int64  `json:"lastSeen"`
	AgoSeconds int64  `json:"agoSec"`
	Active     bool   `json:"active"`
	PageHidden bool   `json:"pageHidden"`
}

// Answers is an ordered list of answer texts. JSON scalars are accepted and kept as text.
type Answers []string

func (a *Answers) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("answers must be an array: %w", err)
	}
	if items == nil {
		*a = nil
		return nil
	}
	out := make(Answers, len(items))
	for i, item := range items {
		out[i] = ScalarText(item)
	}
	*a = out
	return nil
}

// Submission is one team's accepted answers for a round.
type Submission struct {
	Answers   Answers `json:"answers"`
	Timestamp int64   `json:"timestamp"` // unix milliseconds
}

// AnswerTable maps "round_<n>" to team name to submission.
type AnswerTable map[string]map[string]Submission

// AnswerKeyTable maps "round_<n>" to "question_<n>" to the correct answer.
type AnswerKeyTable map[string]map[string]string

// ScoreTable maps team name to an opaque per-round score object.
type ScoreTable map[string]json.RawMessage

// RoundKey is the record key for a round number.
func RoundKey(round int) string {
	return "round_" + strconv.Itoa(round)
}

// QuestionKey is the answer-key field for a 1-based question number.
func QuestionKey(question int) string {
	return "question_" + strconv.Itoa(question)
}

// ScalarText renders a JSON value as answer text: strings unquoted, null empty,
// everything else as its compact JSON literal.
func ScalarText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// ParseInt accepts a JSON number or a numeric string holding an integer.
func ParseInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		n = json.Number(s)
	}
	if v, err := strconv.Atoi(string(n)); err == nil {
		return v, true
	}
	f, err := n.Float64()
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// Millis returns the unix millisecond timestamp for t.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

package domain

import "errors"

var (
	// ErrBadPayload is returned when a request is missing or has malformed required fields.
	ErrBadPayload = errors.New("bad payload")
	// ErrRoundNotOpen is returned when the round gate rejects a submission.
	ErrRoundNotOpen = errors.New("round not open")
	// ErrDuplicateSubmission is returned when a team already submitted for the round.
	ErrDuplicateSubmission = errors.New("duplicate submission")
	// ErrTeamExists is returned when registering a name that is already taken.
	ErrTeamExists = errors.New("team already exists")
	// ErrNotFound is returned for unknown tokens.
	ErrNotFound = errors.New("not found")
	// ErrStorage wraps any failure of the underlying record store.
	ErrStorage = errors.New("storage failure")
)

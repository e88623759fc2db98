package app

import (
	"context"
	"encoding/json"

	"quiz-night-service/internal/answerkey"
	"quiz-night-service/internal/domain"
)

// storedKeys is the answer-key record as persisted. Entries written before normalization
// existed may still be lists or numeric-keyed maps, so rounds are kept raw until read.
type storedKeys map[string]json.RawMessage

func emptyStoredKeys() storedKeys { return storedKeys{} }

// AnswerKeys persists the correct answers per round in canonical form. It survives resets.
type AnswerKeys struct {
	records *Records
}

func NewAnswerKeys(records *Records) *AnswerKeys {
	return &AnswerKeys{records: records}
}

// SaveRound replaces the whole answer key of round with the normalized payload.
func (k *AnswerKeys) SaveRound(ctx context.Context, round int, payload answerkey.Payload) error {
	if round < 1 {
		return domain.ErrBadPayload
	}
	data, err := json.Marshal(answerkey.Normalize(payload))
	if err != nil {
		return err
	}
	return update(ctx, k.records, domain.RecordAnswerKey, emptyStoredKeys, func(keys *storedKeys) error {
		if *keys == nil {
			*keys = storedKeys{}
		}
		(*keys)[domain.RoundKey(round)] = data
		return nil
	})
}

// UpdateQuestion sets one answer, keeping the other questions of the round. A round still
// stored in a legacy shape is normalized as part of the same write.
func (k *AnswerKeys) UpdateQuestion(ctx context.Context, round, question int, answer string) error {
	if round < 1 || question < 1 {
		return domain.ErrBadPayload
	}
	key := domain.RoundKey(round)
	return update(ctx, k.records, domain.RecordAnswerKey, emptyStoredKeys, func(keys *storedKeys) error {
		if *keys == nil {
			*keys = storedKeys{}
		}
		merged := answerkey.NormalizeRaw((*keys)[key])
		merged[domain.QuestionKey(question)] = answer
		data, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		(*keys)[key] = data
		return nil
	})
}

// All returns the full answer key with every round in canonical form.
func (k *AnswerKeys) All(ctx context.Context) (domain.AnswerKeyTable, error) {
	keys, err := read(ctx, k.records, domain.RecordAnswerKey, emptyStoredKeys)
	out := make(domain.AnswerKeyTable, len(keys))
	for round, raw := range keys {
		out[round] = answerkey.NormalizeRaw(raw)
	}
	return out, err
}

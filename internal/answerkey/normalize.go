// Package answerkey converts the answer-key shapes found in stored data (ordered list,
// numeric-keyed map, canonical "question_<n>" map) into the canonical map.
package answerkey

import (
	"encoding/json"
	"sort"
	"strconv"

	"quiz-night-service/internal/domain"
)

// Kind tags which shape a payload arrived in.
type Kind int

const (
	Empty Kind = iota
	List
	SparseMap
	Canonical
)

func (k Kind) String() string {
	switch k {
	case List:
		return "list"
	case SparseMap:
		return "sparse-map"
	case Canonical:
		return "canonical"
	}
	return "empty"
}

// Payload is an answer-key round in one of its accepted shapes. The shape is resolved once,
// when the payload is built, and Normalize is the only consumer.
type Payload struct {
	kind    Kind
	list    []string
	entries map[string]string
}

// FromList builds a payload from answers ordered by question.
func FromList(values []string) Payload {
	return Payload{kind: List, list: values}
}

// FromMap builds a payload from a keyed map. Maps whose keys are all integers are sparse,
// any other key makes the map canonical.
func FromMap(m map[string]string) Payload {
	if m == nil {
		return Payload{kind: Empty}
	}
	for k := range m {
		if _, err := strconv.Atoi(k); err != nil {
			return Payload{kind: Canonical, entries: m}
		}
	}
	return Payload{kind: SparseMap, entries: m}
}

// Parse resolves a raw JSON value. Arrays and objects are accepted, anything else is empty.
// Scalar values inside are kept as text.
func Parse(raw json.RawMessage) Payload {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil && items != nil {
		values := make([]string, len(items))
		for i, item := range items {
			values[i] = domain.ScalarText(item)
		}
		return FromList(values)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err == nil && fields != nil {
		m := make(map[string]string, len(fields))
		for k, v := range fields {
			m[k] = domain.ScalarText(v)
		}
		return FromMap(m)
	}
	return Payload{kind: Empty}
}

// Kind reports the shape the payload was resolved to.
func (p Payload) Kind() Kind {
	return p.kind
}

// Normalize returns the canonical {question_<n>: answer} map for p. Sparse maps are
// re-indexed by the rank of their numeric keys, not by the key values themselves.
// The result is always a fresh map.
func Normalize(p Payload) map[string]string {
	out := make(map[string]string)
	switch p.kind {
	case List:
		for i, v := range p.list {
			out[domain.QuestionKey(i+1)] = v
		}
	case SparseMap:
		keys := make([]string, 0, len(p.entries))
		for k := range p.entries {
			keys = append(keys, k)
		}
		sort.SliceStable(keys, func(i, j int) bool {
			a, _ := strconv.Atoi(keys[i])
			b, _ := strconv.Atoi(keys[j])
			if a != b {
				return a < b
			}
			return keys[i] < keys[j]
		})
		for i, k := range keys {
			out[domain.QuestionKey(i+1)] = p.entries[k]
		}
	case Canonical:
		for k, v := range p.entries {
			out[k] = v
		}
	}
	return out
}

// NormalizeRaw is Normalize(Parse(raw)).
func NormalizeRaw(raw json.RawMessage) map[string]string {
	return Normalize(Parse(raw))
}

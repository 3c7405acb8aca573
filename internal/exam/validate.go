package exam

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Submission bodies arrive as
//
//	{ "answers": { "<container_id>": { "<question_id>": <tokens> } } }
//
// where <tokens> is an ordered token list for choice questions or a
// row-index -> column-index -> bool mapping for table questions.

type rawSubmission map[int64]map[int64]json.RawMessage

func parseSubmission(body []byte) (rawSubmission, error) {
	var envelope struct {
		Answers map[string]json.RawMessage `json:"answers"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Answers == nil {
		return nil, fmt.Errorf("body must be an object with an \"answers\" mapping: %w", ErrMalformedPayload)
	}
	out := rawSubmission{}
	for containerKey, rawQuestions := range envelope.Answers {
		containerID, err := strconv.ParseInt(containerKey, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("container key %q is not an id: %w", containerKey, ErrMalformedPayload)
		}
		var questions map[string]json.RawMessage
		if err := json.Unmarshal(rawQuestions, &questions); err != nil {
			return nil, fmt.Errorf("container %d: answers must be a mapping, not a list: %w", containerID, ErrMalformedPayload)
		}
		qs := map[int64]json.RawMessage{}
		for questionKey, tokens := range questions {
			questionID, err := strconv.ParseInt(questionKey, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("question key %q is not an id: %w", questionKey, ErrMalformedPayload)
			}
			qs[questionID] = tokens
		}
		out[containerID] = qs
	}
	return out, nil
}

// validateStructure confirms every referenced container belongs to the
// section and every referenced question belongs to its claimed container.
// Runs before any row deletion or insertion.
func (s *Store) validateStructure(ctx context.Context, sectionID int64, sectionType string, sub rawSubmission) error {
	owned, err := s.containerQuestions(ctx, sectionID, sectionType)
	if err != nil {
		return err
	}
	for containerID, questions := range sub {
		qset, ok := owned[containerID]
		if !ok {
			return fmt.Errorf("container %d not in section %d: %w", containerID, sectionID, ErrContainerNotInSection)
		}
		for questionID := range questions {
			if !qset[questionID] {
				return fmt.Errorf("question %d not in container %d: %w", questionID, containerID, ErrQuestionNotInContainer)
			}
		}
	}
	return nil
}

// decodedAnswer is codec output: canonical identities ready for storage.
type decodedAnswer struct {
	OptionIDs []int64
	Pairs     []CellPair
}

func (a decodedAnswer) empty() bool { return len(a.OptionIDs) == 0 && len(a.Pairs) == 0 }

// decodeAnswer normalizes one question's raw tokens using the question's
// positional lookup tables.
func decodeAnswer(meta questionMeta, raw json.RawMessage) (decodedAnswer, error) {
	if meta.Type == TypeTable {
		var sel map[string]map[string]bool
		if err := json.Unmarshal(raw, &sel); err != nil {
			return decodedAnswer{}, fmt.Errorf("question %d: table answer must map row index to column flags: %w", meta.ID, ErrMalformedPayload)
		}
		pairs, err := DecodeTableSelection(sel, meta.RowIDs, meta.ColIDs)
		if err != nil {
			return decodedAnswer{}, fmt.Errorf("question %d: %w", meta.ID, err)
		}
		return decodedAnswer{Pairs: pairs}, nil
	}

	var tokens []string
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return decodedAnswer{}, fmt.Errorf("question %d: answer must be a token list: %w", meta.ID, ErrMalformedPayload)
	}
	ids, err := DecodeOptionTokens(tokens, meta.OptionIDs)
	if err != nil {
		return decodedAnswer{}, fmt.Errorf("question %d: %w", meta.ID, err)
	}
	return decodedAnswer{OptionIDs: ids}, nil
}

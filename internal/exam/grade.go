package exam

import (
	"context"
	"fmt"
)

// SubmitAnswers records a reading or listening submission and returns the
// section score. Order of operations, per request:
//
//  1. structural validation (no writes yet)
//  2. codec normalization of every submitted answer (no writes yet)
//  3. one transaction: replace user_answers per question, then score the
//     entire section's current answer state
//
// Any validation or codec failure aborts before the transaction opens.
func (s *Store) SubmitAnswers(ctx context.Context, userID, sectionID int64, sectionType string, body []byte) (int, error) {
	sec, err := s.Section(ctx, sectionID)
	if err != nil {
		return 0, err
	}
	if sec.SectionType != sectionType {
		return 0, fmt.Errorf("section %d is %s, not %s: %w", sectionID, sec.SectionType, sectionType, ErrNotFound)
	}

	sub, err := parseSubmission(body)
	if err != nil {
		return 0, err
	}
	if err := s.validateStructure(ctx, sectionID, sectionType, sub); err != nil {
		return 0, err
	}

	decoded := map[int64]decodedAnswer{}
	for _, questions := range sub {
		for questionID, raw := range questions {
			meta, err := s.questionMeta(ctx, questionID)
			if err != nil {
				return 0, err
			}
			ans, err := decodeAnswer(meta, raw)
			if err != nil {
				return 0, err
			}
			decoded[questionID] = ans
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for questionID, ans := range decoded {
		if err := replaceUserAnswers(ctx, tx, userID, questionID, ans); err != nil {
			return 0, err
		}
	}

	score, err := s.scoreSection(ctx, tx, userID, sectionID, sectionType)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return score, nil
}

// SectionScore computes the score for the student's current answer state
// without mutating anything.
func (s *Store) SectionScore(ctx context.Context, userID, sectionID int64, sectionType string) (int, error) {
	if _, err := s.Section(ctx, sectionID); err != nil {
		return 0, err
	}
	return s.scoreSection(ctx, s.db, userID, sectionID, sectionType)
}

// scoreSection sums awarded weights over every question in the section.
// A question is worth 2 points when it is prose_summary or table with more
// than one correct answer, else 1. Full weight is awarded iff the recorded
// set exactly equals the key set and is non-empty; no partial credit.
func (s *Store) scoreSection(ctx context.Context, q querier, userID, sectionID int64, sectionType string) (int, error) {
	questions, err := s.sectionQuestions(ctx, sectionID, sectionType)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, sq := range questions {
		key, err := s.AnswerKey(ctx, sq.ID)
		if err != nil {
			return 0, err
		}
		recorded, err := userAnswerSet(ctx, q, userID, sq.ID)
		if err != nil {
			return 0, err
		}
		total += awardPoints(sq.Type, key, recorded)
	}
	return total, nil
}

func awardPoints(questionType string, key, recorded AnswerKey) int {
	weight := 1
	if (questionType == TypeProseSummary || questionType == TypeTable) && key.CorrectCount() > 1 {
		weight = 2
	}
	// A student who selects nothing never earns points, even against an
	// empty key.
	if recorded.CorrectCount() == 0 {
		return 0
	}
	if !setEqual(recorded.OptionIDs, key.OptionIDs) {
		return 0
	}
	if !pairSetEqual(recorded.Pairs, key.Pairs) {
		return 0
	}
	return weight
}

func setEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	seen := map[int64]int{}
	for _, v := range a {
		seen[v]++
	}
	for _, v := range b {
		seen[v]--
	}
	for _, n := range seen {
		if n != 0 {
			return false
		}
	}
	return true
}

func pairSetEqual(a, b []CellPair) bool {
	if len(a) != len(b) {
		return false
	}
	seen := map[CellPair]int{}
	for _, p := range a {
		seen[p]++
	}
	for _, p := range b {
		seen[p]--
	}
	for _, n := range seen {
		if n != 0 {
			return false
		}
	}
	return true
}

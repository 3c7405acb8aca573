package exam_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lingopeak/exam-backend/internal/exam"
)

func TestSubmitAnswersFullMarks(t *testing.T) {
	s := newTestStore(t)
	f := buildReadingFixture(t, s)
	userID := seedUser(t, s, "alice", "student")
	ctx := context.Background()

	body := answersBody(t, f.passageID, f.correctAnswers())
	score, err := s.SubmitAnswers(ctx, userID, f.sectionID, exam.SectionReading, body)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if score != 6 {
		t.Fatalf("score = %d, want 6", score)
	}

	// Read-only score over the same state agrees.
	again, err := s.SectionScore(ctx, userID, f.sectionID, exam.SectionReading)
	if err != nil {
		t.Fatalf("section score: %v", err)
	}
	if again != score {
		t.Fatalf("SectionScore = %d, SubmitAnswers returned %d", again, score)
	}
}

func TestSubmitAnswersNoPartialCredit(t *testing.T) {
	s := newTestStore(t)
	f := buildReadingFixture(t, s)
	userID := seedUser(t, s, "bob", "student")

	answers := f.correctAnswers()
	// 2 of 3 prose choices: worth 0, not 1.
	answers[f.prose] = []string{"a", "c"}
	score, err := s.SubmitAnswers(context.Background(), userID, f.sectionID, exam.SectionReading, answersBody(t, f.passageID, answers))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if score != 4 {
		t.Fatalf("score = %d, want 4", score)
	}
}

func TestSubmitAnswersSupersetIsWrong(t *testing.T) {
	s := newTestStore(t)
	f := buildReadingFixture(t, s)
	userID := seedUser(t, s, "carol", "student")

	answers := f.correctAnswers()
	// Correct answer plus one extra: exact set equality required.
	answers[f.single] = []string{"b", "c"}
	score, err := s.SubmitAnswers(context.Background(), userID, f.sectionID, exam.SectionReading, answersBody(t, f.passageID, answers))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if score != 5 {
		t.Fatalf("score = %d, want 5", score)
	}
}

func TestSubmitAnswersEmptySelectionScoresZero(t *testing.T) {
	s := newTestStore(t)
	f := buildReadingFixture(t, s)
	userID := seedUser(t, s, "dave", "student")

	answers := f.correctAnswers()
	answers[f.multi] = []string{}
	answers[f.table] = map[string]map[string]bool{"0": {"0": false}}
	score, err := s.SubmitAnswers(context.Background(), userID, f.sectionID, exam.SectionReading, answersBody(t, f.passageID, answers))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if score != 3 {
		t.Fatalf("score = %d, want 3", score)
	}
}

func TestResubmissionReplacesAnswers(t *testing.T) {
	s := newTestStore(t)
	f := buildReadingFixture(t, s)
	userID := seedUser(t, s, "erin", "student")
	ctx := context.Background()

	// Wrong single-choice answer first.
	score, err := s.SubmitAnswers(ctx, userID, f.sectionID, exam.SectionReading,
		answersBody(t, f.passageID, map[int64]any{f.single: []string{"a"}}))
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if score != 0 {
		t.Fatalf("score after wrong answer = %d, want 0", score)
	}

	// Correct it. The old rows must be gone, not merged.
	score, err = s.SubmitAnswers(ctx, userID, f.sectionID, exam.SectionReading,
		answersBody(t, f.passageID, map[int64]any{f.single: []string{"b"}}))
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if score != 1 {
		t.Fatalf("score after correction = %d, want 1", score)
	}
}

func TestScoringCoversWholeSection(t *testing.T) {
	s := newTestStore(t)
	f := buildReadingFixture(t, s)
	userID := seedUser(t, s, "frank", "student")
	ctx := context.Background()

	if _, err := s.SubmitAnswers(ctx, userID, f.sectionID, exam.SectionReading,
		answersBody(t, f.passageID, map[int64]any{f.single: []string{"b"}})); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	// A later submission touching only the multi question still scores the
	// earlier single-choice answer.
	score, err := s.SubmitAnswers(ctx, userID, f.sectionID, exam.SectionReading,
		answersBody(t, f.passageID, map[int64]any{f.multi: []string{"a", "c"}}))
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if score != 2 {
		t.Fatalf("score = %d, want 2", score)
	}
}

func TestSubmitAnswersIdempotent(t *testing.T) {
	s := newTestStore(t)
	f := buildReadingFixture(t, s)
	userID := seedUser(t, s, "grace", "student")
	ctx := context.Background()

	body := answersBody(t, f.passageID, f.correctAnswers())
	first, err := s.SubmitAnswers(ctx, userID, f.sectionID, exam.SectionReading, body)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := s.SubmitAnswers(ctx, userID, f.sectionID, exam.SectionReading, body)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if first != second {
		t.Fatalf("resubmitting identical answers changed score: %d then %d", first, second)
	}
}

func TestSingleAnswerWeightStaysOne(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// prose_summary and table with one correct answer are worth 1, not 2.
	sec, err := s.CreateReadingSection(ctx, "Light", []exam.PassageInput{{
		Title:   "P",
		Content: "C",
		Questions: []exam.QuestionInput{
			{
				Type:    exam.TypeProseSummary,
				Prompt:  "Pick one.",
				Options: []string{"x", "y"},
				Correct: []string{"x"},
			},
			{
				Type:         exam.TypeTable,
				Prompt:       "Pick one cell.",
				Rows:         []string{"r"},
				Columns:      []string{"c1", "c2"},
				CorrectCells: []exam.CellInput{{Row: "r", Column: "c2"}},
			},
		},
	}})
	if err != nil {
		t.Fatalf("create section: %v", err)
	}
	_, passages, err := s.ReadingSection(ctx, sec.ID)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	qs := passages[0].Questions
	userID := seedUser(t, s, "heidi", "student")

	score, err := s.SubmitAnswers(ctx, userID, sec.ID, exam.SectionReading,
		answersBody(t, passages[0].ID, map[int64]any{
			qs[0].ID: []string{"a"},
			qs[1].ID: map[string]map[string]bool{"0": {"1": true}},
		}))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if score != 2 {
		t.Fatalf("score = %d, want 2", score)
	}
}

func TestSubmitAnswersValidation(t *testing.T) {
	s := newTestStore(t)
	f := buildReadingFixture(t, s)
	userID := seedUser(t, s, "ivan", "student")
	ctx := context.Background()

	cases := []struct {
		name string
		body []byte
		want error
	}{
		{"not an object", []byte(`[]`), exam.ErrMalformedPayload},
		{"missing answers key", []byte(`{"data":{}}`), exam.ErrMalformedPayload},
		{"non-numeric container key", []byte(`{"answers":{"p1":{}}}`), exam.ErrMalformedPayload},
		{"container list not mapping", []byte(`{"answers":{"1":[1,2]}}`), exam.ErrMalformedPayload},
		{"unknown container", answersBody(t, 9999, map[int64]any{f.single: []string{"a"}}), exam.ErrContainerNotInSection},
		{"foreign question", answersBody(t, f.passageID, map[int64]any{9999: []string{"a"}}), exam.ErrQuestionNotInContainer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.SubmitAnswers(ctx, userID, f.sectionID, exam.SectionReading, tc.body)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}

	// Validation failures must not leave rows behind.
	score, err := s.SectionScore(ctx, userID, f.sectionID, exam.SectionReading)
	if err != nil {
		t.Fatalf("section score: %v", err)
	}
	if score != 0 {
		t.Fatalf("score after rejected submissions = %d, want 0", score)
	}
}

func TestSubmitAnswersWrongSectionType(t *testing.T) {
	s := newTestStore(t)
	f := buildReadingFixture(t, s)
	userID := seedUser(t, s, "judy", "student")

	_, err := s.SubmitAnswers(context.Background(), userID, f.sectionID, exam.SectionListening,
		answersBody(t, f.passageID, map[int64]any{f.single: []string{"b"}}))
	if !errors.Is(err, exam.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

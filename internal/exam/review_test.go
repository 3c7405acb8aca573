package exam_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/lingopeak/exam-backend/internal/exam"
)

// fakeBlob is an in-memory storage.BlobStore.
type fakeBlob struct {
	objects map[string][]byte
	deleted []string
}

func newFakeBlob() *fakeBlob { return &fakeBlob{objects: map[string][]byte{}} }

func (b *fakeBlob) Put(key string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.objects[key] = data
	return key, nil
}

func (b *fakeBlob) Get(key string) (io.ReadCloser, error) {
	data, ok := b.objects[key]
	if !ok {
		return nil, errors.New("no such blob: " + key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *fakeBlob) Delete(key string) error {
	delete(b.objects, key)
	b.deleted = append(b.deleted, key)
	return nil
}

func buildSpeakingFixture(t *testing.T, s *exam.Store) (sectionID int64, tasks []exam.SpeakingTask) {
	t.Helper()
	ctx := context.Background()
	sec, err := s.CreateSpeakingSection(ctx, "Fixture Speaking", []exam.TaskInput{
		{TaskNumber: 1, Prompt: "Describe your hometown."},
		{TaskNumber: 2, Prompt: "Summarize the lecture.", Passage: "Campus notice."},
	})
	if err != nil {
		t.Fatalf("create speaking section: %v", err)
	}
	tasks, err = s.SpeakingTasks(ctx, sec.ID)
	if err != nil {
		t.Fatalf("read tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("fixture shape: %d tasks", len(tasks))
	}
	return sec.ID, tasks
}

func buildWritingFixture(t *testing.T, s *exam.Store) (sectionID int64, tasks []exam.WritingTask) {
	t.Helper()
	ctx := context.Background()
	sec, err := s.CreateWritingSection(ctx, "Fixture Writing", []exam.TaskInput{
		{TaskNumber: 1, Passage: "Reading passage.", Prompt: "Integrated essay."},
		{TaskNumber: 2, Passage: "", Prompt: "Independent essay."},
	})
	if err != nil {
		t.Fatalf("create writing section: %v", err)
	}
	tasks, err = s.WritingTasks(ctx, sec.ID)
	if err != nil {
		t.Fatalf("read tasks: %v", err)
	}
	return sec.ID, tasks
}

func recordings(data string, taskNumbers ...int) map[int]exam.Recording {
	out := map[int]exam.Recording{}
	for _, n := range taskNumbers {
		out[n] = exam.Recording{Name: "take.webm", Data: strings.NewReader(data)}
	}
	return out
}

func TestSubmitSpeakingRequiresEveryTask(t *testing.T) {
	s := newTestStore(t)
	sectionID, _ := buildSpeakingFixture(t, s)
	studentID := seedUser(t, s, "alice", "student")
	bs := newFakeBlob()

	err := s.SubmitSpeaking(context.Background(), bs, studentID, sectionID, recordings("audio", 1))
	if !errors.Is(err, exam.ErrMissingRecording) {
		t.Fatalf("got %v, want ErrMissingRecording", err)
	}
	if len(bs.objects) != 0 {
		t.Fatalf("rejected submission stored %d blobs", len(bs.objects))
	}
}

func TestSubmitSpeakingReplacesPriorRecording(t *testing.T) {
	s := newTestStore(t)
	sectionID, _ := buildSpeakingFixture(t, s)
	studentID := seedUser(t, s, "bob", "student")
	bs := newFakeBlob()
	ctx := context.Background()

	if err := s.SubmitSpeaking(ctx, bs, studentID, sectionID, recordings("take one", 1, 2)); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if len(bs.objects) != 2 {
		t.Fatalf("stored %d blobs, want 2", len(bs.objects))
	}

	if err := s.SubmitSpeaking(ctx, bs, studentID, sectionID, recordings("take two", 1, 2)); err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if len(bs.objects) != 2 {
		t.Fatalf("after resubmit: %d blobs, want 2", len(bs.objects))
	}
	if len(bs.deleted) != 2 {
		t.Fatalf("old recordings deleted: %d, want 2", len(bs.deleted))
	}

	// Review rows point at the surviving blobs.
	review, err := s.SpeakingReview(ctx, studentID, sectionID)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	for _, tr := range review {
		if tr.ResponseID == 0 || tr.AudioURL == "" {
			t.Fatalf("task %d has no response after resubmit: %+v", tr.TaskNumber, tr)
		}
		key := strings.TrimPrefix(tr.AudioURL, "/assets/")
		if _, ok := bs.objects[key]; !ok {
			t.Fatalf("review references deleted blob %q", key)
		}
	}
}

func TestSubmitWritingRequiresEveryEssay(t *testing.T) {
	s := newTestStore(t)
	sectionID, _ := buildWritingFixture(t, s)
	studentID := seedUser(t, s, "carol", "student")

	err := s.SubmitWriting(context.Background(), studentID, sectionID, map[int]string{1: "essay one", 2: "   "})
	if !errors.Is(err, exam.ErrMissingEssay) {
		t.Fatalf("got %v, want ErrMissingEssay", err)
	}
}

func TestWritingReviewRoundTrip(t *testing.T) {
	s := newTestStore(t)
	sectionID, tasks := buildWritingFixture(t, s)
	studentID := seedUser(t, s, "dave", "student")
	reviewerID := seedUser(t, s, "rev", "reviewer")
	ctx := context.Background()

	if err := s.SubmitWriting(ctx, studentID, sectionID, map[int]string{1: "first essay", 2: "second essay"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Ungraded: responses present, scores nil.
	review, err := s.WritingReview(ctx, studentID, sectionID)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if len(review) != 2 {
		t.Fatalf("review rows = %d, want 2", len(review))
	}
	for _, tr := range review {
		if tr.EssayText == "" {
			t.Fatalf("task %d: essay missing", tr.TaskNumber)
		}
		if tr.Score != nil || tr.Feedback != nil {
			t.Fatalf("task %d graded before review: %+v", tr.TaskNumber, tr)
		}
	}

	items := []exam.ReviewItem{
		{TaskID: tasks[0].ID, Score: 4, Feedback: "Good structure."},
		{TaskID: tasks[1].ID, Score: 3.5, Feedback: "Develop the second point."},
	}
	if err := s.SubmitWritingReview(ctx, reviewerID, studentID, sectionID, items); err != nil {
		t.Fatalf("submit review: %v", err)
	}

	review, err = s.WritingReview(ctx, studentID, sectionID)
	if err != nil {
		t.Fatalf("review after grading: %v", err)
	}
	if review[0].Score == nil || *review[0].Score != 4 {
		t.Fatalf("task 1 score = %v, want 4", review[0].Score)
	}
	if review[1].Feedback == nil || *review[1].Feedback != "Develop the second point." {
		t.Fatalf("task 2 feedback = %v", review[1].Feedback)
	}
}

func TestReviewUpsertsScore(t *testing.T) {
	s := newTestStore(t)
	sectionID, tasks := buildWritingFixture(t, s)
	studentID := seedUser(t, s, "erin", "student")
	reviewerID := seedUser(t, s, "rev", "reviewer")
	ctx := context.Background()

	if err := s.SubmitWriting(ctx, studentID, sectionID, map[int]string{1: "a", 2: "b"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	grade := func(score float64) {
		t.Helper()
		items := []exam.ReviewItem{
			{TaskID: tasks[0].ID, Score: score, Feedback: "pass one"},
			{TaskID: tasks[1].ID, Score: score, Feedback: "pass one"},
		}
		if err := s.SubmitWritingReview(ctx, reviewerID, studentID, sectionID, items); err != nil {
			t.Fatalf("review: %v", err)
		}
	}
	grade(2)
	grade(5)

	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM scores`).Scan(&n); err != nil {
		t.Fatalf("count scores: %v", err)
	}
	if n != 2 {
		t.Fatalf("score rows = %d, want 2 (one per response)", n)
	}
	review, err := s.WritingReview(ctx, studentID, sectionID)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if review[0].Score == nil || *review[0].Score != 5 {
		t.Fatalf("score not updated: %v", review[0].Score)
	}
}

func TestReviewBatchValidation(t *testing.T) {
	s := newTestStore(t)
	sectionID, tasks := buildWritingFixture(t, s)
	studentID := seedUser(t, s, "frank", "student")
	reviewerID := seedUser(t, s, "rev", "reviewer")
	ctx := context.Background()

	if err := s.SubmitWriting(ctx, studentID, sectionID, map[int]string{1: "a", 2: "b"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	cases := []struct {
		name  string
		items []exam.ReviewItem
		want  error
	}{
		{
			"missing task",
			[]exam.ReviewItem{{TaskID: tasks[0].ID, Score: 3, Feedback: "ok"}},
			exam.ErrIncompleteReview,
		},
		{
			"foreign task id",
			[]exam.ReviewItem{
				{TaskID: tasks[0].ID, Score: 3, Feedback: "ok"},
				{TaskID: 9999, Score: 3, Feedback: "ok"},
			},
			exam.ErrIncompleteReview,
		},
		{
			"score above range",
			[]exam.ReviewItem{
				{TaskID: tasks[0].ID, Score: 11, Feedback: "ok"},
				{TaskID: tasks[1].ID, Score: 3, Feedback: "ok"},
			},
			exam.ErrScoreOutOfRange,
		},
		{
			"negative score",
			[]exam.ReviewItem{
				{TaskID: tasks[0].ID, Score: -1, Feedback: "ok"},
				{TaskID: tasks[1].ID, Score: 3, Feedback: "ok"},
			},
			exam.ErrScoreOutOfRange,
		},
		{
			"blank feedback",
			[]exam.ReviewItem{
				{TaskID: tasks[0].ID, Score: 3, Feedback: "  "},
				{TaskID: tasks[1].ID, Score: 3, Feedback: "ok"},
			},
			exam.ErrEmptyFeedback,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.SubmitWritingReview(ctx, reviewerID, studentID, sectionID, tc.items)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}

	// No score row may survive a rejected batch.
	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM scores`).Scan(&n); err != nil {
		t.Fatalf("count scores: %v", err)
	}
	if n != 0 {
		t.Fatalf("rejected batches wrote %d score rows", n)
	}
}

func TestReviewRequiresResponses(t *testing.T) {
	s := newTestStore(t)
	sectionID, tasks := buildWritingFixture(t, s)
	studentID := seedUser(t, s, "grace", "student")
	reviewerID := seedUser(t, s, "rev", "reviewer")

	items := []exam.ReviewItem{
		{TaskID: tasks[0].ID, Score: 3, Feedback: "ok"},
		{TaskID: tasks[1].ID, Score: 3, Feedback: "ok"},
	}
	err := s.SubmitWritingReview(context.Background(), reviewerID, studentID, sectionID, items)
	if !errors.Is(err, exam.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

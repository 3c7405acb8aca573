package exam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lingopeak/exam-backend/internal/storage"
)

func (s *Store) SpeakingTasks(ctx context.Context, sectionID int64) ([]SpeakingTask, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, section_id, task_number, COALESCE(passage,''), prompt, COALESCE(audio_url,'')
		 FROM speaking_tasks WHERE section_id=$1 ORDER BY task_number`, sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SpeakingTask
	for rows.Next() {
		var t SpeakingTask
		if err := rows.Scan(&t.ID, &t.SectionID, &t.TaskNumber, &t.Passage, &t.Prompt, &t.AudioURL); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) WritingTasks(ctx context.Context, sectionID int64) ([]WritingTask, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, section_id, task_number, passage, prompt, COALESCE(audio_url,'')
		 FROM writing_tasks WHERE section_id=$1 ORDER BY task_number`, sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WritingTask
	for rows.Next() {
		var t WritingTask
		if err := rows.Scan(&t.ID, &t.SectionID, &t.TaskNumber, &t.Passage, &t.Prompt, &t.AudioURL); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Recording is one uploaded audio file from a speaking submission.
type Recording struct {
	Name string
	Data io.Reader
}

// SubmitSpeaking stores one recording per task of the section. Every task
// must be covered or nothing is written. Each task is replaced in its own
// transaction (per-task sequential, not section-atomic); removal of the
// prior blob is best-effort and never fails the request.
func (s *Store) SubmitSpeaking(ctx context.Context, bs storage.BlobStore, userID, sectionID int64, recordings map[int]Recording) error {
	if err := s.requireSectionType(ctx, sectionID, SectionSpeaking); err != nil {
		return err
	}
	tasks, err := s.SpeakingTasks(ctx, sectionID)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return fmt.Errorf("section %d has no speaking tasks: %w", sectionID, ErrNotFound)
	}
	for _, t := range tasks {
		if _, ok := recordings[t.TaskNumber]; !ok {
			return fmt.Errorf("task %d: %w", t.TaskNumber, ErrMissingRecording)
		}
	}

	for _, t := range tasks {
		rec := recordings[t.TaskNumber]
		key := "speaking_responses/" + uuid.NewString() + path.Ext(rec.Name)
		if _, err := bs.Put(key, rec.Data); err != nil {
			return fmt.Errorf("store recording for task %d: %w", t.TaskNumber, err)
		}
		oldKey, err := s.replaceResponse(ctx,
			`SELECT audio_key FROM speaking_responses WHERE user_id=$1 AND task_id=$2`,
			`DELETE FROM speaking_responses WHERE user_id=$1 AND task_id=$2`,
			`INSERT INTO speaking_responses (user_id, task_id, audio_key, submitted_at) VALUES ($1, $2, $3, $4)`,
			userID, t.ID, key)
		if err != nil {
			return err
		}
		if oldKey != "" {
			_ = bs.Delete(oldKey)
		}
	}
	return nil
}

// SubmitWriting stores one essay per task of the section, replace-on-submit.
func (s *Store) SubmitWriting(ctx context.Context, userID, sectionID int64, essays map[int]string) error {
	if err := s.requireSectionType(ctx, sectionID, SectionWriting); err != nil {
		return err
	}
	tasks, err := s.WritingTasks(ctx, sectionID)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return fmt.Errorf("section %d has no writing tasks: %w", sectionID, ErrNotFound)
	}
	for _, t := range tasks {
		if strings.TrimSpace(essays[t.TaskNumber]) == "" {
			return fmt.Errorf("task %d: %w", t.TaskNumber, ErrMissingEssay)
		}
	}

	for _, t := range tasks {
		if _, err := s.replaceResponse(ctx,
			`SELECT essay_text FROM writing_responses WHERE user_id=$1 AND task_id=$2`,
			`DELETE FROM writing_responses WHERE user_id=$1 AND task_id=$2`,
			`INSERT INTO writing_responses (user_id, task_id, essay_text, submitted_at) VALUES ($1, $2, $3, $4)`,
			userID, t.ID, essays[t.TaskNumber]); err != nil {
			return err
		}
	}
	return nil
}

// replaceResponse deletes the prior (user, task) response and inserts the
// new payload within one transaction, returning the replaced stored value.
func (s *Store) replaceResponse(ctx context.Context, selectQ, deleteQ, insertQ string, userID, taskID int64, payload string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var old string
	err = tx.QueryRowContext(ctx, selectQ, userID, taskID).Scan(&old)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, deleteQ, userID, taskID); err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, insertQ, userID, taskID, payload, time.Now().Unix()); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return old, nil
}

// SpeakingReview joins each task to the student's response and its score.
func (s *Store) SpeakingReview(ctx context.Context, userID, sectionID int64) ([]TaskReview, error) {
	if err := s.requireSectionType(ctx, sectionID, SectionSpeaking); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.task_number, COALESCE(r.id, 0), COALESCE(r.audio_key, ''), sc.score, sc.feedback
		 FROM speaking_tasks t
		 LEFT JOIN speaking_responses r ON r.task_id = t.id AND r.user_id = $1
		 LEFT JOIN scores sc ON sc.response_id = r.id AND sc.response_type = $2
		 WHERE t.section_id = $3
		 ORDER BY t.task_number`, userID, ResponseSpeaking, sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TaskReview
	for rows.Next() {
		var tr TaskReview
		var key string
		var score sql.NullFloat64
		var feedback sql.NullString
		if err := rows.Scan(&tr.TaskID, &tr.TaskNumber, &tr.ResponseID, &key, &score, &feedback); err != nil {
			return nil, err
		}
		if key != "" {
			tr.AudioURL = "/assets/" + key
		}
		if score.Valid {
			tr.Score = &score.Float64
		}
		if feedback.Valid {
			tr.Feedback = &feedback.String
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// WritingReview is the writing-side counterpart of SpeakingReview.
func (s *Store) WritingReview(ctx context.Context, userID, sectionID int64) ([]TaskReview, error) {
	if err := s.requireSectionType(ctx, sectionID, SectionWriting); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.task_number, COALESCE(r.id, 0), COALESCE(r.essay_text, ''), sc.score, sc.feedback
		 FROM writing_tasks t
		 LEFT JOIN writing_responses r ON r.task_id = t.id AND r.user_id = $1
		 LEFT JOIN scores sc ON sc.response_id = r.id AND sc.response_type = $2
		 WHERE t.section_id = $3
		 ORDER BY t.task_number`, userID, ResponseWriting, sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TaskReview
	for rows.Next() {
		var tr TaskReview
		var score sql.NullFloat64
		var feedback sql.NullString
		if err := rows.Scan(&tr.TaskID, &tr.TaskNumber, &tr.ResponseID, &tr.EssayText, &score, &feedback); err != nil {
			return nil, err
		}
		if score.Valid {
			tr.Score = &score.Float64
		}
		if feedback.Valid {
			tr.Feedback = &feedback.String
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// ReviewItem is one reviewer-submitted grade.
type ReviewItem struct {
	TaskID   int64   `json:"task_id"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// SubmitSpeakingReview upserts one score per response of the reviewed
// student. The batch is validated in full before any write: the submitted
// task-id set must exactly equal the section's task set, scores must lie in
// [0,10] and feedback must be non-empty.
func (s *Store) SubmitSpeakingReview(ctx context.Context, reviewerID, studentID, sectionID int64, items []ReviewItem) error {
	if err := s.requireSectionType(ctx, sectionID, SectionSpeaking); err != nil {
		return err
	}
	tasks, err := s.SpeakingTasks(ctx, sectionID)
	if err != nil {
		return err
	}
	taskIDs := make([]int64, len(tasks))
	for i, t := range tasks {
		taskIDs[i] = t.ID
	}
	if err := validateReviewBatch(taskIDs, items); err != nil {
		return err
	}
	return s.applyReview(ctx, reviewerID, studentID, items, ResponseSpeaking,
		`SELECT id FROM speaking_responses WHERE user_id=$1 AND task_id=$2`)
}

// SubmitWritingReview is the writing-side counterpart of SubmitSpeakingReview.
func (s *Store) SubmitWritingReview(ctx context.Context, reviewerID, studentID, sectionID int64, items []ReviewItem) error {
	if err := s.requireSectionType(ctx, sectionID, SectionWriting); err != nil {
		return err
	}
	tasks, err := s.WritingTasks(ctx, sectionID)
	if err != nil {
		return err
	}
	taskIDs := make([]int64, len(tasks))
	for i, t := range tasks {
		taskIDs[i] = t.ID
	}
	if err := validateReviewBatch(taskIDs, items); err != nil {
		return err
	}
	return s.applyReview(ctx, reviewerID, studentID, items, ResponseWriting,
		`SELECT id FROM writing_responses WHERE user_id=$1 AND task_id=$2`)
}

func validateReviewBatch(taskIDs []int64, items []ReviewItem) error {
	submitted := make([]int64, 0, len(items))
	for _, it := range items {
		submitted = append(submitted, it.TaskID)
	}
	sort.Slice(submitted, func(i, j int) bool { return submitted[i] < submitted[j] })
	want := append([]int64(nil), taskIDs...)
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	if len(submitted) != len(want) {
		return fmt.Errorf("%d of %d tasks reviewed: %w", len(submitted), len(want), ErrIncompleteReview)
	}
	for i := range want {
		if submitted[i] != want[i] {
			return fmt.Errorf("task %d missing from review: %w", want[i], ErrIncompleteReview)
		}
	}
	for _, it := range items {
		if it.Score < 0 || it.Score > 10 {
			return fmt.Errorf("task %d: score %v: %w", it.TaskID, it.Score, ErrScoreOutOfRange)
		}
		if strings.TrimSpace(it.Feedback) == "" {
			return fmt.Errorf("task %d: %w", it.TaskID, ErrEmptyFeedback)
		}
	}
	return nil
}

func (s *Store) applyReview(ctx context.Context, reviewerID, studentID int64, items []ReviewItem, rtype ResponseType, findResponseQ string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, it := range items {
		var responseID int64
		err := tx.QueryRowContext(ctx, findResponseQ, studentID, it.TaskID).Scan(&responseID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("no response for task %d from user %d: %w", it.TaskID, studentID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		ref, err := NewScoreRef(responseID, rtype)
		if err != nil {
			return err
		}
		if err := upsertScore(ctx, tx, ref, it.Score, it.Feedback, reviewerID, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// upsertScore updates the existing score for the response or inserts one.
func upsertScore(ctx context.Context, tx *sql.Tx, ref ScoreRef, score float64, feedback string, reviewerID, now int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE scores SET score=$1, feedback=$2, scored_by=$3, scored_at=$4
		 WHERE response_id=$5 AND response_type=$6`,
		score, feedback, reviewerID, now, ref.ResponseID, ref.ResponseType)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO scores (response_id, response_type, score, feedback, scored_by, scored_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			ref.ResponseID, ref.ResponseType, score, feedback, reviewerID, now)
	}
	return err
}

func (s *Store) requireSectionType(ctx context.Context, sectionID int64, sectionType string) error {
	sec, err := s.Section(ctx, sectionID)
	if err != nil {
		return err
	}
	if sec.SectionType != sectionType {
		return fmt.Errorf("section %d is %s, not %s: %w", sectionID, sec.SectionType, sectionType, ErrNotFound)
	}
	return nil
}

package exam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Store is the SQL-backed view over exam content and submission state.
// Mutating operations open one transaction per request and commit only
// after every step succeeds.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// DB exposes the handle for wiring (auth handlers share the pool).
func (s *Store) DB() *sql.DB { return s.db }

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) Section(ctx context.Context, id int64) (Section, error) {
	var sec Section
	err := s.db.QueryRowContext(ctx,
		`SELECT id, section_type, title, created_at FROM sections WHERE id=$1`, id,
	).Scan(&sec.ID, &sec.SectionType, &sec.Title, &sec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Section{}, fmt.Errorf("section %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Section{}, err
	}
	return sec, nil
}

func (s *Store) ListSections(ctx context.Context) ([]Section, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, section_type, title, created_at FROM sections ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Section
	for rows.Next() {
		var sec Section
		if err := rows.Scan(&sec.ID, &sec.SectionType, &sec.Title, &sec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}

// containerQuestions returns, for each container (passage or audio) of the
// section, the set of question ids it owns. Used by the submission
// validator before any mutation.
func (s *Store) containerQuestions(ctx context.Context, sectionID int64, sectionType string) (map[int64]map[int64]bool, error) {
	var q string
	switch sectionType {
	case SectionReading:
		q = `SELECT p.id, qu.id FROM reading_passages p
		     LEFT JOIN questions qu ON qu.reading_passage_id = p.id
		     WHERE p.section_id = $1`
	case SectionListening:
		q = `SELECT a.id, qu.id FROM listening_audios a
		     LEFT JOIN questions qu ON qu.listening_audio_id = a.id
		     WHERE a.section_id = $1`
	default:
		return nil, fmt.Errorf("section type %q has no gradable containers: %w", sectionType, ErrMalformedPayload)
	}
	rows, err := s.db.QueryContext(ctx, q, sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int64]map[int64]bool{}
	for rows.Next() {
		var containerID int64
		var questionID sql.NullInt64
		if err := rows.Scan(&containerID, &questionID); err != nil {
			return nil, err
		}
		if out[containerID] == nil {
			out[containerID] = map[int64]bool{}
		}
		if questionID.Valid {
			out[containerID][questionID.Int64] = true
		}
	}
	return out, rows.Err()
}

// questionMeta carries what the codec and grader need: the question type
// and its option/row/column identities in persisted-position order.
type questionMeta struct {
	ID        int64
	Type      string
	OptionIDs []int64
	RowIDs    []int64
	ColIDs    []int64
}

func (s *Store) questionMeta(ctx context.Context, questionID int64) (questionMeta, error) {
	m := questionMeta{ID: questionID}
	err := s.db.QueryRowContext(ctx,
		`SELECT qtype FROM questions WHERE id=$1`, questionID,
	).Scan(&m.Type)
	if errors.Is(err, sql.ErrNoRows) {
		return m, fmt.Errorf("question %d: %w", questionID, ErrNotFound)
	}
	if err != nil {
		return m, err
	}
	if m.OptionIDs, err = s.orderedIDs(ctx, "options", questionID); err != nil {
		return m, err
	}
	if m.Type == TypeTable {
		if m.RowIDs, err = s.orderedIDs(ctx, "table_question_rows", questionID); err != nil {
			return m, err
		}
		if m.ColIDs, err = s.orderedIDs(ctx, "table_question_columns", questionID); err != nil {
			return m, err
		}
	}
	return m, nil
}

func (s *Store) orderedIDs(ctx context.Context, table string, questionID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM `+table+` WHERE question_id=$1 ORDER BY position`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// sectionQuestion is one gradable question of a section.
type sectionQuestion struct {
	ID   int64
	Type string
}

// sectionQuestions lists every question of the section via its containers.
// Scoring always runs over this full set, not just the questions present
// in one submission.
func (s *Store) sectionQuestions(ctx context.Context, sectionID int64, sectionType string) ([]sectionQuestion, error) {
	var q string
	switch sectionType {
	case SectionReading:
		q = `SELECT qu.id, qu.qtype FROM questions qu
		     JOIN reading_passages p ON qu.reading_passage_id = p.id
		     WHERE p.section_id = $1 ORDER BY qu.id`
	case SectionListening:
		q = `SELECT qu.id, qu.qtype FROM questions qu
		     JOIN listening_audios a ON qu.listening_audio_id = a.id
		     WHERE a.section_id = $1 ORDER BY qu.id`
	default:
		return nil, fmt.Errorf("section type %q is not auto-scored: %w", sectionType, ErrMalformedPayload)
	}
	rows, err := s.db.QueryContext(ctx, q, sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []sectionQuestion
	for rows.Next() {
		var sq sectionQuestion
		if err := rows.Scan(&sq.ID, &sq.Type); err != nil {
			return nil, err
		}
		out = append(out, sq)
	}
	return out, rows.Err()
}

// AnswerKey returns the correctness shape for a question: option ids for
// non-table types, (row, column) pairs for tables. Read-only.
func (s *Store) AnswerKey(ctx context.Context, questionID int64) (AnswerKey, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM questions WHERE id=$1`, questionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return AnswerKey{}, fmt.Errorf("question %d: %w", questionID, ErrNotFound)
	}
	if err != nil {
		return AnswerKey{}, err
	}
	return scanAnswerSet(ctx, s.db,
		`SELECT option_id, table_row_id, table_column_id FROM correct_answers WHERE question_id=$1`,
		questionID)
}

// userAnswerSet reads the student's recorded answer identities for one
// question, shaped like an AnswerKey for set comparison.
func userAnswerSet(ctx context.Context, q querier, userID, questionID int64) (AnswerKey, error) {
	return scanAnswerSet(ctx, q,
		`SELECT option_id, table_row_id, table_column_id FROM user_answers WHERE user_id=$1 AND question_id=$2`,
		userID, questionID)
}

func scanAnswerSet(ctx context.Context, q querier, query string, args ...any) (AnswerKey, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return AnswerKey{}, err
	}
	defer rows.Close()
	var key AnswerKey
	for rows.Next() {
		var opt, row, col sql.NullInt64
		if err := rows.Scan(&opt, &row, &col); err != nil {
			return AnswerKey{}, err
		}
		switch {
		case opt.Valid:
			key.OptionIDs = append(key.OptionIDs, opt.Int64)
		case row.Valid && col.Valid:
			key.Pairs = append(key.Pairs, CellPair{RowID: row.Int64, ColumnID: col.Int64})
		}
	}
	return key, rows.Err()
}

// replaceUserAnswers deletes all prior rows for (user, question) and
// inserts the decoded set. Zero rows is valid ("no answer").
func replaceUserAnswers(ctx context.Context, tx *sql.Tx, userID, questionID int64, ans decodedAnswer) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM user_answers WHERE user_id=$1 AND question_id=$2`, userID, questionID); err != nil {
		return err
	}
	for _, optID := range ans.OptionIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_answers (user_id, question_id, option_id) VALUES ($1, $2, $3)`,
			userID, questionID, optID); err != nil {
			return err
		}
	}
	for _, p := range ans.Pairs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_answers (user_id, question_id, table_row_id, table_column_id) VALUES ($1, $2, $3, $4)`,
			userID, questionID, p.RowID, p.ColumnID); err != nil {
			return err
		}
	}
	return nil
}

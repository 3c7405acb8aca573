package exam

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Authoring inputs. Correct answers reference options by text and table
// cells by row/column label; unknown references are skipped, matching the
// authoring tolerance of the admin frontend.

type CellInput struct {
	Row    string `json:"row"`
	Column string `json:"column"`
}

type QuestionInput struct {
	Type         string      `json:"type"`
	Prompt       string      `json:"prompt"`
	Options      []string    `json:"options,omitempty"`
	Correct      []string    `json:"correct,omitempty"`
	Rows         []string    `json:"rows,omitempty"`
	Columns      []string    `json:"columns,omitempty"`
	CorrectCells []CellInput `json:"correct_cells,omitempty"`
}

type PassageInput struct {
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Questions []QuestionInput `json:"questions,omitempty"`
}

type AudioInput struct {
	Title     string          `json:"title"`
	AudioURL  string          `json:"-"`
	PhotoURL  string          `json:"-"`
	Questions []QuestionInput `json:"questions,omitempty"`
}

type TaskInput struct {
	TaskNumber int    `json:"task_number"`
	Passage    string `json:"passage,omitempty"`
	Prompt     string `json:"prompt"`
	AudioURL   string `json:"-"`
}

func (s *Store) CreateReadingSection(ctx context.Context, title string, passages []PassageInput) (Section, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Section{}, err
	}
	defer tx.Rollback()

	sec, err := insertSection(ctx, tx, SectionReading, title)
	if err != nil {
		return Section{}, err
	}
	for _, p := range passages {
		var passageID int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO reading_passages (section_id, title, content) VALUES ($1, $2, $3) RETURNING id`,
			sec.ID, p.Title, p.Content).Scan(&passageID)
		if err != nil {
			return Section{}, err
		}
		for _, q := range p.Questions {
			if err := createQuestion(ctx, tx, SectionReading, q, &passageID, nil); err != nil {
				return Section{}, err
			}
		}
	}
	return sec, tx.Commit()
}

func (s *Store) CreateListeningSection(ctx context.Context, title string, audios []AudioInput) (Section, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Section{}, err
	}
	defer tx.Rollback()

	sec, err := insertSection(ctx, tx, SectionListening, title)
	if err != nil {
		return Section{}, err
	}
	for _, a := range audios {
		var audioID int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO listening_audios (section_id, title, audio_url, photo_url) VALUES ($1, $2, $3, $4) RETURNING id`,
			sec.ID, a.Title, a.AudioURL, nullIfEmpty(a.PhotoURL)).Scan(&audioID)
		if err != nil {
			return Section{}, err
		}
		for _, q := range a.Questions {
			if err := createQuestion(ctx, tx, SectionListening, q, nil, &audioID); err != nil {
				return Section{}, err
			}
		}
	}
	return sec, tx.Commit()
}

func (s *Store) CreateSpeakingSection(ctx context.Context, title string, tasks []TaskInput) (Section, error) {
	return s.createTaskSection(ctx, SectionSpeaking, title, tasks,
		`INSERT INTO speaking_tasks (section_id, task_number, passage, prompt, audio_url) VALUES ($1, $2, $3, $4, $5)`)
}

func (s *Store) CreateWritingSection(ctx context.Context, title string, tasks []TaskInput) (Section, error) {
	return s.createTaskSection(ctx, SectionWriting, title, tasks,
		`INSERT INTO writing_tasks (section_id, task_number, passage, prompt, audio_url) VALUES ($1, $2, $3, $4, $5)`)
}

func (s *Store) createTaskSection(ctx context.Context, sectionType, title string, tasks []TaskInput, insertQ string) (Section, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Section{}, err
	}
	defer tx.Rollback()

	sec, err := insertSection(ctx, tx, sectionType, title)
	if err != nil {
		return Section{}, err
	}
	for _, t := range tasks {
		if _, err := tx.ExecContext(ctx, insertQ,
			sec.ID, t.TaskNumber, t.Passage, t.Prompt, nullIfEmpty(t.AudioURL)); err != nil {
			return Section{}, err
		}
	}
	return sec, tx.Commit()
}

func (s *Store) DeleteSection(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sections WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("section %d: %w", id, ErrNotFound)
	}
	return nil
}

func insertSection(ctx context.Context, tx *sql.Tx, sectionType, title string) (Section, error) {
	sec := Section{SectionType: sectionType, Title: title, CreatedAt: time.Now().Unix()}
	err := tx.QueryRowContext(ctx,
		`INSERT INTO sections (section_type, title, created_at) VALUES ($1, $2, $3) RETURNING id`,
		sectionType, title, sec.CreatedAt).Scan(&sec.ID)
	return sec, err
}

// createQuestion persists the question, its options or table rows/columns
// with creation-order positions, and its correct answers. Exactly one of
// passageID/audioID is set, per the question's section type.
func createQuestion(ctx context.Context, tx *sql.Tx, sectionType string, in QuestionInput, passageID, audioID *int64) error {
	var questionID int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO questions (section_type, qtype, prompt, reading_passage_id, listening_audio_id)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		sectionType, in.Type, in.Prompt, passageID, audioID).Scan(&questionID)
	if err != nil {
		return err
	}

	if in.Type == TypeTable {
		rowIDs := map[string]int64{}
		for i, label := range in.Rows {
			var id int64
			if err := tx.QueryRowContext(ctx,
				`INSERT INTO table_question_rows (question_id, row_label, position) VALUES ($1, $2, $3) RETURNING id`,
				questionID, label, i).Scan(&id); err != nil {
				return err
			}
			rowIDs[label] = id
		}
		colIDs := map[string]int64{}
		for i, label := range in.Columns {
			var id int64
			if err := tx.QueryRowContext(ctx,
				`INSERT INTO table_question_columns (question_id, column_label, position) VALUES ($1, $2, $3) RETURNING id`,
				questionID, label, i).Scan(&id); err != nil {
				return err
			}
			colIDs[label] = id
		}
		for _, c := range in.CorrectCells {
			rowID, okR := rowIDs[c.Row]
			colID, okC := colIDs[c.Column]
			if !okR || !okC {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO correct_answers (question_id, table_row_id, table_column_id) VALUES ($1, $2, $3)`,
				questionID, rowID, colID); err != nil {
				return err
			}
		}
		return nil
	}

	optIDs := map[string]int64{}
	for i, text := range in.Options {
		var id int64
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO options (question_id, option_text, position) VALUES ($1, $2, $3) RETURNING id`,
			questionID, text, i).Scan(&id); err != nil {
			return err
		}
		optIDs[text] = id
	}
	for _, text := range in.Correct {
		optID, ok := optIDs[text]
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO correct_answers (question_id, option_id) VALUES ($1, $2)`,
			questionID, optID); err != nil {
			return err
		}
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ReadingSection returns the section with its passages and questions.
// Answer keys are never included in content reads.
func (s *Store) ReadingSection(ctx context.Context, sectionID int64) (Section, []ReadingPassage, error) {
	sec, err := s.Section(ctx, sectionID)
	if err != nil {
		return Section{}, nil, err
	}
	if sec.SectionType != SectionReading {
		return Section{}, nil, fmt.Errorf("section %d is %s, not reading: %w", sectionID, sec.SectionType, ErrNotFound)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, section_id, title, content FROM reading_passages WHERE section_id=$1 ORDER BY id`, sectionID)
	if err != nil {
		return Section{}, nil, err
	}
	defer rows.Close()
	var passages []ReadingPassage
	for rows.Next() {
		var p ReadingPassage
		if err := rows.Scan(&p.ID, &p.SectionID, &p.Title, &p.Content); err != nil {
			return Section{}, nil, err
		}
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return Section{}, nil, err
	}
	for i := range passages {
		qs, err := s.containerQuestionDetails(ctx, "reading_passage_id", passages[i].ID)
		if err != nil {
			return Section{}, nil, err
		}
		passages[i].Questions = qs
	}
	return sec, passages, nil
}

// ListeningSection returns the section with its audios and questions.
func (s *Store) ListeningSection(ctx context.Context, sectionID int64) (Section, []ListeningAudio, error) {
	sec, err := s.Section(ctx, sectionID)
	if err != nil {
		return Section{}, nil, err
	}
	if sec.SectionType != SectionListening {
		return Section{}, nil, fmt.Errorf("section %d is %s, not listening: %w", sectionID, sec.SectionType, ErrNotFound)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, section_id, title, audio_url, COALESCE(photo_url,'') FROM listening_audios WHERE section_id=$1 ORDER BY id`, sectionID)
	if err != nil {
		return Section{}, nil, err
	}
	defer rows.Close()
	var audios []ListeningAudio
	for rows.Next() {
		var a ListeningAudio
		if err := rows.Scan(&a.ID, &a.SectionID, &a.Title, &a.AudioURL, &a.PhotoURL); err != nil {
			return Section{}, nil, err
		}
		audios = append(audios, a)
	}
	if err := rows.Err(); err != nil {
		return Section{}, nil, err
	}
	for i := range audios {
		qs, err := s.containerQuestionDetails(ctx, "listening_audio_id", audios[i].ID)
		if err != nil {
			return Section{}, nil, err
		}
		audios[i].Questions = qs
	}
	return sec, audios, nil
}

func (s *Store) containerQuestionDetails(ctx context.Context, fkColumn string, containerID int64) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, section_type, qtype, prompt FROM questions WHERE `+fkColumn+`=$1 ORDER BY id`, containerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.SectionType, &q.Type, &q.Prompt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range questions {
		q := &questions[i]
		if q.Type == TypeTable {
			if q.Rows, q.Columns, err = s.tableLabels(ctx, q.ID); err != nil {
				return nil, err
			}
			continue
		}
		opts, err := s.questionOptions(ctx, q.ID)
		if err != nil {
			return nil, err
		}
		q.Options = opts
	}
	return questions, nil
}

func (s *Store) questionOptions(ctx context.Context, questionID int64) ([]Option, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question_id, option_text, position FROM options WHERE question_id=$1 ORDER BY position`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Option
	for rows.Next() {
		var o Option
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.Text, &o.Position); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) tableLabels(ctx context.Context, questionID int64) ([]TableRow, []TableColumn, error) {
	rrows, err := s.db.QueryContext(ctx,
		`SELECT id, question_id, row_label, position FROM table_question_rows WHERE question_id=$1 ORDER BY position`, questionID)
	if err != nil {
		return nil, nil, err
	}
	defer rrows.Close()
	var tr []TableRow
	for rrows.Next() {
		var r TableRow
		if err := rrows.Scan(&r.ID, &r.QuestionID, &r.Label, &r.Position); err != nil {
			return nil, nil, err
		}
		tr = append(tr, r)
	}
	if err := rrows.Err(); err != nil {
		return nil, nil, err
	}

	crows, err := s.db.QueryContext(ctx,
		`SELECT id, question_id, column_label, position FROM table_question_columns WHERE question_id=$1 ORDER BY position`, questionID)
	if err != nil {
		return nil, nil, err
	}
	defer crows.Close()
	var tc []TableColumn
	for crows.Next() {
		var c TableColumn
		if err := crows.Scan(&c.ID, &c.QuestionID, &c.Label, &c.Position); err != nil {
			return nil, nil, err
		}
		tc = append(tc, c)
	}
	return tr, tc, crows.Err()
}

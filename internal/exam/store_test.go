package exam_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/lingopeak/exam-backend/internal/db"
	"github.com/lingopeak/exam-backend/internal/exam"
)

func newTestStore(t *testing.T) *exam.Store {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbh, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return exam.NewStore(dbh)
}

func seedUser(t *testing.T, s *exam.Store, username, role string) int64 {
	t.Helper()
	var id int64
	err := s.DB().QueryRow(
		`INSERT INTO users (username, email, password_hash, role, created_at)
		 VALUES ($1, $2, 'x', $3, $4) RETURNING id`,
		username, username+"@test.local", role, time.Now().Unix()).Scan(&id)
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return id
}

// answersBody builds the submission envelope for a single container.
func answersBody(t *testing.T, containerID int64, answers map[int64]any) []byte {
	t.Helper()
	qs := map[string]any{}
	for id, tokens := range answers {
		qs[fmt.Sprint(id)] = tokens
	}
	body, err := json.Marshal(map[string]any{
		"answers": map[string]any{fmt.Sprint(containerID): qs},
	})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return body
}

// readingFixture is one reading section with a single passage holding four
// questions: single choice, multi choice, prose summary (3 correct) and a
// 2x3 table (3 correct cells). Max score 1+1+2+2 = 6.
type readingFixture struct {
	sectionID int64
	passageID int64
	single    int64 // correct: "b"
	multi     int64 // correct: "a", "c"
	prose     int64 // correct: "a", "c", "e"
	table     int64 // correct: (0,0), (0,2), (1,2)
}

func buildReadingFixture(t *testing.T, s *exam.Store) readingFixture {
	t.Helper()
	ctx := context.Background()

	sec, err := s.CreateReadingSection(ctx, "Fixture Reading", []exam.PassageInput{{
		Title:   "Planets",
		Content: "About planets.",
		Questions: []exam.QuestionInput{
			{
				Type:    exam.TypeMultipleToSingle,
				Prompt:  "Closest to the sun?",
				Options: []string{"Venus", "Mercury", "Mars", "Jupiter"},
				Correct: []string{"Mercury"},
			},
			{
				Type:    exam.TypeMultipleToMultiple,
				Prompt:  "Rocky planets?",
				Options: []string{"Mercury", "Jupiter", "Venus", "Saturn"},
				Correct: []string{"Mercury", "Venus"},
			},
			{
				Type:    exam.TypeProseSummary,
				Prompt:  "Main ideas?",
				Options: []string{"s1", "s2", "s3", "s4", "s5", "s6"},
				Correct: []string{"s1", "s3", "s5"},
			},
			{
				Type:    exam.TypeTable,
				Prompt:  "Classify each planet.",
				Rows:    []string{"Mercury", "Venus"},
				Columns: []string{"Hot", "Cold", "Rocky"},
				CorrectCells: []exam.CellInput{
					{Row: "Mercury", Column: "Hot"},
					{Row: "Mercury", Column: "Rocky"},
					{Row: "Venus", Column: "Rocky"},
				},
			},
		},
	}})
	if err != nil {
		t.Fatalf("create reading section: %v", err)
	}

	_, passages, err := s.ReadingSection(ctx, sec.ID)
	if err != nil {
		t.Fatalf("read back section: %v", err)
	}
	if len(passages) != 1 || len(passages[0].Questions) != 4 {
		t.Fatalf("fixture shape: %d passages", len(passages))
	}
	qs := passages[0].Questions
	return readingFixture{
		sectionID: sec.ID,
		passageID: passages[0].ID,
		single:    qs[0].ID,
		multi:     qs[1].ID,
		prose:     qs[2].ID,
		table:     qs[3].ID,
	}
}

// correctAnswers is the full-marks submission for the fixture.
func (f readingFixture) correctAnswers() map[int64]any {
	return map[int64]any{
		f.single: []string{"b"},
		f.multi:  []string{"a", "c"},
		f.prose:  []string{"a", "c", "e"},
		f.table: map[string]map[string]bool{
			"0": {"0": true, "2": true},
			"1": {"2": true},
		},
	}
}

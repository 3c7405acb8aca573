package exam

import "fmt"

// Section types.
const (
	SectionReading   = "reading"
	SectionListening = "listening"
	SectionSpeaking  = "speaking"
	SectionWriting   = "writing"
)

// Question types.
const (
	TypeMultipleToSingle   = "multiple_to_single"
	TypeMultipleToMultiple = "multiple_to_multiple"
	TypeInsertText         = "insert_text"
	TypeAudio              = "audio"
	TypeProseSummary       = "prose_summary"
	TypeTable              = "table"
)

type Section struct {
	ID          int64  `json:"id"`
	SectionType string `json:"section_type"`
	Title       string `json:"title"`
	CreatedAt   int64  `json:"created_at,omitempty"`
}

type ReadingPassage struct {
	ID        int64      `json:"id"`
	SectionID int64      `json:"section_id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Questions []Question `json:"questions,omitempty"`
}

type ListeningAudio struct {
	ID        int64      `json:"id"`
	SectionID int64      `json:"section_id"`
	Title     string     `json:"title"`
	AudioURL  string     `json:"audio_url"`
	PhotoURL  string     `json:"photo_url,omitempty"`
	Questions []Question `json:"questions,omitempty"`
}

type SpeakingTask struct {
	ID         int64  `json:"id"`
	SectionID  int64  `json:"section_id"`
	TaskNumber int    `json:"task_number"`
	Passage    string `json:"passage,omitempty"`
	Prompt     string `json:"prompt"`
	AudioURL   string `json:"audio_url,omitempty"`
}

type WritingTask struct {
	ID         int64  `json:"id"`
	SectionID  int64  `json:"section_id"`
	TaskNumber int    `json:"task_number"`
	Passage    string `json:"passage"`
	Prompt     string `json:"prompt"`
	AudioURL   string `json:"audio_url,omitempty"`
}

// Question belongs to exactly one container: a reading passage or a
// listening audio, depending on its section type.
type Question struct {
	ID               int64         `json:"id"`
	SectionType      string        `json:"section_type"`
	Type             string        `json:"type"`
	Prompt           string        `json:"prompt"`
	ReadingPassageID *int64        `json:"reading_passage_id,omitempty"`
	ListeningAudioID *int64        `json:"listening_audio_id,omitempty"`
	Options          []Option      `json:"options,omitempty"`
	Rows             []TableRow    `json:"rows,omitempty"`
	Columns          []TableColumn `json:"columns,omitempty"`
}

// Option position is assigned at creation and is the public contract for
// letter/index answer decoding. Never reordered after creation.
type Option struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"option_text"`
	Position   int    `json:"position"`
}

type TableRow struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Label      string `json:"row_label"`
	Position   int    `json:"position"`
}

type TableColumn struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Label      string `json:"column_label"`
	Position   int    `json:"position"`
}

// CellPair is one selected (row, column) cell of a table question.
type CellPair struct {
	RowID    int64 `json:"row_id"`
	ColumnID int64 `json:"column_id"`
}

// AnswerKey is the read-only correctness shape of one question: either a
// set of option ids or a set of (row, column) pairs, never both.
type AnswerKey struct {
	OptionIDs []int64
	Pairs     []CellPair
}

// CorrectCount is the cardinality of the key set.
func (k AnswerKey) CorrectCount() int {
	if len(k.Pairs) > 0 {
		return len(k.Pairs)
	}
	return len(k.OptionIDs)
}

// ResponseType tags the target of a Score.
type ResponseType string

const (
	ResponseSpeaking ResponseType = "speaking"
	ResponseWriting  ResponseType = "writing"
)

// ScoreRef is a validated polymorphic reference to a reviewed response.
type ScoreRef struct {
	ResponseID   int64
	ResponseType ResponseType
}

func NewScoreRef(responseID int64, t ResponseType) (ScoreRef, error) {
	switch t {
	case ResponseSpeaking, ResponseWriting:
		return ScoreRef{ResponseID: responseID, ResponseType: t}, nil
	default:
		return ScoreRef{}, fmt.Errorf("invalid response type %q", t)
	}
}

type Score struct {
	ID           int64        `json:"id"`
	ResponseID   int64        `json:"response_id"`
	ResponseType ResponseType `json:"response_type"`
	Score        float64      `json:"score"`
	Feedback     string       `json:"feedback"`
	ScoredBy     int64        `json:"scored_by"`
	ScoredAt     int64        `json:"scored_at"`
}

type SpeakingResponse struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	TaskID      int64  `json:"task_id"`
	AudioKey    string `json:"audio_key"`
	SubmittedAt int64  `json:"submitted_at"`
}

type WritingResponse struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	TaskID      int64  `json:"task_id"`
	EssayText   string `json:"essay_text"`
	SubmittedAt int64  `json:"submitted_at"`
}

// TaskReview is one row of the review read-back: a task joined to the
// student's response and its (at most one) score. Score and Feedback are
// nil while ungraded.
type TaskReview struct {
	TaskID     int64    `json:"task_id"`
	TaskNumber int      `json:"task_number"`
	ResponseID int64    `json:"response_id"`
	AudioURL   string   `json:"audio_url,omitempty"`
	EssayText  string   `json:"essay_text,omitempty"`
	Score      *float64 `json:"score"`
	Feedback   *string  `json:"feedback"`
}

package exam_test

import (
	"errors"
	"testing"

	"github.com/lingopeak/exam-backend/internal/exam"
)

func TestDecodeOptionTokens(t *testing.T) {
	optionIDs := []int64{101, 102, 103, 104}

	cases := []struct {
		name   string
		tokens []string
		want   []int64
	}{
		{"letters", []string{"a", "c"}, []int64{101, 103}},
		{"uppercase letters", []string{"B", "D"}, []int64{102, 104}},
		{"numeric indexes", []string{"0", "3"}, []int64{101, 104}},
		{"mixed letter and index", []string{"b", "2"}, []int64{102, 103}},
		{"whitespace tolerated", []string{" a ", "1"}, []int64{101, 102}},
		{"empty selection", nil, []int64{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := exam.DecodeOptionTokens(tc.tokens, optionIDs)
			if err != nil {
				t.Fatalf("decode %v: %v", tc.tokens, err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestDecodeOptionTokensErrors(t *testing.T) {
	optionIDs := []int64{101, 102, 103}

	cases := []struct {
		name  string
		token string
		want  error
	}{
		{"letter past last option", "z", exam.ErrInvalidAnswerToken},
		{"index past last option", "9", exam.ErrInvalidAnswerToken},
		{"negative index", "-1", exam.ErrInvalidAnswerToken},
		{"multi-letter token", "ab", exam.ErrInvalidAnswerFormat},
		{"empty token", "", exam.ErrInvalidAnswerFormat},
		{"garbage token", "first", exam.ErrInvalidAnswerFormat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := exam.DecodeOptionTokens([]string{tc.token}, optionIDs)
			if !errors.Is(err, tc.want) {
				t.Fatalf("token %q: got %v, want %v", tc.token, err, tc.want)
			}
		})
	}
}

func TestDecodeTableSelection(t *testing.T) {
	rowIDs := []int64{11, 12}
	colIDs := []int64{21, 22, 23}

	sel := map[string]map[string]bool{
		"1": {"0": true, "2": true},
		"0": {"1": true, "2": false},
	}
	got, err := exam.DecodeTableSelection(sel, rowIDs, colIDs)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []exam.CellPair{
		{RowID: 11, ColumnID: 22},
		{RowID: 12, ColumnID: 21},
		{RowID: 12, ColumnID: 23},
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestDecodeTableSelectionErrors(t *testing.T) {
	rowIDs := []int64{11, 12}
	colIDs := []int64{21, 22}

	if _, err := exam.DecodeTableSelection(map[string]map[string]bool{"x": {"0": true}}, rowIDs, colIDs); !errors.Is(err, exam.ErrInvalidAnswerFormat) {
		t.Fatalf("non-numeric row index: got %v, want ErrInvalidAnswerFormat", err)
	}
	if _, err := exam.DecodeTableSelection(map[string]map[string]bool{"5": {"0": true}}, rowIDs, colIDs); !errors.Is(err, exam.ErrInvalidAnswerToken) {
		t.Fatalf("row index out of range: got %v, want ErrInvalidAnswerToken", err)
	}
	if _, err := exam.DecodeTableSelection(map[string]map[string]bool{"0": {"7": true}}, rowIDs, colIDs); !errors.Is(err, exam.ErrInvalidAnswerToken) {
		t.Fatalf("column index out of range: got %v, want ErrInvalidAnswerToken", err)
	}
}

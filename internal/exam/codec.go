package exam

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// The codec turns client answer encodings into canonical identities.
// Clients address options and table cells positionally (letter or 0-based
// index), so creation-order positions are a stable public contract.

// DecodeOptionTokens maps an ordered sequence of tokens to option ids.
// Each token is a single letter ("a" -> position 0, case-insensitive) or a
// numeric string index. optionIDs must be sorted by persisted position.
func DecodeOptionTokens(tokens []string, optionIDs []int64) ([]int64, error) {
	out := make([]int64, 0, len(tokens))
	for _, tok := range tokens {
		idx, err := tokenIndex(tok)
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(optionIDs) {
			return nil, fmt.Errorf("token %q resolves outside %d options: %w", tok, len(optionIDs), ErrInvalidAnswerToken)
		}
		out = append(out, optionIDs[idx])
	}
	return out, nil
}

func tokenIndex(tok string) (int, error) {
	t := strings.TrimSpace(strings.ToLower(tok))
	if len(t) == 1 && t[0] >= 'a' && t[0] <= 'z' {
		return int(t[0] - 'a'), nil
	}
	if n, err := strconv.Atoi(t); err == nil {
		return n, nil
	}
	return 0, fmt.Errorf("token %q is neither a letter nor an index: %w", tok, ErrInvalidAnswerFormat)
}

// DecodeTableSelection maps {"<row_idx>": {"<col_idx>": selected}} to
// (row, column) identity pairs, one per true flag. rowIDs and colIDs must
// be sorted by persisted position. Output is ordered for determinism.
func DecodeTableSelection(sel map[string]map[string]bool, rowIDs, colIDs []int64) ([]CellPair, error) {
	out := make([]CellPair, 0, len(sel))
	for rowIdx, cols := range sel {
		ri, err := positionIndex(rowIdx, len(rowIDs), "row")
		if err != nil {
			return nil, err
		}
		for colIdx, selected := range cols {
			ci, err := positionIndex(colIdx, len(colIDs), "column")
			if err != nil {
				return nil, err
			}
			if selected {
				out = append(out, CellPair{RowID: rowIDs[ri], ColumnID: colIDs[ci]})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RowID != out[j].RowID {
			return out[i].RowID < out[j].RowID
		}
		return out[i].ColumnID < out[j].ColumnID
	})
	return out, nil
}

func positionIndex(s string, n int, kind string) (int, error) {
	idx, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%s index %q is not numeric: %w", kind, s, ErrInvalidAnswerFormat)
	}
	if idx < 0 || idx >= n {
		return 0, fmt.Errorf("%s index %d out of range [0,%d): %w", kind, idx, n, ErrInvalidAnswerToken)
	}
	return idx, nil
}

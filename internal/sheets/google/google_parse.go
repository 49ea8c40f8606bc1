package google

import (
	"fmt"
	"strconv"
	"strings"
)

// rowOf finds the 1-based row whose first cell equals id. Values come back
// from the API as strings or float64 depending on the render option.
func rowOf(values [][]any, id int64) int {
	want := strconv.FormatInt(id, 10)
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		cell := strings.TrimSpace(fmt.Sprint(row[0]))
		if cell == want {
			return i + 1
		}
		if f, err := strconv.ParseFloat(cell, 64); err == nil && f == float64(id) {
			return i + 1
		}
	}
	return 0
}

// column extracts the non-empty, non-comment cells of column idx, deduped in
// first-seen order.
func column(values [][]any, idx int) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, row := range values {
		if idx >= len(row) {
			continue
		}
		v := strings.TrimSpace(fmt.Sprint(row[idx]))
		if v == "" || strings.HasPrefix(v, "#") {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

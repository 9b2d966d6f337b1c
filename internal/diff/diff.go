package diff

import (
	"strings"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/srt"
)

// SplitLines splits text into lines after unifying line endings. A trailing
// newline does not produce an empty final line.
func SplitLines(text string) []string {
	text = srt.NormalizeNewlines(text)
	if text == "" {
		return []string{}
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

// lcsTable returns table where table[i][j] is the LCS length of prev[i:] and cur[j:].
func lcsTable(prev, cur []string) [][]int {
	m, n := len(prev), len(cur)
	table := make([][]int, m+1)
	for i := range table {
		table[i] = make([]int, n+1)
	}

	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			switch {
			case prev[i] == cur[j]:
				table[i][j] = table[i+1][j+1] + 1
			case table[i+1][j] >= table[i][j+1]:
				table[i][j] = table[i+1][j]
			default:
				table[i][j] = table[i][j+1]
			}
		}
	}
	return table
}

// Stats returns the number of lines added and removed going from prev to cur.
func Stats(prev, cur []string) (added, removed int) {
	common := lcsTable(prev, cur)[0][0]
	added = len(cur) - common
	removed = len(prev) - common
	if added < 0 {
		added = 0
	}
	if removed < 0 {
		removed = 0
	}
	return added, removed
}

// Unified renders a line diff with "--- labelPrev" and "+++ labelCur" headers.
// Body lines are prefixed with ' ', '+' or '-'. When inserting and deleting
// are equally good the insertion is emitted first.
func Unified(prev, cur []string, labelPrev, labelCur string) string {
	table := lcsTable(prev, cur)

	var b strings.Builder
	b.WriteString("--- " + labelPrev + "\n")
	b.WriteString("+++ " + labelCur + "\n")

	i, j := 0, 0
	for i < len(prev) || j < len(cur) {
		switch {
		case i < len(prev) && j < len(cur) && prev[i] == cur[j]:
			b.WriteString(" " + prev[i] + "\n")
			i++
			j++
		case j < len(cur) && (i >= len(prev) || table[i][j+1] >= table[i+1][j]):
			b.WriteString("+" + cur[j] + "\n")
			j++
		default:
			b.WriteString("-" + prev[i] + "\n")
			i++
		}
	}

	return b.String()
}

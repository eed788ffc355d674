package depth

import (
	"fmt"
	"io"
	"strings"
)

// dumpThreshold is the sample count above which Dump summarizes with "...".
const dumpThreshold = 1000

const dumpEdge = 3

// Dump writes the samples as a bracketed matrix with the given number of
// decimals. Large images show only the first and last rows and columns.
func Dump(w io.Writer, m *Image, precision int) error {
	summarize := m.Width*m.Height > dumpThreshold
	rows := visible(m.Height, summarize)
	cols := visible(m.Width, summarize)

	cells := make([][]string, len(rows))
	width := 0
	for i, y := range rows {
		if y < 0 {
			continue
		}
		cells[i] = make([]string, len(cols))
		for j, x := range cols {
			if x < 0 {
				cells[i][j] = "..."
				continue
			}
			s := fmt.Sprintf("%.*f", precision, m.At(x, y))
			cells[i][j] = s
			width = max(width, len(s))
		}
	}

	var b strings.Builder
	b.WriteString("[")
	for i, y := range rows {
		if i > 0 {
			b.WriteString("\n ")
		}
		if y < 0 {
			b.WriteString("...")
			continue
		}
		b.WriteString("[")
		for j, c := range cells[i] {
			if j > 0 {
				b.WriteString(" ")
			}
			b.WriteString(fmt.Sprintf("%*s", width, c))
		}
		b.WriteString("]")
	}
	b.WriteString("]\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// visible lists indices to print; -1 marks an elided gap.
func visible(n int, summarize bool) []int {
	if !summarize || n <= 2*dumpEdge {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, 0, 2*dumpEdge+1)
	for i := range dumpEdge {
		out = append(out, i)
	}
	out = append(out, -1)
	for i := n - dumpEdge; i < n; i++ {
		out = append(out, i)
	}
	return out
}

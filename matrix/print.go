package matrix

import (
	"fmt"
	"io"
)

// Print writes m to w in the "name = { ... }" form printed by the client's
// --show-data output.
func Print(w io.Writer, m Matrix, name string) {
	fmt.Fprintf(w, "%s = {\n", name)
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Columns; j++ {
			fmt.Fprintf(w, "%v ", m.At(i, j))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, "}")
}

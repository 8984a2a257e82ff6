// Package matrix implements the dense row-major matrix type shared by the
// client, the worker and the wire codec.
package matrix

import (
	"fmt"
	"math/rand"
)

// Matrix is a dense row-major block of float64 scalars.
type Matrix struct {
	Rows, Columns int
	Data          []float64
}

// New allocates a zeroed rows x columns matrix.
func New(rows, columns int) Matrix {
	return Matrix{Rows: rows, Columns: columns, Data: make([]float64, rows*columns)}
}

// FromData wraps an existing row-major slice. len(data) must equal rows*columns.
func FromData(data []float64, rows, columns int) Matrix {
	if len(data) != rows*columns {
		panic(fmt.Sprintf("matrix: data length %d does not match %dx%d", len(data), rows, columns))
	}
	return Matrix{Rows: rows, Columns: columns, Data: data}
}

// Empty reports whether the matrix has no rows (equivalently no columns).
func (m Matrix) Empty() bool {
	return m.Rows == 0
}

// At returns the element at (i, j).
func (m Matrix) At(i, j int) float64 {
	return m.Data[i*m.Columns+j]
}

// Set assigns the element at (i, j).
func (m Matrix) Set(i, j int, v float64) {
	m.Data[i*m.Columns+j] = v
}

// Row returns the i-th row as a slice sharing storage with m.
func (m Matrix) Row(i int) []float64 {
	return m.Data[i*m.Columns : (i+1)*m.Columns]
}

// RowsSubrange returns a new matrix holding rows [first, last) of m, copying
// the underlying data.
func (m Matrix) RowsSubrange(first, last int) Matrix {
	sz := last - first
	out := New(sz, m.Columns)
	copy(out.Data, m.Data[first*m.Columns:last*m.Columns])
	return out
}

// Equal reports whether m and other have identical shape and contents.
func (m Matrix) Equal(other Matrix) bool {
	if m.Rows != other.Rows || m.Columns != other.Columns {
		return false
	}
	for i := range m.Data {
		if m.Data[i] != other.Data[i] {
			return false
		}
	}
	return true
}

// Add returns m + other. Panics if shapes differ.
func (m Matrix) Add(other Matrix) Matrix {
	if m.Rows != other.Rows || m.Columns != other.Columns {
		panic("matrix: incompatible shapes for addition")
	}
	out := New(m.Rows, m.Columns)
	for i := range m.Data {
		out.Data[i] = m.Data[i] + other.Data[i]
	}
	return out
}

// Mul returns m * other. Panics if m.Columns != other.Rows.
func (m Matrix) Mul(other Matrix) Matrix {
	if m.Columns != other.Rows {
		panic("matrix: incompatible shapes for multiplication")
	}
	out := New(m.Rows, other.Columns)
	for i := 0; i < m.Rows; i++ {
		for k := 0; k < m.Columns; k++ {
			a := m.At(i, k)
			if a == 0 {
				continue
			}
			for j := 0; j < other.Columns; j++ {
				out.Data[i*out.Columns+j] += a * other.At(k, j)
			}
		}
	}
	return out
}

// Transpose returns a new matrix holding the transposed copy of m.
func (m Matrix) Transpose() Matrix {
	out := New(m.Columns, m.Rows)
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Columns; j++ {
			out.Set(j, i, m.At(i, j))
		}
	}
	return out
}

// MulT computes A * transpose(B), i.e. out[i,j] = sum_k A[i,k]*B[j,k],
// operating directly on B's already-transposed row layout without
// re-materializing a non-transposed B.
func MulT(a, b Matrix) Matrix {
	if a.Columns != b.Columns {
		panic("matrix: incompatible shapes for MulT")
	}
	out := New(a.Rows, b.Rows)
	for i := 0; i < a.Rows; i++ {
		arow := a.Row(i)
		for j := 0; j < b.Rows; j++ {
			brow := b.Row(j)
			var sum float64
			for k := 0; k < a.Columns; k++ {
				sum += arow[k] * brow[k]
			}
			out.Set(i, j, sum)
		}
	}
	return out
}

// Random returns a rows x columns matrix of independent integer-valued
// entries in [-100, 100]. A nil rnd uses the shared global source.
func Random(rows, columns int, rnd *rand.Rand) Matrix {
	intn := rand.Intn
	if rnd != nil {
		intn = rnd.Intn
	}
	out := New(rows, columns)
	for i := range out.Data {
		out.Data[i] = float64(intn(201) - 100)
	}
	return out
}

// Package ops implements the client-side operation drivers: Echo, Adder and
// Multiplier. Each holds a protocol.Protocol and follows the same template:
// start every worker, offload each worker's row slice, then wait for and
// reassemble the results in row-splitter order, independent of response
// arrival order.
package ops

import (
	"fmt"

	"dhm/matrix"
	"dhm/protocol"
	"dhm/splitter"
	"dhm/wire"
)

// startOp maps a driver's operation to the tag handed to Start. The
// encryption proxy performs the Add→HAdd and Mul→HMul remap itself, so the
// driver always signals the plaintext kind and lets the protocol decide
// which form travels on the wire.
func startOp(op wire.Op) wire.Op {
	switch op {
	case wire.OpHAdd:
		return wire.OpAdd
	case wire.OpHMul:
		return wire.OpMul
	}
	return op
}

func startAll(p protocol.Protocol, op wire.Op) error {
	for i := 0; i < p.WorkerCount(); i++ {
		if err := p.Start(i, op); err != nil {
			return fmt.Errorf("ops: start worker %d: %w", i, err)
		}
	}
	return nil
}

func waitAll(p protocol.Protocol, split splitter.Splitter, rows, columns int) (matrix.Matrix, error) {
	out := matrix.New(rows, columns)
	for i := 0; i < p.WorkerCount(); i++ {
		r := split.Range(i)
		chunk, err := p.WaitResult(i)
		if err != nil {
			return matrix.Matrix{}, fmt.Errorf("ops: wait result from worker %d: %w", i, err)
		}
		if chunk.Rows != r.Size() || chunk.Columns != columns {
			return matrix.Matrix{}, fmt.Errorf("ops: worker %d returned shape %dx%d, want %dx%d",
				i, chunk.Rows, chunk.Columns, r.Size(), columns)
		}
		copy(out.Data[r.First*columns:r.Last*columns], chunk.Data)
	}
	return out, nil
}

// Echo offloads each worker's row slice and expects it back unchanged.
type Echo struct {
	protocol protocol.Protocol
}

// NewEcho builds an Echo driver over p.
func NewEcho(p protocol.Protocol) *Echo {
	return &Echo{protocol: p}
}

// Echo runs the echo operation over a, returning the reassembled matrix.
func (e *Echo) Echo(a matrix.Matrix) (matrix.Matrix, error) {
	n := e.protocol.WorkerCount()
	if n <= 0 {
		return matrix.Matrix{}, fmt.Errorf("ops: no workers")
	}

	split := splitter.New(a.Rows, n)
	if err := startAll(e.protocol, wire.OpEcho); err != nil {
		return matrix.Matrix{}, err
	}
	for i := 0; i < n; i++ {
		r := split.Range(i)
		if err := e.protocol.OffloadMatrix(i, a.RowsSubrange(r.First, r.Last)); err != nil {
			return matrix.Matrix{}, fmt.Errorf("ops: offload worker %d: %w", i, err)
		}
	}
	return waitAll(e.protocol, split, a.Rows, a.Columns)
}

// Adder adds two equal-shaped matrices, plaintext (wire.OpAdd) or
// homomorphic (wire.OpHAdd) depending on the op it was constructed with.
type Adder struct {
	protocol protocol.Protocol
	op       wire.Op
}

// NewAdder builds an Adder driver over p for op (OpAdd or OpHAdd).
func NewAdder(p protocol.Protocol, op wire.Op) *Adder {
	return &Adder{protocol: p, op: op}
}

// Add runs the addition operation over a and b, returning a+b.
func (a2 *Adder) Add(a, b matrix.Matrix) (matrix.Matrix, error) {
	if a.Rows != b.Rows || a.Columns != b.Columns {
		return matrix.Matrix{}, fmt.Errorf("ops: add requires matching shapes, got %dx%d and %dx%d",
			a.Rows, a.Columns, b.Rows, b.Columns)
	}
	n := a2.protocol.WorkerCount()
	if n <= 0 {
		return matrix.Matrix{}, fmt.Errorf("ops: no workers")
	}

	split := splitter.New(a.Rows, n)
	if err := startAll(a2.protocol, startOp(a2.op)); err != nil {
		return matrix.Matrix{}, err
	}
	for i := 0; i < n; i++ {
		r := split.Range(i)
		if err := a2.protocol.OffloadMatrix(i, a.RowsSubrange(r.First, r.Last)); err != nil {
			return matrix.Matrix{}, fmt.Errorf("ops: offload A to worker %d: %w", i, err)
		}
		if err := a2.protocol.OffloadMatrix(i, b.RowsSubrange(r.First, r.Last)); err != nil {
			return matrix.Matrix{}, fmt.Errorf("ops: offload B to worker %d: %w", i, err)
		}
	}
	return waitAll(a2.protocol, split, a.Rows, a.Columns)
}

// Multiplier multiplies A (p x q) by B (q x r), plaintext (wire.OpMul) or
// homomorphic (wire.OpHMul) depending on the op it was constructed with.
type Multiplier struct {
	protocol protocol.Protocol
	op       wire.Op
}

// NewMultiplier builds a Multiplier driver over p for op (OpMul or OpHMul).
func NewMultiplier(p protocol.Protocol, op wire.Op) *Multiplier {
	return &Multiplier{protocol: p, op: op}
}

// Multiply runs the multiplication operation over a and b, returning a*b.
// For wire.OpHMul, a and b must additionally both be square with equal
// side; non-square homomorphic multiply is rejected here, at the driver
// boundary, before any I/O.
func (m *Multiplier) Multiply(a, b matrix.Matrix) (matrix.Matrix, error) {
	if a.Columns != b.Rows {
		return matrix.Matrix{}, fmt.Errorf("ops: mul requires A.columns == B.rows, got %d and %d",
			a.Columns, b.Rows)
	}
	if m.op == wire.OpHMul && (a.Rows != a.Columns || b.Rows != b.Columns) {
		return matrix.Matrix{}, fmt.Errorf("ops: hmul requires square matrices, got %dx%d and %dx%d",
			a.Rows, a.Columns, b.Rows, b.Columns)
	}

	n := m.protocol.WorkerCount()
	if n <= 0 {
		return matrix.Matrix{}, fmt.Errorf("ops: no workers")
	}

	bt := b.Transpose()
	split := splitter.New(a.Rows, n)
	if err := startAll(m.protocol, startOp(m.op)); err != nil {
		return matrix.Matrix{}, err
	}
	for i := 0; i < n; i++ {
		r := split.Range(i)
		if err := m.protocol.OffloadMatrix(i, a.RowsSubrange(r.First, r.Last)); err != nil {
			return matrix.Matrix{}, fmt.Errorf("ops: offload A to worker %d: %w", i, err)
		}
		// bt is sent whole to every worker, not sliced: each worker needs
		// every column of B (as a row of bt) to compute its row slice of A*B.
		if err := m.protocol.OffloadMatrix(i, bt); err != nil {
			return matrix.Matrix{}, fmt.Errorf("ops: offload B^T to worker %d: %w", i, err)
		}
	}
	return waitAll(m.protocol, split, a.Rows, b.Columns)
}

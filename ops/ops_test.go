package ops

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhm/matrix"
	"dhm/wire"
)

// fakeProtocol is an in-memory Protocol double. Each worker has its own
// pending-row buffer so OffloadMatrix calls accumulate until a test handler
// (set per test) produces the WaitResult response.
type fakeProtocol struct {
	started  []wire.Op
	offloads [][]matrix.Matrix
	handler  func(worker int, op wire.Op, offloaded []matrix.Matrix) (matrix.Matrix, error)
}

func newFakeProtocol(n int, handler func(int, wire.Op, []matrix.Matrix) (matrix.Matrix, error)) *fakeProtocol {
	return &fakeProtocol{
		started:  make([]wire.Op, n),
		offloads: make([][]matrix.Matrix, n),
		handler:  handler,
	}
}

func (f *fakeProtocol) AddWorker(addr string) error { return nil }
func (f *fakeProtocol) WorkerCount() int            { return len(f.started) }

func (f *fakeProtocol) Start(i int, op wire.Op) error {
	f.started[i] = op
	return nil
}

func (f *fakeProtocol) Offload(i int, data []float64, rows, columns int) error {
	return f.OffloadMatrix(i, matrix.FromData(append([]float64(nil), data...), rows, columns))
}

func (f *fakeProtocol) OffloadMatrix(i int, m matrix.Matrix) error {
	f.offloads[i] = append(f.offloads[i], m)
	return nil
}

func (f *fakeProtocol) WaitResult(i int) (matrix.Matrix, error) {
	return f.handler(i, f.started[i], f.offloads[i])
}

func (f *fakeProtocol) SendRaw(i int, data []byte) error   { return nil }
func (f *fakeProtocol) ReceiveRaw(i int, buf []byte) error { return nil }

func TestEchoReassemblesInOrder(t *testing.T) {
	p := newFakeProtocol(3, func(worker int, op wire.Op, offloaded []matrix.Matrix) (matrix.Matrix, error) {
		require.Equal(t, wire.OpEcho, op)
		require.Len(t, offloaded, 1)
		return offloaded[0], nil
	})

	a := matrix.Random(11, 4, nil)
	got, err := NewEcho(p).Echo(a)
	require.NoError(t, err)
	assert.True(t, got.Equal(a))
}

func TestAdderSendsBothOperandSlicesAndSumsLocally(t *testing.T) {
	p := newFakeProtocol(2, func(worker int, op wire.Op, offloaded []matrix.Matrix) (matrix.Matrix, error) {
		require.Equal(t, wire.OpAdd, op)
		require.Len(t, offloaded, 2)
		return offloaded[0].Add(offloaded[1]), nil
	})

	a := matrix.Random(6, 3, nil)
	b := matrix.Random(6, 3, nil)
	got, err := NewAdder(p, wire.OpAdd).Add(a, b)
	require.NoError(t, err)
	assert.True(t, got.Equal(a.Add(b)))
}

func TestAdderRejectsShapeMismatch(t *testing.T) {
	p := newFakeProtocol(1, nil)
	a := matrix.New(2, 2)
	b := matrix.New(2, 3)
	_, err := NewAdder(p, wire.OpAdd).Add(a, b)
	assert.Error(t, err)
}

func TestMultiplierSendsFullTransposedBToEveryWorker(t *testing.T) {
	const numWorkers = 3
	a := matrix.Random(7, 4, nil)
	b := matrix.Random(4, 5, nil)
	want := a.Mul(b)

	p := newFakeProtocol(numWorkers, func(worker int, op wire.Op, offloaded []matrix.Matrix) (matrix.Matrix, error) {
		require.Equal(t, wire.OpMul, op)
		require.Len(t, offloaded, 2)
		aSlice, bt := offloaded[0], offloaded[1]
		assert.Equal(t, b.Rows, bt.Columns, "worker %d should receive the full B^T, not a slice", worker)
		assert.Equal(t, b.Columns, bt.Rows)
		return matrix.MulT(aSlice, bt), nil
	})

	got, err := NewMultiplier(p, wire.OpMul).Multiply(a, b)
	require.NoError(t, err)
	assert.True(t, got.Equal(want))
}

func TestMultiplierRejectsIncompatibleShapes(t *testing.T) {
	p := newFakeProtocol(1, nil)
	a := matrix.New(2, 3)
	b := matrix.New(2, 2)
	_, err := NewMultiplier(p, wire.OpMul).Multiply(a, b)
	assert.Error(t, err)
}

func TestMultiplierHMulRequiresSquareOperands(t *testing.T) {
	p := newFakeProtocol(1, nil)
	a := matrix.New(2, 3)
	b := matrix.New(3, 4)
	_, err := NewMultiplier(p, wire.OpHMul).Multiply(a, b)
	require.Error(t, err)
	assert.Contains(t, fmt.Sprint(err), "square")
}

func TestNoWorkersIsAnError(t *testing.T) {
	p := newFakeProtocol(0, nil)
	_, err := NewEcho(p).Echo(matrix.New(2, 2))
	assert.Error(t, err)
}

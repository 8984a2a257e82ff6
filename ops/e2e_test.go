package ops

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhm/matrix"
	"dhm/protocol"
	"dhm/wire"
	"dhm/worker"
)

func startWorker(t *testing.T) string {
	t.Helper()
	server, err := worker.Listen("0", nil)
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })
	go server.Serve()
	return server.Addr().String()
}

// dialWorkers opens n independent sessions against the same server; each
// connection behaves as its own worker.
func dialWorkers(t *testing.T, addr string, n int) protocol.Protocol {
	t.Helper()
	p := protocol.NewPlaintextProtocol()
	for i := 0; i < n; i++ {
		require.NoError(t, p.AddWorker(addr))
	}
	return p
}

func TestEchoOneWorker(t *testing.T) {
	addr := startWorker(t)
	p := dialWorkers(t, addr, 1)

	a := matrix.FromData([]float64{1, 2, 3, 4}, 2, 2)
	got, err := NewEcho(p).Echo(a)
	require.NoError(t, err)
	assert.True(t, got.Equal(a))
}

func TestAddTwoWorkers(t *testing.T) {
	addr := startWorker(t)
	p := dialWorkers(t, addr, 2)

	a := matrix.FromData([]float64{1, 2, 3, 4}, 2, 2)
	b := matrix.FromData([]float64{10, 20, 30, 40}, 2, 2)
	got, err := NewAdder(p, wire.OpAdd).Add(a, b)
	require.NoError(t, err)
	assert.True(t, got.Equal(matrix.FromData([]float64{11, 22, 33, 44}, 2, 2)))
}

func TestMulTwoWorkers(t *testing.T) {
	addr := startWorker(t)
	p := dialWorkers(t, addr, 2)

	a := matrix.FromData([]float64{1, 2, 3, 4}, 2, 2)
	b := matrix.FromData([]float64{5, 6, 7, 8}, 2, 2)
	got, err := NewMultiplier(p, wire.OpMul).Multiply(a, b)
	require.NoError(t, err)
	assert.True(t, got.Equal(matrix.FromData([]float64{19, 22, 43, 50}, 2, 2)))
}

func TestMulThreeWorkersAllOnes(t *testing.T) {
	addr := startWorker(t)
	p := dialWorkers(t, addr, 3)

	ones := matrix.New(5, 5)
	for i := range ones.Data {
		ones.Data[i] = 1
	}
	got, err := NewMultiplier(p, wire.OpMul).Multiply(ones, ones)
	require.NoError(t, err)
	for _, v := range got.Data {
		require.Equal(t, float64(5), v)
	}
}

func TestResultIndependentOfWorkerCount(t *testing.T) {
	addr := startWorker(t)
	a := matrix.Random(13, 7, nil)
	b := matrix.Random(7, 9, nil)
	want := a.Mul(b)

	for _, n := range []int{1, 2, 3, 5} {
		t.Run(fmt.Sprintf("workers=%d", n), func(t *testing.T) {
			p := dialWorkers(t, addr, n)
			got, err := NewMultiplier(p, wire.OpMul).Multiply(a, b)
			require.NoError(t, err)
			assert.True(t, got.Equal(want))
		})
	}
}

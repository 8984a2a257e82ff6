package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhm/matrix"
	"dhm/protocol"
	"dhm/wire"
)

func startTestServer(t *testing.T) string {
	t.Helper()
	server, err := Listen("0", nil)
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })
	go server.Serve()
	return server.Addr().String()
}

func dial(t *testing.T, addr string) protocol.Protocol {
	t.Helper()
	p := protocol.NewPlaintextProtocol()
	require.NoError(t, p.AddWorker(addr))
	return p
}

func TestSessionEcho(t *testing.T) {
	addr := startTestServer(t)
	p := dial(t, addr)

	m := matrix.FromData([]float64{1, 2, 3, 4}, 2, 2)
	require.NoError(t, p.Start(0, wire.OpEcho))
	require.NoError(t, p.OffloadMatrix(0, m))
	got, err := p.WaitResult(0)
	require.NoError(t, err)
	assert.True(t, got.Equal(m))
}

func TestSessionAdd(t *testing.T) {
	addr := startTestServer(t)
	p := dial(t, addr)

	a := matrix.FromData([]float64{1, 2, 3, 4}, 2, 2)
	b := matrix.FromData([]float64{10, 20, 30, 40}, 2, 2)
	require.NoError(t, p.Start(0, wire.OpAdd))
	require.NoError(t, p.OffloadMatrix(0, a))
	require.NoError(t, p.OffloadMatrix(0, b))
	got, err := p.WaitResult(0)
	require.NoError(t, err)
	assert.True(t, got.Equal(a.Add(b)))
}

func TestSessionAddShapeMismatchTerminatesSession(t *testing.T) {
	addr := startTestServer(t)
	p := dial(t, addr)

	a := matrix.FromData([]float64{1, 2, 3, 4}, 2, 2)
	b := matrix.FromData([]float64{1, 2, 3}, 1, 3)
	require.NoError(t, p.Start(0, wire.OpAdd))
	require.NoError(t, p.OffloadMatrix(0, a))
	require.NoError(t, p.OffloadMatrix(0, b))
	_, err := p.WaitResult(0)
	assert.Error(t, err)
}

func TestSessionMul(t *testing.T) {
	addr := startTestServer(t)
	p := dial(t, addr)

	a := matrix.FromData([]float64{1, 2, 3, 4}, 2, 2)
	b := matrix.FromData([]float64{5, 6, 7, 8}, 2, 2)
	bt := b.Transpose()

	require.NoError(t, p.Start(0, wire.OpMul))
	require.NoError(t, p.OffloadMatrix(0, a))
	require.NoError(t, p.OffloadMatrix(0, bt))
	got, err := p.WaitResult(0)
	require.NoError(t, err)
	assert.True(t, got.Equal(a.Mul(b)))
}

func TestSessionHomomorphicWithoutHandlerIsRejected(t *testing.T) {
	addr := startTestServer(t)
	p := dial(t, addr)

	require.NoError(t, p.Start(0, wire.OpHAdd))
	var buf [16]byte
	require.NoError(t, p.SendRaw(0, buf[:]))
	_, err := p.WaitResult(0)
	assert.Error(t, err)
}

func TestSessionServesSequentialRequests(t *testing.T) {
	addr := startTestServer(t)
	p := dial(t, addr)

	for i := 0; i < 3; i++ {
		m := matrix.FromData([]float64{float64(i), float64(i + 1)}, 1, 2)
		require.NoError(t, p.Start(0, wire.OpEcho))
		require.NoError(t, p.OffloadMatrix(0, m))
		got, err := p.WaitResult(0)
		require.NoError(t, err)
		assert.True(t, got.Equal(m))
	}
}

func TestServerServesConcurrentSessionsIndependently(t *testing.T) {
	addr := startTestServer(t)
	p1 := dial(t, addr)
	p2 := dial(t, addr)

	m1 := matrix.FromData([]float64{1, 2}, 1, 2)
	m2 := matrix.FromData([]float64{3, 4, 5, 6}, 2, 2)

	require.NoError(t, p1.Start(0, wire.OpEcho))
	require.NoError(t, p1.OffloadMatrix(0, m1))
	require.NoError(t, p2.Start(0, wire.OpEcho))
	require.NoError(t, p2.OffloadMatrix(0, m2))

	got1, err := p1.WaitResult(0)
	require.NoError(t, err)
	got2, err := p2.WaitResult(0)
	require.NoError(t, err)

	assert.True(t, got1.Equal(m1))
	assert.True(t, got2.Equal(m2))
}

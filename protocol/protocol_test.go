package protocol

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhm/matrix"
	"dhm/wire"
)

func TestParseWorkerAddr(t *testing.T) {
	host, port, err := ParseWorkerAddr(":9000")
	require.NoError(t, err)
	assert.Equal(t, "localhost", host)
	assert.Equal(t, "9000", port)

	host, port, err = ParseWorkerAddr("host:9000")
	require.NoError(t, err)
	assert.Equal(t, "host", host)
	assert.Equal(t, "9000", port)

	_, _, err = ParseWorkerAddr("noport")
	assert.Error(t, err)

	_, _, err = ParseWorkerAddr("host:")
	assert.Error(t, err)
}

// echoListener starts a bare-bones echo worker on the loopback interface and
// returns its address; it serves exactly one connection.
func echoListener(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			op, err := wire.ReceiveOp(conn)
			if err != nil {
				return
			}
			if op != wire.OpEcho {
				return
			}
			m, err := wire.ReceiveMatrix(conn)
			if err != nil {
				return
			}
			if err := wire.SendMatrix(conn, m); err != nil {
				return
			}
		}
	}()
	return l.Addr().String()
}

func TestPlaintextProtocolEchoRoundTrip(t *testing.T) {
	addr := echoListener(t)
	p := NewPlaintextProtocol()
	require.NoError(t, p.AddWorker(addr))
	assert.Equal(t, 1, p.WorkerCount())

	m := matrix.FromData([]float64{1, 2, 3, 4}, 2, 2)
	require.NoError(t, p.Start(0, wire.OpEcho))
	require.NoError(t, p.OffloadMatrix(0, m))
	got, err := p.WaitResult(0)
	require.NoError(t, err)
	assert.True(t, got.Equal(m))
}

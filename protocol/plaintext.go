package protocol

import (
	"fmt"
	"net"

	"dhm/matrix"
	"dhm/wire"
)

// PlaintextProtocol is the direct TCP transport: one persistent connection
// per worker, framed with the plaintext wire codec.
type PlaintextProtocol struct {
	conns []net.Conn
}

// NewPlaintextProtocol returns an empty protocol with no workers connected.
func NewPlaintextProtocol() *PlaintextProtocol {
	return &PlaintextProtocol{}
}

// AddWorker implements Protocol.
func (p *PlaintextProtocol) AddWorker(addr string) error {
	host, port, err := ParseWorkerAddr(addr)
	if err != nil {
		return err
	}
	conn, err := net.Dial("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return fmt.Errorf("protocol: connect to %q: %w", addr, err)
	}
	p.conns = append(p.conns, conn)
	return nil
}

// WorkerCount implements Protocol.
func (p *PlaintextProtocol) WorkerCount() int {
	return len(p.conns)
}

// Start implements Protocol.
func (p *PlaintextProtocol) Start(i int, op wire.Op) error {
	if err := wire.SendOp(p.conns[i], op); err != nil {
		return fmt.Errorf("protocol: start worker %d: %w", i, err)
	}
	return nil
}

// Offload implements Protocol.
func (p *PlaintextProtocol) Offload(i int, data []float64, rows, columns int) error {
	if err := wire.SendMatrix(p.conns[i], matrix.FromData(data, rows, columns)); err != nil {
		return fmt.Errorf("protocol: offload worker %d: %w", i, err)
	}
	return nil
}

// OffloadMatrix implements Protocol.
func (p *PlaintextProtocol) OffloadMatrix(i int, m matrix.Matrix) error {
	return p.Offload(i, m.Data, m.Rows, m.Columns)
}

// WaitResult implements Protocol.
func (p *PlaintextProtocol) WaitResult(i int) (matrix.Matrix, error) {
	m, err := wire.ReceiveMatrix(p.conns[i])
	if err != nil {
		return matrix.Matrix{}, fmt.Errorf("protocol: wait result from worker %d: %w", i, err)
	}
	return m, nil
}

// SendRaw implements Protocol.
func (p *PlaintextProtocol) SendRaw(i int, data []byte) error {
	return wire.SendExact(p.conns[i], data)
}

// ReceiveRaw implements Protocol.
func (p *PlaintextProtocol) ReceiveRaw(i int, buf []byte) error {
	return wire.ReceiveExact(p.conns[i], buf)
}

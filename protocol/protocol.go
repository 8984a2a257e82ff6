// Package protocol implements the client-side communication layer: a
// capability set {AddWorker, WorkerCount, Start, Offload, WaitResult,
// SendRaw, ReceiveRaw} satisfied by a direct TCP transport
// (PlaintextProtocol) and by an encryption proxy (EncryptionProtocol) that
// wraps it and replaces every plaintext frame with a CKKS ciphertext frame.
package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"

	"dhm/matrix"
	"dhm/wire"
)

// Protocol is the capability set operation drivers are written against.
type Protocol interface {
	// AddWorker connects to a worker at addr ("host:port") and appends it to
	// the worker list. Connection failure is fatal to the caller.
	AddWorker(addr string) error

	// WorkerCount returns the number of connected workers.
	WorkerCount() int

	// Start signals the operation kind to worker i.
	Start(i int, op wire.Op) error

	// Offload sends a rows x columns row-major slice to worker i.
	Offload(i int, data []float64, rows, columns int) error

	// OffloadMatrix is a convenience wrapper around Offload.
	OffloadMatrix(i int, m matrix.Matrix) error

	// WaitResult blocks for worker i's result of the last offload sequence.
	WaitResult(i int) (matrix.Matrix, error)

	// SendRaw and ReceiveRaw move raw bytes over worker i's channel,
	// forwarded verbatim by any wrapping proxy.
	SendRaw(i int, data []byte) error
	ReceiveRaw(i int, buf []byte) error
}

// ParseWorkerAddr splits "host:port" at the last colon, defaulting an empty
// host to "localhost". A missing or empty port is a parse error. The split
// at the last colon tolerates bracketless IPv6-looking strings, at the cost
// of not actually supporting them.
func ParseWorkerAddr(addr string) (host, port string, err error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("protocol: port not specified in address %q", addr)
	}
	host, port = addr[:idx], addr[idx+1:]
	if port == "" {
		return "", "", fmt.Errorf("protocol: invalid port in address %q", addr)
	}
	if host == "" {
		host = "localhost"
	}
	return host, port, nil
}

// sendFrame writes a length-prefixed frame through p's raw channel to
// worker i.
func sendFrame(p Protocol, i int, data []byte) error {
	var lenBuf [4]byte
	binary.NativeEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if err := p.SendRaw(i, lenBuf[:]); err != nil {
		return err
	}
	return p.SendRaw(i, data)
}

// receiveFrame reads a length-prefixed frame through p's raw channel from
// worker i.
func receiveFrame(p Protocol, i int) ([]byte, error) {
	var lenBuf [4]byte
	if err := p.ReceiveRaw(i, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.NativeEndian.Uint32(lenBuf[:])
	data := make([]byte, n)
	if err := p.ReceiveRaw(i, data); err != nil {
		return nil, err
	}
	return data, nil
}

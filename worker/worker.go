// Package worker implements the worker side of the protocol: a TCP server
// that accepts connections and spawns one Session per connection, and the
// non-homomorphic request handlers (Echo, Add, Mul). The homomorphic
// handlers live in package hekernel and are wired in through the
// HomomorphicHandler hook so this package stays free of any CKKS import.
package worker

import (
	"errors"
	"fmt"
	"log"
	"net"

	"dhm/matrix"
	"dhm/wire"
)

// HomomorphicHandler processes one HAdd or HMul request body already
// past the operation tag, reading its own framed operands from conn and
// writing its own framed response. Session.Serve calls it for wire.OpHAdd
// and wire.OpHMul; a nil handler makes those ops a session error, matching
// a worker built without the encrypted path.
type HomomorphicHandler func(conn net.Conn, op wire.Op) error

// Server listens on one TCP port and spawns one Session per accepted
// connection. It does not itself hold any cross-session state: every
// request carries its own operands.
type Server struct {
	listener net.Listener
	homo     HomomorphicHandler
}

// Listen binds a Server to 0.0.0.0:port. homo may be nil if the worker
// should reject HAdd/HMul.
func Listen(port string, homo HomomorphicHandler) (*Server, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort("0.0.0.0", port))
	if err != nil {
		return nil, fmt.Errorf("worker: listen on port %s: %w", port, err)
	}
	return &Server{listener: ln, homo: homo}, nil
}

// Addr returns the server's bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve runs the single-threaded accept loop forever, spawning a goroutine
// per accepted connection. It returns only when the listener is closed.
func (s *Server) Serve() error {
	log.Printf("> listening on %s", s.listener.Addr())
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return fmt.Errorf("worker: accept: %w", err)
		}
		session := &Session{conn: conn, endpoint: conn.RemoteAddr().String(), homo: s.homo}
		go session.Run()
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	return s.listener.Close()
}

// Session is a per-connection request dispatcher. It loops reading one
// operation tag, serving its body, and writing the response, until
// end-of-stream or an unrecoverable error. A Session never shares state
// with any other Session.
type Session struct {
	conn     net.Conn
	endpoint string
	homo     HomomorphicHandler
}

// Run drives the session loop to completion and closes the connection.
// Any per-request error terminates this session only; the acceptor
// continues serving other connections regardless.
func (s *Session) Run() {
	defer func() {
		s.conn.Close()
		log.Printf("> %s: session ended", s.endpoint)
	}()
	log.Printf("> %s: session started", s.endpoint)

	for {
		op, err := wire.ReceiveOp(s.conn)
		if err != nil {
			if errors.Is(err, wire.ErrEndOfStream) {
				return
			}
			log.Printf("> %s: %v", s.endpoint, err)
			return
		}
		log.Printf("> %s: request: %s", s.endpoint, op)
		if err := s.dispatch(op); err != nil {
			log.Printf("> %s: %v", s.endpoint, err)
			return
		}
		log.Printf("> %s: sent result", s.endpoint)
	}
}

func (s *Session) dispatch(op wire.Op) error {
	switch op {
	case wire.OpEcho:
		return s.handleEcho()
	case wire.OpAdd:
		return s.handleAdd()
	case wire.OpMul:
		return s.handleMul()
	case wire.OpHAdd, wire.OpHMul:
		if s.homo == nil {
			return fmt.Errorf("worker: no homomorphic handler configured for %s", op)
		}
		return s.homo(s.conn, op)
	default:
		return fmt.Errorf("worker: unsupported operation %s", op)
	}
}

func (s *Session) handleEcho() error {
	m, err := wire.ReceiveMatrix(s.conn)
	if err != nil {
		return fmt.Errorf("worker: receive echo matrix: %w", err)
	}
	log.Printf("> %s: received matrix [%d x %d]", s.endpoint, m.Rows, m.Columns)
	return wire.SendMatrix(s.conn, m)
}

func (s *Session) handleAdd() error {
	a, b, err := s.receivePair()
	if err != nil {
		return err
	}
	if a.Rows != b.Rows || a.Columns != b.Columns {
		return fmt.Errorf("worker: add: mismatching matrix sizes %dx%d and %dx%d", a.Rows, a.Columns, b.Rows, b.Columns)
	}
	return wire.SendMatrix(s.conn, a.Add(b))
}

func (s *Session) handleMul() error {
	a, bt, err := s.receivePair()
	if err != nil {
		return err
	}
	if a.Columns != bt.Columns {
		return fmt.Errorf("worker: mul: A columns %d does not match B^T row length %d", a.Columns, bt.Columns)
	}
	return wire.SendMatrix(s.conn, matrix.MulT(a, bt))
}

// receivePair reads the two matrix frames common to Add and Mul, logging
// each arrival.
func (s *Session) receivePair() (matrix.Matrix, matrix.Matrix, error) {
	a, err := wire.ReceiveMatrix(s.conn)
	if err != nil {
		return matrix.Matrix{}, matrix.Matrix{}, fmt.Errorf("worker: receive first operand: %w", err)
	}
	log.Printf("> %s: received matrix [%d x %d]", s.endpoint, a.Rows, a.Columns)

	b, err := wire.ReceiveMatrix(s.conn)
	if err != nil {
		return matrix.Matrix{}, matrix.Matrix{}, fmt.Errorf("worker: receive second operand: %w", err)
	}
	log.Printf("> %s: received matrix [%d x %d]", s.endpoint, b.Rows, b.Columns)

	return a, b, nil
}

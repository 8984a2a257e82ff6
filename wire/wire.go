// Package wire implements the framed binary protocol shared by the client
// and the worker: fixed-size send/receive that loop until the requested
// number of bytes has moved, a length-prefixed variable-size frame, and the
// small fixed records (operation tag, matrix header, encryption context
// options) that precede every matrix or ciphertext payload.
//
// Byte order is host-native throughout, matching the protocol's definition
// for same-endian deployments only.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"dhm/matrix"
)

// Op is the operation-kind tag sent at the start of every request.
type Op uint32

const (
	OpEcho Op = iota
	OpAdd
	OpMul
	OpHAdd
	OpHMul
)

func (o Op) String() string {
	switch o {
	case OpEcho:
		return "echo"
	case OpAdd:
		return "add"
	case OpMul:
		return "mul"
	case OpHAdd:
		return "hadd"
	case OpHMul:
		return "hmul"
	default:
		return fmt.Sprintf("op(%d)", uint32(o))
	}
}

// ParseOp maps a CLI operation name to its wire tag.
func ParseOp(name string) (Op, error) {
	switch name {
	case "echo":
		return OpEcho, nil
	case "add":
		return OpAdd, nil
	case "mul":
		return OpMul, nil
	case "hadd":
		return OpHAdd, nil
	case "hmul":
		return OpHMul, nil
	default:
		return 0, fmt.Errorf("wire: invalid operation %q", name)
	}
}

// ErrEndOfStream reports a clean end-of-stream at an operation-tag boundary,
// the only non-error termination condition on a worker session.
var ErrEndOfStream = errors.New("wire: end of stream")

// SendExact writes all of data to w, looping on short writes.
func SendExact(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := w.Write(data)
		if err != nil {
			return fmt.Errorf("wire: short write: %w", err)
		}
		data = data[n:]
	}
	return nil
}

// ReceiveExact reads exactly len(buf) bytes from r, looping on short reads.
func ReceiveExact(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("wire: short read: %w", err)
	}
	return nil
}

// SendFrame writes a length-prefixed (u32, bytes) frame.
func SendFrame(w io.Writer, data []byte) error {
	var lenBuf [4]byte
	binary.NativeEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if err := SendExact(w, lenBuf[:]); err != nil {
		return err
	}
	return SendExact(w, data)
}

// ReceiveFrame reads a length-prefixed (u32, bytes) frame.
func ReceiveFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if err := ReceiveExact(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("wire: frame length: %w", err)
	}
	n := binary.NativeEndian.Uint32(lenBuf[:])
	data := make([]byte, n)
	if err := ReceiveExact(r, data); err != nil {
		return nil, fmt.Errorf("wire: frame body: %w", err)
	}
	return data, nil
}

// SendOp writes the 4-byte operation tag.
func SendOp(w io.Writer, op Op) error {
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], uint32(op))
	return SendExact(w, buf[:])
}

// ReceiveOp reads the 4-byte operation tag. EOF occurring exactly at the
// start of this read is reported as ErrEndOfStream, not an error.
func ReceiveOp(r io.Reader) (Op, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, ErrEndOfStream
		}
		return 0, fmt.Errorf("wire: operation tag: %w", err)
	}
	return Op(binary.NativeEndian.Uint32(buf[:])), nil
}

// MatrixHeader is the 8-byte (rows, columns) frame prefix for a matrix
// payload, plaintext or ciphertext.
type MatrixHeader struct {
	Rows, Columns uint32
}

// EncodeHeader returns the 8-byte wire encoding of h.
func EncodeHeader(h MatrixHeader) [8]byte {
	var buf [8]byte
	binary.NativeEndian.PutUint32(buf[0:4], h.Rows)
	binary.NativeEndian.PutUint32(buf[4:8], h.Columns)
	return buf
}

// DecodeHeader parses an 8-byte wire-encoded header.
func DecodeHeader(buf []byte) (MatrixHeader, error) {
	if len(buf) != 8 {
		return MatrixHeader{}, fmt.Errorf("wire: matrix header must be 8 bytes, got %d", len(buf))
	}
	return MatrixHeader{
		Rows:    binary.NativeEndian.Uint32(buf[0:4]),
		Columns: binary.NativeEndian.Uint32(buf[4:8]),
	}, nil
}

// SendHeader writes the matrix header.
func SendHeader(w io.Writer, h MatrixHeader) error {
	buf := EncodeHeader(h)
	return SendExact(w, buf[:])
}

// ReceiveHeader reads the matrix header.
func ReceiveHeader(r io.Reader) (MatrixHeader, error) {
	var buf [8]byte
	if err := ReceiveExact(r, buf[:]); err != nil {
		return MatrixHeader{}, fmt.Errorf("wire: matrix header: %w", err)
	}
	return DecodeHeader(buf[:])
}

// SendMatrix writes a full plaintext matrix frame: header followed by
// rows*columns raw float64 elements in row-major, host-native order.
func SendMatrix(w io.Writer, m matrix.Matrix) error {
	if err := SendHeader(w, MatrixHeader{Rows: uint32(m.Rows), Columns: uint32(m.Columns)}); err != nil {
		return err
	}
	buf := make([]byte, len(m.Data)*8)
	for i, v := range m.Data {
		binary.NativeEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return SendExact(w, buf)
}

// ReceiveMatrix reads a full plaintext matrix frame.
func ReceiveMatrix(r io.Reader) (matrix.Matrix, error) {
	hdr, err := ReceiveHeader(r)
	if err != nil {
		return matrix.Matrix{}, err
	}
	n := int(hdr.Rows) * int(hdr.Columns)
	buf := make([]byte, n*8)
	if err := ReceiveExact(r, buf); err != nil {
		return matrix.Matrix{}, fmt.Errorf("wire: matrix payload: %w", err)
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = math.Float64frombits(binary.NativeEndian.Uint64(buf[i*8:]))
	}
	return matrix.FromData(data, int(hdr.Rows), int(hdr.Columns)), nil
}

// EncContextOptions identifies the CKKS parameters both ends must construct
// identically: cyclotomic order m, modulus bit-width, target precision in
// bits, and c, the number of special key-switching primes.
type EncContextOptions struct {
	M, Bits, Precision, C uint32
}

// EncodeEncOptions returns the 16-byte wire encoding of opts.
func EncodeEncOptions(opts EncContextOptions) [16]byte {
	var buf [16]byte
	binary.NativeEndian.PutUint32(buf[0:4], opts.M)
	binary.NativeEndian.PutUint32(buf[4:8], opts.Bits)
	binary.NativeEndian.PutUint32(buf[8:12], opts.Precision)
	binary.NativeEndian.PutUint32(buf[12:16], opts.C)
	return buf
}

// DecodeEncOptions parses a 16-byte wire-encoded options block.
func DecodeEncOptions(buf []byte) (EncContextOptions, error) {
	if len(buf) != 16 {
		return EncContextOptions{}, fmt.Errorf("wire: encryption options must be 16 bytes, got %d", len(buf))
	}
	return EncContextOptions{
		M:         binary.NativeEndian.Uint32(buf[0:4]),
		Bits:      binary.NativeEndian.Uint32(buf[4:8]),
		Precision: binary.NativeEndian.Uint32(buf[8:12]),
		C:         binary.NativeEndian.Uint32(buf[12:16]),
	}, nil
}

// SendEncOptions writes the 16-byte encryption options block.
func SendEncOptions(w io.Writer, opts EncContextOptions) error {
	buf := EncodeEncOptions(opts)
	return SendExact(w, buf[:])
}

// ReceiveEncOptions reads the 16-byte encryption options block.
func ReceiveEncOptions(r io.Reader) (EncContextOptions, error) {
	var buf [16]byte
	if err := ReceiveExact(r, buf[:]); err != nil {
		return EncContextOptions{}, fmt.Errorf("wire: encryption options: %w", err)
	}
	return DecodeEncOptions(buf[:])
}

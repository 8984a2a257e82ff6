package protocol

import (
	"fmt"

	"dhm/ckksproto"
	"dhm/matrix"
	"dhm/wire"
)

// EncryptionProtocol wraps an inner Protocol and performs CKKS key
// generation, per-row encryption on send and per-row decryption on
// receive. The secret key lives only here; the worker sees only the public
// material sent in Start.
type EncryptionProtocol struct {
	inner Protocol
	opts  wire.EncContextOptions
	ctx   *ckksproto.Context
	keys  *ckksproto.KeyBundle
	pub   *ckksproto.PublicMaterial

	encryptor *ckksproto.Encryptor
	decryptor *ckksproto.Decryptor
}

// NewEncryptionProtocol builds the CKKS context for side length n (matrix
// side length, i.e. number of slots exercised per row) using the client's
// canonical parameter choice m=4n, bits=119, precision=20, c=2, generates a
// fresh key pair, and wraps inner.
func NewEncryptionProtocol(inner Protocol, n int) (*EncryptionProtocol, error) {
	opts := wire.EncContextOptions{M: uint32(4 * n), Bits: 119, Precision: 20, C: 2}

	ctx, err := ckksproto.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("protocol: build encryption context: %w", err)
	}
	keys, pub, err := ckksproto.GenerateKeys(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("protocol: generate keys: %w", err)
	}

	return &EncryptionProtocol{
		inner:     inner,
		opts:      opts,
		ctx:       ctx,
		keys:      keys,
		pub:       pub,
		encryptor: ckksproto.NewEncryptor(ctx, pub.PublicKey),
		decryptor: ckksproto.NewDecryptor(ctx, keys.SecretKey()),
	}, nil
}

// remapOp maps a plaintext op to its homomorphic counterpart; any other op
// is rejected.
func remapOp(op wire.Op) (wire.Op, error) {
	switch op {
	case wire.OpAdd:
		return wire.OpHAdd, nil
	case wire.OpMul:
		return wire.OpHMul, nil
	default:
		return 0, fmt.Errorf("protocol: operation %s has no homomorphic form", op)
	}
}

// AddWorker implements Protocol.
func (p *EncryptionProtocol) AddWorker(addr string) error {
	return p.inner.AddWorker(addr)
}

// WorkerCount implements Protocol.
func (p *EncryptionProtocol) WorkerCount() int {
	return p.inner.WorkerCount()
}

// Start implements Protocol: forwards the remapped op tag, then transmits
// the encryption options followed by the length-prefixed public material.
func (p *EncryptionProtocol) Start(i int, op wire.Op) error {
	hop, err := remapOp(op)
	if err != nil {
		return err
	}
	if err := p.inner.Start(i, hop); err != nil {
		return err
	}

	optBuf := wire.EncodeEncOptions(p.opts)
	if err := p.inner.SendRaw(i, optBuf[:]); err != nil {
		return fmt.Errorf("protocol: send encryption options to worker %d: %w", i, err)
	}

	pubBytes, err := ckksproto.SerializePublicMaterial(p.pub)
	if err != nil {
		return fmt.Errorf("protocol: serialize public material: %w", err)
	}
	if err := sendFrame(p.inner, i, pubBytes); err != nil {
		return fmt.Errorf("protocol: send public material to worker %d: %w", i, err)
	}
	return nil
}

// Offload implements Protocol: sends an unframed matrix header, then
// encrypts and frames each row as one ciphertext.
func (p *EncryptionProtocol) Offload(i int, data []float64, rows, columns int) error {
	hdrBuf := wire.EncodeHeader(wire.MatrixHeader{Rows: uint32(rows), Columns: uint32(columns)})
	if err := p.inner.SendRaw(i, hdrBuf[:]); err != nil {
		return fmt.Errorf("protocol: send header to worker %d: %w", i, err)
	}

	for r := 0; r < rows; r++ {
		row := data[r*columns : (r+1)*columns]
		ctBytes, err := ckksproto.SerializeCiphertext(p.encryptor.EncryptRow(row))
		if err != nil {
			return fmt.Errorf("protocol: serialize row %d: %w", r, err)
		}
		if err := sendFrame(p.inner, i, ctBytes); err != nil {
			return fmt.Errorf("protocol: send row %d to worker %d: %w", r, i, err)
		}
	}
	return nil
}

// OffloadMatrix implements Protocol.
func (p *EncryptionProtocol) OffloadMatrix(i int, m matrix.Matrix) error {
	return p.Offload(i, m.Data, m.Rows, m.Columns)
}

// WaitResult implements Protocol: reads a header then one ciphertext frame
// per row, decrypting and truncating each to columns (the undiff step).
func (p *EncryptionProtocol) WaitResult(i int) (matrix.Matrix, error) {
	var hdrBuf [8]byte
	if err := p.inner.ReceiveRaw(i, hdrBuf[:]); err != nil {
		return matrix.Matrix{}, fmt.Errorf("protocol: receive result header from worker %d: %w", i, err)
	}
	hdr, err := wire.DecodeHeader(hdrBuf[:])
	if err != nil {
		return matrix.Matrix{}, err
	}

	out := matrix.New(int(hdr.Rows), int(hdr.Columns))
	for r := 0; r < int(hdr.Rows); r++ {
		ctBytes, err := receiveFrame(p.inner, i)
		if err != nil {
			return matrix.Matrix{}, fmt.Errorf("protocol: receive row %d from worker %d: %w", r, i, err)
		}
		ct, err := ckksproto.DeserializeCiphertext(ctBytes)
		if err != nil {
			return matrix.Matrix{}, fmt.Errorf("protocol: deserialize row %d: %w", r, err)
		}
		copy(out.Row(r), p.decryptor.DecryptRow(ct, int(hdr.Columns)))
	}
	return out, nil
}

// SendRaw implements Protocol, forwarding verbatim to the inner protocol.
func (p *EncryptionProtocol) SendRaw(i int, data []byte) error {
	return p.inner.SendRaw(i, data)
}

// ReceiveRaw implements Protocol, forwarding verbatim to the inner
// protocol.
func (p *EncryptionProtocol) ReceiveRaw(i int, buf []byte) error {
	return p.inner.ReceiveRaw(i, buf)
}

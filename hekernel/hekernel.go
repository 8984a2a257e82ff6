// Package hekernel implements the worker-side homomorphic operation
// handler: rebuilding the CKKS context from the wire-transmitted options,
// deserializing the client's public material, and running the HAdd and
// HMul kernels over the received ciphertext rows. HMul is the system's key
// kernel: it reduces a matrix-matrix product to one ciphertext-vector
// multiply per output row, combining elementwise ciphertext multiply,
// total-sum, and slot shift to place each partial dot product into its own
// output slot.
package hekernel

import (
	"fmt"
	"net"

	"github.com/ldsec/lattigo/v2/ckks"

	"dhm/ckksproto"
	"dhm/wire"
)

// Handle reads one HAdd or HMul request body from conn and writes the
// response. It is installed as a worker.HomomorphicHandler.
func Handle(conn net.Conn, op wire.Op) error {
	var optBuf [16]byte
	if err := wire.ReceiveExact(conn, optBuf[:]); err != nil {
		return fmt.Errorf("hekernel: receive encryption options: %w", err)
	}
	opts, err := wire.DecodeEncOptions(optBuf[:])
	if err != nil {
		return err
	}

	ctx, err := ckksproto.NewContext(opts)
	if err != nil {
		return fmt.Errorf("hekernel: build context: %w", err)
	}

	pubBytes, err := wire.ReceiveFrame(conn)
	if err != nil {
		return fmt.Errorf("hekernel: receive public material: %w", err)
	}
	pub, err := ckksproto.DeserializePublicMaterial(pubBytes)
	if err != nil {
		return fmt.Errorf("hekernel: deserialize public material: %w", err)
	}
	eval := ckksproto.NewEvaluator(ctx, pub)

	aHdr, aTxt, err := receiveCiphertextMatrix(conn)
	if err != nil {
		return fmt.Errorf("hekernel: receive A: %w", err)
	}
	bHdr, bTxt, err := receiveCiphertextMatrix(conn)
	if err != nil {
		return fmt.Errorf("hekernel: receive B: %w", err)
	}

	switch op {
	case wire.OpHAdd:
		return handleHAdd(conn, eval, aHdr, aTxt, bHdr, bTxt)
	case wire.OpHMul:
		return handleHMul(conn, eval, aHdr, aTxt, bHdr, bTxt)
	default:
		return fmt.Errorf("hekernel: unsupported homomorphic operation %s", op)
	}
}

func receiveCiphertextMatrix(conn net.Conn) (wire.MatrixHeader, []*ckks.Ciphertext, error) {
	hdr, err := wire.ReceiveHeader(conn)
	if err != nil {
		return wire.MatrixHeader{}, nil, err
	}
	rows := make([]*ckks.Ciphertext, hdr.Rows)
	for i := range rows {
		data, err := wire.ReceiveFrame(conn)
		if err != nil {
			return wire.MatrixHeader{}, nil, fmt.Errorf("row %d: %w", i, err)
		}
		ct, err := ckksproto.DeserializeCiphertext(data)
		if err != nil {
			return wire.MatrixHeader{}, nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows[i] = ct
	}
	return hdr, rows, nil
}

func sendCiphertextMatrix(conn net.Conn, hdr wire.MatrixHeader, rows []*ckks.Ciphertext) error {
	if err := wire.SendHeader(conn, hdr); err != nil {
		return err
	}
	for i, ct := range rows {
		data, err := ckksproto.SerializeCiphertext(ct)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if err := wire.SendFrame(conn, data); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

// handleHAdd requires matching shapes, then adds row by row.
func handleHAdd(conn net.Conn, eval *ckksproto.Evaluator, aHdr wire.MatrixHeader, aTxt []*ckks.Ciphertext, bHdr wire.MatrixHeader, bTxt []*ckks.Ciphertext) error {
	if aHdr.Rows != bHdr.Rows || aHdr.Columns != bHdr.Columns {
		return fmt.Errorf("hekernel: hadd: mismatching matrix sizes %dx%d and %dx%d", aHdr.Rows, aHdr.Columns, bHdr.Rows, bHdr.Columns)
	}
	out := make([]*ckks.Ciphertext, aHdr.Rows)
	for i := range out {
		out[i] = eval.Add(aTxt[i], bTxt[i])
	}
	return sendCiphertextMatrix(conn, aHdr, out)
}

// handleHMul requires A.columns == B.rows and runs the per-row product
// kernel: for row vector v = Atxt[i], accumulate one output
// ciphertext r whose slot j holds (A*B)[i,j] for every j in [0, B.rows).
//
// TotalSum broadcasts its sum to every slot, so a ciphertext coming out of
// it has the same value in slot 0 as in every other slot; rotating it with
// Shift alone would therefore not isolate the value into slot j, it would
// just leave every slot holding it. Mask zeroes every slot but 0 first, so
// the subsequent Shift places the value in slot j and nowhere else, and the
// running accumulation in r only ever gains one slot per iteration.
func handleHMul(conn net.Conn, eval *ckksproto.Evaluator, aHdr wire.MatrixHeader, aTxt []*ckks.Ciphertext, bHdr wire.MatrixHeader, bTxt []*ckks.Ciphertext) error {
	if aHdr.Columns != bHdr.Rows {
		return fmt.Errorf("hekernel: hmul: A.columns %d does not match B.rows %d", aHdr.Columns, bHdr.Rows)
	}

	out := make([]*ckks.Ciphertext, aHdr.Rows)
	for i := range out {
		v := aTxt[i]

		var r *ckks.Ciphertext
		for j := 0; j < int(bHdr.Rows); j++ {
			tmp, err := eval.Mul(v, bTxt[j])
			if err != nil {
				return fmt.Errorf("hekernel: hmul: row %d col %d: %w", i, j, err)
			}
			tmp = eval.TotalSum(tmp)
			tmp, err = eval.Mask(tmp, 0)
			if err != nil {
				return fmt.Errorf("hekernel: hmul: row %d col %d: %w", i, j, err)
			}
			tmp = eval.Shift(tmp, j)

			if r == nil {
				r = tmp
			} else {
				r = eval.Add(r, tmp)
			}
		}
		out[i] = r
	}

	// The response header advertises A.columns, which equals B.columns under
	// the square-matrix precondition enforced at the driver boundary.
	return sendCiphertextMatrix(conn, wire.MatrixHeader{Rows: aHdr.Rows, Columns: aHdr.Columns}, out)
}

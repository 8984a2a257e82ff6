package ckksproto

import (
	"github.com/ldsec/lattigo/v2/ckks"
	"github.com/ldsec/lattigo/v2/rlwe"
)

// Encryptor encrypts plaintext matrix rows under a context's public key.
type Encryptor struct {
	ctx       *Context
	encryptor ckks.Encryptor
}

// NewEncryptor builds an Encryptor bound to pk.
func NewEncryptor(ctx *Context, pk *rlwe.PublicKey) *Encryptor {
	return &Encryptor{ctx: ctx, encryptor: ckks.NewEncryptor(ctx.params, pk)}
}

// EncryptRow packs row into the low slots of a plaintext (zero-padding the
// rest) and encrypts it as one ciphertext.
func (e *Encryptor) EncryptRow(row []float64) *ckks.Ciphertext {
	values := make([]complex128, e.ctx.Slots())
	for i, v := range row {
		values[i] = complex(v, 0)
	}
	pt := e.ctx.encoder.EncodeNew(values, e.ctx.params.LogSlots())
	return e.encryptor.EncryptNew(pt)
}

// Decryptor decrypts ciphertext rows under a context's secret key.
type Decryptor struct {
	ctx       *Context
	decryptor ckks.Decryptor
}

// NewDecryptor builds a Decryptor bound to sk. sk never leaves the client.
func NewDecryptor(ctx *Context, sk *rlwe.SecretKey) *Decryptor {
	return &Decryptor{ctx: ctx, decryptor: ckks.NewDecryptor(ctx.params, sk)}
}

// DecryptRow decrypts ct and returns its first columns slots as a plaintext
// row (the undiff step: truncate to the matrix's true column count).
func (d *Decryptor) DecryptRow(ct *ckks.Ciphertext, columns int) []float64 {
	pt := d.decryptor.DecryptNew(ct)
	values := d.ctx.encoder.Decode(pt, d.ctx.params.LogSlots())
	out := make([]float64, columns)
	for i := range out {
		out[i] = real(values[i])
	}
	return out
}

// Package ckksproto wraps the lattigo CKKS primitives behind the black-box
// capability set this system is built on: context construction from the
// 16-byte wire options, key generation, per-row encrypt/decrypt, ciphertext
// add/multiply, total-sum across slots, and cyclic slot shift.
package ckksproto

import (
	"fmt"
	"math"
	"math/bits"
	"sort"

	"github.com/ldsec/lattigo/v2/ckks"
	"github.com/ldsec/lattigo/v2/rlwe"

	"dhm/wire"
)

// Context holds the CKKS parameters and encoder both the client and every
// worker rebuild identically from the same EncContextOptions.
type Context struct {
	params  ckks.Parameters
	encoder ckks.Encoder
}

// NewContext builds the CKKS context identified by opts. The ring degree is
// derived from the cyclotomic order m (N = m/2 for power-of-two m, otherwise
// m/2 rounded up to a power of two), floored at 2^12 so the slot count
// always covers a full matrix row. opts.Bits is
// the total bit-width of the ciphertext modulus, not a per-prime width:
// lattigo caps individual primes at 60 bits, so the budget is split into
// one base prime and two rescaling primes, the rescaling primes covering
// the multiply depth of the product kernel (one ciphertext multiply, one
// masking multiply). The scale matches the rescaling primes, and the base
// prime keeps opts.Precision bits of headroom above the scale for the
// integer part of the result. opts.C special primes back the key-switching
// material.
func NewContext(opts wire.EncContextOptions) (*Context, error) {
	logN := bits.Len32(opts.M) - 2
	if opts.M&(opts.M-1) != 0 {
		logN++
	}
	if logN < 12 {
		logN = 12
	}

	logScale := (int(opts.Bits) - int(opts.Precision)) / 3
	if logScale > 60 {
		logScale = 60
	}
	base := int(opts.Bits) - 2*logScale
	if base > 60 {
		base = 60
	}
	if base < logScale {
		base = logScale
	}
	logQ := []int{base, logScale, logScale}

	pCount := int(opts.C)
	if pCount < 1 {
		pCount = 1
	}
	logP := make([]int, pCount)
	for i := range logP {
		logP[i] = base
	}

	params, err := ckks.NewParametersFromLiteral(ckks.ParametersLiteral{
		LogN:     logN,
		LogQ:     logQ,
		LogP:     logP,
		LogSlots: logN - 1,
		Scale:    math.Pow(2, float64(logScale)),
		Sigma:    rlwe.DefaultSigma,
	})
	if err != nil {
		return nil, fmt.Errorf("ckksproto: build parameters: %w", err)
	}

	return &Context{params: params, encoder: ckks.NewEncoder(params)}, nil
}

// Slots returns the number of CKKS plaintext slots for this context.
func (c *Context) Slots() int {
	return 1 << c.params.LogSlots()
}

// Params exposes the underlying lattigo parameters, e.g. for key generation.
func (c *Context) Params() ckks.Parameters {
	return c.params
}

// KeyBundle holds the client's secret material. It never leaves the client.
type KeyBundle struct {
	secretKey *rlwe.SecretKey
}

// SecretKey returns the secret key, for building a Decryptor.
func (k *KeyBundle) SecretKey() *rlwe.SecretKey {
	return k.secretKey
}

// PublicMaterial is everything the worker needs to operate on ciphertexts
// without ever seeing the secret key: the encryption public key, the
// relinearization key for ciphertext-ciphertext multiply, and the rotation
// keys for total-sum and slot-shift.
type PublicMaterial struct {
	PublicKey *rlwe.PublicKey
	RelinKey  *rlwe.RelinearizationKey
	RotKeys   *rlwe.RotationKeySet
}

// GenerateKeys creates a fresh secret/public key pair for ctx, along with
// the relinearization key and the rotation keys needed to multiply an
// n-column row against an n-row matrix homomorphically (total-sum doubling
// over every power-of-two slot offset, plus one shift per output column).
func GenerateKeys(ctx *Context, n int) (*KeyBundle, *PublicMaterial, error) {
	kgen := ckks.NewKeyGenerator(ctx.params)
	sk, pk := kgen.GenKeyPair()
	rlk := kgen.GenRelinearizationKey(sk, 1)
	rtks := kgen.GenRotationKeysForRotations(requiredRotations(ctx.Slots(), n), false, sk)

	return &KeyBundle{secretKey: sk}, &PublicMaterial{PublicKey: pk, RelinKey: rlk, RotKeys: rtks}, nil
}

// requiredRotations lists every rotation index the homomorphic multiply
// kernel needs: the power-of-two offsets consumed by TotalSum's doubling
// trick, and the left-rotation that places slot 0 into slot j for every
// output column j in [1, n).
func requiredRotations(slots, n int) []int {
	set := map[int]struct{}{}
	for shift := 1; shift < slots; shift <<= 1 {
		set[shift] = struct{}{}
	}
	for j := 1; j < n; j++ {
		set[(slots-j)%slots] = struct{}{}
	}
	rotations := make([]int, 0, len(set))
	for r := range set {
		rotations = append(rotations, r)
	}
	sort.Ints(rotations)
	return rotations
}

// Evaluator performs the homomorphic operations the worker needs: add,
// elementwise multiply, total-sum across slots, and cyclic slot shift.
type Evaluator struct {
	ctx   *Context
	eval  ckks.Evaluator
	slots int
}

// NewEvaluator builds an Evaluator bound to the relinearization and rotation
// keys carried in pm.
func NewEvaluator(ctx *Context, pm *PublicMaterial) *Evaluator {
	evalKey := rlwe.EvaluationKey{Rlk: pm.RelinKey, Rtks: pm.RotKeys}
	return &Evaluator{ctx: ctx, eval: ckks.NewEvaluator(ctx.params, evalKey), slots: ctx.Slots()}
}

// Add returns a + b.
func (e *Evaluator) Add(a, b *ckks.Ciphertext) *ckks.Ciphertext {
	return e.eval.AddNew(a, b)
}

// Mul returns the elementwise (Hadamard) product of a and b, relinearized
// and rescaled back to the context's nominal scale using the relin key the
// Evaluator was constructed with.
func (e *Evaluator) Mul(a, b *ckks.Ciphertext) (*ckks.Ciphertext, error) {
	out := e.eval.MulRelinNew(a, b)
	if err := e.eval.Rescale(out, e.ctx.params.Scale(), out); err != nil {
		return nil, fmt.Errorf("ckksproto: rescale: %w", err)
	}
	return out, nil
}

// Mask zeroes out every slot of ct except slot, by multiplying against a
// one-hot plaintext and rescaling back to the context's nominal scale. It is
// the operation that makes Shift meaningful after TotalSum: TotalSum
// broadcasts its sum to every slot, so without masking first, shifting a
// TotalSum result is a no-op and accumulating it would leak into every
// output slot instead of just the target one.
func (e *Evaluator) Mask(ct *ckks.Ciphertext, slot int) (*ckks.Ciphertext, error) {
	values := make([]complex128, e.slots)
	values[slot] = complex(1, 0)
	pt := e.ctx.encoder.EncodeNew(values, e.ctx.params.LogSlots())

	out := e.eval.MulNew(ct, pt)
	if err := e.eval.Rescale(out, e.ctx.params.Scale(), out); err != nil {
		return nil, fmt.Errorf("ckksproto: rescale mask: %w", err)
	}
	return out, nil
}

// TotalSum reduces ct's slots to their sum, broadcast across every slot, via
// the standard rotate-and-add doubling trick over every power-of-two offset.
func (e *Evaluator) TotalSum(ct *ckks.Ciphertext) *ckks.Ciphertext {
	acc := ct
	for shift := 1; shift < e.slots; shift <<= 1 {
		rotated := e.eval.RotateNew(acc, shift)
		acc = e.eval.AddNew(acc, rotated)
	}
	return acc
}

// Shift cyclically rotates ct so that the value in slot 0 lands in slot j.
func (e *Evaluator) Shift(ct *ckks.Ciphertext, j int) *ckks.Ciphertext {
	if j == 0 {
		return ct
	}
	return e.eval.RotateNew(ct, (e.slots-j)%e.slots)
}

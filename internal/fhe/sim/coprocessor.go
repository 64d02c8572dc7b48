// Package sim provides an in-process, plaintext-backed coprocessor for tests,
// local development, and the simulate harness. It holds the "keys" itself:
// handles map to masked big integers, and Encrypt/Decrypt are exposed on the
// concrete type only, never through the fhe.Coprocessor contract.
package sim

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"

	"mev-sentinel/internal/fhe"
)

// Coprocessor simulates the external homomorphic coprocessor. All arithmetic
// is modular over the declared width, matching the adapter contract.
type Coprocessor struct {
	mu     sync.RWMutex
	values map[fhe.Handle]*entry

	// OpCount tracks primitive invocations per operation name, useful for
	// asserting circuits stay constant-shape across inputs.
	opMu     sync.Mutex
	opCounts map[string]int
}

type entry struct {
	value *big.Int
	width fhe.Width
}

// New creates an empty simulator.
func New() *Coprocessor {
	return &Coprocessor{
		values:   make(map[fhe.Handle]*entry),
		opCounts: make(map[string]int),
	}
}

var _ fhe.Coprocessor = (*Coprocessor)(nil)

// Encrypt stores a plaintext value under a fresh handle. Test/harness use only.
func (c *Coprocessor) Encrypt(value *big.Int, w fhe.Width) (fhe.Ciphertext, error) {
	if !w.Valid() {
		return fhe.Ciphertext{}, fmt.Errorf("encrypt: %w: %s", fhe.ErrCiphertextDomain, w)
	}
	if value.Sign() < 0 || value.BitLen() > w.Bits() {
		return fhe.Ciphertext{}, fmt.Errorf("encrypt: value exceeds %s: %w", w, fhe.ErrCiphertextDomain)
	}
	return c.store(new(big.Int).Set(value), w), nil
}

// EncryptUint64 is a convenience wrapper for small plaintexts.
func (c *Coprocessor) EncryptUint64(value uint64, w fhe.Width) (fhe.Ciphertext, error) {
	return c.Encrypt(new(big.Int).SetUint64(value), w)
}

// Decrypt reveals the plaintext behind a handle. Test/harness use only.
func (c *Coprocessor) Decrypt(ct fhe.Ciphertext) (*big.Int, error) {
	e, err := c.load(ct)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(e.value), nil
}

// DecryptUint64 decrypts a value known to fit 64 bits.
func (c *Coprocessor) DecryptUint64(ct fhe.Ciphertext) (uint64, error) {
	v, err := c.Decrypt(ct)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("decrypt: value exceeds uint64: %w", fhe.ErrCiphertextDomain)
	}
	return v.Uint64(), nil
}

// DecryptBool decrypts an encrypted boolean.
func (c *Coprocessor) DecryptBool(ct fhe.Ciphertext) (bool, error) {
	if ct.Width != fhe.Bool {
		return false, fmt.Errorf("decrypt bool: got %s: %w", ct.Width, fhe.ErrCiphertextDomain)
	}
	v, err := c.Decrypt(ct)
	if err != nil {
		return false, err
	}
	return v.Sign() != 0, nil
}

// Ops returns a copy of the per-operation invocation counts.
func (c *Coprocessor) Ops() map[string]int {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	out := make(map[string]int, len(c.opCounts))
	for k, v := range c.opCounts {
		out[k] = v
	}
	return out
}

// ResetOps clears the invocation counts.
func (c *Coprocessor) ResetOps() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.opCounts = make(map[string]int)
}

func (c *Coprocessor) count(op string) {
	c.opMu.Lock()
	c.opCounts[op]++
	c.opMu.Unlock()
}

func (c *Coprocessor) store(v *big.Int, w fhe.Width) fhe.Ciphertext {
	v.And(v, mask(w))

	// Handles are random, not content-addressed: two encryptions of the same
	// value must not be linkable by handle equality.
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		panic(fmt.Sprintf("sim: entropy unavailable: %v", err))
	}
	h := fhe.Handle(hex.EncodeToString(raw[:]))

	c.mu.Lock()
	c.values[h] = &entry{value: v, width: w}
	c.mu.Unlock()

	return fhe.Ciphertext{Handle: h, Width: w}
}

func (c *Coprocessor) load(ct fhe.Ciphertext) (*entry, error) {
	c.mu.RLock()
	e, ok := c.values[ct.Handle]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown handle %q: %w", ct.Handle, fhe.ErrCiphertextDomain)
	}
	if e.width != ct.Width {
		return nil, fmt.Errorf("handle width %s, declared %s: %w", e.width, ct.Width, fhe.ErrCiphertextDomain)
	}
	return e, nil
}

func (c *Coprocessor) loadPair(a, b fhe.Ciphertext) (*entry, *entry, error) {
	ea, err := c.load(a)
	if err != nil {
		return nil, nil, err
	}
	eb, err := c.load(b)
	if err != nil {
		return nil, nil, err
	}
	if ea.width != eb.width {
		return nil, nil, fmt.Errorf("operand widths %s vs %s: %w", ea.width, eb.width, fhe.ErrCiphertextDomain)
	}
	return ea, eb, nil
}

func mask(w fhe.Width) *big.Int {
	m := new(big.Int).Lsh(big.NewInt(1), uint(w.Bits()))
	return m.Sub(m, big.NewInt(1))
}

func boolBig(b bool) *big.Int {
	if b {
		return big.NewInt(1)
	}
	return big.NewInt(0)
}

// Add returns a+b mod 2^w.
func (c *Coprocessor) Add(_ context.Context, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	c.count("add")
	ea, eb, err := c.loadPair(a, b)
	if err != nil {
		return fhe.Ciphertext{}, err
	}
	return c.store(new(big.Int).Add(ea.value, eb.value), ea.width), nil
}

// Sub returns a-b mod 2^w.
func (c *Coprocessor) Sub(_ context.Context, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	c.count("sub")
	ea, eb, err := c.loadPair(a, b)
	if err != nil {
		return fhe.Ciphertext{}, err
	}
	return c.store(new(big.Int).Sub(ea.value, eb.value), ea.width), nil
}

// Mul returns a*b mod 2^w.
func (c *Coprocessor) Mul(_ context.Context, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	c.count("mul")
	ea, eb, err := c.loadPair(a, b)
	if err != nil {
		return fhe.Ciphertext{}, err
	}
	return c.store(new(big.Int).Mul(ea.value, eb.value), ea.width), nil
}

// ScalarMul returns a*k mod 2^w.
func (c *Coprocessor) ScalarMul(_ context.Context, a fhe.Ciphertext, k uint64) (fhe.Ciphertext, error) {
	c.count("scalar_mul")
	ea, err := c.load(a)
	if err != nil {
		return fhe.Ciphertext{}, err
	}
	return c.store(new(big.Int).Mul(ea.value, new(big.Int).SetUint64(k)), ea.width), nil
}

// ScalarDiv returns floor(a/k).
func (c *Coprocessor) ScalarDiv(_ context.Context, a fhe.Ciphertext, k uint64) (fhe.Ciphertext, error) {
	c.count("scalar_div")
	if k == 0 {
		return fhe.Ciphertext{}, fmt.Errorf("scalar div by zero: %w", fhe.ErrCiphertextDomain)
	}
	ea, err := c.load(a)
	if err != nil {
		return fhe.Ciphertext{}, err
	}
	return c.store(new(big.Int).Div(ea.value, new(big.Int).SetUint64(k)), ea.width), nil
}

// Gt returns an encrypted boolean a > b.
func (c *Coprocessor) Gt(_ context.Context, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	c.count("gt")
	ea, eb, err := c.loadPair(a, b)
	if err != nil {
		return fhe.Ciphertext{}, err
	}
	return c.store(boolBig(ea.value.Cmp(eb.value) > 0), fhe.Bool), nil
}

// Lt returns an encrypted boolean a < b.
func (c *Coprocessor) Lt(_ context.Context, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	c.count("lt")
	ea, eb, err := c.loadPair(a, b)
	if err != nil {
		return fhe.Ciphertext{}, err
	}
	return c.store(boolBig(ea.value.Cmp(eb.value) < 0), fhe.Bool), nil
}

// GtScalar returns an encrypted boolean a > k.
func (c *Coprocessor) GtScalar(_ context.Context, a fhe.Ciphertext, k uint64) (fhe.Ciphertext, error) {
	c.count("gt_scalar")
	ea, err := c.load(a)
	if err != nil {
		return fhe.Ciphertext{}, err
	}
	return c.store(boolBig(ea.value.Cmp(new(big.Int).SetUint64(k)) > 0), fhe.Bool), nil
}

// LtScalar returns an encrypted boolean a < k.
func (c *Coprocessor) LtScalar(_ context.Context, a fhe.Ciphertext, k uint64) (fhe.Ciphertext, error) {
	c.count("lt_scalar")
	ea, err := c.load(a)
	if err != nil {
		return fhe.Ciphertext{}, err
	}
	return c.store(boolBig(ea.value.Cmp(new(big.Int).SetUint64(k)) < 0), fhe.Bool), nil
}

// And returns an encrypted boolean a && b.
func (c *Coprocessor) And(_ context.Context, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	c.count("and")
	ea, eb, err := c.loadBoolPair(a, b)
	if err != nil {
		return fhe.Ciphertext{}, err
	}
	return c.store(boolBig(ea.value.Sign() != 0 && eb.value.Sign() != 0), fhe.Bool), nil
}

// Or returns an encrypted boolean a || b.
func (c *Coprocessor) Or(_ context.Context, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	c.count("or")
	ea, eb, err := c.loadBoolPair(a, b)
	if err != nil {
		return fhe.Ciphertext{}, err
	}
	return c.store(boolBig(ea.value.Sign() != 0 || eb.value.Sign() != 0), fhe.Bool), nil
}

// Not returns an encrypted boolean !a.
func (c *Coprocessor) Not(_ context.Context, a fhe.Ciphertext) (fhe.Ciphertext, error) {
	c.count("not")
	if a.Width != fhe.Bool {
		return fhe.Ciphertext{}, fmt.Errorf("not over %s: %w", a.Width, fhe.ErrCiphertextDomain)
	}
	ea, err := c.load(a)
	if err != nil {
		return fhe.Ciphertext{}, err
	}
	return c.store(boolBig(ea.value.Sign() == 0), fhe.Bool), nil
}

// Select returns a when cond is true, b otherwise.
func (c *Coprocessor) Select(_ context.Context, cond, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	c.count("select")
	if cond.Width != fhe.Bool {
		return fhe.Ciphertext{}, fmt.Errorf("select condition %s: %w", cond.Width, fhe.ErrCiphertextDomain)
	}
	ec, err := c.load(cond)
	if err != nil {
		return fhe.Ciphertext{}, err
	}
	ea, eb, err := c.loadPair(a, b)
	if err != nil {
		return fhe.Ciphertext{}, err
	}
	if ec.value.Sign() != 0 {
		return c.store(new(big.Int).Set(ea.value), ea.width), nil
	}
	return c.store(new(big.Int).Set(eb.value), eb.width), nil
}

// Cast re-encrypts at a different width, truncating when narrowing.
func (c *Coprocessor) Cast(_ context.Context, a fhe.Ciphertext, to fhe.Width) (fhe.Ciphertext, error) {
	c.count("cast")
	if !to.Valid() {
		return fhe.Ciphertext{}, fmt.Errorf("cast to %s: %w", to, fhe.ErrCiphertextDomain)
	}
	ea, err := c.load(a)
	if err != nil {
		return fhe.Ciphertext{}, err
	}
	return c.store(new(big.Int).Set(ea.value), to), nil
}

// TrivialEncrypt produces a ciphertext of a public constant.
func (c *Coprocessor) TrivialEncrypt(_ context.Context, value uint64, w fhe.Width) (fhe.Ciphertext, error) {
	c.count("trivial_encrypt")
	if !w.Valid() {
		return fhe.Ciphertext{}, fmt.Errorf("trivial encrypt at %s: %w", w, fhe.ErrCiphertextDomain)
	}
	if w == fhe.Bool && value > 1 {
		return fhe.Ciphertext{}, fmt.Errorf("trivial bool %d: %w", value, fhe.ErrCiphertextDomain)
	}
	return c.store(new(big.Int).SetUint64(value), w), nil
}

func (c *Coprocessor) loadBoolPair(a, b fhe.Ciphertext) (*entry, *entry, error) {
	if a.Width != fhe.Bool || b.Width != fhe.Bool {
		return nil, nil, fmt.Errorf("boolean op over %s, %s: %w", a.Width, b.Width, fhe.ErrCiphertextDomain)
	}
	return c.loadPairNoWidthCheck(a, b)
}

func (c *Coprocessor) loadPairNoWidthCheck(a, b fhe.Ciphertext) (*entry, *entry, error) {
	ea, err := c.load(a)
	if err != nil {
		return nil, nil, err
	}
	eb, err := c.load(b)
	if err != nil {
		return nil, nil, err
	}
	return ea, eb, nil
}

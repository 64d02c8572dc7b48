// Package fhe defines the contract between the engine and the external
// homomorphic-encryption coprocessor.
//
// Ciphertexts are opaque handles owned by the coprocessor; the engine never
// sees key material or plaintext. Every primitive is a constant-shape circuit:
// implementations must not branch on encrypted values, and comparison results
// come back as encrypted booleans consumed only by Select/And/Or/Not.
package fhe

import (
	"context"
	"errors"
	"fmt"
)

// Adapter errors. Implementations wrap these so callers can use errors.Is.
var (
	// ErrCiphertextDomain is returned for an unknown handle, a width mismatch
	// between operands, or an input outside its declared bit-width domain.
	ErrCiphertextDomain = errors.New("ciphertext outside declared domain")

	// ErrAdapterFailure is returned when an underlying homomorphic primitive
	// failed or timed out. Callers decide whether to retry.
	ErrAdapterFailure = errors.New("coprocessor primitive failed")
)

// Width identifies the bit width of an encrypted value.
type Width uint8

const (
	Bool Width = iota // encrypted boolean (0 or 1)
	U32
	U64
	U128
)

// Bits returns the number of plaintext bits the width covers.
func (w Width) Bits() int {
	switch w {
	case Bool:
		return 1
	case U32:
		return 32
	case U64:
		return 64
	case U128:
		return 128
	default:
		return 0
	}
}

func (w Width) String() string {
	switch w {
	case Bool:
		return "ebool"
	case U32:
		return "euint32"
	case U64:
		return "euint64"
	case U128:
		return "euint128"
	default:
		return fmt.Sprintf("width(%d)", uint8(w))
	}
}

// Valid reports whether the width is one of the declared domains.
func (w Width) Valid() bool {
	return w == Bool || w == U32 || w == U64 || w == U128
}

// Handle uniquely identifies a ciphertext held by the coprocessor.
type Handle string

// Ciphertext is an opaque reference to an encrypted value of a declared width.
type Ciphertext struct {
	Handle Handle
	Width  Width
}

// IsZero reports whether the reference is unset.
func (c Ciphertext) IsZero() bool {
	return c.Handle == ""
}

// Coprocessor is the primitive-operation contract consumed by the engine.
//
// Arithmetic is modular (mod 2^width). Binary operations require both operands
// to share a width; Gt/Lt return Bool ciphertexts. Select requires cond to be
// Bool and a, b to share a width. Scalar variants take a plaintext operand,
// which is permitted: scalars originate from operator policy, never from
// trader data.
type Coprocessor interface {
	Add(ctx context.Context, a, b Ciphertext) (Ciphertext, error)
	Sub(ctx context.Context, a, b Ciphertext) (Ciphertext, error)
	Mul(ctx context.Context, a, b Ciphertext) (Ciphertext, error)

	ScalarMul(ctx context.Context, a Ciphertext, k uint64) (Ciphertext, error)
	// ScalarDiv divides by a plaintext constant. This is the primitive behind
	// weighted averages; k must be nonzero.
	ScalarDiv(ctx context.Context, a Ciphertext, k uint64) (Ciphertext, error)

	Gt(ctx context.Context, a, b Ciphertext) (Ciphertext, error)
	Lt(ctx context.Context, a, b Ciphertext) (Ciphertext, error)
	GtScalar(ctx context.Context, a Ciphertext, k uint64) (Ciphertext, error)
	LtScalar(ctx context.Context, a Ciphertext, k uint64) (Ciphertext, error)

	And(ctx context.Context, a, b Ciphertext) (Ciphertext, error)
	Or(ctx context.Context, a, b Ciphertext) (Ciphertext, error)
	Not(ctx context.Context, a Ciphertext) (Ciphertext, error)

	// Select returns a if cond decrypts to true, b otherwise, without
	// revealing which branch was taken.
	Select(ctx context.Context, cond, a, b Ciphertext) (Ciphertext, error)

	// Cast re-encrypts a value at a different width. Narrowing truncates.
	Cast(ctx context.Context, a Ciphertext, to Width) (Ciphertext, error)

	// TrivialEncrypt produces a ciphertext of a public constant. Trivial
	// encryptions carry no entropy and must only hold operator-chosen values.
	TrivialEncrypt(ctx context.Context, value uint64, w Width) (Ciphertext, error)
}

package sim

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"mev-sentinel/internal/fhe"
)

func mustEncrypt(t *testing.T, c *Coprocessor, v uint64, w fhe.Width) fhe.Ciphertext {
	t.Helper()
	ct, err := c.EncryptUint64(v, w)
	if err != nil {
		t.Fatalf("encrypt %d at %s: %v", v, w, err)
	}
	return ct
}

func TestArithmeticRoundTrip(t *testing.T) {
	c := New()
	ctx := context.Background()

	a := mustEncrypt(t, c, 40, fhe.U64)
	b := mustEncrypt(t, c, 2, fhe.U64)

	cases := []struct {
		name string
		op   func() (fhe.Ciphertext, error)
		want uint64
	}{
		{"add", func() (fhe.Ciphertext, error) { return c.Add(ctx, a, b) }, 42},
		{"sub", func() (fhe.Ciphertext, error) { return c.Sub(ctx, a, b) }, 38},
		{"mul", func() (fhe.Ciphertext, error) { return c.Mul(ctx, a, b) }, 80},
		{"scalar_mul", func() (fhe.Ciphertext, error) { return c.ScalarMul(ctx, a, 3) }, 120},
		{"scalar_div", func() (fhe.Ciphertext, error) { return c.ScalarDiv(ctx, a, 16) }, 2},
	}
	for _, tc := range cases {
		ct, err := tc.op()
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		got, err := c.DecryptUint64(ct)
		if err != nil {
			t.Fatalf("%s decrypt: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s: got %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestArithmeticWrapsAtWidth(t *testing.T) {
	c := New()
	ctx := context.Background()

	max32 := mustEncrypt(t, c, 1<<32-1, fhe.U32)
	one := mustEncrypt(t, c, 1, fhe.U32)

	sum, err := c.Add(ctx, max32, one)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	got, err := c.DecryptUint64(sum)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != 0 {
		t.Errorf("expected wraparound to 0, got %d", got)
	}

	// Subtraction below zero wraps too.
	diff, err := c.Sub(ctx, one, max32)
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	got, err = c.DecryptUint64(diff)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != 2 {
		t.Errorf("expected 1 - (2^32-1) = 2 mod 2^32, got %d", got)
	}
}

func TestComparisonsAndSelect(t *testing.T) {
	c := New()
	ctx := context.Background()

	a := mustEncrypt(t, c, 10, fhe.U64)
	b := mustEncrypt(t, c, 20, fhe.U64)

	lt, err := c.Lt(ctx, a, b)
	if err != nil {
		t.Fatalf("lt: %v", err)
	}
	isLt, err := c.DecryptBool(lt)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !isLt {
		t.Errorf("10 < 20 decrypted false")
	}

	picked, err := c.Select(ctx, lt, a, b)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	got, err := c.DecryptUint64(picked)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != 10 {
		t.Errorf("select picked %d, want 10", got)
	}

	gtScalar, err := c.GtScalar(ctx, b, 20)
	if err != nil {
		t.Fatalf("gt scalar: %v", err)
	}
	isGt, err := c.DecryptBool(gtScalar)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if isGt {
		t.Errorf("20 > 20 decrypted true")
	}
}

func TestBooleanOps(t *testing.T) {
	c := New()
	ctx := context.Background()

	tr := mustEncrypt(t, c, 1, fhe.Bool)
	fa := mustEncrypt(t, c, 0, fhe.Bool)

	and, err := c.And(ctx, tr, fa)
	if err != nil {
		t.Fatalf("and: %v", err)
	}
	if v, _ := c.DecryptBool(and); v {
		t.Errorf("true && false decrypted true")
	}

	or, err := c.Or(ctx, tr, fa)
	if err != nil {
		t.Fatalf("or: %v", err)
	}
	if v, _ := c.DecryptBool(or); !v {
		t.Errorf("true || false decrypted false")
	}

	not, err := c.Not(ctx, fa)
	if err != nil {
		t.Fatalf("not: %v", err)
	}
	if v, _ := c.DecryptBool(not); !v {
		t.Errorf("!false decrypted false")
	}
}

func TestDomainErrors(t *testing.T) {
	c := New()
	ctx := context.Background()

	a := mustEncrypt(t, c, 1, fhe.U64)
	b := mustEncrypt(t, c, 1, fhe.U32)

	if _, err := c.Add(ctx, a, b); !errors.Is(err, fhe.ErrCiphertextDomain) {
		t.Errorf("width mismatch: expected ErrCiphertextDomain, got %v", err)
	}

	forged := fhe.Ciphertext{Handle: "no-such-handle", Width: fhe.U64}
	if _, err := c.Add(ctx, a, forged); !errors.Is(err, fhe.ErrCiphertextDomain) {
		t.Errorf("unknown handle: expected ErrCiphertextDomain, got %v", err)
	}

	// Declaring the wrong width for a known handle is also a domain error.
	relabeled := fhe.Ciphertext{Handle: a.Handle, Width: fhe.U32}
	if _, err := c.Decrypt(relabeled); !errors.Is(err, fhe.ErrCiphertextDomain) {
		t.Errorf("relabeled width: expected ErrCiphertextDomain, got %v", err)
	}

	if _, err := c.ScalarDiv(ctx, a, 0); !errors.Is(err, fhe.ErrCiphertextDomain) {
		t.Errorf("div by zero: expected ErrCiphertextDomain, got %v", err)
	}

	if _, err := c.TrivialEncrypt(ctx, 2, fhe.Bool); !errors.Is(err, fhe.ErrCiphertextDomain) {
		t.Errorf("trivial bool 2: expected ErrCiphertextDomain, got %v", err)
	}
}

func TestHandlesAreUnlinkable(t *testing.T) {
	c := New()

	a := mustEncrypt(t, c, 7, fhe.U64)
	b := mustEncrypt(t, c, 7, fhe.U64)
	if a.Handle == b.Handle {
		t.Errorf("two encryptions of the same value share a handle")
	}
}

func TestCastWidens(t *testing.T) {
	c := New()
	ctx := context.Background()

	small := mustEncrypt(t, c, 12345, fhe.U64)
	wide, err := c.Cast(ctx, small, fhe.U128)
	if err != nil {
		t.Fatalf("cast: %v", err)
	}
	if wide.Width != fhe.U128 {
		t.Errorf("cast width: got %s, want %s", wide.Width, fhe.U128)
	}
	v, err := c.Decrypt(wide)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if v.Cmp(big.NewInt(12345)) != 0 {
		t.Errorf("cast value: got %s, want 12345", v)
	}
}

func TestEncryptRejectsOutOfDomain(t *testing.T) {
	c := New()

	too := new(big.Int).Lsh(big.NewInt(1), 64)
	if _, err := c.Encrypt(too, fhe.U64); !errors.Is(err, fhe.ErrCiphertextDomain) {
		t.Errorf("2^64 at u64: expected ErrCiphertextDomain, got %v", err)
	}
	if _, err := c.Encrypt(big.NewInt(-1), fhe.U64); !errors.Is(err, fhe.ErrCiphertextDomain) {
		t.Errorf("negative: expected ErrCiphertextDomain, got %v", err)
	}
}

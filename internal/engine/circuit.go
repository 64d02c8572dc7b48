package engine

import (
	"context"

	"mev-sentinel/internal/fhe"
)

// circuit sequences coprocessor primitives with a sticky error so circuit
// code reads as straight-line arithmetic. The first failure poisons the
// circuit; later calls are no-ops and the error is surfaced once at the end.
// The call sequence is identical for every input, which keeps the evaluated
// shape constant: no step is ever skipped based on data.
type circuit struct {
	ctx context.Context
	cop fhe.Coprocessor
	err error
}

func newCircuit(ctx context.Context, cop fhe.Coprocessor) *circuit {
	return &circuit{ctx: ctx, cop: cop}
}

func (c *circuit) run(f func() (fhe.Ciphertext, error)) fhe.Ciphertext {
	if c.err != nil {
		return fhe.Ciphertext{}
	}
	ct, err := f()
	if err != nil {
		c.err = err
		return fhe.Ciphertext{}
	}
	return ct
}

func (c *circuit) add(a, b fhe.Ciphertext) fhe.Ciphertext {
	return c.run(func() (fhe.Ciphertext, error) { return c.cop.Add(c.ctx, a, b) })
}

func (c *circuit) sub(a, b fhe.Ciphertext) fhe.Ciphertext {
	return c.run(func() (fhe.Ciphertext, error) { return c.cop.Sub(c.ctx, a, b) })
}

func (c *circuit) mul(a, b fhe.Ciphertext) fhe.Ciphertext {
	return c.run(func() (fhe.Ciphertext, error) { return c.cop.Mul(c.ctx, a, b) })
}

func (c *circuit) scalarMul(a fhe.Ciphertext, k uint64) fhe.Ciphertext {
	return c.run(func() (fhe.Ciphertext, error) { return c.cop.ScalarMul(c.ctx, a, k) })
}

func (c *circuit) scalarDiv(a fhe.Ciphertext, k uint64) fhe.Ciphertext {
	return c.run(func() (fhe.Ciphertext, error) { return c.cop.ScalarDiv(c.ctx, a, k) })
}

func (c *circuit) gt(a, b fhe.Ciphertext) fhe.Ciphertext {
	return c.run(func() (fhe.Ciphertext, error) { return c.cop.Gt(c.ctx, a, b) })
}

func (c *circuit) gtScalar(a fhe.Ciphertext, k uint64) fhe.Ciphertext {
	return c.run(func() (fhe.Ciphertext, error) { return c.cop.GtScalar(c.ctx, a, k) })
}

func (c *circuit) ltScalar(a fhe.Ciphertext, k uint64) fhe.Ciphertext {
	return c.run(func() (fhe.Ciphertext, error) { return c.cop.LtScalar(c.ctx, a, k) })
}

func (c *circuit) not(a fhe.Ciphertext) fhe.Ciphertext {
	return c.run(func() (fhe.Ciphertext, error) { return c.cop.Not(c.ctx, a) })
}

func (c *circuit) sel(cond, a, b fhe.Ciphertext) fhe.Ciphertext {
	return c.run(func() (fhe.Ciphertext, error) { return c.cop.Select(c.ctx, cond, a, b) })
}

func (c *circuit) cast(a fhe.Ciphertext, to fhe.Width) fhe.Ciphertext {
	return c.run(func() (fhe.Ciphertext, error) { return c.cop.Cast(c.ctx, a, to) })
}

func (c *circuit) enc(value uint64, w fhe.Width) fhe.Ciphertext {
	return c.run(func() (fhe.Ciphertext, error) { return c.cop.TrivialEncrypt(c.ctx, value, w) })
}

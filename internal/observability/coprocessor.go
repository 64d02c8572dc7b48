package observability

import (
	"context"
	"errors"
	"time"

	"mev-sentinel/internal/fhe"
)

// InstrumentedCoprocessor wraps a Coprocessor with per-primitive call,
// latency and error metrics. Only operation names and timings are recorded.
type InstrumentedCoprocessor struct {
	inner   fhe.Coprocessor
	metrics *Metrics
}

// NewInstrumentedCoprocessor wraps cop with metrics.
func NewInstrumentedCoprocessor(cop fhe.Coprocessor, m *Metrics) *InstrumentedCoprocessor {
	return &InstrumentedCoprocessor{inner: cop, metrics: m}
}

// Compile-time interface check.
var _ fhe.Coprocessor = (*InstrumentedCoprocessor)(nil)

func (c *InstrumentedCoprocessor) observe(op string, start time.Time, err error) {
	c.metrics.CoprocessorCalls.WithLabelValues(op).Inc()
	c.metrics.CoprocessorLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		kind := "adapter"
		if errors.Is(err, fhe.ErrCiphertextDomain) {
			kind = "domain"
		}
		c.metrics.CoprocessorErrors.WithLabelValues(op, kind).Inc()
	}
}

func (c *InstrumentedCoprocessor) Add(ctx context.Context, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	start := time.Now()
	ct, err := c.inner.Add(ctx, a, b)
	c.observe("add", start, err)
	return ct, err
}

func (c *InstrumentedCoprocessor) Sub(ctx context.Context, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	start := time.Now()
	ct, err := c.inner.Sub(ctx, a, b)
	c.observe("sub", start, err)
	return ct, err
}

func (c *InstrumentedCoprocessor) Mul(ctx context.Context, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	start := time.Now()
	ct, err := c.inner.Mul(ctx, a, b)
	c.observe("mul", start, err)
	return ct, err
}

func (c *InstrumentedCoprocessor) ScalarMul(ctx context.Context, a fhe.Ciphertext, k uint64) (fhe.Ciphertext, error) {
	start := time.Now()
	ct, err := c.inner.ScalarMul(ctx, a, k)
	c.observe("scalar_mul", start, err)
	return ct, err
}

func (c *InstrumentedCoprocessor) ScalarDiv(ctx context.Context, a fhe.Ciphertext, k uint64) (fhe.Ciphertext, error) {
	start := time.Now()
	ct, err := c.inner.ScalarDiv(ctx, a, k)
	c.observe("scalar_div", start, err)
	return ct, err
}

func (c *InstrumentedCoprocessor) Gt(ctx context.Context, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	start := time.Now()
	ct, err := c.inner.Gt(ctx, a, b)
	c.observe("gt", start, err)
	return ct, err
}

func (c *InstrumentedCoprocessor) Lt(ctx context.Context, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	start := time.Now()
	ct, err := c.inner.Lt(ctx, a, b)
	c.observe("lt", start, err)
	return ct, err
}

func (c *InstrumentedCoprocessor) GtScalar(ctx context.Context, a fhe.Ciphertext, k uint64) (fhe.Ciphertext, error) {
	start := time.Now()
	ct, err := c.inner.GtScalar(ctx, a, k)
	c.observe("gt_scalar", start, err)
	return ct, err
}

func (c *InstrumentedCoprocessor) LtScalar(ctx context.Context, a fhe.Ciphertext, k uint64) (fhe.Ciphertext, error) {
	start := time.Now()
	ct, err := c.inner.LtScalar(ctx, a, k)
	c.observe("lt_scalar", start, err)
	return ct, err
}

func (c *InstrumentedCoprocessor) And(ctx context.Context, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	start := time.Now()
	ct, err := c.inner.And(ctx, a, b)
	c.observe("and", start, err)
	return ct, err
}

func (c *InstrumentedCoprocessor) Or(ctx context.Context, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	start := time.Now()
	ct, err := c.inner.Or(ctx, a, b)
	c.observe("or", start, err)
	return ct, err
}

func (c *InstrumentedCoprocessor) Not(ctx context.Context, a fhe.Ciphertext) (fhe.Ciphertext, error) {
	start := time.Now()
	ct, err := c.inner.Not(ctx, a)
	c.observe("not", start, err)
	return ct, err
}

func (c *InstrumentedCoprocessor) Select(ctx context.Context, cond, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	start := time.Now()
	ct, err := c.inner.Select(ctx, cond, a, b)
	c.observe("select", start, err)
	return ct, err
}

func (c *InstrumentedCoprocessor) Cast(ctx context.Context, a fhe.Ciphertext, to fhe.Width) (fhe.Ciphertext, error) {
	start := time.Now()
	ct, err := c.inner.Cast(ctx, a, to)
	c.observe("cast", start, err)
	return ct, err
}

func (c *InstrumentedCoprocessor) TrivialEncrypt(ctx context.Context, value uint64, w fhe.Width) (fhe.Ciphertext, error) {
	start := time.Now()
	ct, err := c.inner.TrivialEncrypt(ctx, value, w)
	c.observe("trivial_encrypt", start, err)
	return ct, err
}

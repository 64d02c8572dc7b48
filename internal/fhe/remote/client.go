// Package remote implements the fhe.Coprocessor interface over an HTTP
// JSON-RPC 2.0 connection to an external FHE coprocessor service. The
// service owns the keys and the ciphertext store; this client only moves
// handles around.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"mev-sentinel/internal/fhe"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// Coprocessor RPC error codes. Codes in this range indicate the request
// itself was invalid and must not be retried.
const (
	codeUnknownHandle = -32001
	codeWidthMismatch = -32002
)

// Client implements fhe.Coprocessor using HTTP JSON-RPC 2.0.
type Client struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// Compile-time interface check.
var _ fhe.Coprocessor = (*Client)(nil)

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a new coprocessor RPC client.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// operandRef is the wire shape of a ciphertext argument.
type operandRef struct {
	Handle string `json:"handle"`
	Width  int    `json:"width"`
}

func ref(ct fhe.Ciphertext) operandRef {
	return operandRef{Handle: string(ct.Handle), Width: ct.Width.Bits()}
}

// opResult is the wire shape of a ciphertext produced by the service.
type opResult struct {
	Handle string `json:"handle"`
	Width  int    `json:"width"`
}

func (r opResult) ciphertext(want fhe.Width) (fhe.Ciphertext, error) {
	if r.Handle == "" {
		return fhe.Ciphertext{}, fmt.Errorf("%w: empty result handle", fhe.ErrAdapterFailure)
	}
	if r.Width != want.Bits() {
		return fhe.Ciphertext{}, fmt.Errorf("%w: result width %d, want %d", fhe.ErrAdapterFailure, r.Width, want.Bits())
	}
	return fhe.Ciphertext{Handle: fhe.Handle(r.Handle), Width: want}, nil
}

// call performs a JSON-RPC call with retries and exponential backoff.
func (c *Client) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// Domain errors are the caller's fault and are not retried.
			switch rpcResp.Error.Code {
			case codeUnknownHandle, codeWidthMismatch:
				return fmt.Errorf("%w: %s", fhe.ErrCiphertextDomain, rpcResp.Error.Message)
			}
			return fmt.Errorf("%w: %s", fhe.ErrAdapterFailure, rpcResp.Error.Error())
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("%w: max retries exceeded: %v", fhe.ErrAdapterFailure, lastErr)
}

// binaryParams is the wire shape of a two-operand request.
type binaryParams struct {
	A operandRef `json:"a"`
	B operandRef `json:"b"`
}

// scalarParams is the wire shape of a ciphertext-scalar request.
type scalarParams struct {
	A      operandRef `json:"a"`
	Scalar uint64     `json:"scalar"`
}

func (c *Client) binary(ctx context.Context, method string, a, b fhe.Ciphertext, out fhe.Width) (fhe.Ciphertext, error) {
	if a.Width != b.Width {
		return fhe.Ciphertext{}, fmt.Errorf("%w: %s operands %s and %s", fhe.ErrCiphertextDomain, method, a.Width, b.Width)
	}
	var res opResult
	if err := c.call(ctx, method, binaryParams{A: ref(a), B: ref(b)}, &res); err != nil {
		return fhe.Ciphertext{}, err
	}
	return res.ciphertext(out)
}

func (c *Client) scalar(ctx context.Context, method string, a fhe.Ciphertext, k uint64, out fhe.Width) (fhe.Ciphertext, error) {
	var res opResult
	if err := c.call(ctx, method, scalarParams{A: ref(a), Scalar: k}, &res); err != nil {
		return fhe.Ciphertext{}, err
	}
	return res.ciphertext(out)
}

// Add returns a+b under encryption.
func (c *Client) Add(ctx context.Context, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	return c.binary(ctx, "fhe_add", a, b, a.Width)
}

// Sub returns a-b under encryption.
func (c *Client) Sub(ctx context.Context, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	return c.binary(ctx, "fhe_sub", a, b, a.Width)
}

// Mul returns a*b under encryption.
func (c *Client) Mul(ctx context.Context, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	return c.binary(ctx, "fhe_mul", a, b, a.Width)
}

// ScalarMul returns a*k for plaintext k.
func (c *Client) ScalarMul(ctx context.Context, a fhe.Ciphertext, k uint64) (fhe.Ciphertext, error) {
	return c.scalar(ctx, "fhe_scalarMul", a, k, a.Width)
}

// ScalarDiv returns a/k for plaintext k.
func (c *Client) ScalarDiv(ctx context.Context, a fhe.Ciphertext, k uint64) (fhe.Ciphertext, error) {
	if k == 0 {
		return fhe.Ciphertext{}, fmt.Errorf("%w: scalar division by zero", fhe.ErrCiphertextDomain)
	}
	return c.scalar(ctx, "fhe_scalarDiv", a, k, a.Width)
}

// Gt returns an encrypted bool for a > b.
func (c *Client) Gt(ctx context.Context, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	return c.binary(ctx, "fhe_gt", a, b, fhe.Bool)
}

// Lt returns an encrypted bool for a < b.
func (c *Client) Lt(ctx context.Context, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	return c.binary(ctx, "fhe_lt", a, b, fhe.Bool)
}

// GtScalar returns an encrypted bool for a > k.
func (c *Client) GtScalar(ctx context.Context, a fhe.Ciphertext, k uint64) (fhe.Ciphertext, error) {
	return c.scalar(ctx, "fhe_gtScalar", a, k, fhe.Bool)
}

// LtScalar returns an encrypted bool for a < k.
func (c *Client) LtScalar(ctx context.Context, a fhe.Ciphertext, k uint64) (fhe.Ciphertext, error) {
	return c.scalar(ctx, "fhe_ltScalar", a, k, fhe.Bool)
}

// And returns the encrypted conjunction of two encrypted bools.
func (c *Client) And(ctx context.Context, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	if a.Width != fhe.Bool || b.Width != fhe.Bool {
		return fhe.Ciphertext{}, fmt.Errorf("%w: and requires bool operands", fhe.ErrCiphertextDomain)
	}
	return c.binary(ctx, "fhe_and", a, b, fhe.Bool)
}

// Or returns the encrypted disjunction of two encrypted bools.
func (c *Client) Or(ctx context.Context, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	if a.Width != fhe.Bool || b.Width != fhe.Bool {
		return fhe.Ciphertext{}, fmt.Errorf("%w: or requires bool operands", fhe.ErrCiphertextDomain)
	}
	return c.binary(ctx, "fhe_or", a, b, fhe.Bool)
}

// Not returns the encrypted negation of an encrypted bool.
func (c *Client) Not(ctx context.Context, a fhe.Ciphertext) (fhe.Ciphertext, error) {
	if a.Width != fhe.Bool {
		return fhe.Ciphertext{}, fmt.Errorf("%w: not requires a bool operand", fhe.ErrCiphertextDomain)
	}
	var res opResult
	if err := c.call(ctx, "fhe_not", ref(a), &res); err != nil {
		return fhe.Ciphertext{}, err
	}
	return res.ciphertext(fhe.Bool)
}

// selectParams is the wire shape of an oblivious-select request.
type selectParams struct {
	Cond operandRef `json:"cond"`
	A    operandRef `json:"a"`
	B    operandRef `json:"b"`
}

// Select returns a if cond else b, without revealing cond.
func (c *Client) Select(ctx context.Context, cond, a, b fhe.Ciphertext) (fhe.Ciphertext, error) {
	if cond.Width != fhe.Bool {
		return fhe.Ciphertext{}, fmt.Errorf("%w: select condition must be bool", fhe.ErrCiphertextDomain)
	}
	if a.Width != b.Width {
		return fhe.Ciphertext{}, fmt.Errorf("%w: select branches %s and %s", fhe.ErrCiphertextDomain, a.Width, b.Width)
	}
	var res opResult
	if err := c.call(ctx, "fhe_select", selectParams{Cond: ref(cond), A: ref(a), B: ref(b)}, &res); err != nil {
		return fhe.Ciphertext{}, err
	}
	return res.ciphertext(a.Width)
}

// castParams is the wire shape of a width-cast request.
type castParams struct {
	A  operandRef `json:"a"`
	To int        `json:"to"`
}

// Cast re-encodes a ciphertext at a different width.
func (c *Client) Cast(ctx context.Context, a fhe.Ciphertext, to fhe.Width) (fhe.Ciphertext, error) {
	if !to.Valid() {
		return fhe.Ciphertext{}, fmt.Errorf("%w: invalid target width", fhe.ErrCiphertextDomain)
	}
	var res opResult
	if err := c.call(ctx, "fhe_cast", castParams{A: ref(a), To: to.Bits()}, &res); err != nil {
		return fhe.Ciphertext{}, err
	}
	return res.ciphertext(to)
}

// trivialParams is the wire shape of a trivial-encrypt request.
type trivialParams struct {
	Value uint64 `json:"value"`
	Width int    `json:"width"`
}

// TrivialEncrypt produces a ciphertext of a public constant.
func (c *Client) TrivialEncrypt(ctx context.Context, value uint64, width fhe.Width) (fhe.Ciphertext, error) {
	if !width.Valid() {
		return fhe.Ciphertext{}, fmt.Errorf("%w: invalid width", fhe.ErrCiphertextDomain)
	}
	var res opResult
	if err := c.call(ctx, "fhe_trivialEncrypt", trivialParams{Value: value, Width: width.Bits()}, &res); err != nil {
		return fhe.Ciphertext{}, err
	}
	return res.ciphertext(width)
}

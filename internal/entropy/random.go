// Package entropy supplies the random sources behind every simulated draw.
// Formulas take a Source so tests can pin them with a seed or a constant.
// A random.org Client is available when an API key is configured; it falls
// back to crypto/rand when the API is unavailable.
package entropy

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	mrand "math/rand"
	"net/http"
	"sync"
	"time"
)

// Source yields uniform draws. *math/rand.Rand satisfies it.
type Source interface {
	Float64() float64 // [0, 1)
	Intn(n int) int   // [0, n)
}

// NewSeeded returns a deterministic source for the given seed.
func NewSeeded(seed int64) Source {
	return &lockedRand{r: mrand.New(mrand.NewSource(seed))}
}

// lockedRand guards a math/rand generator, which is not safe for concurrent use.
type lockedRand struct {
	mu sync.Mutex
	r  *mrand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// Crypto returns a source backed by crypto/rand.
func Crypto() Source { return cryptoSource{} }

type cryptoSource struct{}

func (cryptoSource) Float64() float64 { return cryptoRandFloat() }
func (cryptoSource) Intn(n int) int   { return intnFrom(cryptoRandFloat(), n) }

// Constant always draws the same value. Intn maps it onto [0, n).
type Constant float64

func (c Constant) Float64() float64 { return float64(c) }
func (c Constant) Intn(n int) int   { return intnFrom(float64(c), n) }

// Uniform returns a draw in [lo, hi).
func Uniform(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

func intnFrom(f float64, n int) int {
	if n <= 0 {
		return 0
	}
	i := int(math.Floor(f * float64(n)))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

const (
	randomOrgURL = "https://api.random.org/json-rpc/4/invoke"
	batchSize    = 100
	lowWater     = 10

	// failureBackoff keeps a dead endpoint from being dialed on every draw.
	failureBackoff = 30 * time.Second
)

// Client draws from random.org, buffered in a local pool.
type Client struct {
	Endpoint string
	HTTP     *http.Client

	apiKey     string
	now        func() time.Time
	mu         sync.Mutex
	pool       []float64
	nextID     int
	retryAfter time.Time
}

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		Endpoint: randomOrgURL,
		HTTP:     &http.Client{Timeout: 15 * time.Second},
		apiKey:   apiKey,
		now:      time.Now,
	}
}

// Enabled reports whether the client has an API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Float64 returns a draw in [0, 1). The pool is topped up when it runs low;
// if random.org cannot be reached the draw comes from crypto/rand, and no
// refill is attempted again until failureBackoff has passed.
func (c *Client) Float64() float64 {
	if !c.Enabled() {
		return cryptoRandFloat()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pool) < lowWater && !c.now().Before(c.retryAfter) {
		fresh, err := c.fetch(context.Background())
		if err != nil {
			c.retryAfter = c.now().Add(failureBackoff)
			slog.Debug("random.org refill failed", "error", err, "retry_in", failureBackoff)
		} else {
			c.pool = append(c.pool, fresh...)
			slog.Debug("random.org pool refilled", "count", len(fresh), "pool", len(c.pool))
		}
	}
	if len(c.pool) == 0 {
		return cryptoRandFloat()
	}
	v := c.pool[0]
	c.pool = c.pool[1:]
	return v
}

// Intn returns a draw in [0, n).
func (c *Client) Intn(n int) int {
	return intnFrom(c.Float64(), n)
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int       `json:"id"`
}

type rpcParams struct {
	APIKey        string `json:"apiKey"`
	N             int    `json:"n"`
	DecimalPlaces int    `json:"decimalPlaces"`
}

type rpcResponse struct {
	Result *struct {
		Random struct {
			Data []float64 `json:"data"`
		} `json:"random"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// fetch asks for one batch of decimal fractions. Caller holds c.mu.
func (c *Client) fetch(ctx context.Context) ([]float64, error) {
	c.nextID++
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "generateDecimalFractions",
		Params:  rpcParams{APIKey: c.apiKey, N: batchSize, DecimalPlaces: 6},
		ID:      c.nextID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("random.org returned %d", resp.StatusCode)
	}

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("api error %d: %s", out.Error.Code, out.Error.Message)
	}
	if out.Result == nil {
		return nil, fmt.Errorf("empty result")
	}
	return out.Result.Random.Data, nil
}

// FromConfig picks random.org when a key is set. Otherwise seed 0 means an
// unseeded crypto source and any other seed a deterministic one.
func FromConfig(apiKey string, seed int64) Source {
	if c := NewClient(apiKey); c.Enabled() {
		return c
	}
	if seed == 0 {
		return Crypto()
	}
	return NewSeeded(seed)
}

func cryptoRandFloat() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0.5
	}
	// 53 bits fill a float64 mantissa.
	return float64(binary.LittleEndian.Uint64(buf[:])>>11) / (1 << 53)
}

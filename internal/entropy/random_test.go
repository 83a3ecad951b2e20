package entropy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestSeededIsDeterministic(t *testing.T) {
	a := NewSeeded(7)
	b := NewSeeded(7)
	for i := 0; i < 20; i++ {
		if x, y := a.Float64(), b.Float64(); x != y {
			t.Fatalf("draw %d differs: %v vs %v", i, x, y)
		}
	}
}

func TestConstantIntn(t *testing.T) {
	tests := []struct {
		c    Constant
		n    int
		want int
	}{
		{0, 5, 0},
		{0.5, 5, 2},
		{0.999, 5, 4},
		{1, 5, 4},
		{0.3, 0, 0},
	}
	for _, tc := range tests {
		if got := tc.c.Intn(tc.n); got != tc.want {
			t.Errorf("Constant(%v).Intn(%d) = %d, want %d", tc.c, tc.n, got, tc.want)
		}
	}
}

func TestUniformRange(t *testing.T) {
	src := NewSeeded(1)
	for i := 0; i < 500; i++ {
		v := Uniform(src, 70, 100)
		if v < 70 || v >= 100 {
			t.Fatalf("draw %v outside [70,100)", v)
		}
	}
}

func TestCryptoRange(t *testing.T) {
	src := Crypto()
	for i := 0; i < 100; i++ {
		if f := src.Float64(); f < 0 || f >= 1 {
			t.Fatalf("crypto draw %v outside [0,1)", f)
		}
		if n := src.Intn(3); n < 0 || n >= 3 {
			t.Fatalf("crypto Intn %d outside [0,3)", n)
		}
	}
}

func TestNilClientFallsBack(t *testing.T) {
	var c *Client
	if c.Enabled() {
		t.Fatal("nil client reports enabled")
	}
	if f := c.Float64(); f < 0 || f >= 1 {
		t.Fatalf("fallback draw %v outside [0,1)", f)
	}
	if _, ok := FromConfig("", 3).(*Client); ok {
		t.Fatal("empty key should not select random.org")
	}
	if _, ok := FromConfig("", 0).(cryptoSource); !ok {
		t.Fatal("seed 0 should select crypto/rand")
	}
	a, b := FromConfig("", 9), FromConfig("", 9)
	if a.Float64() != b.Float64() {
		t.Fatal("non-zero seed should be deterministic")
	}
}

func fakeRandomOrg(t *testing.T, status int, data []float64, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Params.APIKey != "k" {
			t.Errorf("bad request: %+v, %v", req, err)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"result":  map[string]any{"random": map[string]any{"data": data}},
			"id":      req.ID,
		})
	}))
}

func TestClientDrawsFromPool(t *testing.T) {
	data := make([]float64, batchSize)
	for i := range data {
		data[i] = float64(i) / batchSize
	}
	var calls int32
	ts := fakeRandomOrg(t, http.StatusOK, data, &calls)
	defer ts.Close()

	c := NewClient("k")
	c.Endpoint = ts.URL
	for i := 0; i < 5; i++ {
		if got := c.Float64(); got != data[i] {
			t.Fatalf("draw %d = %v, want %v", i, got, data[i])
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("refills = %d, want 1", n)
	}
}

func TestClientFallsBackOnError(t *testing.T) {
	var calls int32
	ts := fakeRandomOrg(t, http.StatusServiceUnavailable, nil, &calls)
	defer ts.Close()

	c := NewClient("k")
	c.Endpoint = ts.URL
	if f := c.Float64(); f < 0 || f >= 1 {
		t.Fatalf("fallback draw %v outside [0,1)", f)
	}
	if _, ok := FromConfig("k", 3).(*Client); !ok {
		t.Fatal("api key should select random.org")
	}
}

func TestClientBacksOffAfterFailure(t *testing.T) {
	var calls int32
	ts := fakeRandomOrg(t, http.StatusServiceUnavailable, nil, &calls)
	defer ts.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewClient("k")
	c.Endpoint = ts.URL
	c.now = func() time.Time { return now }

	for i := 0; i < 64; i++ {
		if f := c.Float64(); f < 0 || f >= 1 {
			t.Fatalf("draw %v outside [0,1)", f)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("endpoint hit %d times during backoff, want 1", n)
	}

	now = now.Add(failureBackoff)
	c.Float64()
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("endpoint hit %d times after backoff, want 2", n)
	}
}

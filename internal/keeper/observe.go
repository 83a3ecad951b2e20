// Package keeper implements the payout steward. It observes due earnings
// via the public API, decides which to pay, and realizes them through the
// admin endpoint.
package keeper

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Snapshot holds all data collected during an observation cycle.
type Snapshot struct {
	Status NodeStatus   `json:"status"`
	Due    []DueEarning `json:"due"`
}

// NodeStatus mirrors the fields of GET /api/v1/status the keeper reads.
type NodeStatus struct {
	Tick          uint64  `json:"tick"`
	SimTime       string  `json:"sim_time"`
	Speed         float64 `json:"speed"`
	Running       bool    `json:"running"`
	Contributions int     `json:"contributions"`
	WalletAddress string  `json:"wallet_address"`
}

// DueEarning mirrors items from GET /api/v1/earnings/due.
type DueEarning struct {
	ContributionID string `json:"contribution_id"`
	UserID         string `json:"user_id"`
	Earning        struct {
		Source     string    `json:"source"`
		Amount     float64   `json:"amount"`
		Status     string    `json:"status"`
		ExpectedAt time.Time `json:"expected_at"`
		Condition  string    `json:"condition"`
	} `json:"earning"`
}

// Observer fetches node state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Observe fetches status and the due-earnings list.
func (o *Observer) Observe() (*Snapshot, error) {
	snap := &Snapshot{}

	if err := o.fetchJSON("/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := o.fetchJSON("/api/v1/earnings/due", &snap.Due); err != nil {
		return nil, fmt.Errorf("fetch due earnings: %w", err)
	}
	return snap, nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(path string, target any) error {
	resp, err := o.HTTPClient.Get(o.BaseURL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

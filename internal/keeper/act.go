package keeper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// RealizeResult is the response from POST /api/v1/contributions/{id}/realize.
type RealizeResult struct {
	ContributionID string `json:"contribution_id"`
	Source         string `json:"source"`
	Realized       bool   `json:"realized"`
}

// Actor pays earnings via the admin API.
type Actor struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewActor creates an Actor targeting the given API base URL with admin auth.
func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Realize pays one earning. A result with Realized false means it was
// already settled by someone else.
func (a *Actor) Realize(p Payout) (*RealizeResult, error) {
	body, err := json.Marshal(map[string]string{"source": p.Source})
	if err != nil {
		return nil, fmt.Errorf("marshal payout: %w", err)
	}

	endpoint := a.BaseURL + "/api/v1/contributions/" + url.PathEscape(p.ContributionID) + "/realize"
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.AdminKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST realize: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("realize failed (%d): %s", resp.StatusCode, string(respBody))
	}

	var result RealizeResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

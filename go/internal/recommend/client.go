package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mcdev12/draftroom/go/internal/models"
)

// DefaultLimit is the suggestion count used when the caller asks for zero.
const DefaultLimit = 10

// HTTPClient calls an external recommendation service. The service receives
// the full session snapshot so it can account for the roster and the players
// already off the board.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

// NewHTTPClient creates a client for the recommendation service at baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers: make(map[string]string),
	}
}

func (c *HTTPClient) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *HTTPClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

type recommendRequest struct {
	Snapshot *models.SessionSnapshot `json:"snapshot"`
	Limit    int                     `json:"limit"`
}

type recommendResponse struct {
	Players []RankedPlayer `json:"players"`
}

// Recommend implements Port.
func (c *HTTPClient) Recommend(ctx context.Context, snapshot *models.SessionSnapshot, limit int) ([]RankedPlayer, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	body, err := json.Marshal(recommendRequest{Snapshot: snapshot, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recommendation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/recommendations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("recommendation service returned status code: %d, response: %s", resp.StatusCode, string(responseBody))
	}

	var parsed recommendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode recommendation response: %w", err)
	}

	if len(parsed.Players) > limit {
		parsed.Players = parsed.Players[:limit]
	}
	return parsed.Players, nil
}

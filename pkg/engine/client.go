// Package engine is the HTTP client for the external analytics query
// engine. The gateway hands it a tenant-scoped semantic query plus routing
// keys and receives back the SQL the engine compiled for the tenant's
// physical database.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/quantaleap/analytics-gateway/internal/config"
	"github.com/quantaleap/analytics-gateway/internal/core"
	"github.com/quantaleap/analytics-gateway/internal/rewriter"
)

type Client struct {
	config config.EngineConfig
	http   *http.Client
}

func NewClient(cfg config.EngineConfig) *Client {
	return &Client{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
	}
}

type compileRequest struct {
	Query   *core.SemanticQuery `json:"query"`
	Routing *rewriter.Routing   `json:"routing"`
}

type compileResponse struct {
	SQL   string `json:"sql"`
	Error string `json:"error,omitempty"`
}

// Compile sends the rewritten query to the engine's compile endpoint and
// returns the engine SQL to execute against the tenant's database.
func (c *Client) Compile(ctx context.Context, q *core.SemanticQuery, routing *rewriter.Routing) (string, error) {
	body, err := json.Marshal(compileRequest{Query: q, Routing: routing})
	if err != nil {
		return "", fmt.Errorf("failed to marshal compile request: %w", err)
	}

	url := c.config.URL + "/v1/compile"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("engine compile request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("engine compile returned status %d: %s", resp.StatusCode, string(payload))
	}

	var out compileResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode compile response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("engine compile error: %s", out.Error)
	}
	if out.SQL == "" {
		return "", fmt.Errorf("engine compile returned empty sql")
	}
	return out.SQL, nil
}

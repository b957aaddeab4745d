package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"ptero-billing/internal/config"
	"strings"
	"time"
)

type PterodactylClient interface {
	CreateServer(ctx context.Context, req *CreateServerRequest) (*ServerAttributes, error)
}

type ServerLimits struct {
	Memory int64 `json:"memory"` // MB
	Swap   int64 `json:"swap"`
	Disk   int64 `json:"disk"` // MB
	IO     int64 `json:"io"`
	CPU    int64 `json:"cpu"` // percent
}

type FeatureLimits struct {
	Databases   int64 `json:"databases"`
	Allocations int64 `json:"allocations"`
	Backups     int64 `json:"backups"`
}

type ServerAllocation struct {
	Default int64 `json:"default"`
}

type CreateServerRequest struct {
	Name          string            `json:"name"`
	User          int64             `json:"user"`
	ExternalID    string            `json:"external_id,omitempty"`
	Description   string            `json:"description,omitempty"`
	Egg           int64             `json:"egg"`
	DockerImage   string            `json:"docker_image"`
	Startup       string            `json:"startup"`
	Environment   map[string]string `json:"environment"`
	Limits        ServerLimits      `json:"limits"`
	FeatureLimits FeatureLimits     `json:"feature_limits"`
	Allocation    ServerAllocation  `json:"allocation"`
}

type ServerAttributes struct {
	ID         int64  `json:"id"`
	UUID       string `json:"uuid"`
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	ExternalID string `json:"external_id"`
}

type serverResponse struct {
	Object     string           `json:"object"`
	Attributes ServerAttributes `json:"attributes"`
}

// APIError is returned for any non-2xx answer from the panel.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pterodactyl api error: status=%d body=%s", e.StatusCode, e.Body)
}

type pterodactylClientImpl struct {
	httpClient *http.Client
	panelURL   string
	apiKey     string
}

func NewPterodactylClient(cfg *config.Pterodactyl, timeout time.Duration) PterodactylClient {
	return &pterodactylClientImpl{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		panelURL: strings.TrimRight(cfg.PanelURL, "/"),
		apiKey:   cfg.APIKey,
	}
}

func (c *pterodactylClientImpl) CreateServer(ctx context.Context, payload *CreateServerRequest) (*ServerAttributes, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/api/application/servers", payload)
	if err != nil {
		return nil, err
	}

	var result serverResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode pterodactyl response: %w", err)
	}
	if result.Attributes.ID == 0 {
		return nil, fmt.Errorf("pterodactyl response without server id")
	}

	return &result.Attributes, nil
}

func (c *pterodactylClientImpl) doRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal req payload: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.panelURL+endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "Application/vnd.pterodactyl.v1+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pterodactyl request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read pterodactyl response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 512)}
	}

	return respBody, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

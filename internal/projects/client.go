package projects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/motivhq/scoring-backend/pkg/config"
	pkgerrors "github.com/motivhq/scoring-backend/pkg/errors"
)

const responseBodyReadLimit int64 = 1024

var errBaseURLRequired = errors.New("project-store base url is required")

// Counters are the per-user figures the project store exposes for badge
// criteria.
type Counters struct {
	ProjectCount int64 `json:"project_count"`
	StreakDays   int64 `json:"streak_days"`
}

// Client is a read-only HTTP client for the project-store service.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	serviceToken string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds the project-store client from config.
func NewClient(cfg config.ProjectsConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		baseURL:      strings.TrimRight(baseURL, "/"),
		serviceToken: strings.TrimSpace(cfg.ServiceToken),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// Counters fetches the user's project count and streak days.
func (c *Client) Counters(ctx context.Context, userID uuid.UUID) (*Counters, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "project-store client not configured")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	url := fmt.Sprintf("%s/internal/v1/users/%s/counters", c.baseURL, userID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build counters request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.serviceToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.serviceToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute counters request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(
			pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"counters request failed",
		)
	}

	var counters Counters
	if err := json.NewDecoder(resp.Body).Decode(&counters); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode counters response")
	}

	return &counters, nil
}

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/marcus/notesync/internal/record"
)

// RecordDTO is the wire form of a sync record. The owner is implied by the
// API key on the server side but carried anyway for cross-checking.
// SyncedAt is the server's receipt stamp; it is set only in pull responses.
type RecordDTO struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"owner_id"`
	Collection     string          `json:"collection"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	LastModifiedAt int64           `json:"last_modified_at"`
	Deleted        bool            `json:"deleted,omitempty"`
	SyncedAt       int64           `json:"synced_at,omitempty"`
}

// PushResponse is the body of POST /v1/sync/push.
type PushResponse struct {
	SyncedAt int64 `json:"synced_at"`
}

// PullResponse is the body of GET /v1/sync/pull.
type PullResponse struct {
	Records    []RecordDTO `json:"records"`
	ServerTime int64       `json:"server_time"`
}

// StatusResponse is the body of GET /v1/sync/status.
type StatusResponse struct {
	OwnerID        string `json:"owner_id"`
	RecordCount    int64  `json:"record_count"`
	TombstoneCount int64  `json:"tombstone_count"`
	LatestSyncedAt int64  `json:"latest_synced_at"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// Client is the HTTP implementation of Store against a notesync server.
type Client struct {
	BaseURL  string
	APIKey   string
	DeviceID string
	HTTP     *http.Client
}

var _ Store = (*Client)(nil)

// NewClient creates a client with a 30s default timeout.
func NewClient(baseURL, apiKey, deviceID string) *Client {
	return &Client{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		DeviceID: deviceID,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Push implements Store.
func (c *Client) Push(ctx context.Context, rec record.Record) (int64, error) {
	dto := RecordDTO{
		ID:             rec.ID,
		OwnerID:        rec.OwnerID,
		Collection:     rec.Collection,
		Payload:        rec.Payload,
		LastModifiedAt: rec.LastModifiedAt,
	}
	var resp PushResponse
	if err := c.do(ctx, "POST", "/v1/sync/push", dto, &resp); err != nil {
		return 0, err
	}
	return resp.SyncedAt, nil
}

// PushDelete implements Store.
func (c *Client) PushDelete(ctx context.Context, id string, modifiedAt int64) error {
	path := fmt.Sprintf("/v1/records/%s?modified=%d", url.PathEscape(id), modifiedAt)
	return c.do(ctx, "DELETE", path, nil, nil)
}

// PullSince implements Store.
func (c *Client) PullSince(ctx context.Context, ownerID string, since int64) ([]record.Record, error) {
	params := url.Values{}
	params.Set("since", strconv.FormatInt(since, 10))

	var resp PullResponse
	if err := c.do(ctx, "GET", "/v1/sync/pull?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	recs := make([]record.Record, 0, len(resp.Records))
	for _, dto := range resp.Records {
		recs = append(recs, record.Record{
			ID:             dto.ID,
			OwnerID:        ownerID,
			Collection:     dto.Collection,
			Payload:        dto.Payload,
			LastModifiedAt: dto.LastModifiedAt,
			LastSyncedAt:   dto.SyncedAt,
			Deleted:        dto.Deleted,
		})
	}
	return recs, nil
}

// Status fetches server-side record counts for the authenticated owner.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, "GET", "/v1/sync/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthCheck hits /healthz to verify server reachability. The daemon uses
// this as its connectivity probe; the endpoint requires no auth.
func (c *Client) HealthCheck(ctx context.Context) error {
	var resp HealthResponse
	if err := c.do(ctx, "GET", "/healthz", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("server unhealthy: %q", resp.Status)
	}
	return nil
}

// apiError is the standard error body from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if c.DeviceID != "" {
		req.Header.Set("X-Device-ID", c.DeviceID)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		msg := string(respBody)
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Code != "" {
			msg = apiErr.Error()
		}
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrForbidden, msg)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, msg)
		case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %s", ErrRejected, msg)
		default:
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
		}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

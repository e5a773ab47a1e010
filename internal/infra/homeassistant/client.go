package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"smart-lock/internal/application"
	"smart-lock/internal/domain"
	"smart-lock/internal/infra"
)

// Client pushes lock state into Home Assistant through its REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retry      infra.RetryConfig
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		retry:      infra.DefaultRetryConfig(),
	}
}

// SetRetryConfig replaces the retry policy used for API calls.
func (c *Client) SetRetryConfig(cfg infra.RetryConfig) {
	c.retry = cfg
}

// stateUpdate is the body of POST /api/states/<entity_id>.
type stateUpdate struct {
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// EntityID returns the Home Assistant entity id used for a lock.
func EntityID(entity application.LockEntity) string {
	objectID := strings.NewReplacer(".", "_", "-", "_").Replace(strings.ToLower(entity.UniqueID()))
	return "lock." + objectID
}

func (c *Client) PublishLockState(ctx context.Context, entity application.LockEntity, state domain.LockState) error {
	body, err := json.Marshal(stateUpdate{
		State: string(state),
		Attributes: map[string]any{
			"friendly_name": entity.Name(),
			"icon":          entity.Icon(),
			"device_id":     entity.DeviceID(),
		},
	})
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	path := "/api/states/" + EntityID(entity)
	if _, err := c.doRequest(ctx, http.MethodPost, path, body); err != nil {
		return fmt.Errorf("publishing state: %w", err)
	}

	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var respBody []byte

	retryErr := infra.WithRetry(ctx, c.retry, func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return infra.Retryable(fmt.Errorf("sending request: %w", err))
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return infra.Retryable(fmt.Errorf("reading response: %w", err))
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("unauthorized: check your Home Assistant token")
		}

		if infra.IsRetryableHTTPStatus(resp.StatusCode) {
			return infra.Retryable(fmt.Errorf("home assistant API error %d (retryable): %s", resp.StatusCode, string(respBody)))
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("home assistant API error %d: %s", resp.StatusCode, string(respBody))
		}

		return nil
	})

	if retryErr != nil {
		return nil, retryErr
	}

	return respBody, nil
}

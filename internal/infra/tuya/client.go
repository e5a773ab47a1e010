package tuya

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"smart-lock/internal/domain"
	"smart-lock/internal/infra"
)

const (
	devicePageSize = 100

	// codeTokenInvalid is returned when the access token was revoked or
	// expired before its advertised expiry.
	codeTokenInvalid = 1010
)

type Client struct {
	clientID   string
	secret     string
	baseURL    string
	httpClient *http.Client
	retry      infra.RetryConfig

	mu       sync.RWMutex
	token    string
	expireAt time.Time
}

func NewClient(clientID, secret, region string) *Client {
	return NewClientWithURL(clientID, secret, RegionURL(region))
}

func NewClientWithURL(clientID, secret, baseURL string) *Client {
	return &Client{
		clientID:   clientID,
		secret:     secret,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		retry:      infra.DefaultRetryConfig(),
	}
}

// RegionURL returns the OpenAPI endpoint for a Tuya data center.
func RegionURL(region string) string {
	switch strings.ToLower(region) {
	case "eu":
		return "https://openapi.tuyaeu.com"
	case "we":
		return "https://openapi-weaz.tuyaeu.com"
	case "cn":
		return "https://openapi.tuyacn.com"
	case "in":
		return "https://openapi.tuyain.com"
	default:
		return "https://openapi.tuyaus.com"
	}
}

// SetRetryConfig replaces the retry policy used for API calls.
func (c *Client) SetRetryConfig(cfg infra.RetryConfig) {
	c.retry = cfg
}

// response is the envelope every OpenAPI call returns.
type response struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Result  json.RawMessage `json:"result"`
	T       int64           `json:"t"`
}

// APIError is returned when the API answers with success=false.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tuya error %d: %s", e.Code, e.Msg)
}

// Post sends body as JSON to path and returns the "result" member of the
// response envelope.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
	}
	return c.call(ctx, http.MethodPost, path, payload)
}

// Get fetches path and returns the "result" member of the response envelope.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.call(ctx, http.MethodGet, path, nil)
}

// call issues the request and unwraps the envelope. A rejected token is
// dropped and the request is sent once more with a fresh one.
func (c *Client) call(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	result, err := c.callOnce(ctx, method, path, body)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == codeTokenInvalid {
		c.invalidateToken()
		result, err = c.callOnce(ctx, method, path, body)
	}

	return result, err
}

func (c *Client) callOnce(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	var envelope response
	if err := json.Unmarshal(resp, &envelope); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	if !envelope.Success {
		return nil, &APIError{Code: envelope.Code, Msg: envelope.Msg}
	}

	return envelope.Result, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.expireAt = time.Time{}
	c.mu.Unlock()
}

type deviceStatus struct {
	Code  string `json:"code"`
	Value any    `json:"value"`
}

type devicePage struct {
	Devices []struct {
		ID       string         `json:"id"`
		Name     string         `json:"name"`
		Category string         `json:"category"`
		Online   bool           `json:"online"`
		Status   []deviceStatus `json:"status"`
	} `json:"devices"`
	HasMore    bool   `json:"has_more"`
	LastRowKey string `json:"last_row_key"`
}

// GetDevices lists every device linked to the cloud project, following
// pagination until the API reports no more rows.
func (c *Client) GetDevices(ctx context.Context) ([]domain.Device, error) {
	var devices []domain.Device
	lastRowKey := ""

	for {
		query := url.Values{}
		query.Set("size", fmt.Sprintf("%d", devicePageSize))
		if lastRowKey != "" {
			query.Set("last_row_key", lastRowKey)
		}

		result, err := c.Get(ctx, "/v1.0/iot-01/associated-users/devices?"+query.Encode())
		if err != nil {
			return nil, fmt.Errorf("fetching devices: %w", err)
		}

		var page devicePage
		if err := json.Unmarshal(result, &page); err != nil {
			return nil, fmt.Errorf("parsing devices: %w", err)
		}

		for _, d := range page.Devices {
			device := domain.Device{
				ID:       d.ID,
				Name:     d.Name,
				Category: d.Category,
				Online:   d.Online,
				Status:   make(map[string]any, len(d.Status)),
			}
			for _, s := range d.Status {
				device.Status[s.Code] = s.Value
			}
			devices = append(devices, device)
		}

		if !page.HasMore || page.LastRowKey == "" || page.LastRowKey == lastRowKey {
			break
		}
		lastRowKey = page.LastRowKey
	}

	return devices, nil
}

// GetDeviceStatus fetches the current data point values of a device.
func (c *Client) GetDeviceStatus(ctx context.Context, deviceID string) ([]domain.StatusItem, error) {
	path := fmt.Sprintf("/v1.0/iot-03/devices/%s/status", deviceID)
	result, err := c.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("fetching status: %w", err)
	}

	var items []domain.StatusItem
	if err := json.Unmarshal(result, &items); err != nil {
		return nil, fmt.Errorf("parsing status: %w", err)
	}

	return items, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	var respBody []byte
	retryErr := infra.WithRetry(ctx, c.retry, func() error {
		timestamp := fmt.Sprintf("%d", time.Now().UnixMilli())

		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		c.signRequest(req, timestamp, token, method, path, body)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return infra.Retryable(fmt.Errorf("sending request: %w", err))
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return infra.Retryable(fmt.Errorf("reading response: %w", err))
		}

		if infra.IsRetryableHTTPStatus(resp.StatusCode) {
			return infra.Retryable(fmt.Errorf("tuya API error %d (retryable): %s", resp.StatusCode, string(respBody)))
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("tuya API error %d: %s", resp.StatusCode, string(respBody))
		}

		return nil
	})

	if retryErr != nil {
		return nil, retryErr
	}

	return respBody, nil
}

func (c *Client) ensureToken(ctx context.Context) error {
	c.mu.RLock()
	if c.token != "" && time.Now().Add(5*time.Minute).Before(c.expireAt) {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Add(5*time.Minute).Before(c.expireAt) {
		return nil
	}

	timestamp := fmt.Sprintf("%d", time.Now().UnixMilli())
	path := "/v1.0/token?grant_type=1"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating token request: %w", err)
	}
	c.signRequest(req, timestamp, "", http.MethodGet, path, nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading token response: %w", err)
	}

	var tokenResp struct {
		Success bool   `json:"success"`
		Msg     string `json:"msg"`
		Result  struct {
			AccessToken string `json:"access_token"`
			ExpireTime  int64  `json:"expire_time"`
		} `json:"result"`
	}

	if err = json.Unmarshal(body, &tokenResp); err != nil {
		return fmt.Errorf("parsing token response: %w", err)
	}

	if !tokenResp.Success {
		return fmt.Errorf("token error: %s", tokenResp.Msg)
	}

	c.token = tokenResp.Result.AccessToken
	c.expireAt = time.Now().Add(time.Duration(tokenResp.Result.ExpireTime) * time.Second)
	return nil
}

func (c *Client) signRequest(req *http.Request, timestamp, token, method, path string, body []byte) {
	req.Header.Set("client_id", c.clientID)
	if token != "" {
		req.Header.Set("access_token", token)
	}
	req.Header.Set("sign", c.calcSign(timestamp, token, method, path, body))
	req.Header.Set("t", timestamp)
	req.Header.Set("sign_method", "HMAC-SHA256")
}

func (c *Client) calcSign(timestamp, token, method, path string, body []byte) string {
	str := c.clientID + token + timestamp + c.stringToSign(method, path, body)
	h := hmac.New(sha256.New, []byte(c.secret))
	h.Write([]byte(str))
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
}

func (c *Client) stringToSign(method, path string, body []byte) string {
	bodyHash := sha256.Sum256(body)
	return method + "\n" + hex.EncodeToString(bodyHash[:]) + "\n\n" + path
}

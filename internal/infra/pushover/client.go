package pushover

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"smart-lock/internal/infra"
)

const defaultAPIURL = "https://api.pushover.net/1/messages.json"

// Pushover message priorities.
const (
	PriorityNormal = 0
	PriorityHigh   = 1
)

// Client sends lock notifications through the Pushover messages API.
type Client struct {
	token      string
	userKey    string
	title      string
	apiURL     string
	httpClient *http.Client
	retry      infra.RetryConfig
}

func NewClient(token, userKey, title string) *Client {
	return NewClientWithURL(token, userKey, title, defaultAPIURL)
}

func NewClientWithURL(token, userKey, title, apiURL string) *Client {
	if title == "" {
		title = "Smart Lock"
	}
	return &Client{
		token:      token,
		userKey:    userKey,
		title:      title,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry:      infra.DefaultRetryConfig(),
	}
}

func (c *Client) SetRetryConfig(cfg infra.RetryConfig) {
	c.retry = cfg
}

// apiResponse is the JSON body returned for every message request.
type apiResponse struct {
	Status  int      `json:"status"`
	Request string   `json:"request"`
	Errors  []string `json:"errors"`
}

// Notify sends message at normal priority. It is a no-op when
// credentials are missing.
func (c *Client) Notify(ctx context.Context, message string) error {
	return c.send(ctx, message, PriorityNormal)
}

// Alert sends message at high priority, bypassing the recipient's quiet
// hours.
func (c *Client) Alert(ctx context.Context, message string) error {
	return c.send(ctx, message, PriorityHigh)
}

func (c *Client) send(ctx context.Context, message string, priority int) error {
	if c.token == "" || c.userKey == "" {
		return nil
	}

	form := url.Values{
		"token":    {c.token},
		"user":     {c.userKey},
		"title":    {c.title},
		"message":  {message},
		"priority": {strconv.Itoa(priority)},
	}.Encode()

	err := infra.WithRetry(ctx, c.retry, func() error {
		return c.post(ctx, form)
	})
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, form string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return infra.Retryable(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return infra.Retryable(fmt.Errorf("reading response: %w", err))
	}

	if infra.IsRetryableHTTPStatus(resp.StatusCode) {
		return infra.Retryable(fmt.Errorf("pushover error: %s", resp.Status))
	}

	var result apiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("pushover error: %s", resp.Status)
		}
		return fmt.Errorf("parsing response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || result.Status != 1 {
		return fmt.Errorf("pushover rejected message: %s", strings.Join(result.Errors, "; "))
	}

	return nil
}

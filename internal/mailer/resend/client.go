package resend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	resendsdk "github.com/resend/resend-go/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultBaseURL = "https://api.resend.com"
	defaultTimeout = 15 * time.Second
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("resend: API key not configured")

// Message is a single email.
type Message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Client sends transactional email through the Resend API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	sdk        *resendsdk.Client
}

// NewClient returns a client for apiKey. Empty baseURL uses the public API; zero timeout uses 15s.
func NewClient(apiKey, baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	// Endpoint paths resolve against the base; a trailing "/" keeps any path prefix.
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("resend: base url: %w", err)
	}
	hc := &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	sdk := resendsdk.NewCustomClient(hc, apiKey)
	sdk.BaseURL = base
	return &Client{apiKey: apiKey, httpClient: hc, sdk: sdk}, nil
}

// BaseURL returns the API root requests are sent to.
func (c *Client) BaseURL() string { return c.sdk.BaseURL.String() }

// Send delivers msg. API errors are returned wrapped with the "resend:" prefix.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c.apiKey == "" {
		return ErrNotConfigured
	}
	_, err := c.sdk.Emails.SendWithContext(ctx, &resendsdk.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

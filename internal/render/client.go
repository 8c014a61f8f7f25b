// Package render talks to the external QR rendering service.
package render

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultHTTPTimeout = 15 * time.Second

// ErrorCorrection is the QR error-correction level.
type ErrorCorrection string

const (
	ErrorCorrectionLow     ErrorCorrection = "L"
	ErrorCorrectionMedium  ErrorCorrection = "M"
	ErrorCorrectionQuarter ErrorCorrection = "Q"
	ErrorCorrectionHigh    ErrorCorrection = "H"
)

// Request describes one image to render.
type Request struct {
	Data            string
	Size            int
	ErrorCorrection ErrorCorrection
	Margin          int
}

// Client renders QR images over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{baseURL: strings.TrimSpace(baseURL), httpClient: httpClient}
}

// Render returns PNG bytes encoding req.Data.
func (c *Client) Render(ctx context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.Data) == "" {
		return nil, fmt.Errorf("render: data required")
	}
	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("render: parse base url: %w", err)
	}
	size := strconv.Itoa(req.Size)
	q := endpoint.Query()
	q.Set("data", req.Data)
	q.Set("size", size+"x"+size)
	q.Set("ecc", string(req.ErrorCorrection))
	q.Set("margin", strconv.Itoa(req.Margin))
	q.Set("format", "png")
	endpoint.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("render: new request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("render: http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("render: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("render: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("render: empty image")
	}
	return body, nil
}

// Package transcode is a client for the hosted media service that stores
// uploaded assets and renders edits of them asynchronously.
package transcode

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	maxDownloadBytes   = 512 << 20
)

type ResourceType string

const (
	ResourceImage ResourceType = "image"
	ResourceVideo ResourceType = "video"
)

// ErrTooLarge means a fetched asset exceeded the download limit.
var ErrTooLarge = errors.New("asset exceeds download limit")

// ErrNotReady means a derived asset has not been produced yet.
var ErrNotReady = errors.New("transcode: asset not ready")

// Config captures the account settings of the media service.
type Config struct {
	CloudName    string
	APIKey       string
	APISecret    string
	APIBase      string
	DeliveryBase string
}

// Asset is an uploaded resource.
type Asset struct {
	PublicID     string       `json:"public_id"`
	SecureURL    string       `json:"secure_url"`
	ResourceType ResourceType `json:"resource_type"`
	Version      int64        `json:"version"`
}

// UploadRequest uploads either raw bytes or a remote URL the service fetches itself.
type UploadRequest struct {
	ResourceType ResourceType
	PublicID     string
	Data         []byte
	Filename     string
	RemoteURL    string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
	maxBody    int64
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithClock overrides the timestamp source used for request signatures.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithMaxDownloadBytes caps the size of fetched assets.
func WithMaxDownloadBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg: Config{
			CloudName:    strings.TrimSpace(cfg.CloudName),
			APIKey:       strings.TrimSpace(cfg.APIKey),
			APISecret:    strings.TrimSpace(cfg.APISecret),
			APIBase:      strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/"),
			DeliveryBase: strings.TrimRight(strings.TrimSpace(cfg.DeliveryBase), "/"),
		},
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		now:        time.Now,
		maxBody:    maxDownloadBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is returned for non-2xx API responses.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transcode %s: http %d: %s", e.Op, e.StatusCode, e.Body)
}

// Upload stores an asset without requesting any transformation.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (Asset, error) {
	var asset Asset
	if req.PublicID == "" {
		return asset, errors.New("transcode upload: public id required")
	}
	if len(req.Data) == 0 && req.RemoteURL == "" {
		return asset, errors.New("transcode upload: data or remote url required")
	}
	resource := req.ResourceType
	if resource == "" {
		resource = ResourceImage
	}

	params := c.signedParams(map[string]string{"public_id": req.PublicID})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, key := range sortedKeys(params) {
		if err := mw.WriteField(key, params[key]); err != nil {
			return asset, fmt.Errorf("transcode upload: write field: %w", err)
		}
	}
	if req.RemoteURL != "" {
		if err := mw.WriteField("file", req.RemoteURL); err != nil {
			return asset, fmt.Errorf("transcode upload: write file url: %w", err)
		}
	} else {
		filename := req.Filename
		if filename == "" {
			filename = "upload"
		}
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			return asset, fmt.Errorf("transcode upload: create file part: %w", err)
		}
		if _, err := part.Write(req.Data); err != nil {
			return asset, fmt.Errorf("transcode upload: write file part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return asset, fmt.Errorf("transcode upload: close multipart: %w", err)
	}

	endpoint := c.apiURL(resource, "upload")
	if err := c.postJSON(ctx, "upload", endpoint, mw.FormDataContentType(), &body, &asset); err != nil {
		return asset, err
	}
	if asset.PublicID == "" {
		asset.PublicID = req.PublicID
	}
	return asset, nil
}

// RequestTransform asks for an asynchronous derived video and returns the
// deterministic URL it will be served from once ready.
func (c *Client) RequestTransform(ctx context.Context, publicID string, t Transformation) (string, error) {
	if publicID == "" {
		return "", errors.New("transcode transform: public id required")
	}
	params := c.signedParams(map[string]string{
		"public_id":   publicID,
		"type":        "upload",
		"eager":       t.String(),
		"eager_async": "true",
	})
	endpoint := c.apiURL(ResourceVideo, "explicit")
	if err := c.postJSON(ctx, "transform", endpoint, "application/x-www-form-urlencoded",
		strings.NewReader(encodeForm(params)), nil); err != nil {
		return "", err
	}
	return c.ResultURL(publicID, t), nil
}

// ResultURL is where the derived video for t is delivered.
func (c *Client) ResultURL(publicID string, t Transformation) string {
	return fmt.Sprintf("%s/%s/video/upload/%s/%s.mp4", c.cfg.DeliveryBase, c.cfg.CloudName, t.String(), publicID)
}

// CheckReady issues a HEAD against a delivery URL. Anything but 200 is not ready.
func (c *Client) CheckReady(ctx context.Context, resultURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, resultURL, nil)
	if err != nil {
		return false, fmt.Errorf("transcode check: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("transcode check: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// ExtractStill fetches one jpg frame of the asset at offsetSeconds.
func (c *Client) ExtractStill(ctx context.Context, publicID string, offsetSeconds float64, width, height int) ([]byte, error) {
	still := fmt.Sprintf("%s/%s/video/upload/so_%s,c_fill,h_%d,w_%d/%s.jpg",
		c.cfg.DeliveryBase, c.cfg.CloudName, formatSeconds(offsetSeconds), height, width, publicID)
	return c.get(ctx, "still", still)
}

// Download fetches a delivered asset.
func (c *Client) Download(ctx context.Context, assetURL string) ([]byte, error) {
	return c.get(ctx, "download", assetURL)
}

// Delete destroys an asset and its derived copies. Deleting a missing asset succeeds.
func (c *Client) Delete(ctx context.Context, resource ResourceType, publicID string) error {
	params := c.signedParams(map[string]string{
		"public_id":  publicID,
		"invalidate": "true",
	})
	var result struct {
		Result string `json:"result"`
	}
	endpoint := c.apiURL(resource, "destroy")
	if err := c.postJSON(ctx, "delete", endpoint, "application/x-www-form-urlencoded",
		strings.NewReader(encodeForm(params)), &result); err != nil {
		return err
	}
	switch result.Result {
	case "ok", "not found":
		return nil
	default:
		return fmt.Errorf("transcode delete: unexpected result %q", result.Result)
	}
}

func (c *Client) apiURL(resource ResourceType, action string) string {
	return fmt.Sprintf("%s/%s/%s/%s", c.cfg.APIBase, c.cfg.CloudName, resource, action)
}

func (c *Client) signedParams(params map[string]string) map[string]string {
	params["timestamp"] = strconv.FormatInt(c.now().Unix(), 10)
	params["signature"] = Sign(params, c.cfg.APISecret)
	params["api_key"] = c.cfg.APIKey
	return params
}

// Sign computes the request signature: SHA-1 of the sorted key=value pairs
// joined by '&' with the secret appended.
func Sign(params map[string]string, secret string) string {
	var pairs []string
	for _, key := range sortedKeys(params) {
		switch key {
		case "file", "api_key", "resource_type", "cloud_name", "signature":
			continue
		}
		if params[key] == "" {
			continue
		}
		pairs = append(pairs, key+"="+params[key])
	}
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}

func sortedKeys(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func encodeForm(params map[string]string) string {
	values := url.Values{}
	for key, val := range params {
		values.Set(key, val)
	}
	return values.Encode()
}

func (c *Client) postJSON(ctx context.Context, op, endpoint, contentType string, body io.Reader, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("transcode %s: new request: %w", op, err)
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("transcode %s: http error: %w", op, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("transcode %s: read body: %w", op, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("transcode %s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, assetURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("transcode %s: new request: %w", op, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcode %s: http error: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("transcode %s: %w", op, ErrNotReady)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("transcode %s: read body: %w", op, err)
	}
	if int64(len(data)) > c.maxBody {
		return nil, fmt.Errorf("transcode %s: %w (limit %d bytes)", op, ErrTooLarge, c.maxBody)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("transcode %s: empty body", op)
	}
	return data, nil
}

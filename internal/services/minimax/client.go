package minimax

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the public API root.
	DefaultBaseURL = "https://api.minimaxi.chat/v1"

	// UploadPurpose marks uploaded text as input for an asynchronous job.
	UploadPurpose = "t2a_async_input"

	defaultHTTPTimeout     = 30 * time.Second
	defaultDownloadTimeout = 10 * time.Minute
	maxResponseBytes       = 1 << 20
	downloadBufferSize     = 32 * 1024
)

// Config captures the runtime settings required to talk to the service.
type Config struct {
	BaseURL                string
	GroupID                string
	APIKey                 string
	TimeoutSeconds         int
	DownloadTimeoutSeconds int
}

// Client issues single requests against the asynchronous speech API.
type Client struct {
	cfg            Config
	httpClient     *http.Client
	downloadClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the client used for JSON API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithDownloadClient overrides the client used for artifact downloads.
func WithDownloadClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.downloadClient = client
		}
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	downloadTimeout := defaultDownloadTimeout
	if cfg.DownloadTimeoutSeconds > 0 {
		downloadTimeout = time.Duration(cfg.DownloadTimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:                strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			GroupID:                strings.TrimSpace(cfg.GroupID),
			APIKey:                 strings.TrimSpace(cfg.APIKey),
			TimeoutSeconds:         cfg.TimeoutSeconds,
			DownloadTimeoutSeconds: cfg.DownloadTimeoutSeconds,
		},
		httpClient:     &http.Client{Timeout: timeout},
		downloadClient: &http.Client{Timeout: downloadTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = DefaultBaseURL
	}
	return client
}

// SubmitJob creates an asynchronous synthesis job.
func (c *Client) SubmitJob(ctx context.Context, payload SubmitRequest) (SubmitResponse, error) {
	const op = "minimax submit"
	var resp SubmitResponse
	encoded, err := json.Marshal(payload)
	if err != nil {
		return resp, fmt.Errorf("%s: encode body: %w", op, err)
	}
	endpoint, err := c.endpoint("t2a_async_v2", nil)
	if err != nil {
		return resp, fmt.Errorf("%s: %w", op, err)
	}
	status, err := c.doJSON(ctx, op, http.MethodPost, endpoint, "application/json", bytes.NewReader(encoded), &resp)
	if err != nil {
		return resp, err
	}
	if err := checkBase(op, status, resp.BaseResp); err != nil {
		return resp, err
	}
	return resp, nil
}

// QueryJob fetches the current status of a job.
func (c *Client) QueryJob(ctx context.Context, taskID ID) (QueryResponse, error) {
	const op = "minimax query"
	var resp QueryResponse
	endpoint, err := c.endpoint("query/t2a_async_query_v2", url.Values{"task_id": {taskID.String()}})
	if err != nil {
		return resp, fmt.Errorf("%s: %w", op, err)
	}
	status, err := c.doJSON(ctx, op, http.MethodGet, endpoint, "", nil, &resp)
	if err != nil {
		return resp, err
	}
	if err := checkBase(op, status, resp.BaseResp); err != nil {
		return resp, err
	}
	return resp, nil
}

// RetrieveFile looks up metadata, including the download URL, for a stored file.
func (c *Client) RetrieveFile(ctx context.Context, fileID ID) (FileInfo, error) {
	const op = "minimax retrieve"
	var resp retrieveResponse
	endpoint, err := c.endpoint("files/retrieve", url.Values{"file_id": {fileID.String()}})
	if err != nil {
		return FileInfo{}, fmt.Errorf("%s: %w", op, err)
	}
	status, err := c.doJSON(ctx, op, http.MethodGet, endpoint, "", nil, &resp)
	if err != nil {
		return FileInfo{}, err
	}
	if err := checkBase(op, status, resp.BaseResp); err != nil {
		return FileInfo{}, err
	}
	return resp.File, nil
}

// UploadText stores text as a file usable through SubmitRequest.TextFileID.
func (c *Client) UploadText(ctx context.Context, filename, text string) (ID, error) {
	const op = "minimax upload"
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("purpose", UploadPurpose); err != nil {
		return "", fmt.Errorf("%s: encode form: %w", op, err)
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("%s: encode form: %w", op, err)
	}
	if _, err := io.WriteString(part, text); err != nil {
		return "", fmt.Errorf("%s: encode form: %w", op, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("%s: encode form: %w", op, err)
	}

	endpoint, err := c.endpoint("files/upload", nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	var resp uploadResponse
	status, err := c.doJSON(ctx, op, http.MethodPost, endpoint, mw.FormDataContentType(), &body, &resp)
	if err != nil {
		return "", err
	}
	if err := checkBase(op, status, resp.BaseResp); err != nil {
		return "", err
	}
	if resp.File.FileID.IsZero() {
		return "", fmt.Errorf("%s: response missing file id", op)
	}
	return resp.File.FileID, nil
}

// Download streams the body at downloadURL into w and returns the byte count.
func (c *Client) Download(ctx context.Context, downloadURL string, w io.Writer) (int64, error) {
	const op = "minimax download"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: new request: %w", op, err)
	}
	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s: http error: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, &APIError{Op: op, HTTPStatus: resp.StatusCode, Body: summarizeBody(snippet)}
	}
	written, err := io.CopyBuffer(w, resp.Body, make([]byte, downloadBufferSize))
	if err != nil {
		return written, fmt.Errorf("%s: stream body: %w", op, err)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		return written, fmt.Errorf("%s: short body: got %d of %d bytes", op, written, resp.ContentLength)
	}
	return written, nil
}

func (c *Client) endpoint(path string, query url.Values) (string, error) {
	endpoint, err := url.JoinPath(c.cfg.BaseURL, path)
	if err != nil {
		return "", fmt.Errorf("build url: %w", err)
	}
	if query == nil {
		query = url.Values{}
	}
	query.Set("GroupId", c.cfg.GroupID)
	return endpoint + "?" + query.Encode(), nil
}

func (c *Client) doJSON(ctx context.Context, op, method, endpoint, contentType string, body io.Reader, out any) (int, error) {
	if c.cfg.APIKey == "" {
		return 0, fmt.Errorf("%s: api key required", op)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, fmt.Errorf("%s: new request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s: http error (timeout=%s): %w", op, c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%s: read body: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &APIError{Op: op, HTTPStatus: resp.StatusCode, Body: summarizeBody(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("%s: decode response: %w (body: %s)", op, err, summarizeBody(raw))
	}
	return resp.StatusCode, nil
}

package remotestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/schemaboard/internal/diagrams"
	"go.uber.org/zap"
)

const (
	defaultClientTimeout = 10 * time.Second
	diagramsPath         = "/diagrams"
	maxErrorBodyBytes    = 4096
)

// ClientConfig bundles configuration required to reach the remote service.
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Retry      RetryPolicy
	Logger     *zap.Logger
}

// Client talks to the remote diagram service over HTTP.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	retry      RetryPolicy
	logger     *zap.Logger
}

// ListResponse is the envelope returned by the list endpoint.
type ListResponse struct {
	Diagrams []diagrams.RemoteRecord `json:"diagrams"`
}

// ErrorResponse is the envelope returned on failures.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("remotestore: decode response: %v", e.err)
}

func (e *decodeError) Unwrap() error {
	return e.err
}

// NewClient validates the configuration and constructs a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	rawURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if rawURL == "" {
		return nil, errMissingBaseURL
	}
	baseURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("remotestore: parse base url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultClientTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		retry:      cfg.Retry,
		logger:     logger,
	}, nil
}

// GetByID fetches a mirror row. A 404 is reported as a miss.
func (c *Client) GetByID(ctx context.Context, localID string) (diagrams.RemoteRecord, bool, error) {
	var record diagrams.RemoteRecord
	status, err := c.doJSON(ctx, http.MethodGet, c.endpoint(nil, localID), nil, &record, http.StatusNotFound)
	if err != nil {
		return diagrams.RemoteRecord{}, false, err
	}
	if status == http.StatusNotFound {
		return diagrams.RemoteRecord{}, false, nil
	}
	return record, true, nil
}

// Upsert sends the mirror row keyed by its local id.
func (c *Client) Upsert(ctx context.Context, record diagrams.RemoteRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("remotestore: encode record: %w", err)
	}
	_, err = c.doJSON(ctx, http.MethodPut, c.endpoint(nil, record.LocalID), body, nil)
	return err
}

// ListAllOrderedByUpdatedDesc fetches every mirror row, most recent first.
func (c *Client) ListAllOrderedByUpdatedDesc(ctx context.Context) ([]diagrams.RemoteRecord, error) {
	var response ListResponse
	if _, err := c.doJSON(ctx, http.MethodGet, c.endpoint(nil), nil, &response); err != nil {
		return nil, err
	}
	return response.Diagrams, nil
}

// GetLatest fetches up to limit mirror rows, most recent first.
func (c *Client) GetLatest(ctx context.Context, limit int) ([]diagrams.RemoteRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	query := url.Values{"limit": []string{strconv.Itoa(limit)}}
	var response ListResponse
	if _, err := c.doJSON(ctx, http.MethodGet, c.endpoint(query), nil, &response); err != nil {
		return nil, err
	}
	return response.Diagrams, nil
}

func (c *Client) endpoint(query url.Values, segments ...string) string {
	endpoint := *c.baseURL
	basePath := strings.TrimRight(endpoint.Path, "/") + diagramsPath
	endpoint.Path = basePath
	endpoint.RawPath = ""
	escaped := basePath
	for _, segment := range segments {
		endpoint.Path += "/" + segment
		escaped += "/" + url.PathEscape(segment)
	}
	if escaped != endpoint.Path {
		endpoint.RawPath = escaped
	}
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	return endpoint.String()
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body []byte, out any, tolerated ...int) (int, error) {
	var status int
	err := c.retry.do(ctx, func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		request, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return err
		}
		request.Header.Set("Accept", "application/json")
		if body != nil {
			request.Header.Set("Content-Type", "application/json")
		}

		response, err := c.httpClient.Do(request)
		if err != nil {
			c.logger.Warn("remote request failed", zap.String("method", method), zap.String("url", endpoint), zap.Error(err))
			return err
		}
		defer response.Body.Close()
		status = response.StatusCode

		for _, code := range tolerated {
			if status == code {
				_, _ = io.Copy(io.Discard, response.Body)
				return nil
			}
		}
		if status < 200 || status >= 300 {
			return readHTTPError(response)
		}
		if out == nil {
			_, _ = io.Copy(io.Discard, response.Body)
			return nil
		}
		if err := json.NewDecoder(response.Body).Decode(out); err != nil {
			return &decodeError{err: err}
		}
		return nil
	})
	return status, err
}

func readHTTPError(response *http.Response) error {
	httpErr := &HTTPError{StatusCode: response.StatusCode, Reason: http.StatusText(response.StatusCode)}
	payload, err := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyBytes))
	if err != nil || len(payload) == 0 {
		return httpErr
	}
	var envelope ErrorResponse
	if json.Unmarshal(payload, &envelope) == nil {
		if envelope.Error != "" {
			httpErr.Reason = envelope.Error
		}
		httpErr.Code = envelope.Code
	}
	return httpErr
}

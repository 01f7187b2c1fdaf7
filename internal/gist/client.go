package gist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/schemaboard/internal/diagrams"
	"go.uber.org/zap"
)

const (
	// DefaultAPIURL is the public gist hosting API.
	DefaultAPIURL = "https://api.github.com"
	// DefaultFileName is the gist file holding the shared diagram.
	DefaultFileName = "share.json"

	apiVersionHeader  = "X-GitHub-Api-Version"
	apiVersion        = "2022-11-28"
	acceptMediaType   = "application/vnd.github+json"
	defaultTimeout    = 15 * time.Second
	maxGistBodyBytes  = 10 << 20
	fieldShareID      = "share_id"
	fieldStatusCode   = "status"
	logFetchFailed    = "gist fetch failed"
	logMalformedGist  = "gist document malformed"
	logMissingGistDoc = "gist file missing"
	logUnknownDialect = "gist dialect unknown; importing as generic"
)

var (
	// ErrFetch reports a transport failure or a non-success response.
	ErrFetch = errors.New("gist: fetch failed")
	// ErrMissingFile reports a gist without the shared diagram file.
	ErrMissingFile = errors.New("gist: missing file")
	// ErrMalformed reports a gist whose payload or diagram file is not valid JSON.
	ErrMalformed = errors.New("gist: malformed document")

	errMissingShareID = errors.New("share id is required")
)

// ClientConfig bundles configuration required to reach the gist API.
type ClientConfig struct {
	APIURL     string
	Token      string
	FileName   string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Client fetches shared diagrams from the gist API.
type Client struct {
	apiURL     *url.URL
	token      string
	fileName   string
	httpClient *http.Client
	logger     *zap.Logger
}

type gistPayload struct {
	Files map[string]gistFile `json:"files"`
}

type gistFile struct {
	Content string `json:"content"`
}

// NewClient constructs a Client, defaulting unset fields.
func NewClient(cfg ClientConfig) (*Client, error) {
	rawURL := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if rawURL == "" {
		rawURL = DefaultAPIURL
	}
	apiURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("gist: parse api url: %w", err)
	}

	fileName := strings.TrimSpace(cfg.FileName)
	if fileName == "" {
		fileName = DefaultFileName
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		apiURL:     apiURL,
		token:      strings.TrimSpace(cfg.Token),
		fileName:   fileName,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Fetch downloads the gist and parses its shared diagram file.
func (c *Client) Fetch(ctx context.Context, shareID string) (Document, error) {
	shareID = strings.TrimSpace(shareID)
	if shareID == "" {
		return Document{}, fmt.Errorf("%w: %v", ErrFetch, errMissingShareID)
	}

	endpoint := *c.apiURL
	basePath := strings.TrimRight(endpoint.Path, "/") + "/gists/"
	endpoint.Path = basePath + shareID
	endpoint.RawPath = basePath + url.PathEscape(shareID)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), http.NoBody)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	request.Header.Set("Accept", acceptMediaType)
	request.Header.Set(apiVersionHeader, apiVersion)
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		c.logger.Warn(logFetchFailed, zap.String(fieldShareID, shareID), zap.Error(err))
		return Document{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, maxGistBodyBytes))
		c.logger.Warn(logFetchFailed, zap.String(fieldShareID, shareID), zap.Int(fieldStatusCode, response.StatusCode))
		return Document{}, fmt.Errorf("%w: unexpected status %d", ErrFetch, response.StatusCode)
	}

	var payload gistPayload
	if err := json.NewDecoder(io.LimitReader(response.Body, maxGistBodyBytes)).Decode(&payload); err != nil {
		c.logger.Warn(logMalformedGist, zap.String(fieldShareID, shareID), zap.Error(err))
		return Document{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	file, ok := payload.Files[c.fileName]
	if !ok {
		c.logger.Warn(logMissingGistDoc, zap.String(fieldShareID, shareID), zap.String("file", c.fileName))
		return Document{}, fmt.Errorf("%w: %s", ErrMissingFile, c.fileName)
	}

	document, err := ParseDocument(file.Content)
	if err != nil {
		c.logger.Warn(logMalformedGist, zap.String(fieldShareID, shareID), zap.Error(err))
		return Document{}, err
	}
	if dialect := strings.ToLower(strings.TrimSpace(document.Database)); dialect != "" && !diagrams.DatabaseKind(dialect).Known() {
		c.logger.Warn(logUnknownDialect, zap.String(fieldShareID, shareID), zap.String("database", document.Database))
	}
	return document, nil
}

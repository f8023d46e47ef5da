// Package datastore calls the Open Cloud data-store API to delete entries.
package datastore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/router-for-me/ErasureRelay/internal/models"
	internalsettings "github.com/router-for-me/ErasureRelay/internal/settings"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultBaseURL is the public Open Cloud endpoint.
	DefaultBaseURL        = "https://apis.roblox.com"
	defaultRequestTimeout = 15 * time.Second
	maxErrorBodyBytes     = 512
	apiKeyHeader          = "x-api-key"
)

// StatusError reports a non-2xx, non-404 response from the data-store API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return ""
	}
	if e.Body == "" {
		return fmt.Sprintf("datastore: delete entry status=%d", e.StatusCode)
	}
	return fmt.Sprintf("datastore: delete entry status=%d body=%s", e.StatusCode, e.Body)
}

// DeleteEntryRequest names one entry to delete.
type DeleteEntryRequest struct {
	UniverseID    int64
	DatastoreName string
	DatastoreType models.DatastoreType
	Scope         string
	EntryKey      string
	APIKey        string
}

// Result describes a completed delete call.
type Result struct {
	StatusCode    int
	AlreadyAbsent bool // The API answered 404: the entry was already gone.
}

// Client issues delete calls against the data-store API.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	requestTimeout time.Duration
}

// NewClient constructs a Client. Empty baseURL and nil httpClient select defaults.
func NewClient(baseURL string, httpClient *http.Client, requestTimeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, requestTimeout: requestTimeout}
}

// EntryURL builds the delete endpoint for req.
func (c *Client) EntryURL(req DeleteEntryRequest) (string, error) {
	if req.UniverseID <= 0 {
		return "", errors.New("datastore: universe id is required")
	}
	if strings.TrimSpace(req.DatastoreName) == "" || strings.TrimSpace(req.EntryKey) == "" {
		return "", errors.New("datastore: datastore name and entry key are required")
	}
	scope := models.NormalizeScope(req.Scope)
	universe := strconv.FormatInt(req.UniverseID, 10)

	switch req.DatastoreType {
	case models.DatastoreTypeOrdered:
		return fmt.Sprintf("%s/ordered-data-stores/v1/universes/%s/orderedDataStores/%s/scopes/%s/entries/%s",
			c.baseURL, universe, url.PathEscape(req.DatastoreName), url.PathEscape(scope), url.PathEscape(req.EntryKey)), nil
	case models.DatastoreTypeStandard, "":
		query := url.Values{}
		query.Set("datastoreName", req.DatastoreName)
		query.Set("scope", scope)
		query.Set("entryKey", req.EntryKey)
		return fmt.Sprintf("%s/datastores/v1/universes/%s/standard-datastores/datastore/entries/entry?%s",
			c.baseURL, universe, query.Encode()), nil
	default:
		return "", fmt.Errorf("datastore: unsupported datastore type %q", req.DatastoreType)
	}
}

// DeleteEntry deletes one entry. A 404 answer is reported as AlreadyAbsent, not as an error.
// Any other non-2xx status yields a *StatusError.
func (c *Client) DeleteEntry(ctx context.Context, req DeleteEntryRequest) (Result, error) {
	if c == nil || c.httpClient == nil {
		return Result{}, errors.New("datastore: client not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(req.APIKey) == "" {
		return Result{}, errors.New("datastore: api key is required")
	}
	target, errURL := c.EntryURL(req)
	if errURL != nil {
		return Result{}, errURL
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	httpReq, errReq := http.NewRequestWithContext(reqCtx, http.MethodDelete, target, nil)
	if errReq != nil {
		return Result{}, fmt.Errorf("datastore: build request: %w", errReq)
	}
	httpReq.Header.Set(apiKeyHeader, req.APIKey)

	resp, errResp := c.httpClient.Do(httpReq)
	if errResp != nil {
		return Result{}, fmt.Errorf("datastore: delete entry: %w", errResp)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("datastore: close response body error: %v", errClose)
		}
	}()
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		return Result{StatusCode: resp.StatusCode}, nil
	case resp.StatusCode == http.StatusNotFound:
		return Result{StatusCode: resp.StatusCode, AlreadyAbsent: true}, nil
	default:
		return Result{StatusCode: resp.StatusCode}, &StatusError{StatusCode: resp.StatusCode, Body: summarizePayload(payload)}
	}
}

// timeout prefers the runtime setting over the configured default.
func (c *Client) timeout() time.Duration {
	if seconds := internalsettings.IntValue(internalsettings.DataStoreRequestTimeoutSecondsKey, 0); seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return c.requestTimeout
}

// summarizePayload trims an error body to at most maxErrorBodyBytes of valid UTF-8.
func summarizePayload(payload []byte) string {
	trimmed := strings.ToValidUTF8(strings.TrimSpace(string(payload)), "\uFFFD")
	if len(trimmed) <= maxErrorBodyBytes {
		return trimmed
	}
	cut := maxErrorBodyBytes
	for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
		cut--
	}
	return trimmed[:cut] + "...(truncated)"
}

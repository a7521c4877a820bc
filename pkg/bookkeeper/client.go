package bookkeeper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zahanm/collect-beans/pkg/beancount"
)

// ClientConfig represents the configuration for the bookkeeping API client.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration // zero means no timeout
	HTTPClient *http.Client  // optional, overrides Timeout
}

// Client is a bookkeeping backend API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// APIError is returned when the backend answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bookkeeper API error (status %d): %s", e.StatusCode, e.Message)
}

// NewClient creates a new bookkeeping API client.
func NewClient(config ClientConfig) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
	}
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SortProgress returns the destination file and the journal files to choose from.
func (c *Client) SortProgress(ctx context.Context) (*ProgressResponse, error) {
	var resp ProgressResponse
	if err := c.doJSON(ctx, http.MethodGet, "/sort/progress", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetDestination selects the ledger file to sort. The backend resets its
// sorting state when the destination changes.
func (c *Client) SetDestination(ctx context.Context, destinationFile string) (*ProgressResponse, error) {
	form := url.Values{}
	form.Set("destination_file", destinationFile)

	var resp ProgressResponse
	err := c.do(ctx, http.MethodPost, "/sort/progress", nil,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// NextBatch fetches up to max transactions to sort.
func (c *Client) NextBatch(ctx context.Context, max int) (*NextResponse, error) {
	var resp NextResponse
	if err := c.doJSON(ctx, http.MethodGet, "/sort/next", maxQuery(max), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitMods submits sorted mods and returns the next batch of up to max transactions.
func (c *Client) SubmitMods(ctx context.Context, mods []beancount.Mod, max int) (*NextResponse, error) {
	var resp NextResponse
	body := SubmitRequest{Sorted: mods}
	if err := c.doJSON(ctx, http.MethodPost, "/sort/next", maxQuery(max), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Link searches for unsorted transactions with a posting matching amount.
func (c *Client) Link(ctx context.Context, txnID string, amount decimal.Decimal) (*LinkResponse, error) {
	q := url.Values{}
	q.Set("txnID", txnID)
	q.Set("amount", amount.String())

	var resp LinkResponse
	if err := c.doJSON(ctx, http.MethodGet, "/sort/link", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CommitPreview fetches the destination file before and after the submitted mods.
func (c *Client) CommitPreview(ctx context.Context) (*CommitResponse, error) {
	var resp CommitResponse
	if err := c.doJSON(ctx, http.MethodGet, "/sort/commit", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CommitWrite writes the new destination file contents.
func (c *Client) CommitWrite(ctx context.Context) (*CommitResponse, error) {
	q := url.Values{}
	q.Set("write", "true")

	var resp CommitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/sort/commit", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Check runs the ledger checker against the pending contents.
func (c *Client) Check(ctx context.Context) (*CheckResponse, error) {
	var resp CheckResponse
	if err := c.doJSON(ctx, http.MethodPost, "/sort/check", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sorted returns up to max already submitted transactions with their mods.
func (c *Client) Sorted(ctx context.Context, max int) (*SortedResponse, error) {
	var resp SortedResponse
	if err := c.doJSON(ctx, http.MethodGet, "/sort/sorted", maxQuery(max), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RevertSorted undoes a submitted mod, returning the transaction to the unsorted list.
func (c *Client) RevertSorted(ctx context.Context, txnID string, max int) (*SortedResponse, error) {
	q := maxQuery(max)
	q.Set("txnID", txnID)

	var resp SortedResponse
	if err := c.doJSON(ctx, http.MethodPost, "/sort/sorted", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CollectRun runs one importer.
func (c *Client) CollectRun(ctx context.Context, req CollectRunRequest) (*CollectRunResponse, error) {
	var resp CollectRunResponse
	if err := c.doJSON(ctx, http.MethodPost, "/collect/run", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BackupDiff returns the current ledger next to its last backup.
func (c *Client) BackupDiff(ctx context.Context) (*BackupResponse, error) {
	var resp BackupResponse
	if err := c.doJSON(ctx, http.MethodGet, "/collect/backup", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunBackup takes a new backup and returns the resulting comparison.
func (c *Client) RunBackup(ctx context.Context) (*BackupResponse, error) {
	var resp BackupResponse
	if err := c.doJSON(ctx, http.MethodPost, "/collect/backup", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LastImported returns the last imported date per account.
func (c *Client) LastImported(ctx context.Context, accounts []string) (*LastImportedResponse, error) {
	q := url.Values{}
	for _, acc := range accounts {
		q.Add("accounts", acc)
	}

	var resp LastImportedResponse
	if err := c.doJSON(ctx, http.MethodGet, "/collect/last-imported", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// OtherImporters lists importers that have to be run by hand for mode.
func (c *Client) OtherImporters(ctx context.Context, mode CollectMode) (*OtherImportersResponse, error) {
	q := url.Values{}
	q.Set("mode", string(mode))

	var resp OtherImportersResponse
	if err := c.doJSON(ctx, http.MethodGet, "/collect/other-importers", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReloadConfig asks the backend to re-read its configuration file.
func (c *Client) ReloadConfig(ctx context.Context) (*ReloadResponse, error) {
	var resp ReloadResponse
	if err := c.doJSON(ctx, http.MethodPost, "/config/reload", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func maxQuery(max int) url.Values {
	q := url.Values{}
	if max > 0 {
		q.Set("max", strconv.Itoa(max))
	}
	return q
}

// doJSON encodes body (if any) as JSON and decodes the response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, query, reader, contentType, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint = fmt.Sprintf("%s?%s", endpoint, query.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	slog.Debug("bookkeeper request", "method", method, "url", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.parseError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// parseError parses an error response from the backend.
func (c *Client) parseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "failed to read error response"}
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	if errResp.ErrorDescription != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error + " - " + errResp.ErrorDescription}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
}

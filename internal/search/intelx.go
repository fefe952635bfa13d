package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/north-cloud/leakscan/internal/logger"
)

const (
	// DefaultBaseURL is the default IntelX API endpoint.
	DefaultBaseURL = "https://2.intelx.io"
	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 30 * time.Second
	// DefaultLimit is the default number of records inspected per search.
	DefaultLimit = 10

	searchBucket    = "leaks.private"
	searchSortScore = 4
	pollInterval    = 500 * time.Millisecond
	maxNameLength   = 60

	// resultStatus values returned by the search result endpoint.
	resultStatusMore     = 0
	resultStatusFinished = 1
	resultStatusNotFound = 2
)

// ErrSearchFailed is returned when the provider rejects or loses a search.
var ErrSearchFailed = errors.New("leak search failed")

// RequestRecorder counts upstream API requests by outcome.
type RequestRecorder interface {
	RecordSearchRequest(outcome string)
}

// IntelXClient queries the IntelX API for leaked credentials.
type IntelXClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	recorder   RequestRecorder
	logger     logger.Interface
}

// IntelXOption configures an IntelXClient.
type IntelXOption func(*IntelXClient)

// WithBaseURL sets the API base URL.
func WithBaseURL(baseURL string) IntelXOption {
	return func(c *IntelXClient) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) IntelXOption {
	return func(c *IntelXClient) {
		c.httpClient = httpClient
	}
}

// WithRateLimit caps outgoing API requests per second.
func WithRateLimit(rps float64) IntelXOption {
	return func(c *IntelXClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithRecorder counts every API request against rec.
func WithRecorder(rec RequestRecorder) IntelXOption {
	return func(c *IntelXClient) {
		c.recorder = rec
	}
}

// NewIntelXClient creates a new IntelX API client.
func NewIntelXClient(apiKey string, log logger.Interface, opts ...IntelXOption) *IntelXClient {
	client := &IntelXClient{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Inf, 1),
		logger:     log.WithComponent("intelx"),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// searchRequest is the body of the search submission call.
type searchRequest struct {
	Term       string   `json:"term"`
	MaxResults int      `json:"maxresults"`
	Buckets    []string `json:"buckets"`
	Timeout    int      `json:"timeout"`
	DateFrom   string   `json:"datefrom"`
	DateTo     string   `json:"dateto"`
	Sort       int      `json:"sort"`
	Media      int      `json:"media"`
	Terminate  []string `json:"terminate"`
}

type searchResponse struct {
	ID string `json:"id"`
}

// record is one search result entry.
type record struct {
	Name      string `json:"name"`
	Date      string `json:"date"`
	Size      int64  `json:"size"`
	StorageID string `json:"storageid"`
	SystemID  string `json:"systemid"`
	Bucket    string `json:"bucket"`
	Media     int    `json:"media"`
	Type      int    `json:"type"`
}

type resultResponse struct {
	Records []record `json:"records"`
	Status  int      `json:"status"`
}

// Search runs a leak search and inspects matching file contents. The stop
// callback is consulted before every network call and per extracted line so
// cancellation takes effect without waiting for the full collection.
func (c *IntelXClient) Search(ctx context.Context, query string, opts Options, stop StopFunc) ([]Hit, error) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 100
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	var dateFrom, dateTo string
	if opts.TimeFilter != "" {
		days := ParseTimeFilter(opts.TimeFilter)
		dateFrom, dateTo = DateRange(days, time.Now())
		c.logger.Info("searching with time window",
			"query", query,
			"time_filter", opts.TimeFilter,
			"date_from", dateFrom,
			"date_to", dateTo,
		)
	} else {
		c.logger.Info("searching all time", "query", query)
	}

	if stop != nil {
		if err := stop(PhaseCollecting); err != nil {
			return nil, err
		}
	}

	searchID, err := c.submitSearch(ctx, query, opts.MaxResults, dateFrom, dateTo)
	if err != nil {
		return nil, err
	}

	records, err := c.collectRecords(ctx, searchID, opts.MaxResults, stop)
	if err != nil {
		return nil, err
	}

	records = filterByDate(records, dateFrom, dateTo)
	if len(records) > opts.Limit {
		records = records[:opts.Limit]
	}

	return c.inspectRecords(ctx, records, query, stop)
}

// submitSearch starts a search and returns its id.
func (c *IntelXClient) submitSearch(ctx context.Context, query string, maxResults int, dateFrom, dateTo string) (string, error) {
	body, err := json.Marshal(searchRequest{
		Term:       query,
		MaxResults: maxResults,
		Buckets:    []string{searchBucket},
		Timeout:    10,
		DateFrom:   dateFrom,
		DateTo:     dateTo,
		Sort:       searchSortScore,
		Terminate:  []string{},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/intelligent/search", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp searchResponse
	if doErr := c.doRequest(ctx, req, &resp); doErr != nil {
		return "", fmt.Errorf("failed to submit search: %w", doErr)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("%w: empty search id", ErrSearchFailed)
	}

	return resp.ID, nil
}

// collectRecords polls the result endpoint until the search finishes or the
// record cap is reached.
func (c *IntelXClient) collectRecords(ctx context.Context, searchID string, maxResults int, stop StopFunc) ([]record, error) {
	var records []record

	for {
		if stop != nil {
			if err := stop(PhaseCollecting); err != nil {
				return nil, err
			}
		}

		resultURL := c.baseURL + "/intelligent/search/result?id=" + url.QueryEscape(searchID) +
			"&limit=" + strconv.Itoa(maxResults)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		var resp resultResponse
		if doErr := c.doRequest(ctx, req, &resp); doErr != nil {
			return nil, fmt.Errorf("failed to fetch search results: %w", doErr)
		}

		records = append(records, resp.Records...)

		switch {
		case resp.Status == resultStatusNotFound:
			return nil, fmt.Errorf("%w: search id expired", ErrSearchFailed)
		case resp.Status == resultStatusFinished, len(records) >= maxResults:
			if len(records) > maxResults {
				records = records[:maxResults]
			}
			return records, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// inspectRecords fetches each record's content and extracts matching lines.
func (c *IntelXClient) inspectRecords(ctx context.Context, records []record, query string, stop StopFunc) ([]Hit, error) {
	col := newCollector()

	for idx, rec := range records {
		if stop != nil {
			if err := stop(PhaseCollecting); err != nil {
				return nil, err
			}
		}

		name := html.UnescapeString(rec.Name)
		if name == "" {
			name = "Untitled Document"
		}
		name = clampRunes(name, maxNameLength)

		storageID := rec.StorageID
		if storageID == "" {
			storageID = rec.SystemID
		}
		if storageID == "" {
			c.logger.Warn("record has no storage id", "name", name)
			continue
		}

		content, err := c.fileView(ctx, rec.Type, rec.Media, storageID, rec.Bucket)
		if err != nil {
			// Cooperative stops must surface; ordinary fetch failures only
			// skip the record.
			if stop != nil && (errors.Is(err, context.Canceled) || ctx.Err() != nil) {
				return nil, err
			}
			c.logger.Warn("failed to fetch file content", "name", name, "error", err)
			continue
		}

		matches, err := extractMatchingLines(col, content, query, name, idx+1, stop)
		if err != nil {
			return nil, err
		}

		c.logger.Debug("inspected file", "name", name, "matches", matches)
	}

	return col.hits, nil
}

// fileView fetches the raw text of a stored file.
func (c *IntelXClient) fileView(ctx context.Context, fileType, media int, storageID, bucket string) (string, error) {
	viewURL := fmt.Sprintf("%s/file/view?f=0&storageid=%s&bucket=%s&type=%d&media=%d",
		c.baseURL, url.QueryEscape(storageID), url.QueryEscape(bucket), fileType, media)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, viewURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	if waitErr := c.limiter.Wait(ctx); waitErr != nil {
		return "", waitErr
	}
	req.Header.Set("x-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record("error")
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		c.record("error")
		return "", fmt.Errorf("%w: file view status %d", ErrSearchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.record("error")
		return "", fmt.Errorf("failed to read file content: %w", err)
	}

	c.record("success")
	return string(body), nil
}

// record counts one API request outcome when a recorder is configured.
func (c *IntelXClient) record(outcome string) {
	if c.recorder != nil {
		c.recorder.RecordSearchRequest(outcome)
	}
}

// doRequest executes an HTTP request and decodes the JSON response.
func (c *IntelXClient) doRequest(ctx context.Context, req *http.Request, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req.Header.Set("x-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record("error")
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		c.record("error")
		return fmt.Errorf("failed to read response body: %w", readErr)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.record("error")
		return fmt.Errorf("%w: status %d: %s", ErrSearchFailed, resp.StatusCode, string(body))
	}
	c.record("success")

	if result == nil {
		return nil
	}
	if unmarshalErr := json.Unmarshal(body, result); unmarshalErr != nil {
		return fmt.Errorf("failed to decode response: %w", unmarshalErr)
	}

	return nil
}

// filterByDate drops records outside the inclusive window. Records without a
// parseable date are kept.
func filterByDate(records []record, dateFrom, dateTo string) []record {
	if dateFrom == "" || dateTo == "" {
		return records
	}

	from, errFrom := time.Parse("2006-01-02 15:04:05", dateFrom)
	to, errTo := time.Parse("2006-01-02 15:04:05", dateTo)
	if errFrom != nil || errTo != nil {
		return records
	}

	kept := records[:0]
	for _, rec := range records {
		recTime, ok := parseRecordDate(rec.Date)
		if !ok {
			kept = append(kept, rec)
			continue
		}
		if !recTime.Before(from) && !recTime.After(to) {
			kept = append(kept, rec)
		}
	}
	return kept
}

// parseRecordDate handles the date formats the API emits.
func parseRecordDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// extractMatchingLines scans content for lines containing the query and adds
// them to the collector. A stop error aborts the loop and is returned as-is
// so cancel and pause stay distinguishable.
func extractMatchingLines(col *collector, content, query, fileName string, fileIdx int, stop StopFunc) (int, error) {
	matches := 0
	lowerQuery := strings.ToLower(query)

	for _, line := range strings.Split(content, "\n") {
		if stop != nil {
			if err := stop(PhaseCollecting); err != nil {
				return matches, err
			}
		}

		if lowerQuery != "" && !strings.Contains(strings.ToLower(line), lowerQuery) {
			continue
		}
		if col.add(line, fileName, fileIdx) {
			matches++
		}
	}

	return matches, nil
}

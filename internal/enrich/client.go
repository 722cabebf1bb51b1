// Package enrich is the HTTP client for the ScholarFinder enrichment service,
// the external engine behind metadata extraction, keyword enhancement,
// database search, author validation and recommendations.
//
// Transient 5xx responses are retried with exponential backoff up to a fixed
// attempt count; rate limiting (429) is surfaced immediately as an
// EXTERNAL_API_ERROR carrying the Retry-After wait.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"scholarfinder-back/internal/apierr"
)

// Result is the success envelope every enrichment endpoint returns.
type Result struct {
	Message string          `json:"message"`
	JobID   string          `json:"job_id"`
	Data    json.RawMessage `json:"data"`
}

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, maxRetries uint, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// ExtractMetadata uploads a manuscript and starts metadata extraction.
func (c *Client) ExtractMetadata(ctx context.Context, filename string, file io.Reader) (*Result, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("enrich: create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("enrich: copy file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("enrich: close multipart writer: %w", err)
	}

	// Multipart bodies are not replayable, so the upload is not retried.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload_extract_metadata", body)
	if err != nil {
		return nil, fmt.Errorf("enrich: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.send(req)
}

// EnhanceKeywords asks the service to expand the extracted keywords.
func (c *Client) EnhanceKeywords(ctx context.Context, jobID string, keywords []string) (*Result, error) {
	return c.postJSON(ctx, "/keyword_enhancement", map[string]interface{}{
		"job_id":   jobID,
		"keywords": keywords,
	})
}

// DatabaseSearch runs the generated search strings against the configured
// bibliographic databases.
func (c *Client) DatabaseSearch(ctx context.Context, jobID string, searchStrings map[string]string) (*Result, error) {
	return c.postJSON(ctx, "/database_search", map[string]interface{}{
		"job_id":         jobID,
		"search_strings": searchStrings,
	})
}

// ManualSearch looks a single author up by name or email.
func (c *Client) ManualSearch(ctx context.Context, jobID, name, email string) (*Result, error) {
	return c.postJSON(ctx, "/manual_search", map[string]interface{}{
		"job_id": jobID,
		"name":   name,
		"email":  email,
	})
}

// ValidateAuthors runs the eligibility checklist over the candidate authors.
func (c *Client) ValidateAuthors(ctx context.Context, jobID string, authors []string) (*Result, error) {
	return c.postJSON(ctx, "/validate_authors", map[string]interface{}{
		"job_id":  jobID,
		"authors": authors,
	})
}

// Recommendations fetches the ranked reviewer recommendations for a job.
func (c *Client) Recommendations(ctx context.Context, jobID string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/recommendations/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("enrich: build request: %w", err)
	}
	return c.sendWithRetry(req, nil)
}

// Ping reports whether the service answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("enrich: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("enrich: health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("enrich: health returned %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload interface{}) (*Result, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("enrich: marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("enrich: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.sendWithRetry(req, raw)
}

// sendWithRetry retries transient server errors with exponential backoff up to
// maxRetries attempts. body is re-attached on every attempt.
func (c *Client) sendWithRetry(req *http.Request, body []byte) (*Result, error) {
	var result *Result

	operation := func() error {
		attempt := req.Clone(req.Context())
		if body != nil {
			attempt.Body = io.NopCloser(bytes.NewReader(body))
			attempt.ContentLength = int64(len(body))
		}

		res, err := c.send(attempt)
		if err != nil {
			var apiErr *apierr.Error
			if errors.As(err, &apiErr) && apiErr.Retryable && apiErr.RetryAfter == 0 {
				c.logger.Warn("enrich call failed, retrying",
					zap.String("path", req.URL.Path),
					zap.String("type", string(apiErr.Type)))
				return err
			}
			return backoff.Permanent(err)
		}
		result = res
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)),
		req.Context(),
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) send(req *http.Request) (*Result, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err) {
			return nil, apierr.Timeout("enrichment service did not respond in time")
		}
		return nil, apierr.ExternalAPI(fmt.Sprintf("enrichment service unreachable: %v", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.ExternalAPI(fmt.Sprintf("read response: %v", err))
	}

	if resp.StatusCode >= 400 {
		var body errorBody
		_ = json.Unmarshal(raw, &body)
		message := body.Message
		if message == "" {
			message = strings.TrimSpace(string(raw))
		}
		return nil, apierr.FromResponse(resp.StatusCode, resp.Header.Get("Retry-After"), message)
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, apierr.ExternalAPI(fmt.Sprintf("decode response: %v", err))
	}
	return &result, nil
}

func isClientTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scholarfinder-back/internal/apierr"
)

func newTestClient(t *testing.T, handler http.Handler, maxRetries uint) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, maxRetries, zap.NewNop()), srv
}

func TestEnhanceKeywordsSuccess(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/keyword_enhancement", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "job-123", payload["job_id"])

		json.NewEncoder(w).Encode(Result{
			Message: "keywords enhanced",
			JobID:   "job-123",
			Data:    json.RawMessage(`{"enhanced_keywords":["peer review","bibliometrics"]}`),
		})
	}), 3)

	res, err := client.EnhanceKeywords(context.Background(), "job-123", []string{"peer review"})
	require.NoError(t, err)
	assert.Equal(t, "job-123", res.JobID)
	assert.Contains(t, string(res.Data), "bibliometrics")
}

func TestRateLimitSurfacesRetryAfterMillis(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{
			"type":    "RATE_LIMIT_ERROR",
			"message": "too many enhancement requests",
		})
	}), 3)

	_, err := client.EnhanceKeywords(context.Background(), "job-123", []string{"x"})
	require.Error(t, err)

	apiErr := apierr.AsError(err)
	assert.Equal(t, apierr.TypeExternalAPI, apiErr.Type)
	assert.True(t, apiErr.Retryable)
	assert.Equal(t, int64(60000), apiErr.RetryAfterMillis())
}

func TestRateLimitIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}), 5)

	_, err := client.DatabaseSearch(context.Background(), "job-1", map[string]string{"pubmed": "q"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTransientServerErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"type": "SERVER_ERROR", "message": "transient"})
			return
		}
		json.NewEncoder(w).Encode(Result{Message: "ok", JobID: "job-9"})
	}), 5)

	res, err := client.ValidateAuthors(context.Background(), "job-9", []string{"a@x.org"})
	require.NoError(t, err)
	assert.Equal(t, "job-9", res.JobID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestServerErrorSurfacesAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}), 2)

	_, err := client.Recommendations(context.Background(), "job-2")
	require.Error(t, err)

	apiErr := apierr.AsError(err)
	assert.Equal(t, apierr.TypeExternalAPI, apiErr.Type)
	// Initial attempt plus two retries.
	assert.Equal(t, int32(3), calls.Load())
}

func TestValidationErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"type": "VALIDATION_ERROR", "message": "job_id required"})
	}), 5)

	_, err := client.ManualSearch(context.Background(), "", "Jane Doe", "")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	apiErr := apierr.AsError(err)
	assert.Equal(t, apierr.TypeValidation, apiErr.Type)
	assert.False(t, apiErr.Retryable)
	assert.Equal(t, "job_id required", apiErr.Message)
}

func TestExtractMetadataUploadsMultipart(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload_extract_metadata", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "manuscript.pdf", header.Filename)

		json.NewEncoder(w).Encode(Result{
			Message: "metadata extraction started",
			JobID:   "job-77",
		})
	}), 3)

	res, err := client.ExtractMetadata(context.Background(), "manuscript.pdf", strings.NewReader("%PDF-1.4 fake"))
	require.NoError(t, err)
	assert.Equal(t, "job-77", res.JobID)
}

func TestPing(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}), 1)

	assert.NoError(t, client.Ping(context.Background()))
}

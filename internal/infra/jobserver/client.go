// Package jobserver is the HTTP client for the job server that runs the
// searches and packaging jobs the monitor tracks.
package jobserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/jobwatch/internal/domain/background"
	"github.com/ahrav/jobwatch/pkg/common"
	"github.com/ahrav/jobwatch/pkg/common/logger"
)

var _ background.StatusService = (*Client)(nil)

// ErrUnexpectedStatus is wrapped by every non-2xx response error.
var ErrUnexpectedStatus = errors.New("unexpected job server response")

// HTTPError describes a non-2xx response.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: %s: %d %s", e.Method, e.Path, ErrUnexpectedStatus, e.StatusCode, e.Body)
}

// Is lets errors.Is match ErrUnexpectedStatus.
func (e *HTTPError) Is(target error) bool { return target == ErrUnexpectedStatus }

// Config holds the client settings.
type Config struct {
	BaseURL string
	// RequestsPerSecond bounds the request rate. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	// RetryCount is how many times Cancel and Cleanup are retried.
	RetryCount uint64
	// Timeout bounds one HTTP round trip. Zero means no timeout.
	Timeout time.Duration
}

// Client talks to the job server over JSON/HTTP.
type Client struct {
	http    *resty.Client
	limiter *common.RateLimiter
	retries uint64

	logger *logger.Logger
	tracer trace.Tracer
}

// NewClient creates a job server client. Outgoing requests are traced by the
// otelhttp transport.
func NewClient(cfg Config, logger *logger.Logger, tracer trace.Tracer) *Client {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	httpClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	rc := resty.NewWithClient(httpClient).
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}

	return &Client{
		http:    rc,
		limiter: common.NewRateLimiter(cfg.RequestsPerSecond, burst),
		retries: cfg.RetryCount,
		logger:  logger.With("component", "jobserver_client"),
		tracer:  tracer,
	}
}

// GetStatus fetches the status of jobID. A 404 is reported as a record in
// state UNKNOWN_PACKAGE_ID since the server no longer knows the job.
func (c *Client) GetStatus(ctx context.Context, jobID string) (background.StatusRecord, error) {
	ctx, span := c.tracer.Start(ctx, "jobserver_client.get_status",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("job_id", jobID)))
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		return background.StatusRecord{}, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var out statusResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", jobID).
		SetResult(&out).
		Get("/jobs/{id}/status")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return background.StatusRecord{}, fmt.Errorf("failed to get status for job %s: %w", jobID, err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		span.AddEvent("job_unknown")
		return background.StatusRecord{
			ID:    jobID,
			Kind:  background.JobKindUnknown,
			State: background.JobStateUnknownPackageID,
		}, nil
	}
	if !resp.IsSuccess() {
		err := newHTTPError(resp)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected status")
		return background.StatusRecord{}, err
	}

	rec, err := out.toDomain()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid status document")
		return background.StatusRecord{}, fmt.Errorf("failed to decode status for job %s: %w", jobID, err)
	}

	span.SetAttributes(attribute.String("state", rec.State.String()))
	return rec, nil
}

// Cancel asks the server to stop jobID.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	return c.postWithRetry(ctx, "cancel", jobID)
}

// Cleanup asks the server to discard jobID and its results.
func (c *Client) Cleanup(ctx context.Context, jobID string) error {
	return c.postWithRetry(ctx, "cleanup", jobID)
}

// postWithRetry POSTs to /jobs/{id}/{action}. Transport errors and 5xx
// responses are retried with exponential backoff; 4xx responses are not.
func (c *Client) postWithRetry(ctx context.Context, action, jobID string) error {
	ctx, span := c.tracer.Start(ctx, "jobserver_client."+action,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("job_id", jobID)))
	defer span.End()

	var attempts int
	operation := func() error {
		attempts++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.http.R().
			SetContext(ctx).
			SetPathParams(map[string]string{"id": jobID, "action": action}).
			Post("/jobs/{id}/{action}")
		if err != nil {
			return err
		}
		if resp.IsSuccess() {
			return nil
		}

		httpErr := newHTTPError(resp)
		if resp.StatusCode() < http.StatusInternalServerError {
			return backoff.Permanent(httpErr)
		}
		return httpErr
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 100 * time.Millisecond
	expBackoff.MaxElapsedTime = 10 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, c.retries), ctx)

	err := backoff.Retry(operation, policy)
	span.SetAttributes(attribute.Int("attempts", attempts))
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, action+" failed")
		c.logger.Warn(ctx, "job server request failed",
			"action", action,
			"job_id", jobID,
			"attempts", attempts,
			"error", err,
		)
		return fmt.Errorf("failed to %s job %s: %w", action, jobID, err)
	}

	return nil
}

// GetDownloadProgress reports how far the client-side download of filePath has
// progressed. Unrecognized values map to DownloadUnknown.
func (c *Client) GetDownloadProgress(ctx context.Context, filePath string) (background.DownloadProgress, error) {
	ctx, span := c.tracer.Start(ctx, "jobserver_client.get_download_progress",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("file_path", filePath)))
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		return background.DownloadUnknown, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	var out downloadProgressResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("file", filePath).
		SetResult(&out).
		Get("/downloads/progress")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return background.DownloadUnknown, fmt.Errorf("failed to get download progress for %s: %w", filePath, err)
	}
	if !resp.IsSuccess() {
		err := newHTTPError(resp)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected status")
		return background.DownloadUnknown, err
	}

	progress := background.ParseDownloadProgress(out.Progress)
	span.SetAttributes(attribute.String("progress", string(progress)))
	return progress, nil
}

func newHTTPError(resp *resty.Response) *HTTPError {
	return &HTTPError{
		Method:     resp.Request.Method,
		Path:       resp.Request.URL,
		StatusCode: resp.StatusCode(),
		Body:       resp.String(),
	}
}

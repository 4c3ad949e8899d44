package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/poiesic/docuverse/backoff"
	"github.com/poiesic/docuverse/core"
)

// CallbackClient delivers task status callbacks to a remote orchestrator
// over the /worker endpoints. It implements core.StatusCallback.
//
// Delivery is at-least-once: transport failures and 5xx responses are
// retried under the policy, 4xx responses are permanent (retrying a
// request the orchestrator rejected cannot help). The orchestrator
// answers 204 even for reports it discards, so duplicates from retries
// are harmless.
type CallbackClient struct {
	baseURL string
	client  *http.Client
	retry   backoff.Policy
	logger  *slog.Logger
}

// ClientOption configures a CallbackClient.
type ClientOption func(*CallbackClient)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *CallbackClient) {
		if client != nil {
			c.client = client
		}
	}
}

// WithClientRetryPolicy sets the delivery retry policy.
func WithClientRetryPolicy(policy backoff.Policy) ClientOption {
	return func(c *CallbackClient) {
		c.retry = policy
	}
}

// WithClientLogger sets a custom logger. Default is slog.Default().
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *CallbackClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCallbackClient creates a callback client for the orchestrator at
// baseURL.
func NewCallbackClient(baseURL string, opts ...ClientOption) *CallbackClient {
	c := &CallbackClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		retry:   backoff.DefaultPolicy(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CallbackClient) Acknowledge(ctx context.Context, taskID string) error {
	return c.post(ctx, "/worker/ack", ackRequest{TaskId: taskID})
}

func (c *CallbackClient) ReportProgress(ctx context.Context, taskID string, status core.TaskStatus, progress int, message string) error {
	return c.post(ctx, "/worker/progress", progressRequest{
		TaskId:   taskID,
		Status:   status,
		Progress: progress,
		Message:  message,
	})
}

func (c *CallbackClient) ReportCompletion(ctx context.Context, taskID string, chunkCount int) error {
	return c.post(ctx, "/worker/completion", completionRequest{
		TaskId:     taskID,
		ChunkCount: chunkCount,
	})
}

func (c *CallbackClient) ReportFailure(ctx context.Context, taskID string, reason string) error {
	return c.post(ctx, "/worker/failure", failureRequest{
		TaskId: taskID,
		Reason: reason,
	})
}

func (c *CallbackClient) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode callback: %w", err)
	}

	url := c.baseURL + path
	err = c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return core.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("callback request failed: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return core.Permanent(fmt.Errorf("callback rejected: %s: %s", resp.Status, readErrorBody(resp.Body)))
		default:
			return fmt.Errorf("callback failed: %s", resp.Status)
		}
	})
	if err != nil {
		c.logger.Error("callback delivery failed", "url", url, "err", err)
		return err
	}
	return nil
}

func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

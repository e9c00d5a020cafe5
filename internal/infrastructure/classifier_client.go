package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"gartenconnect/internal/entities"
	"gartenconnect/internal/metrics"

	"github.com/rs/zerolog"
)

const (
	processPath = "/api/v1/process"

	// UnreachableReply is shown when the classifier cannot be reached at all
	UnreachableReply = "⚠️ No se pudo conectar con el servidor, inténtalo más tarde."

	maxReplyBytes = 4 << 20
)

// ClassifierClient talks to the classification/search backend
type ClassifierClient struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

func NewClassifierClient(baseURL string, timeout time.Duration, log zerolog.Logger) *ClassifierClient {
	return &ClassifierClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Process posts req and returns the raw answer. Every failure becomes a
// diagnostic reply; no error ever reaches the caller.
func (c *ClassifierClient) Process(ctx context.Context, req entities.ClassifierRequest) entities.BackendReply {
	if c.baseURL == "" {
		c.log.Error().Msg("classifier URL is not configured")
		metrics.BackendRequests.WithLabelValues("unreachable").Inc()
		return diagnostic(UnreachableReply)
	}

	data, err := json.Marshal(req)
	if err != nil {
		c.log.Error().Err(err).Msg("encode classifier request")
		return diagnostic(UnreachableReply)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+processPath, bytes.NewReader(data))
	if err != nil {
		c.log.Error().Err(err).Msg("build classifier request")
		return diagnostic(UnreachableReply)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	metrics.BackendLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		c.log.Error().Err(err).Str("uid", req.UID).Msg("classifier unreachable")
		metrics.BackendRequests.WithLabelValues("unreachable").Inc()
		return diagnostic(UnreachableReply)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		c.log.Error().Err(err).Str("uid", req.UID).Msg("read classifier reply")
		metrics.BackendRequests.WithLabelValues("unreachable").Inc()
		return diagnostic(UnreachableReply)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := ErrorDetail(resp.Status, body)
		c.log.Error().
			Int("status", resp.StatusCode).
			Str("uid", req.UID).
			Str("detail", detail).
			Msg("classifier returned an error")
		metrics.BackendRequests.WithLabelValues("http_error").Inc()
		return diagnostic(detail)
	}

	metrics.BackendRequests.WithLabelValues("ok").Inc()
	return entities.BackendReply{Payload: json.RawMessage(body)}
}

// ErrorDetail picks the user-facing text of a failed call: the JSON "detail"
// field, else the raw body, else the status line.
func ErrorDetail(status string, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err == nil {
			if raw, ok := fields["detail"]; ok && string(raw) != "null" {
				return entities.DetailText(raw)
			}
		}
	}
	if len(trimmed) > 0 {
		return string(trimmed)
	}
	return status
}

func diagnostic(text string) entities.BackendReply {
	return entities.BackendReply{Failed: true, Diagnostic: text}
}

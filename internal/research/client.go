package research

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/config"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/domain"
)

// Request is the payload for one research invocation.
type Request struct {
	// Subject is the research subject (company or person name).
	Subject string `json:"subject"`

	// Context carries job-level framing for the generation service,
	// e.g. the requesting account's focus areas.
	Context string `json:"context,omitempty"`

	// Depth selects quick or deep research.
	Depth domain.ResearchDepth `json:"depth"`
}

// Aggregator reduces one streaming research call into a final document.
// It is the boundary between the orchestrator and the external generation
// service.
type Aggregator interface {
	// Research invokes the generation service for one subject and returns
	// the concatenated content once the stream reports completion.
	Research(ctx context.Context, req Request) (string, error)
}

// Client implements Aggregator over the generation service's streaming
// HTTP API.
type Client struct {
	httpClient      *http.Client
	endpointURL     string
	apiKey          string
	connectAttempts uint
	logger          *slog.Logger
}

// NewClient creates a research client from the service configuration.
func NewClient(cfg config.ResearchConfig, logger *slog.Logger) (*Client, error) {
	if cfg.EndpointURL == "" {
		return nil, fmt.Errorf("%w: endpoint URL is not configured", ErrEndpointUnavailable)
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	attempts := cfg.ConnectAttempts
	if attempts == 0 {
		attempts = 1
	}

	return &Client{
		httpClient: &http.Client{
			// The timeout covers the whole streaming call, not just the
			// connection: deep research responses can stream for minutes.
			Timeout: cfg.RequestTimeout,
		},
		endpointURL:     strings.TrimRight(cfg.EndpointURL, "/"),
		apiKey:          cfg.APIKey,
		connectAttempts: attempts,
		logger:          logger.With("component", "research_client"),
	}, nil
}

// Research opens the streaming call and consumes frames until the terminal
// marker. Establishing the connection is retried with backoff; once frames
// are flowing, failures surface to the caller, whose retry budget covers
// them.
func (c *Client) Research(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal research request: %w", err)
	}

	resp, err := c.connect(ctx, body)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	return c.consume(ctx, req.Subject, resp.Body)
}

// connect establishes the streaming response, retrying transient
// connection failures. A definitive rejection (4xx) is not retried.
func (c *Client) connect(ctx context.Context, body []byte) (*http.Response, error) {
	resp, err := retry.DoWithData(
		func() (*http.Response, error) {
			httpReq, err := http.NewRequestWithContext(
				ctx,
				http.MethodPost,
				c.endpointURL+"/research/stream",
				bytes.NewReader(body),
			)
			if err != nil {
				return nil, retry.Unrecoverable(err)
			}

			httpReq.Header.Set("Content-Type", "application/json")
			httpReq.Header.Set("Accept", "text/event-stream")
			if c.apiKey != "" {
				httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
			}

			resp, err := c.httpClient.Do(httpReq)
			if err != nil {
				return nil, err
			}

			if resp.StatusCode >= 500 {
				_ = resp.Body.Close()
				return nil, fmt.Errorf("generation service returned status %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				_ = resp.Body.Close()
				return nil, retry.Unrecoverable(
					fmt.Errorf("generation service rejected request with status %d", resp.StatusCode),
				)
			}

			return resp, nil
		},
		retry.Context(ctx),
		retry.Attempts(c.connectAttempts),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			c.logger.Warn("retrying generation service connection",
				"attempt", attempt+1,
				"max_attempts", c.connectAttempts,
				"error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEndpointUnavailable, err)
	}

	return resp, nil
}

// consume reduces the event stream into the final document.
func (c *Client) consume(ctx context.Context, subject string, body io.Reader) (string, error) {
	decoder := newStreamDecoder(body)

	var content strings.Builder
	var fragments int

	for {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrStreamInterrupted, err)
		}

		event, err := decoder.Next()
		if err != nil {
			return "", err
		}

		switch event.Type {
		case eventContent:
			content.WriteString(event.Content)
			fragments++

		case eventError:
			c.logger.Warn("generation service reported stream error",
				"subject", subject,
				"error", event.Error)
			return "", fmt.Errorf("%w: %s", ErrGenerationFailed, event.Error)

		case eventDone:
			c.logger.Debug("generation stream completed",
				"subject", subject,
				"fragments", fragments,
				"content_length", content.Len())
			return content.String(), nil

		default:
			// Unknown event types are skipped for forward compatibility.
			c.logger.Debug("skipping unknown stream event type",
				"subject", subject,
				"event_type", event.Type)
		}
	}
}

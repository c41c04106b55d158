package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"mentorstream/internal/domain"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// Options configures the generation-service client.
type Options struct {
	BaseURL               string
	APIKey                string
	ResponseHeaderTimeout time.Duration // time to first byte; 0 = 120s
	RequestsPerMin        float64       // 0 = unlimited
	BurstSize             int
	BreakerMaxFailures    uint32
	BreakerTimeout        time.Duration
	BreakerInterval       time.Duration
}

// Client streams generated content from the upstream service. Connection
// establishment goes through a circuit breaker (repeated upstream failures
// fail fast instead of piling retries on) and a rate limiter. The stream
// itself carries no intrinsic timeout: overall deadlines belong to the
// caller's context.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	logger     *slog.Logger
}

// NewClient builds a streaming client. Zero-valued Options fields use
// defaults.
func NewClient(opts Options, logger *slog.Logger) *Client {
	headerTimeout := opts.ResponseHeaderTimeout
	if headerTimeout == 0 {
		headerTimeout = 120 * time.Second
	}
	maxFailures := opts.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	cbTimeout := opts.BreakerTimeout
	if cbTimeout == 0 {
		cbTimeout = defaultCBTimeout
	}
	cbInterval := opts.BreakerInterval
	if cbInterval == 0 {
		cbInterval = defaultCBInterval
	}

	var limiter *rate.Limiter
	if opts.RequestsPerMin > 0 {
		burst := opts.BurstSize
		if burst == 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerMin)/60.0, burst)
	}

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "generation-source",
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    cbInterval,
		Timeout:     cbTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ResponseHeaderTimeout: headerTimeout,
			},
		},
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		limiter: limiter,
		breaker: cb,
		logger:  logger,
	}
}

// Stream starts a generation and returns a channel of classified events.
// The channel closes when the stream ends, the body closes, or ctx is
// cancelled; terminal events arrive on the channel before it closes.
func (c *Client) Stream(ctx context.Context, req domain.GenerationRequest) (<-chan domain.ContentEvent, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrRateLimit, err)
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", domain.ErrInvalidInput, err)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/v1/generate/stream", bytes.NewReader(body))
		if err != nil {
			return nil, err
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
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("source returned %s", resp.Status)
		}
		return resp, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}

	ch := make(chan domain.ContentEvent, 16)
	go c.consume(ctx, resp.Body, ch)
	return ch, nil
}

// consume pumps the response body through the frame reader and classifier.
func (c *Client) consume(ctx context.Context, body io.ReadCloser, ch chan<- domain.ContentEvent) {
	defer close(ch)
	defer body.Close()

	reader := NewFrameReader()
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			for _, frame := range reader.Feed(buf[:n]) {
				ev, ok := Classify(frame)
				if !ok {
					continue
				}
				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
				if ev.Kind == domain.EventComplete || ev.Kind == domain.EventError {
					return
				}
			}
		}
		if readErr != nil {
			// EOF or transport failure: the closed channel tells the
			// pipeline the stream ended without a terminal event.
			return
		}
	}
}

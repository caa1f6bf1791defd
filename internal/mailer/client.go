package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"vexl-backend/internal/resilience"
	"vexl-backend/internal/utils"
	"vexl-backend/pkg/logger"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const DefaultEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

var (
	// ErrNotConfigured means the relay credentials are missing.
	ErrNotConfigured = errors.New("mail relay not configured")
	// ErrRelayRejected means the relay refused the message (4xx).
	ErrRelayRejected = errors.New("mail relay rejected the message")
	// ErrRelayUnavailable covers transport failures, 5xx, throttling and an
	// open circuit.
	ErrRelayUnavailable = errors.New("mail relay unavailable")
)

type Config struct {
	Endpoint   string
	ServiceID  string
	PublicKey  string
	PrivateKey string
	Timeout    time.Duration
	// DialRetries is how often a failed connection attempt is retried.
	// A request that reached the relay is never sent twice.
	DialRetries      int
	RatePerSecond    float64
	Burst            int
	FailureThreshold int
	Cooldown         time.Duration
}

// Client posts template messages to an EmailJS-compatible relay.
type Client struct {
	cfg     Config
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
}

type sendPayload struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = utils.NewHTTPClient(cfg.Timeout)
	retryClient.RetryMax = cfg.DialRetries
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.CheckRetry = retryOnDialFailure
	retryClient.Logger = nil

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "vexl-backend/1.0")

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	breaker := resilience.New("mail-relay", resilience.Settings{
		FailureThreshold: uint32(cfg.FailureThreshold),
		Cooldown:         cfg.Cooldown,
		IsFailure: func(err error) bool {
			return !errors.Is(err, ErrRelayRejected) && !errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.WithFields(logger.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &Client{
		cfg:     cfg,
		resty:   restyClient,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		breaker: breaker,
	}
}

// Configured reports whether the relay credentials are present.
func (c *Client) Configured() bool {
	return c.cfg.ServiceID != "" && c.cfg.PublicKey != ""
}

// BreakerState exposes the relay circuit state for health checks.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// Send relays one templated message. It makes a single delivery attempt.
func (c *Client) Send(ctx context.Context, templateID string, params map[string]string) error {
	if !c.Configured() || templateID == "" {
		return ErrNotConfigured
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limited: %v", ErrRelayUnavailable, err)
	}

	payload := sendPayload{
		ServiceID:      c.cfg.ServiceID,
		TemplateID:     templateID,
		UserID:         c.cfg.PublicKey,
		AccessToken:    c.cfg.PrivateKey,
		TemplateParams: params,
	}

	err := c.breaker.Execute(func() error {
		return c.post(ctx, payload)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return fmt.Errorf("%w: %v", ErrRelayUnavailable, err)
	}
	return err
}

func (c *Client) post(ctx context.Context, payload sendPayload) error {
	start := time.Now()
	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(payload).
		Post(c.cfg.Endpoint)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrRelayUnavailable, err)
	}

	fields := logger.Fields{
		"template": payload.TemplateID,
		"status":   resp.StatusCode(),
		"duration": time.Since(start).String(),
	}

	switch code := resp.StatusCode(); {
	case code >= 200 && code < 300:
		logger.WithFields(fields).Info("Mail relay accepted message")
		return nil
	case code == http.StatusTooManyRequests || code >= 500:
		logger.WithFields(fields).Warn("Mail relay unavailable")
		return fmt.Errorf("%w: status %d: %s", ErrRelayUnavailable, code, truncate(resp.String(), 200))
	default:
		logger.WithFields(fields).Warn("Mail relay rejected message")
		return fmt.Errorf("%w: status %d: %s", ErrRelayRejected, code, truncate(resp.String(), 200))
	}
}

// retryOnDialFailure retries only when no connection was made, so a
// message is never delivered twice.
func retryOnDialFailure(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err == nil {
		return false, nil
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true, nil
	}
	return false, err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

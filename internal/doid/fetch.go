package doid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/trial-eligibility-engine/internal/domain"
)

const maxOntologySize = 512 << 20

// ClientConfig tunes ontology downloads.
type ClientConfig struct {
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
}

// Client downloads ontology releases over HTTP. Attempts are rate limited
// and guarded by a circuit breaker so a failing mirror is not hammered.
type Client struct {
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	logger     *logrus.Logger
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// NewClient creates an ontology download client.
func NewClient(config ClientConfig, logger *logrus.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 2 * time.Minute
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 1
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ontology-download",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			var se *statusError
			// Client errors say nothing about the health of the server.
			return err == nil || (errors.As(err, &se) && se.code < http.StatusInternalServerError)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		rateLimit:  rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		breaker:    breaker,
		maxRetries: config.MaxRetries,
		logger:     logger,
	}
}

// FetchGraph downloads and parses the ontology at url. Server errors and
// transport failures are retried; other responses fail immediately.
func (c *Client) FetchGraph(ctx context.Context, url, format string) (*Graph, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.rateLimit.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.download(ctx, url)
		})
		if err == nil {
			return Parse(bytes.NewReader(result.([]byte)), format)
		}
		lastErr = err

		var se *statusError
		if errors.Is(err, gobreaker.ErrOpenState) || ctx.Err() != nil ||
			(errors.As(err, &se) && se.code < http.StatusInternalServerError) {
			break
		}

		c.logger.WithError(err).WithFields(logrus.Fields{
			"url":     url,
			"attempt": attempt + 1,
		}).Warn("Ontology download failed")
	}
	return nil, fmt.Errorf("failed to download ontology from %s: %w", url, lastErr)
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, text/vnd.graphviz, */*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxOntologySize))
}

// IsRemote reports whether path names an HTTP location.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// Load reads the ontology from a local file or, for http(s) locations, with client.
func Load(ctx context.Context, client *Client, path, format string) (*Graph, error) {
	if !IsRemote(path) {
		return LoadFile(path, format)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: no client for remote ontology %s", domain.ErrInvalidOntology, path)
	}
	return client.FetchGraph(ctx, path, format)
}

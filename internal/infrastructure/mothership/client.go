// Package mothership is the typed client for the central server API. All
// calls are form-encoded POSTs answered with a JSON envelope whose
// "response" field is either "success" or an error code.
package mothership

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/typeworld/typeworld-go/internal/shared/errors"
	"github.com/typeworld/typeworld-go/internal/shared/logger"
	"github.com/typeworld/typeworld-go/internal/shared/version"
)

const (
	requestTimeout = 30 * time.Second

	// Network failures are retried with a constant pause; the central
	// server is expected back quickly or not at all.
	retryInterval = 1 * time.Second
	maxAttempts   = 10
)

// Client talks to the central server. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	log     logger.Interface

	mu           sync.RWMutex
	testScenario string
}

// New creates a client for the central server at baseURL, e.g.
// "https://api.type.world/v1".
func New(baseURL string, log logger.Interface) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
		log:     log.Named("mothership"),
	}
}

// BaseURL returns the configured central server address.
func (c *Client) BaseURL() string { return c.baseURL }

// SetTestScenario makes every subsequent request carry the given scenario
// marker, which staging servers use to fake specific answers. Empty string
// clears it.
func (c *Client) SetTestScenario(scenario string) {
	c.mu.Lock()
	c.testScenario = scenario
	c.mu.Unlock()
}

// envelope is the part every response shares.
type envelope struct {
	Response string `json:"response"`
}

// post sends a form-encoded POST to endpoint and decodes the JSON answer
// into out, which must embed the response envelope. A non-"success"
// response is returned as a ResponseError alongside the decoded body.
func (c *Client) post(ctx context.Context, endpoint string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("clientVersion", version.ClientVersion)

	c.mu.RLock()
	if c.testScenario != "" {
		params.Set("testScenario", c.testScenario)
	}
	c.mu.RUnlock()

	target := c.baseURL + "/" + endpoint

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target,
			strings.NewReader(params.Encode()))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.http.Do(req)
		if err != nil {
			c.log.Debugw("central server request failed, retrying",
				"endpoint", endpoint,
				"error", err,
			)
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("central server answered %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("central server answered %d", resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(retryInterval), maxAttempts-1),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		c.log.Warnw("central server not reachable",
			"endpoint", endpoint,
			"parameters", Redact(params),
			"error", err,
		)
		return errors.NewResponse(errors.CodeServerNotReachable)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("malformed central server response: %w", err)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("malformed central server response: %w", err)
		}
	}

	c.log.Debugw("central server request",
		"endpoint", endpoint,
		"parameters", Redact(params),
		"response", env.Response,
	)

	if env.Response != "success" {
		return errors.NewResponse(env.Response)
	}
	return nil
}

// Redact replaces secret-bearing parameter values for logging. A parameter
// is secret when its lowercased name ends in "key" or "secret".
func Redact(params url.Values) map[string]string {
	out := make(map[string]string, len(params))
	for name := range params {
		lower := strings.ToLower(name)
		if strings.HasSuffix(lower, "key") || strings.HasSuffix(lower, "secret") {
			out[name] = "*****"
			continue
		}
		out[name] = params.Get(name)
	}
	return out
}

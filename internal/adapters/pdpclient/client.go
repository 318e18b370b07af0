// Package pdpclient lets an enforcement point deployed away from the
// identity service ask its policy endpoint for decisions.
package pdpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"c5isr-identity/internal/core/domain"
)

// EvaluatePath is the policy endpoint relative to the base URL
const EvaluatePath = "/api/v1/policy/evaluate"

// DefaultTimeout bounds a decision round trip
const DefaultTimeout = 2 * time.Second

// Client calls a remote PDP. Every failure maps to
// domain.ErrIdentityProviderUnavailable; callers must deny on error.
type Client struct {
	url     string
	timeout time.Duration
}

// New creates a client for the PDP at baseURL
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:     strings.TrimRight(baseURL, "/") + EvaluatePath,
		timeout: timeout,
	}
}

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    *domain.PolicyDecision `json:"data"`
}

// Decide posts req to the remote PDP
func (c *Client) Decide(ctx context.Context, req domain.PolicyRequest) (domain.PolicyDecision, error) {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 || ctx.Err() != nil {
		return unavailable("context done before request")
	}

	agent := fiber.Post(c.url).
		JSON(req).
		Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON).
		Timeout(timeout)

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return unavailable(errs[0].Error())
	}
	if status < 200 || status > 299 {
		return unavailable(fmt.Sprintf("status %d", status))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return unavailable("undecodable body: " + err.Error())
	}
	if !env.Success || env.Data == nil {
		return unavailable("empty decision")
	}

	d := *env.Data
	if d.Decision != domain.DecisionPermit && d.Decision != domain.DecisionDeny {
		return unavailable(fmt.Sprintf("unknown decision %q", d.Decision))
	}
	return d, nil
}

func unavailable(reason string) (domain.PolicyDecision, error) {
	return domain.PolicyDecision{Decision: domain.DecisionDeny, Reason: "Identity provider unavailable"},
		fmt.Errorf("%w: %s", domain.ErrIdentityProviderUnavailable, reason)
}

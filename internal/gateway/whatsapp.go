// Package gateway wraps the outbound WhatsApp HTTP API. The dispatcher and
// reminder engine only see the SendResult shape; any transport or gateway
// error surfaces as a per-recipient failure, never a halted batch.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/waseller/campaign-engine/internal/model"
)

// SendResult is the gateway's uniform reply shape.
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"` // seconds
}

const sessionTokenKey = "session_token"

// Client talks to the WhatsApp gateway. Session tokens are short-lived; the
// client owns an expiring cache and refreshes on expiry rather than keeping
// a mutable module-level token.
type Client struct {
	baseURL string
	apiKey  string
	http    *resty.Client
	tokens  *cache.Cache
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
		tokens:  cache.New(50*time.Minute, 10*time.Minute),
	}
}

func (c *Client) sessionToken(ctx context.Context) (string, error) {
	if tok, found := c.tokens.Get(sessionTokenKey); found {
		return tok.(string), nil
	}

	var resp tokenResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", c.apiKey).
		SetResult(&resp).
		Post("/auth/token")
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	if res.IsError() || resp.Token == "" {
		return "", fmt.Errorf("token exchange rejected: %s", res.Status())
	}

	ttl := time.Duration(resp.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = 50 * time.Minute
	}
	// Refresh a minute early so an in-flight send never uses a dead token.
	if ttl > time.Minute {
		ttl -= time.Minute
	}
	c.tokens.Set(sessionTokenKey, resp.Token, ttl)

	log.Debug().Dur("ttl", ttl).Msg("gateway session token refreshed")
	return resp.Token, nil
}

func (c *Client) send(ctx context.Context, path string, payload map[string]interface{}) (*SendResult, error) {
	token, err := c.sessionToken(ctx)
	if err != nil {
		return nil, err
	}

	var result SendResult
	res, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(payload).
		SetResult(&result).
		SetError(&result).
		Post(path)
	if err != nil {
		return nil, err
	}
	if res.IsError() && result.Error == "" {
		result.Error = res.Status()
	}
	if res.IsError() {
		result.Success = false
	}
	return &result, nil
}

func (c *Client) SendText(ctx context.Context, phone, text string) (*SendResult, error) {
	return c.send(ctx, "/messages/text", map[string]interface{}{
		"phone": phone,
		"body":  text,
	})
}

func (c *Client) SendTemplate(ctx context.Context, phone, name string, params []string) (*SendResult, error) {
	return c.send(ctx, "/messages/template", map[string]interface{}{
		"phone":    phone,
		"template": name,
		"params":   params,
	})
}

func (c *Client) SendImage(ctx context.Context, phone, mediaURL, caption string) (*SendResult, error) {
	return c.send(ctx, "/messages/image", map[string]interface{}{
		"phone":   phone,
		"url":     mediaURL,
		"caption": caption,
	})
}

func (c *Client) SendButtons(ctx context.Context, phone, body string, buttons []model.Button) (*SendResult, error) {
	return c.send(ctx, "/messages/buttons", map[string]interface{}{
		"phone":   phone,
		"body":    body,
		"buttons": buttons,
	})
}

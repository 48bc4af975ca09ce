package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/furthemore/registerd/internal/config"
	"github.com/furthemore/registerd/internal/models"
)

// BadResponseError is returned when the backend answers with a non-200
// status code.
type BadResponseError struct {
	StatusCode int
}

func (e *BadResponseError) Error() string {
	return fmt.Sprintf("got wrong status code from API: %d", e.StatusCode)
}

// Client talks to the registration backend over HTTPS with bearer-token
// authentication.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

func (c *Client) post(ctx context.Context, endpoint, path, token string, body, out any) error {
	target, err := url.JoinPath(endpoint, path)
	if err != nil {
		return fmt.Errorf("building request URL: %w", err)
	}
	c.logger.Debug("Making backend request", zap.String("url", target))

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Backend returned unexpected status",
			zap.String("url", target),
			zap.Int("status", resp.StatusCode),
		)
		return &BadResponseError{StatusCode: resp.StatusCode}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// SquareTransactionCompleted reports a completed charge and returns whether
// the backend accepted it as valid.
func (c *Client) SquareTransactionCompleted(ctx context.Context, cfg config.Config, tx models.CompletedTransaction) (bool, error) {
	var resp struct {
		Success bool `json:"success"`
	}
	err := c.post(ctx, cfg.Endpoint, "/registration/terminal/square/completed", cfg.Token, tx, &resp)
	if err != nil {
		return false, err
	}
	return resp.Success, nil
}

// RequestSquareToken asks the backend to deliver fresh gateway credentials.
// The token itself arrives later as an updateToken event on the channel.
func (c *Client) RequestSquareToken(ctx context.Context, cfg config.Config) error {
	var resp bool
	return c.post(ctx, cfg.Endpoint, "/registration/terminal/square/token", cfg.Token, true, &resp)
}

// RegisterTerminal exchanges a registration token for a full terminal config.
func (c *Client) RegisterTerminal(ctx context.Context, endpoint, name, token string) (*config.Config, error) {
	request := struct {
		TerminalName string `json:"terminalName"`
		Token        string `json:"token"`
	}{TerminalName: name, Token: token}

	var cfg config.Config
	if err := c.post(ctx, endpoint, "/registration/terminal/register", token, request, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

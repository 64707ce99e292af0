package apiclient

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hustariz/rascarobingo/internal/config"
	"github.com/hustariz/rascarobingo/internal/lifecycle"
	"github.com/hustariz/rascarobingo/internal/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxRetries = 3

// APIError is a 4xx/5xx answer from the journal API.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Journal is the subset of the journal API used by tooling.
type Journal interface {
	CreateTrade(ctx context.Context, in lifecycle.NewTrade) (*models.Trade, error)
	ListTrades(ctx context.Context) ([]models.Trade, error)
	CloseTrade(ctx context.Context, tradeID string, req lifecycle.CloseRequest) (*lifecycle.CloseResult, error)
	DeleteTrade(ctx context.Context, tradeID string) error
	GetRiskProfile(ctx context.Context) (*models.RiskProfile, error)
}

// Client talks to the journal API as the user named by its bearer token.
type Client struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
	backoff time.Duration
}

var _ Journal = (*Client)(nil)

// New creates a Client for cfg.BaseURL.
func New(cfg *config.Client, logger *zap.Logger) *Client {
	client := resty.New().SetBaseURL(cfg.BaseURL)
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateLimitBurst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		client:  client,
		logger:  logger.Named("apiclient"),
		limiter: rate.NewLimiter(limit, burst),
		backoff: time.Second,
	}
}

// statusBody mirrors the status-change request accepted by the API.
type statusBody struct {
	Status     models.Status `json:"status"`
	ProfitLoss *float64      `json:"profitLoss,omitempty"`
	ExitPrice  *float64      `json:"exitPrice,omitempty"`
}

func (c *Client) CreateTrade(ctx context.Context, in lifecycle.NewTrade) (*models.Trade, error) {
	var trade models.Trade
	req := c.client.R().SetBody(in).SetResult(&trade)
	if _, err := c.doRequest(ctx, http.MethodPost, "/trades", req); err != nil {
		return nil, fmt.Errorf("failed to create trade: %w", err)
	}
	return &trade, nil
}

func (c *Client) ListTrades(ctx context.Context) ([]models.Trade, error) {
	var trades []models.Trade
	req := c.client.R().SetResult(&trades)
	if _, err := c.doRequest(ctx, http.MethodGet, "/trades", req); err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, nil
}

func (c *Client) CloseTrade(ctx context.Context, tradeID string, r lifecycle.CloseRequest) (*lifecycle.CloseResult, error) {
	var res lifecycle.CloseResult
	req := c.client.R().
		SetPathParam("id", tradeID).
		SetBody(statusBody{Status: r.Status, ProfitLoss: r.ProfitLoss, ExitPrice: r.ExitPrice}).
		SetResult(&res)
	if _, err := c.doRequest(ctx, http.MethodPost, "/trades/{id}/status", req); err != nil {
		return nil, fmt.Errorf("failed to close trade %s: %w", tradeID, err)
	}
	return &res, nil
}

func (c *Client) DeleteTrade(ctx context.Context, tradeID string) error {
	req := c.client.R().SetPathParam("id", tradeID)
	if _, err := c.doRequest(ctx, http.MethodDelete, "/trades/{id}", req); err != nil {
		return fmt.Errorf("failed to delete trade %s: %w", tradeID, err)
	}
	return nil
}

func (c *Client) GetRiskProfile(ctx context.Context) (*models.RiskProfile, error) {
	var profile models.RiskProfile
	req := c.client.R().SetResult(&profile)
	if _, err := c.doRequest(ctx, http.MethodGet, "/risk-management", req); err != nil {
		return nil, fmt.Errorf("failed to get risk profile: %w", err)
	}
	return &profile, nil
}

// doRequest executes req with rate limiting. 5xx answers are retried with
// exponential backoff since the server rolls back; network errors only for
// GET and DELETE. 429 is retried only when the server sends Retry-After, so a
// refused stop-loss is reported at once.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	req.SetContext(ctx).SetError(&APIError{})

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err := req.Execute(method, url)
		if err == nil && !resp.IsError() {
			return resp, nil
		}

		var retryAfter time.Duration
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			if !idempotent(method) {
				// The server may have committed before the connection dropped.
				return nil, fmt.Errorf("%s %s outcome unknown: %w", method, url, err)
			}
			lastErr = err
		} else {
			apiErr := toAPIError(resp)
			lastErr = apiErr
			switch {
			case resp.StatusCode() == http.StatusTooManyRequests:
				seconds, perr := strconv.Atoi(resp.Header().Get("Retry-After"))
				if perr != nil {
					return nil, apiErr
				}
				retryAfter = time.Duration(seconds) * time.Second
			case resp.StatusCode() >= http.StatusInternalServerError:
			default:
				return nil, apiErr
			}
		}

		if i == maxRetries-1 {
			break
		}
		if retryAfter == 0 {
			retryAfter = time.Duration(math.Pow(2, float64(i))) * c.backoff
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(lastErr),
		)

		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, lastErr)
}

func idempotent(method string) bool {
	return method == http.MethodGet || method == http.MethodDelete
}

func toAPIError(resp *resty.Response) *APIError {
	apiErr, ok := resp.Error().(*APIError)
	if !ok || apiErr == nil || apiErr.Code == "" {
		apiErr = &APIError{Message: resp.String()}
	}
	apiErr.Status = resp.StatusCode()
	return apiErr
}

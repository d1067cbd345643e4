package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-client/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-client/pkg/errors"
	"github.com/angelmondragon/storefront-client/pkg/logger"
	"github.com/angelmondragon/storefront-client/pkg/types"
)

var (
	errBaseURLRequired = errors.New("api base url is required")
	errLoggerRequired  = errors.New("api logger is required")
	errTokensRequired  = errors.New("token source is required")
)

// TokenSource supplies the bearer token attached to every request.
type TokenSource interface {
	BearerToken(ctx context.Context) (string, error)
}

// Client is the typed storefront API client with centralized auth, timeouts,
// logging, and error mapping.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	timeout    time.Duration
	logger     *logger.Logger
}

// NewClient validates the configuration and builds the API client.
func NewClient(cfg config.APIConfig, tokens TokenSource, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	if tokens == nil {
		return nil, errTokensRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		tokens:     tokens,
		timeout:    timeout,
		logger:     logg,
	}, nil
}

// FetchCart returns the authoritative server-side cart.
func (c *Client) FetchCart(ctx context.Context) ([]types.CartItem, error) {
	env, err := c.do(ctx, http.MethodGet, "/api/cart", nil, "fetch_cart")
	if err != nil {
		return nil, err
	}
	items, ok := DecodeItems(env.Data)
	if !ok {
		logCtx := c.logger.WithOperation(ctx, "fetch_cart")
		c.logger.Warn(logCtx, "unrecognized cart payload shape")
		return nil, pkgerrors.New(pkgerrors.CodeMalformedResponse, "unrecognized cart payload shape").WithStatus(env.Status)
	}
	return items, nil
}

// AddItem creates or merges a line item server-side and returns the server
// confirmation message when present.
func (c *Client) AddItem(ctx context.Context, req types.AddItemRequest) (string, error) {
	env, err := c.do(ctx, http.MethodPost, "/api/cart/add", req, "add_item")
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// UpdateItem rewrites the quantity for the (product, offer) pair.
func (c *Client) UpdateItem(ctx context.Context, productID string, req types.UpdateItemRequest) error {
	path := "/api/cart/update/" + url.PathEscape(productID)
	_, err := c.do(ctx, http.MethodPut, path, req, "update_item")
	return err
}

// RemoveItem deletes the line item for the (product, offer) pair.
func (c *Client) RemoveItem(ctx context.Context, productID string, req types.RemoveItemRequest) error {
	path := "/api/cart/remove/" + url.PathEscape(productID)
	_, err := c.do(ctx, http.MethodDelete, path, req, "remove_item")
	return err
}

// ClearCart empties the server-side cart.
func (c *Client) ClearCart(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/cart/clear", nil, "clear_cart")
	return err
}

// Validate revalidates availability of the current server-side cart.
func (c *Client) Validate(ctx context.Context) ([]types.ValidationResult, error) {
	env, err := c.do(ctx, http.MethodPost, "/api/cart/validate", nil, "validate_cart")
	if err != nil {
		return nil, err
	}
	var payload struct {
		Items []types.ValidationResult `json:"items"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeMalformedResponse, err, "decode validation payload").WithStatus(env.Status)
	}
	return payload.Items, nil
}

// MergeCart merges a pre-login local cart into the server cart.
func (c *Client) MergeCart(ctx context.Context, req types.MergeRequest) error {
	_, err := c.do(ctx, http.MethodPost, "/api/cart/merge", req, "merge_cart")
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body any, op string) (Envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	requestID := uuid.NewString()
	logCtx := c.logger.WithFields(ctx, map[string]any{
		"operation":  op,
		"request_id": requestID,
		"method":     method,
		"path":       path,
	})

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return Envelope{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return Envelope{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.BearerToken(ctx)
	if err != nil {
		return Envelope{}, pkgerrors.Wrap(pkgerrors.CodeAuthRequired, err, "resolve bearer token")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	logCtx = c.logger.WithBearer(logCtx, token)
	c.logger.Debug(logCtx, "storefront api request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		mapped := c.mapTransportError(err, op)
		c.logger.Warn(c.logger.WithField(logCtx, "error", mapped.Error()), "storefront api transport failure")
		return Envelope{}, mapped
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Envelope{}, pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "read response body").WithStatus(resp.StatusCode)
	}

	env := Normalize(resp.StatusCode, raw)
	c.logger.Debug(c.logger.WithFields(logCtx, map[string]any{
		"status":  env.Status,
		"success": env.Success,
	}), "storefront api response")

	if !env.Success {
		return env, c.mapEnvelopeError(env, op)
	}
	return env, nil
}

func (c *Client) mapTransportError(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, fmt.Sprintf("%s timed out", op))
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, fmt.Sprintf("%s timed out", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, fmt.Sprintf("%s transport failure", op))
}

func (c *Client) mapEnvelopeError(env Envelope, op string) error {
	switch {
	case env.Status == http.StatusUnauthorized || env.Status == http.StatusForbidden:
		return pkgerrors.New(pkgerrors.CodeAuthRequired, "session is not authenticated").WithStatus(env.Status)
	case env.Message != "":
		// A well-formed rejection carries the server's own message; surface
		// it verbatim and never retry.
		return pkgerrors.New(pkgerrors.CodeServerRejected, env.Message).WithStatus(env.Status)
	case env.Status >= 200 && env.Status < 300:
		return pkgerrors.New(pkgerrors.CodeServerRejected, fmt.Sprintf("%s was rejected by the server", op)).WithStatus(env.Status)
	default:
		// Non-2xx without a usable server message is indistinguishable from
		// a transport fault, so it stays retryable.
		return pkgerrors.New(pkgerrors.CodeNetwork, fmt.Sprintf("%s failed with status %d", op, env.Status)).WithStatus(env.Status)
	}
}

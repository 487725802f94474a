// Package api is the authenticated request pipeline.
//
// Every outbound call goes through Client.Do: it attaches the current access
// token, unwraps the transport envelope, and absorbs a single token expiry by
// refreshing and replaying the request exactly once. Callers only ever see
// domain errors, never raw transport failures.
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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/campushq/campushq/internal/platform/errors"
	"github.com/campushq/campushq/internal/platform/timeouts"
)

// TokenSource is the narrow token surface the pipeline depends on.
type TokenSource interface {
	// Token returns a currently valid access token, or "" for anonymous.
	Token(ctx context.Context) (string, error)
	// Refresh forces a rotation after the server rejected the token.
	Refresh(ctx context.Context) (string, error)
}

// Client sends JSON requests to the platform API.
type Client struct {
	baseURL *url.URL
	httpc   *http.Client
	tokens  TokenSource
	tracer  trace.Tracer
}

// NewClient creates a pipeline client for the given base URL. tokens may be
// nil for a purely anonymous client.
func NewClient(baseURL string, tokens TokenSource) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base url requires scheme and host: %q", baseURL)
	}
	return &Client{
		baseURL: parsed,
		httpc:   &http.Client{Timeout: timeouts.APIRequest},
		tokens:  tokens,
		tracer:  otel.Tracer("campushq/api"),
	}, nil
}

// publicPaths are unauthenticated-only endpoints. A 401 from these means the
// credentials in the request body were wrong, never that the access token
// expired, so the pipeline must not refresh and replay.
var publicPaths = map[string]struct{}{
	"/auth/register":               {},
	"/auth/login":                  {},
	"/auth/verify-otp":             {},
	"/auth/resend-otp":             {},
	"/auth/refresh-token":          {},
	"/auth/request-password-reset": {},
	"/auth/reset-password":         {},
}

func isPublicPath(path string) bool {
	_, ok := publicPaths[path]
	return ok
}

// Do sends one JSON request and decodes the envelope's data field into out.
// body and out may both be nil.
func (c *Client) Do(ctx context.Context, method, path string, body any, out any) (Meta, error) {
	return c.do(ctx, method, path, body, out, 0)
}

// Get issues a GET request with optional query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) (Meta, error) {
	if len(query) > 0 {
		path = path + "?" + query.Encode()
	}
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST request.
func (c *Client) Post(ctx context.Context, path string, body any, out any) (Meta, error) {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT request.
func (c *Client) Put(ctx context.Context, path string, body any, out any) (Meta, error) {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

// Patch issues a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body any, out any) (Meta, error) {
	return c.Do(ctx, http.MethodPatch, path, body, out)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out any) (Meta, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

// do carries the replay count as an explicit parameter so no request state
// is shared across concurrent retries.
func (c *Client) do(ctx context.Context, method, path string, body any, out any, attempt int) (Meta, error) {
	ctx, span := c.tracer.Start(ctx, "api.request", trace.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
		attribute.Int("campushq.attempt", attempt),
	))
	defer span.End()

	meta, status, err := c.send(ctx, method, path, body, out)
	if status > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}

	if status == http.StatusUnauthorized && attempt == 0 && !isPublicPath(requestPath(path)) && c.tokens != nil {
		if _, refreshErr := c.tokens.Refresh(ctx); refreshErr != nil {
			span.SetStatus(codes.Error, "refresh failed")
			return Meta{}, refreshErr
		}
		span.AddEvent("token refreshed, replaying request")
		return c.do(ctx, method, path, body, out, attempt+1)
	}

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Meta{}, err
	}
	return meta, nil
}

// send performs one network round trip. The returned status is zero when the
// request never reached the server.
func (c *Client) send(ctx context.Context, method, path string, body any, out any) (Meta, int, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return Meta{}, 0, apperrors.Wrap(apperrors.CodeUnknown, "encode request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return Meta{}, 0, apperrors.Wrap(apperrors.CodeUnknown, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	public := isPublicPath(requestPath(path))
	if c.tokens != nil && !public {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return Meta{}, 0, err
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Meta{}, 0, networkError(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Meta{}, resp.StatusCode, networkError(err)
	}

	var env envelope
	if len(bytes.TrimSpace(payload)) > 0 {
		if err := json.Unmarshal(payload, &env); err != nil {
			if resp.StatusCode < 300 {
				return Meta{}, resp.StatusCode, apperrors.Wrap(apperrors.CodeUnknown, "decode response", err)
			}
			return Meta{}, resp.StatusCode, normalizeError(resp.StatusCode, envelope{}, public)
		}
	}

	if resp.StatusCode >= 300 {
		return Meta{}, resp.StatusCode, normalizeError(resp.StatusCode, env, public)
	}
	// An empty 2xx body (204-style) counts as success.
	if len(bytes.TrimSpace(payload)) > 0 && !env.Success {
		return Meta{}, resp.StatusCode, normalizeError(resp.StatusCode, env, public)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return Meta{}, resp.StatusCode, apperrors.Wrap(apperrors.CodeUnknown, "decode response data", err)
		}
	}
	return env.meta(), resp.StatusCode, nil
}

// requestPath strips any query string before the public-endpoint check.
func requestPath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		return path[:idx]
	}
	return path
}

// networkError classifies transport failures. Timeouts get their own code so
// the caller can tell a hung request from an unreachable host, but both sit
// in the retry-friendly network family.
func networkError(err error) *apperrors.Error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.Wrap(apperrors.CodeTimeout, "the request timed out, please retry", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.CodeTimeout, "the request timed out, please retry", err)
	}
	return apperrors.Wrap(apperrors.CodeNetwork, "the service is unreachable, please retry", err)
}

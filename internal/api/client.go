// Package api is the HTTP client for the HireOps REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/hireops/internal/logging"
	"github.com/jonathan/hireops/internal/types"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "hireops-cli/1.0"

// DefaultPageSize is the page size requested for list endpoints.
const DefaultPageSize = 100

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Status update route styles.
const (
	RoutePatchStatus = "patch-status"
	RoutePutStatus   = "put-status"
	RoutePut         = "put"
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token() (string, error) { return string(t), nil }

// Options configures a Client.
type Options struct {
	Timeout     time.Duration
	UserAgent   string
	PageSize    int
	StatusRoute string
	Tokens      TokenSource
	HTTPClient  *http.Client
	Logger      *logging.Logger
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() *Options {
	return &Options{
		Timeout:     DefaultTimeout,
		UserAgent:   DefaultUserAgent,
		PageSize:    DefaultPageSize,
		StatusRoute: RoutePatchStatus,
	}
}

// Client talks to the HireOps API. It is safe for concurrent use.
type Client struct {
	baseURL     *url.URL
	http        *http.Client
	userAgent   string
	pageSize    int
	statusRoute string
	tokens      TokenSource
	logger      *logging.Logger
}

// New creates a client for baseURL, e.g. "http://localhost:8000/api".
func New(baseURL string, opts *Options) (*Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", baseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	c := &Client{
		baseURL:     parsed,
		http:        httpClient,
		userAgent:   opts.UserAgent,
		pageSize:    opts.PageSize,
		statusRoute: opts.StatusRoute,
		tokens:      opts.Tokens,
		logger:      opts.Logger,
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.pageSize <= 0 {
		c.pageSize = DefaultPageSize
	}
	if c.statusRoute == "" {
		c.statusRoute = RoutePatchStatus
	}
	if c.logger == nil {
		c.logger = logging.NopLogger()
	}
	c.logger = c.logger.WithComponent("api")
	return c, nil
}

// ListJobs fetches all jobs.
func (c *Client) ListJobs(ctx context.Context) ([]types.Job, error) {
	return listAll[types.Job](ctx, c, "jobs")
}

// ListCandidates fetches all candidates.
func (c *Client) ListCandidates(ctx context.Context) ([]types.Candidate, error) {
	return listAll[types.Candidate](ctx, c, "candidates")
}

// ListApplications fetches all applications in server order.
func (c *Client) ListApplications(ctx context.Context) ([]types.Application, error) {
	return listAll[types.Application](ctx, c, "applications")
}

// CreateApplication pairs a job and candidate.
func (c *Client) CreateApplication(ctx context.Context, req types.CreateApplicationRequest) (*types.Application, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid application: %s", strings.Join(types.ValidationMessages(err), "; "))
	}
	body, err := c.doJSON(ctx, http.MethodPost, "/applications", req)
	if err != nil {
		return nil, err
	}
	var app types.Application
	if err := json.Unmarshal(body, &app); err != nil {
		return nil, fmt.Errorf("failed to decode created application: %w", err)
	}
	return &app, nil
}

// UpdateApplicationStatus sends a status change. The updated record is
// returned when the server echoes one; an empty 2xx body yields nil.
func (c *Client) UpdateApplicationStatus(ctx context.Context, id int64, req types.StatusUpdateRequest) (*types.Application, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid status update: %s", strings.Join(types.ValidationMessages(err), "; "))
	}

	method, path := c.statusEndpoint(id)
	body, err := c.doJSON(ctx, method, path, req)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var app types.Application
	if err := json.Unmarshal(body, &app); err != nil || app.ID == 0 {
		// Some deployments answer with a bare acknowledgement.
		return nil, nil
	}
	return &app, nil
}

// StatusHistory returns the recorded status changes of one application,
// oldest first.
func (c *Client) StatusHistory(ctx context.Context, id int64) ([]types.StatusHistoryEntry, error) {
	body, err := c.do(ctx, http.MethodGet, "/applications/"+strconv.FormatInt(id, 10)+"/history", nil, "")
	if err != nil {
		return nil, err
	}
	return types.DecodeList[types.StatusHistoryEntry](body)
}

// Login exchanges credentials for a bearer token. It does not use the
// client's TokenSource.
func (c *Client) Login(ctx context.Context, req types.LoginRequest) (*types.Token, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid credentials: %s", strings.Join(types.ValidationMessages(err), "; "))
	}
	form := url.Values{}
	form.Set("username", req.Username)
	form.Set("password", req.Password)

	body, err := c.send(ctx, http.MethodPost, "/auth/login", strings.NewReader(form.Encode()),
		"application/x-www-form-urlencoded", false)
	if err != nil {
		return nil, err
	}
	var token types.Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("login response did not include an access token")
	}
	return &token, nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*types.User, error) {
	body, err := c.do(ctx, http.MethodGet, "/auth/me", nil, "")
	if err != nil {
		return nil, err
	}
	var user types.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &user, nil
}

// listAll walks a collection from page 1 until the reported page count is
// reached. A bare array, an envelope without a page count or an empty page
// ends the walk. Any failed page fails the whole collection.
func listAll[T any](ctx context.Context, c *Client, collection string) ([]T, error) {
	all := []T{}
	for page := 1; ; page++ {
		body, err := c.do(ctx, http.MethodGet, c.listPath(collection, page), nil, "")
		if err != nil {
			return nil, err
		}
		p, err := types.DecodePage[T](body)
		if err != nil {
			return nil, fmt.Errorf("%s page %d: %w", collection, page, err)
		}
		all = append(all, p.Items...)
		if page >= p.Pages || len(p.Items) == 0 {
			return all, nil
		}
	}
}

func (c *Client) listPath(collection string, page int) string {
	return "/" + collection + "?size=" + strconv.Itoa(c.pageSize) + "&page=" + strconv.Itoa(page)
}

func (c *Client) statusEndpoint(id int64) (string, string) {
	base := "/applications/" + strconv.FormatInt(id, 10)
	switch c.statusRoute {
	case RoutePut:
		return http.MethodPut, base
	case RoutePutStatus:
		return http.MethodPut, base + "/status"
	default:
		return http.MethodPatch, base + "/status"
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return c.do(ctx, method, path, bytes.NewReader(data), "application/json")
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	return c.send(ctx, method, path, body, contentType, true)
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string, authenticated bool) ([]byte, error) {
	target := c.resolve(path)

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authenticated && c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return nil, &AuthError{Method: method, URL: target, Cause: err}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "method", method, "url", target, "request_id", requestID, "error", err)
		return nil, &NetworkError{Method: method, URL: target, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("request completed", "method", method, "url", target, "request_id", requestID,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ServerError{
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(data),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Method: method, URL: target, Cause: fmt.Errorf("failed to read response body: %w", err)}
	}
	return data, nil
}

func (c *Client) resolve(path string) string {
	rel, _ := url.Parse(path)
	u := *c.baseURL
	u.Path = c.baseURL.Path + rel.Path
	u.RawQuery = rel.RawQuery
	return u.String()
}

// errorDetail extracts a message from {detail}, {error} or {message}. Validation
// errors send detail as a list of {msg}.
func errorDetail(data []byte) string {
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return strings.TrimSpace(string(data))
	}

	if len(body.Detail) > 0 {
		var s string
		if err := json.Unmarshal(body.Detail, &s); err == nil {
			return s
		}
		var list []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(body.Detail, &list); err == nil {
			msgs := make([]string, 0, len(list))
			for _, item := range list {
				if item.Msg != "" {
					msgs = append(msgs, item.Msg)
				}
			}
			return strings.Join(msgs, "; ")
		}
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Message
}

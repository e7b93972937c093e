package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds a single request when the caller's context has no
// deadline of its own.
const DefaultTimeout = 15 * time.Second

// UserAgent is sent with every request.
const UserAgent = "recipesync/1"

// IDGenerator produces request IDs.
type IDGenerator interface {
	Generate() string
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string { return uuid.Must(uuid.NewV7()).String() }

// Client talks to the recipe API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenProvider
	ids     IDGenerator
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithIDGenerator sets the source of X-Request-ID values used when the
// context carries none.
func WithIDGenerator(g IDGenerator) ClientOption {
	return func(c *Client) { c.ids = g }
}

// NewClient returns a client for the API rooted at baseURL.
func NewClient(baseURL string, tokens TokenProvider, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	if tokens == nil {
		tokens = StaticToken("")
	}
	c := &Client{
		baseURL: u.String(),
		http:    &http.Client{Timeout: DefaultTimeout},
		tokens:  tokens,
		ids:     uuidGenerator{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type requestIDKey struct{}

// WithRequestID attaches id to ctx; requests made with ctx send it as
// X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id attached by WithRequestID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// params describes one API call.
type params struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// do sends the request and returns the raw body of a 2xx response.
func (c *Client) do(ctx context.Context, p params) ([]byte, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", p.Method, p.Path, err)
	}
	auth := Authorization(tok)
	if auth == "" {
		return nil, fmt.Errorf("%s %s: %w", p.Method, p.Path, ErrNoToken)
	}

	var body io.Reader
	if p.Body != nil {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(p.Body); err != nil {
			return nil, fmt.Errorf("%s %s: encode body: %w", p.Method, p.Path, err)
		}
		body = &buf
	}

	target := c.baseURL + p.Path
	if len(p.Query) > 0 {
		target += "?" + p.Query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, p.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", p.Method, p.Path, err)
	}

	id := RequestID(ctx)
	if id == "" {
		id = c.ids.Generate()
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("X-Request-ID", id)
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", p.Method, p.Path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", p.Method, p.Path, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{Method: p.Method, Path: p.Path, Status: res.StatusCode, Body: data}
	}
	return data, nil
}

// makeJSON makes the call and unmarshals the response into Response.
func makeJSON[Response any](ctx context.Context, c *Client, p params) (Response, error) {
	var resp Response
	data, err := c.do(ctx, p)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return resp, fmt.Errorf("%s %s: decode response: %w", p.Method, p.Path, err)
	}
	return resp, nil
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/common"
)

const maxResponseSize = 8 << 20

// DefaultTimeout bounds a single request when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Request is a transport-level request. Body holds the encoded payload so
// the request can be replayed after a token refresh.
type Request struct {
	Method string
	Path   string
	Body   []byte
	Header http.Header
}

// NewJSONRequest encodes payload (if not nil) into a new Request.
func NewJSONRequest(method, path string, payload any) (*Request, error) {
	req := &Request{Method: method, Path: path, Header: http.Header{}}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		req.Body = b
	}
	return req, nil
}

// Clone returns a deep copy of r.
func (r *Request) Clone() *Request {
	c := &Request{Method: r.Method, Path: r.Path}
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	if r.Header != nil {
		c.Header = r.Header.Clone()
	} else {
		c.Header = http.Header{}
	}
	return c
}

// Op returns "METHOD /path", used to label errors and log lines.
func (r *Request) Op() string {
	return r.Method + " " + r.Path
}

// Response is a successful (2xx) response with its body fully read.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the body into v. op labels the error.
func (r *Response) Decode(op string, v any) error {
	if v == nil || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &Error{Kind: KindMalformed, Op: op, Status: r.Status, Err: err}
	}
	return nil
}

// Decorator mutates an outgoing request, typically to attach credentials.
type Decorator func(req *Request)

// Doer sends a Request. Transport and the auth gateway both implement it.
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Transport is a JSON-over-HTTP channel to the sync server.
type Transport struct {
	baseURL    string
	timeout    time.Duration
	headers    http.Header
	decorator  Decorator
	httpClient *http.Client
}

// Option configures a Transport.
type Option func(*Transport)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithHeader adds a default header sent with every request.
func WithHeader(key, value string) Option {
	return func(t *Transport) { t.headers.Set(key, value) }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.httpClient = c }
}

// WithDecorator installs a request decorator.
func WithDecorator(d Decorator) Option {
	return func(t *Transport) { t.decorator = d }
}

// NewTransport returns a Transport rooted at baseURL.
func NewTransport(baseURL string, opts ...Option) *Transport {
	t := &Transport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    DefaultTimeout,
		headers:    http.Header{},
		httpClient: &http.Client{},
	}
	t.headers.Set("Accept", "application/json")
	for _, o := range opts {
		o(t)
	}
	return t
}

// Decorated returns a copy of t that runs d on every request.
func (t *Transport) Decorated(d Decorator) *Transport {
	c := *t
	c.headers = t.headers.Clone()
	c.decorator = d
	return &c
}

// Undecorated returns a copy of t without a decorator.
func (t *Transport) Undecorated() *Transport {
	return t.Decorated(nil)
}

// Do sends req and returns the response for 2xx statuses. Any other outcome
// is reported as *Error.
func (t *Transport) Do(ctx context.Context, req *Request) (*Response, error) {
	out := req.Clone()
	for k, v := range t.headers {
		if out.Header.Get(k) == "" {
			out.Header[k] = append([]string(nil), v...)
		}
	}
	if t.decorator != nil {
		t.decorator(out)
	}

	op := out.Op()

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var body io.Reader
	if out.Body != nil {
		body = bytes.NewReader(out.Body)
		if out.Header.Get("Content-Type") == "" {
			out.Header.Set("Content-Type", "application/json")
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, out.Method, t.baseURL+out.Path, body)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Op: op, Err: err}
	}
	httpReq.Header = out.Header

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &Error{Kind: KindTransient, Op: op, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Kind:    kindForStatus(resp.StatusCode),
			Op:      op,
			Status:  resp.StatusCode,
			Message: errorMessage(data),
		}
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// Ping checks that the server answers its health endpoint.
func (t *Transport) Ping(ctx context.Context) error {
	_, err := t.Do(ctx, &Request{Method: http.MethodGet, Path: common.RouteHealth})
	return err
}

// DoJSON encodes in, sends it through d and decodes the response into out.
// in and out may be nil.
func DoJSON(ctx context.Context, d Doer, method, path string, in, out any) error {
	req, err := NewJSONRequest(method, path, in)
	if err != nil {
		return err
	}
	resp, err := d.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(req.Op(), out)
}

// errorMessage extracts the server reason from an {"error": "..."} body,
// falling back to the trimmed raw text.
func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// IsContextDone reports whether err stems from a cancelled or expired context.
func IsContextDone(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

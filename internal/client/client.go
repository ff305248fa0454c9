// Package client is a Go client for the students API, used by studentsctl.
package client

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

	"github.com/aanand-mishra/students-api/internal/confirm"
	"github.com/aanand-mishra/students-api/internal/query"
	"github.com/aanand-mishra/students-api/internal/types"
)

// confirmHeader matches handlers.ConfirmHeader; importing the handler
// package would pull gin into the client binary.
const confirmHeader = "X-Confirm-Token"

// APIError is a non-2xx reply.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.StatusCode, e.Message)
}

// List is one page of a collection as returned by the API.
type List[T any] struct {
	Items      []T
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

type Client struct {
	base  string
	http  *http.Client
	token string
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which times out after 10s.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBearer sends token in the Authorization header.
func WithBearer(token string) Option {
	return func(c *Client) { c.token = token }
}

// New returns a client for the server at baseURL, e.g.
// "http://localhost:8082".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Status     bool            `json:"status"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Error      string          `json:"error"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"totalPages"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, header http.Header) (envelope, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return envelope{}, fmt.Errorf("client: encoding body: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return envelope{}, fmt.Errorf("client: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return envelope{}, &APIError{StatusCode: resp.StatusCode, Message: "undecodable response: " + err.Error()}
	}
	if resp.StatusCode >= 300 || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		return env, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return env, nil
}

func decodeData[T any](env envelope) (T, error) {
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return v, fmt.Errorf("client: decoding data: %w", err)
	}
	return v, nil
}

func list[T any](ctx context.Context, c *Client, path string, p query.Params) (List[T], error) {
	env, err := c.do(ctx, http.MethodGet, path+"?"+p.Values().Encode(), nil, nil)
	if err != nil {
		return List[T]{}, err
	}
	items, err := decodeData[[]T](env)
	if err != nil {
		return List[T]{}, err
	}
	return List[T]{Items: items, Total: env.Total, Page: env.Page, Limit: env.Limit, TotalPages: env.TotalPages}, nil
}

func (c *Client) ListStudents(ctx context.Context, p query.Params) (List[types.Student], error) {
	return list[types.Student](ctx, c, "/api/students", p)
}

func (c *Client) GetStudent(ctx context.Context, id string) (types.Student, error) {
	env, err := c.do(ctx, http.MethodGet, "/api/students/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return types.Student{}, err
	}
	return decodeData[types.Student](env)
}

func (c *Client) CreateStudent(ctx context.Context, in types.StudentInput) (types.Student, error) {
	env, err := c.do(ctx, http.MethodPost, "/api/students", in, nil)
	if err != nil {
		return types.Student{}, err
	}
	return decodeData[types.Student](env)
}

func (c *Client) UpdateStudent(ctx context.Context, id string, in types.StudentInput) (types.Student, error) {
	env, err := c.do(ctx, http.MethodPut, "/api/students/"+url.PathEscape(id), in, nil)
	if err != nil {
		return types.Student{}, err
	}
	return decodeData[types.Student](env)
}

func (c *Client) ListMarks(ctx context.Context, p query.Params) (List[types.Mark], error) {
	return list[types.Mark](ctx, c, "/api/marks", p)
}

func (c *Client) CreateMark(ctx context.Context, in types.MarkInput) (types.Mark, error) {
	env, err := c.do(ctx, http.MethodPost, "/api/marks", in, nil)
	if err != nil {
		return types.Mark{}, err
	}
	return decodeData[types.Mark](env)
}

func (c *Client) UpdateMark(ctx context.Context, id string, in types.MarkInput) (types.Mark, error) {
	env, err := c.do(ctx, http.MethodPut, "/api/marks/"+url.PathEscape(id), in, nil)
	if err != nil {
		return types.Mark{}, err
	}
	return decodeData[types.Mark](env)
}

// DeleteToken asks for a confirmation token for the record. kind is
// "student" or "mark".
func (c *Client) DeleteToken(ctx context.Context, kind, id string) (confirm.Token, error) {
	env, err := c.do(ctx, http.MethodPost, collection(kind)+"/"+url.PathEscape(id)+"/delete-token", nil, nil)
	if err != nil {
		return confirm.Token{}, err
	}
	return decodeData[confirm.Token](env)
}

// Delete removes the record, presenting token when it is not empty.
func (c *Client) Delete(ctx context.Context, kind, id, token string) error {
	var h http.Header
	if token != "" {
		h = http.Header{}
		h.Set(confirmHeader, token)
	}
	_, err := c.do(ctx, http.MethodDelete, collection(kind)+"/"+url.PathEscape(id), nil, h)
	return err
}

func collection(kind string) string {
	if kind == "mark" {
		return "/api/marks"
	}
	return "/api/students"
}

// Package api is the REST client for the task backend.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taskboard/internal/logging"
	"taskboard/internal/model"
)

const tracerName = "taskboard/internal/api"

// maxErrorBody caps how much of an error response is kept for StatusError.
const maxErrorBody = 512

type Client struct {
	baseURL *url.URL
	token   string
	userID  model.ID
	http    *http.Client
	log     *logrus.Entry
	newKey  func() string
}

type Option func(*Client)

func WithToken(token string) Option { return func(c *Client) { c.token = strings.TrimSpace(token) } }

// WithUserID sets the current user; it scopes focus queries.
func WithUserID(id model.ID) Option { return func(c *Client) { c.userID = id } }

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithLogger(l *logrus.Entry) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("missing api url")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url must be http(s): %q", baseURL)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     logging.Discard(),
		newKey:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) UserID() model.ID { return c.userID }

// ListStatuses fetches GET /task-statuses.
func (c *Client) ListStatuses(ctx context.Context) ([]model.Status, error) {
	var out []model.Status
	if err := c.list(ctx, "statuses", "/task-statuses", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TaskQuery filters GET /tasks.
type TaskQuery struct {
	ProjectID  model.ID
	AssigneeID model.ID
}

func (q TaskQuery) values() url.Values {
	v := url.Values{}
	if q.ProjectID != "" {
		v.Set("projectId", string(q.ProjectID))
	}
	if q.AssigneeID != "" {
		v.Set("assigneeId", string(q.AssigneeID))
	}
	return v
}

func (c *Client) ListTasks(ctx context.Context, q TaskQuery) ([]model.Task, error) {
	var out []model.Task
	if err := c.list(ctx, "tasks", "/tasks", q.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MyTasks lists the tasks assigned to the current user, the input of the focus board.
func (c *Client) MyTasks(ctx context.Context) ([]model.Task, error) {
	if c.userID == "" {
		return nil, &FetchError{Resource: "tasks", Err: errors.New("no user id configured")}
	}
	return c.ListTasks(ctx, TaskQuery{AssigneeID: c.userID})
}

// PatchTask sends PATCH /tasks/{id} with the patch's fields and returns the stored task.
// An empty response body yields the zero Task.
func (c *Client) PatchTask(ctx context.Context, id model.ID, patch model.TaskPatch) (model.Task, error) {
	if patch.IsEmpty() {
		return model.Task{}, errors.New("empty patch")
	}
	body, err := sonic.Marshal(patch.Fields())
	if err != nil {
		return model.Task{}, err
	}
	path := "/tasks/" + url.PathEscape(string(id))
	raw, err := c.do(ctx, http.MethodPatch, path, nil, body,
		attribute.String("task.id", string(id)),
		attribute.String("task.patch", patch.String()),
	)
	if err != nil {
		return model.Task{}, err
	}
	var out model.Task
	if len(bytes.TrimSpace(raw)) == 0 {
		return out, nil
	}
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return model.Task{}, fmt.Errorf("decode task: %w", err)
	}
	return out, nil
}

// ClearMyFocus sends POST /focus/clear-my.
func (c *Client) ClearMyFocus(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/focus/clear-my", nil, []byte("{}"))
	return err
}

func (c *Client) list(ctx context.Context, resource, path string, q url.Values, out any) error {
	raw, err := c.do(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return &FetchError{Resource: resource, Err: err}
	}
	raw, err = unwrapList(raw)
	if err != nil {
		return &FetchError{Resource: resource, Err: err}
	}
	if err := validate(resource, raw); err != nil {
		return &FetchError{Resource: resource, Err: err}
	}
	if err := sonic.Unmarshal(raw, out); err != nil {
		return &FetchError{Resource: resource, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// unwrapList accepts a bare JSON array or an envelope {"data": [...]}.
func unwrapList(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0:
		return []byte("[]"), nil
	case trimmed[0] == '[':
		return trimmed, nil
	}
	var env struct {
		Data sonicRaw `json:"data"`
	}
	if err := sonic.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return []byte("[]"), nil
	}
	return env.Data, nil
}

// sonicRaw keeps a nested value undecoded.
type sonicRaw []byte

func (r *sonicRaw) UnmarshalJSON(b []byte) error {
	*r = append((*r)[:0], b...)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body []byte, attrs ...attribute.KeyValue) ([]byte, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, method+" "+routeOf(path),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("http.request.method", method),
			attribute.String("http.route", routeOf(path)),
		}, attrs...)...),
	)
	defer span.End()

	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return nil, c.fail(span, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Idempotency-Key", c.newKey())
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(span, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(span, err)
	}
	entry := c.log.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"total_ms": time.Since(start).Milliseconds(),
	})
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(raw))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		err := &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: msg}
		entry.Warn("api request failed")
		return nil, c.fail(span, err)
	}
	entry.Debug("api request")
	span.SetStatus(codes.Ok, "")
	return raw, nil
}

func (c *Client) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// routeOf collapses task ids so spans group by endpoint.
func routeOf(path string) string {
	if strings.HasPrefix(path, "/tasks/") {
		return "/tasks/{id}"
	}
	return path
}

package devserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"taskboard/internal/model"
)

var fixedNow = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func newTestServer(opts ...Option) *Server {
	base := []Option{
		WithUser("7"),
		WithClock(func() time.Time { return fixedNow }),
		WithSeed(DefaultSeed("7", fixedNow)),
	}
	return New(append(base, opts...)...)
}

func do(t *testing.T, s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_ListTasksHydratesPredecessors(t *testing.T) {
	s := newTestServer()
	rec := do(t, s, http.MethodGet, "/tasks?projectId=1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200; got %d: %s", rec.Code, rec.Body.String())
	}
	var tasks []model.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var review model.Task
	for _, tk := range tasks {
		if tk.ID == "103" {
			review = tk
		}
	}
	if len(review.Dependencies) != 1 || review.Dependencies[0].DependsOnTask == nil {
		t.Fatalf("expected hydrated dependency; got %+v", review.Dependencies)
	}
	if got := review.Dependencies[0].DependsOnTask.Title; got != "Draft design" {
		t.Fatalf("unexpected predecessor title %q", got)
	}
}

func TestServer_ListTasksFiltersByAssignee(t *testing.T) {
	s := newTestServer()
	rec := do(t, s, http.MethodGet, "/tasks?assigneeId=7", "", nil)
	var tasks []model.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, tk := range tasks {
		if tk.ID == "104" {
			t.Fatalf("unassigned task leaked into assignee filter")
		}
	}
	if len(tasks) != 4 {
		t.Fatalf("expected 4 assigned tasks; got %d", len(tasks))
	}
}

func TestServer_PatchTask(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		id       string
		body     string
		wantCode int
		check    func(t *testing.T, task model.Task)
	}{
		{
			name: "numeric status id", id: "103", body: `{"statusId": 2}`, wantCode: http.StatusOK,
			check: func(t *testing.T, task model.Task) {
				if task.StatusID == nil || *task.StatusID != "2" {
					t.Fatalf("expected status 2; got %v", task.StatusID)
				}
			},
		},
		{
			name: "legacy status replaced", id: "105", body: `{"statusId": "4"}`, wantCode: http.StatusOK,
			check: func(t *testing.T, task model.Task) {
				if !task.Status.IsZero() {
					t.Fatalf("expected legacy status cleared; got %+v", task.Status)
				}
			},
		},
		{
			name: "set board date", id: "103", body: `{"boardDate": "2026-10-17"}`, wantCode: http.StatusOK,
			check: func(t *testing.T, task model.Task) {
				if task.BoardDate == nil || *task.BoardDate != "2026-10-17" {
					t.Fatalf("expected board date; got %v", task.BoardDate)
				}
			},
		},
		{
			name: "clear board date", id: "102", body: `{"boardDate": null}`, wantCode: http.StatusOK,
			check: func(t *testing.T, task model.Task) {
				if task.BoardDate != nil {
					t.Fatalf("expected board date cleared; got %v", *task.BoardDate)
				}
			},
		},
		{name: "unknown status", id: "103", body: `{"statusId": "99"}`, wantCode: http.StatusUnprocessableEntity},
		{name: "unknown field", id: "103", body: `{"title": "x"}`, wantCode: http.StatusBadRequest},
		{name: "empty patch", id: "103", body: `{}`, wantCode: http.StatusBadRequest},
		{name: "missing task", id: "999", body: `{"statusId": "1"}`, wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer()
			rec := do(t, s, http.MethodPatch, "/tasks/"+tt.id, tt.body, nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d; got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if tt.check == nil {
				return
			}
			var task model.Task
			if err := sonic.Unmarshal(rec.Body.Bytes(), &task); err != nil {
				t.Fatalf("decode: %v", err)
			}
			tt.check(t, task)
		})
	}
}

func TestServer_FailNextIsConsumedOnce(t *testing.T) {
	s := newTestServer()
	s.FailNext("103", http.StatusServiceUnavailable)

	if rec := do(t, s, http.MethodPatch, "/tasks/103", `{"statusId": "2"}`, nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected injected 503; got %d", rec.Code)
	}
	if task, _ := s.Task("103"); *task.StatusID != "1" {
		t.Fatalf("failed patch must not apply; got %s", *task.StatusID)
	}
	if rec := do(t, s, http.MethodPatch, "/tasks/103", `{"statusId": "2"}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected second attempt to succeed; got %d", rec.Code)
	}
	if got := s.Calls("PATCH /tasks/:id"); got != 2 {
		t.Fatalf("expected 2 patch calls; got %d", got)
	}
}

func TestServer_IdempotencyKeyReplays(t *testing.T) {
	s := newTestServer()
	h := map[string]string{"Idempotency-Key": "k-1"}

	if rec := do(t, s, http.MethodPatch, "/tasks/103", `{"statusId": "2"}`, h); rec.Code != http.StatusOK {
		t.Fatalf("first patch: %d", rec.Code)
	}
	// A replay with a different body must not apply.
	if rec := do(t, s, http.MethodPatch, "/tasks/103", `{"statusId": "4"}`, h); rec.Code != http.StatusOK {
		t.Fatalf("replay: %d", rec.Code)
	}
	if task, _ := s.Task("103"); *task.StatusID != "2" {
		t.Fatalf("replay must not re-apply; got %s", *task.StatusID)
	}
}

func TestServer_FailedRequestReleasesIdempotencyKey(t *testing.T) {
	s := newTestServer()
	s.FailNext("103", http.StatusInternalServerError)
	h := map[string]string{"Idempotency-Key": "retry-me"}

	if rec := do(t, s, http.MethodPatch, "/tasks/103", `{"statusId": "2"}`, h); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected injected failure; got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPatch, "/tasks/103", `{"statusId": "2"}`, h); rec.Code != http.StatusOK {
		t.Fatalf("retry: %d", rec.Code)
	}
	if task, _ := s.Task("103"); *task.StatusID != "2" {
		t.Fatalf("retry with the same key must apply; got %s", *task.StatusID)
	}
}

func TestServer_ClearMyFocus(t *testing.T) {
	s := newTestServer()
	s.FailNextFocusClear(http.StatusBadGateway)
	if rec := do(t, s, http.MethodPost, "/focus/clear-my", `{}`, nil); rec.Code != http.StatusBadGateway {
		t.Fatalf("expected injected failure; got %d", rec.Code)
	}
	if task, _ := s.Task("102"); task.BoardDate == nil {
		t.Fatalf("failed clear must not apply")
	}

	rec := do(t, s, http.MethodPost, "/focus/clear-my", `{}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200; got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"cleared":1`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if task, _ := s.Task("102"); task.BoardDate != nil {
		t.Fatalf("expected focus cleared")
	}
}

func TestServer_JWTAuth(t *testing.T) {
	secret := []byte("dev-secret")
	auth, err := NewHS256Auth(secret)
	if err != nil {
		t.Fatalf("NewHS256Auth: %v", err)
	}
	s := newTestServer(WithAuth(auth))

	if rec := do(t, s, http.MethodGet, "/task-statuses", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token; got %d", rec.Code)
	}
	bad, _ := SignDevToken([]byte("other"), "7", time.Hour)
	if rec := do(t, s, http.MethodGet, "/task-statuses", "", map[string]string{"Authorization": "Bearer " + bad}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong signature; got %d", rec.Code)
	}

	tok, err := SignDevToken(secret, "7", time.Hour)
	if err != nil {
		t.Fatalf("SignDevToken: %v", err)
	}
	rec := do(t, s, http.MethodPost, "/focus/clear-my", `{}`, map[string]string{"Authorization": "Bearer " + tok})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"cleared":1`) {
		t.Fatalf("expected token subject to own the focus tasks; got %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, s, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz must not require auth; got %d", rec.Code)
	}
}

func TestStaticToken(t *testing.T) {
	a := StaticToken{Token: "abc", User: "7"}
	if id, err := a.UserID("Bearer abc"); err != nil || id != "7" {
		t.Fatalf("expected user 7; got %q %v", id, err)
	}
	if _, err := a.UserID("Bearer nope"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken; got %v", err)
	}
	if _, err := a.UserID(""); err != ErrMissingToken {
		t.Fatalf("expected ErrMissingToken; got %v", err)
	}
}

func TestRedisDeduper(t *testing.T) {
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		if cerr := client.Close(); cerr != nil {
			t.Logf("redis close: %v", cerr)
		}
	})

	d := NewRedisDeduper(client, time.Minute)
	ctx := context.Background()
	if added, err := d.Add(ctx, "7", "k"); err != nil || !added {
		t.Fatalf("expected first add; got %v %v", added, err)
	}
	if added, err := d.Add(ctx, "7", "k"); err != nil || added {
		t.Fatalf("expected duplicate; got %v %v", added, err)
	}
	if added, _ := d.Add(ctx, "8", "k"); !added {
		t.Fatalf("keys must be scoped per user")
	}
	if err := d.Remove(ctx, "7", "k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if added, _ := d.Add(ctx, "7", "k"); !added {
		t.Fatalf("expected key reusable after remove")
	}

	m.FastForward(2 * time.Minute)
	if added, _ := d.Add(ctx, "8", "k"); !added {
		t.Fatalf("expected key expired after ttl")
	}

	s := newTestServer(WithDeduper(d))
	h := map[string]string{"Idempotency-Key": "shared"}
	do(t, s, http.MethodPatch, "/tasks/103", `{"statusId": "2"}`, h)
	other := newTestServer(WithDeduper(d))
	do(t, other, http.MethodPatch, "/tasks/103", `{"statusId": "2"}`, h)
	if task, _ := other.Task("103"); *task.StatusID != "1" {
		t.Fatalf("a key seen by one instance must not apply on another")
	}
}

func TestMemoryDeduper_Expires(t *testing.T) {
	d := NewMemoryDeduper(time.Minute)
	now := fixedNow
	d.now = func() time.Time { return now }
	ctx := context.Background()
	if added, _ := d.Add(ctx, "7", "k"); !added {
		t.Fatalf("expected first add")
	}
	if added, _ := d.Add(ctx, "7", "k"); added {
		t.Fatalf("expected duplicate")
	}
	now = now.Add(2 * time.Minute)
	if added, _ := d.Add(ctx, "7", "k"); !added {
		t.Fatalf("expected key expired")
	}
}

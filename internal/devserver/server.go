// Package devserver is an in-memory implementation of the task backend's REST surface,
// used by `taskboard dev-server` and by tests.
package devserver

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"taskboard/internal/logging"
	"taskboard/internal/model"
)

const (
	patchMaxSize = 16 << 10
	userKey      = "taskboard.user"
)

// focusClearTarget is the FailNext key for POST /focus/clear-my.
const focusClearTarget model.ID = "focus/clear-my"

type Server struct {
	mu       sync.Mutex
	statuses []model.Status
	tasks    []model.Task
	failures map[model.ID][]int
	calls    map[string]int

	user   model.ID
	auth   Authenticator
	dedupe Deduper
	now    func() time.Time
	log    *logrus.Entry

	e *echo.Echo
}

type Option func(*Server)

// WithUser sets the user assumed when no authenticator is configured.
func WithUser(id model.ID) Option { return func(s *Server) { s.user = id } }

func WithAuth(a Authenticator) Option { return func(s *Server) { s.auth = a } }

func WithDeduper(d Deduper) Option { return func(s *Server) { s.dedupe = d } }

func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

func WithLogger(l *logrus.Entry) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

func WithSeed(seed Seed) Option {
	return func(s *Server) {
		s.statuses = append([]model.Status(nil), seed.Statuses...)
		s.tasks = make([]model.Task, 0, len(seed.Tasks))
		for _, t := range seed.Tasks {
			s.tasks = append(s.tasks, t.Clone())
		}
	}
}

func New(opts ...Option) *Server {
	s := &Server{
		failures: map[model.ID][]int{},
		calls:    map[string]int{},
		user:     "1",
		dedupe:   NewMemoryDeduper(24 * time.Hour),
		now:      time.Now,
		log:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = sonicSerializer{}
	e.Use(middleware.Recover())
	e.Use(s.authenticate)
	s.Register(e)
	s.e = e
	return s
}

// Register mounts the backend routes on e.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/task-statuses", s.getStatuses)
	e.GET("/tasks", s.getTasks)
	e.PATCH("/tasks/:id", s.patchTask)
	e.POST("/focus/clear-my", s.clearMyFocus)
}

func (s *Server) Handler() http.Handler { return s.e }

// Start serves on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.e.Start(addr) }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.e.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// FailNext makes the next mutation of taskID answer with code instead of applying.
func (s *Server) FailNext(taskID model.ID, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[taskID] = append(s.failures[taskID], code)
}

// FailNextFocusClear makes the next POST /focus/clear-my answer with code.
func (s *Server) FailNextFocusClear(code int) { s.FailNext(focusClearTarget, code) }

// Calls reports how many requests reached route, e.g. "PATCH /tasks/:id".
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

func (s *Server) Task(id model.ID) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t.Clone(), true
		}
	}
	return model.Task{}, false
}

func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Path() == "/healthz" {
			return next(c)
		}
		user := s.user
		if s.auth != nil {
			id, err := s.auth.UserID(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return c.String(http.StatusUnauthorized, err.Error())
			}
			user = id
		}
		c.Set(userKey, user)
		return next(c)
	}
}

func userOf(c echo.Context) model.ID {
	id, _ := c.Get(userKey).(model.ID)
	return id
}

func (s *Server) count(c echo.Context) {
	s.mu.Lock()
	s.calls[c.Request().Method+" "+c.Path()]++
	s.mu.Unlock()
}

// takeFailure pops a queued failure for target. Must hold s.mu.
func (s *Server) takeFailure(target model.ID) int {
	q := s.failures[target]
	if len(q) == 0 {
		return 0
	}
	s.failures[target] = q[1:]
	return q[0]
}

func (s *Server) getStatuses(c echo.Context) error {
	s.count(c)
	s.mu.Lock()
	out := append([]model.Status(nil), s.statuses...)
	s.mu.Unlock()
	return c.JSON(http.StatusOK, out)
}

func (s *Server) getTasks(c echo.Context) error {
	s.count(c)
	project := model.ID(strings.TrimSpace(c.QueryParam("projectId")))
	assignee := model.ID(strings.TrimSpace(c.QueryParam("assigneeId")))

	s.mu.Lock()
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if project != "" && t.ProjectID != project {
			continue
		}
		if assignee != "" && !t.IsAssignedTo(assignee) {
			continue
		}
		out = append(out, s.hydrate(t))
	}
	s.mu.Unlock()
	return c.JSON(http.StatusOK, out)
}

// hydrate embeds a snapshot of each predecessor, the way the real backend does. Must
// hold s.mu.
func (s *Server) hydrate(t model.Task) model.Task {
	out := t.Clone()
	for i, d := range out.Dependencies {
		if pred, ok := s.find(d.DependsOnTaskID); ok {
			p := s.tasks[pred]
			ref := &model.TaskRef{ID: p.ID, Title: p.Title, Status: p.Status}
			if p.StatusID != nil {
				v := *p.StatusID
				ref.StatusID = &v
			}
			out.Dependencies[i].DependsOnTask = ref
		}
	}
	return out
}

func (s *Server) find(id model.ID) (int, bool) {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

func (s *Server) statusExists(id model.ID) bool {
	for _, st := range s.statuses {
		if st.ID == id {
			return true
		}
	}
	return false
}

func (s *Server) patchTask(c echo.Context) error {
	s.count(c)
	ctx := c.Request().Context()
	id := model.ID(strings.TrimSpace(c.Param("id")))
	user := userOf(c)

	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, patchMaxSize))
	if err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	patch, err := parsePatch(raw)
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}

	key := strings.TrimSpace(c.Request().Header.Get("Idempotency-Key"))
	if key != "" && s.dedupe != nil {
		added, err := s.dedupe.Add(ctx, string(user), key)
		if err != nil {
			return c.String(http.StatusInternalServerError, err.Error())
		}
		if !added {
			// Replay: the first request already applied; answer with current state.
			if t, ok := s.Task(id); ok {
				return c.JSON(http.StatusOK, t)
			}
			return c.String(http.StatusNotFound, "task not found")
		}
	}

	s.mu.Lock()
	code, msg := s.applyPatch(id, patch)
	var out model.Task
	if code == http.StatusOK {
		i, _ := s.find(id)
		out = s.hydrate(s.tasks[i])
	}
	s.mu.Unlock()

	entry := s.log.WithFields(logrus.Fields{"task_id": id, "patch": patch.String(), "status": code})
	if code != http.StatusOK {
		entry.Warn("patch rejected")
		if key != "" && s.dedupe != nil {
			if err := s.dedupe.Remove(ctx, string(user), key); err != nil {
				entry.WithError(err).Warn("forget idempotency key")
			}
		}
		return c.String(code, msg)
	}
	entry.Info("task patched")
	return c.JSON(http.StatusOK, out)
}

// applyPatch must hold s.mu.
func (s *Server) applyPatch(id model.ID, patch model.TaskPatch) (int, string) {
	if code := s.takeFailure(id); code != 0 {
		return code, "injected failure"
	}
	i, ok := s.find(id)
	if !ok {
		return http.StatusNotFound, "task not found"
	}
	if patch.StatusID != nil && !s.statusExists(*patch.StatusID) {
		return http.StatusUnprocessableEntity, "unknown status " + string(*patch.StatusID)
	}
	s.tasks[i] = patch.Apply(s.tasks[i])
	return http.StatusOK, ""
}

// parsePatch accepts {"statusId": ...} and/or {"boardDate": "YYYY-MM-DD" | null}.
func parsePatch(raw []byte) (model.TaskPatch, error) {
	var fields map[string]any
	if err := sonic.Unmarshal(raw, &fields); err != nil {
		return model.TaskPatch{}, errBadPatch("invalid json")
	}
	var p model.TaskPatch
	for k, v := range fields {
		switch k {
		case "statusId":
			id, ok := idFrom(v)
			if !ok {
				return model.TaskPatch{}, errBadPatch("invalid statusId")
			}
			p.StatusID = &id
		case "boardDate":
			if v == nil {
				p.ClearBoardDate = true
				continue
			}
			str, ok := v.(string)
			if !ok {
				return model.TaskPatch{}, errBadPatch("invalid boardDate")
			}
			d, err := model.ParseDate(str)
			if err != nil {
				return model.TaskPatch{}, errBadPatch(err.Error())
			}
			p.BoardDate = &d
		default:
			return model.TaskPatch{}, errBadPatch("unsupported field " + k)
		}
	}
	if p.IsEmpty() {
		return model.TaskPatch{}, errBadPatch("empty patch")
	}
	return p, nil
}

type errBadPatch string

func (e errBadPatch) Error() string { return string(e) }

func idFrom(v any) (model.ID, bool) {
	switch x := v.(type) {
	case string:
		x = strings.TrimSpace(x)
		return model.ID(x), x != ""
	case float64:
		return model.ID(strconv.FormatFloat(x, 'f', -1, 64)), true
	default:
		return "", false
	}
}

func (s *Server) clearMyFocus(c echo.Context) error {
	s.count(c)
	ctx := c.Request().Context()
	user := userOf(c)

	key := strings.TrimSpace(c.Request().Header.Get("Idempotency-Key"))
	if key != "" && s.dedupe != nil {
		added, err := s.dedupe.Add(ctx, string(user), key)
		if err != nil {
			return c.String(http.StatusInternalServerError, err.Error())
		}
		if !added {
			return c.JSON(http.StatusOK, map[string]any{"cleared": 0, "replayed": true})
		}
	}

	today := model.DateOf(s.now())
	s.mu.Lock()
	if code := s.takeFailure(focusClearTarget); code != 0 {
		s.mu.Unlock()
		if key != "" && s.dedupe != nil {
			_ = s.dedupe.Remove(ctx, string(user), key)
		}
		return c.String(code, "injected failure")
	}
	cleared := 0
	for i, t := range s.tasks {
		if t.IsAssignedTo(user) && t.BoardDate != nil && *t.BoardDate == today {
			s.tasks[i].BoardDate = nil
			cleared++
		}
	}
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"user_id": user, "cleared": cleared}).Info("focus cleared")
	return c.JSON(http.StatusOK, map[string]any{"cleared": cleared})
}

type sonicSerializer struct{}

func (sonicSerializer) Serialize(c echo.Context, i any, indent string) error {
	enc := sonic.ConfigStd.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (sonicSerializer) Deserialize(c echo.Context, i any) error {
	if err := sonic.ConfigStd.NewDecoder(c.Request().Body).Decode(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body").SetInternal(err)
	}
	return nil
}

package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"planner-api/domain"
)

const headerIdempotencyKey = "Idempotency-Key"

var errInvalidMinutes = errors.New("minutes must be positive")

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, stores Stores, auth Authenticator, dedupe Deduper, logger *log.Logger) {
	e.GET("/healthz", healthz())

	e.GET("/api/tasks", getTasks(stores.Tasks, auth, logger))
	e.POST("/api/tasks", createTask(stores.Tasks, auth, dedupe))
	e.PUT("/api/tasks/:id", updateTask(stores.Tasks, auth, dedupe))
	e.DELETE("/api/tasks/:id", deleteTask(stores.Tasks, auth, dedupe))
	e.GET("/api/tasks/:id/subtasks", getSubTasks(stores.SubTasks, auth))
	e.GET("/api/tasks/:id/progress", getTaskProgress(stores.SubTasks, auth))
	e.POST("/api/tasks/:id/time", updateTimeSpent(stores.Analytics, stores.Tasks, auth, dedupe))

	e.POST("/api/subtasks", createSubTask(stores.SubTasks, auth, dedupe))
	e.PUT("/api/subtasks/:id", updateSubTask(stores.SubTasks, auth, dedupe))
	e.DELETE("/api/subtasks/:id", deleteSubTask(stores.SubTasks, auth, dedupe))
	e.POST("/api/subtasks/:id/toggle", toggleSubTask(stores.SubTasks, auth, dedupe))

	e.GET("/api/projects", getProjects(stores.Projects, auth))
	e.POST("/api/projects", createProject(stores.Projects, auth, dedupe))
	e.PUT("/api/projects/:id", updateProject(stores.Projects, auth, dedupe))
	e.DELETE("/api/projects/:id", deleteProject(stores.Projects, auth, dedupe))
	e.POST("/api/projects/:id/archive", archiveProject(stores.Projects, auth, dedupe))
	e.GET("/api/projects/:id/progress", getProjectProgress(stores.Tasks, stores.SubTasks, auth))

	e.GET("/api/notes", getNotes(stores.Notes, auth))
	e.GET("/api/notes/:id", getNote(stores.Notes, auth))
	e.POST("/api/notes", createNote(stores.Notes, auth, dedupe))
	e.PUT("/api/notes/:id", updateNote(stores.Notes, auth, dedupe))
	e.DELETE("/api/notes/:id", deleteNote(stores.Notes, auth, dedupe))

	e.GET("/api/analytics/weekly", getWeeklyAnalytics(stores.Analytics, auth))
	e.GET("/api/analytics/storage", getStorageStats(stores.Analytics, auth))
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
	Stale bool          `json:"stale,omitempty"`
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getTasks(tasks TaskStore, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newTaskRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		_, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		fetchStart := time.Now()
		fetchErr := tasks.Fetch(ctx)
		metrics.ObserveFetch(time.Since(fetchStart))

		list, filtered := filteredTasks(tasks, c)
		metrics.SetFiltered(filtered)
		if fetchErr != nil {
			// A stale cache still serves reads; only an empty one is fatal.
			if len(list) == 0 {
				metrics.SetErrorStage("remote")
				c.Logger().Error(fetchErr)
				err = c.String(http.StatusBadGateway, "task source unavailable")
				return err
			}
			metrics.SetStale(true)
		}
		metrics.SetTasksReturned(len(list))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, tasksResponse{Tasks: list, Stale: fetchErr != nil})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

// The first recognized query parameter wins; combinations are not supported.
func filteredTasks(tasks TaskStore, c echo.Context) ([]domain.Task, bool) {
	if q := c.QueryParam("q"); q != "" {
		return tasks.Search(q), true
	}
	if status := c.QueryParam("status"); status != "" {
		return tasks.FilterByStatus(status), true
	}
	if priority := c.QueryParam("priority"); priority != "" {
		return tasks.FilterByPriority(priority), true
	}
	if date := c.QueryParam("date"); date != "" {
		return tasks.FilterByDate(date), true
	}
	if projectID := c.QueryParam("project"); projectID != "" {
		return tasks.FilterByProject(projectID), true
	}
	return tasks.All(), false
}

// mutation carries per-request idempotency state through a mutation handler.
type mutation struct {
	c      echo.Context
	dedupe Deduper
	userID string
	key    string
}

// beginMutation authenticates the request and claims its idempotency key.
// handled reports that a response has already been written: the caller
// returns err as is.
func beginMutation(c echo.Context, auth Authenticator, dedupe Deduper) (m *mutation, handled bool, err error) {
	userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if authErr != nil {
		return nil, true, c.String(http.StatusUnauthorized, authErr.Error())
	}

	key := c.Request().Header.Get(headerIdempotencyKey)
	if key == "" {
		key = uuid.NewString()
	}
	m = &mutation{c: c, dedupe: dedupe, userID: userID, key: key}

	if dedupe != nil {
		fresh, dedupeErr := dedupe.Add(c.Request().Context(), userID, key)
		if dedupeErr != nil {
			// Dedup is advisory; a failed check must not block the write.
			c.Logger().Warnf("idempotency check failed: %v", dedupeErr)
		} else if !fresh {
			return m, true, c.JSON(http.StatusOK, mutationResponse{IdempotencyKey: key, Duplicate: true})
		}
	}
	return m, false, nil
}

func (m *mutation) ok() error {
	return m.c.JSON(http.StatusOK, mutationResponse{IdempotencyKey: m.key})
}

// fail releases the idempotency key so the client may retry, then reports
// the failure.
func (m *mutation) fail(status int, opErr error) error {
	if m.dedupe != nil {
		if rmErr := m.dedupe.Remove(m.c.Request().Context(), m.userID, m.key); rmErr != nil {
			m.c.Logger().Warnf("failed to release idempotency key: %v", rmErr)
		}
	}
	return m.c.JSON(status, mutationResponse{IdempotencyKey: m.key, Error: opErr.Error()})
}

func decodeBody(c echo.Context, out any) error {
	lr := io.LimitReader(c.Request().Body, mutationMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func createTask(tasks TaskStore, auth Authenticator, dedupe Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		m, handled, err := beginMutation(c, auth, dedupe)
		if handled {
			return err
		}
		var task domain.Task
		if err := decodeBody(c, &task); err != nil {
			return m.fail(http.StatusBadRequest, err)
		}
		if err := tasks.Create(c.Request().Context(), task); err != nil {
			c.Logger().Error(err)
			return m.fail(http.StatusBadGateway, err)
		}
		return m.ok()
	}
}

func updateTask(tasks TaskStore, auth Authenticator, dedupe Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		m, handled, err := beginMutation(c, auth, dedupe)
		if handled {
			return err
		}
		var task domain.Task
		if err := decodeBody(c, &task); err != nil {
			return m.fail(http.StatusBadRequest, err)
		}
		task.ID = c.Param("id")
		if err := tasks.Update(c.Request().Context(), task); err != nil {
			c.Logger().Error(err)
			return m.fail(http.StatusBadGateway, err)
		}
		return m.ok()
	}
}

func deleteTask(tasks TaskStore, auth Authenticator, dedupe Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		m, handled, err := beginMutation(c, auth, dedupe)
		if handled {
			return err
		}
		if err := tasks.Delete(c.Request().Context(), c.Param("id")); err != nil {
			c.Logger().Error(err)
			return m.fail(http.StatusBadGateway, err)
		}
		return m.ok()
	}
}

func getSubTasks(subs SubTaskStore, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		list, err := subs.FetchByTask(c.Request().Context(), c.Param("id"))
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusBadGateway, "subtask source unavailable")
		}
		return c.JSON(http.StatusOK, map[string][]domain.SubTask{"subtasks": list})
	}
}

func getTaskProgress(subs SubTaskStore, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		list, err := subs.FetchByTask(c.Request().Context(), c.Param("id"))
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusBadGateway, "subtask source unavailable")
		}
		return c.JSON(http.StatusOK, domain.SubTaskProgress(list))
	}
}

func createSubTask(subs SubTaskStore, auth Authenticator, dedupe Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		m, handled, err := beginMutation(c, auth, dedupe)
		if handled {
			return err
		}
		var sub domain.SubTask
		if err := decodeBody(c, &sub); err != nil {
			return m.fail(http.StatusBadRequest, err)
		}
		if err := subs.Create(c.Request().Context(), sub); err != nil {
			c.Logger().Error(err)
			return m.fail(http.StatusBadGateway, err)
		}
		return m.ok()
	}
}

func updateSubTask(subs SubTaskStore, auth Authenticator, dedupe Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		m, handled, err := beginMutation(c, auth, dedupe)
		if handled {
			return err
		}
		var sub domain.SubTask
		if err := decodeBody(c, &sub); err != nil {
			return m.fail(http.StatusBadRequest, err)
		}
		sub.ID = c.Param("id")
		if err := subs.Update(c.Request().Context(), sub); err != nil {
			c.Logger().Error(err)
			return m.fail(http.StatusBadGateway, err)
		}
		return m.ok()
	}
}

func deleteSubTask(subs SubTaskStore, auth Authenticator, dedupe Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		m, handled, err := beginMutation(c, auth, dedupe)
		if handled {
			return err
		}
		if err := subs.Delete(c.Request().Context(), c.Param("id")); err != nil {
			c.Logger().Error(err)
			return m.fail(http.StatusBadGateway, err)
		}
		return m.ok()
	}
}

func toggleSubTask(subs SubTaskStore, auth Authenticator, dedupe Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		m, handled, err := beginMutation(c, auth, dedupe)
		if handled {
			return err
		}
		progress, err := subs.ToggleStatus(c.Request().Context(), c.Param("id"))
		if err != nil {
			c.Logger().Error(err)
			return m.fail(http.StatusBadGateway, err)
		}
		return c.JSON(http.StatusOK, toggleResponse{IdempotencyKey: m.key, Progress: progress})
	}
}

func getProjects(projects ProjectStore, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		fetchErr := projects.Fetch(c.Request().Context())
		list := projects.All()
		if fetchErr != nil && len(list) == 0 {
			c.Logger().Error(fetchErr)
			return c.String(http.StatusBadGateway, "project source unavailable")
		}
		return c.JSON(http.StatusOK, map[string]any{"projects": list, "stale": fetchErr != nil})
	}
}

func createProject(projects ProjectStore, auth Authenticator, dedupe Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		m, handled, err := beginMutation(c, auth, dedupe)
		if handled {
			return err
		}
		var project domain.Project
		if err := decodeBody(c, &project); err != nil {
			return m.fail(http.StatusBadRequest, err)
		}
		if err := projects.Create(c.Request().Context(), project); err != nil {
			c.Logger().Error(err)
			return m.fail(http.StatusBadGateway, err)
		}
		return m.ok()
	}
}

func updateProject(projects ProjectStore, auth Authenticator, dedupe Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		m, handled, err := beginMutation(c, auth, dedupe)
		if handled {
			return err
		}
		var project domain.Project
		if err := decodeBody(c, &project); err != nil {
			return m.fail(http.StatusBadRequest, err)
		}
		project.ID = c.Param("id")
		if err := projects.Update(c.Request().Context(), project); err != nil {
			c.Logger().Error(err)
			return m.fail(http.StatusBadGateway, err)
		}
		return m.ok()
	}
}

func deleteProject(projects ProjectStore, auth Authenticator, dedupe Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		m, handled, err := beginMutation(c, auth, dedupe)
		if handled {
			return err
		}
		if err := projects.Delete(c.Request().Context(), c.Param("id")); err != nil {
			c.Logger().Error(err)
			return m.fail(http.StatusBadGateway, err)
		}
		return m.ok()
	}
}

func archiveProject(projects ProjectStore, auth Authenticator, dedupe Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		m, handled, err := beginMutation(c, auth, dedupe)
		if handled {
			return err
		}
		if err := projects.Archive(c.Request().Context(), c.Param("id")); err != nil {
			c.Logger().Error(err)
			return m.fail(http.StatusBadGateway, err)
		}
		return m.ok()
	}
}

func getProjectProgress(tasks TaskStore, subs SubTaskStore, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		progress := domain.ComputeProgress(tasks.FilterByProject(c.Param("id")), subs.ByTask)
		return c.JSON(http.StatusOK, progress)
	}
}

func getNotes(notes NoteStore, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		fetchErr := notes.Fetch(c.Request().Context())
		var list []domain.Note
		if projectID := c.QueryParam("project"); projectID != "" {
			list = notes.ByProject(projectID)
		} else {
			list = notes.All()
		}
		if fetchErr != nil && len(list) == 0 {
			c.Logger().Error(fetchErr)
			return c.String(http.StatusBadGateway, "note source unavailable")
		}
		return c.JSON(http.StatusOK, map[string]any{"notes": list, "stale": fetchErr != nil})
	}
}

func getNote(notes NoteStore, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		note, err := notes.ByID(c.Request().Context(), c.Param("id"))
		if err != nil {
			return c.String(http.StatusNotFound, err.Error())
		}
		return c.JSON(http.StatusOK, note)
	}
}

func createNote(notes NoteStore, auth Authenticator, dedupe Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		m, handled, err := beginMutation(c, auth, dedupe)
		if handled {
			return err
		}
		var note domain.Note
		if err := decodeBody(c, &note); err != nil {
			return m.fail(http.StatusBadRequest, err)
		}
		if err := notes.Create(c.Request().Context(), note); err != nil {
			c.Logger().Error(err)
			return m.fail(http.StatusBadGateway, err)
		}
		return m.ok()
	}
}

func updateNote(notes NoteStore, auth Authenticator, dedupe Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		m, handled, err := beginMutation(c, auth, dedupe)
		if handled {
			return err
		}
		var note domain.Note
		if err := decodeBody(c, &note); err != nil {
			return m.fail(http.StatusBadRequest, err)
		}
		note.ID = c.Param("id")
		if err := notes.Update(c.Request().Context(), note); err != nil {
			c.Logger().Error(err)
			return m.fail(http.StatusBadGateway, err)
		}
		return m.ok()
	}
}

func deleteNote(notes NoteStore, auth Authenticator, dedupe Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		m, handled, err := beginMutation(c, auth, dedupe)
		if handled {
			return err
		}
		if err := notes.Delete(c.Request().Context(), c.Param("id")); err != nil {
			c.Logger().Error(err)
			return m.fail(http.StatusBadGateway, err)
		}
		return m.ok()
	}
}

type timeSpentRequest struct {
	Minutes int `json:"minutes"`
}

func updateTimeSpent(analytics Analytics, tasks TaskStore, auth Authenticator, dedupe Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		m, handled, err := beginMutation(c, auth, dedupe)
		if handled {
			return err
		}
		var req timeSpentRequest
		if err := decodeBody(c, &req); err != nil {
			return m.fail(http.StatusBadRequest, err)
		}
		if req.Minutes <= 0 {
			return m.fail(http.StatusBadRequest, errInvalidMinutes)
		}
		ctx := c.Request().Context()
		if _, err := analytics.UpdateTimeSpent(ctx, c.Param("id"), req.Minutes); err != nil {
			c.Logger().Error(err)
			return m.fail(http.StatusBadGateway, err)
		}
		if err := tasks.Fetch(ctx); err != nil {
			c.Logger().Warnf("task refetch after time update failed: %v", err)
		}
		return m.ok()
	}
}

func getWeeklyAnalytics(analytics Analytics, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		weekly, err := analytics.GetWeeklyAnalytics(c.Request().Context())
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusBadGateway, "analytics source unavailable")
		}
		return c.JSON(http.StatusOK, map[string]any{"weeks": weekly})
	}
}

func getStorageStats(analytics Analytics, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		stats, err := analytics.GetStorageStats(c.Request().Context())
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusBadGateway, "analytics source unavailable")
		}
		return c.JSON(http.StatusOK, stats)
	}
}

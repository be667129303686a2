package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"board-api/board"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, deduper Deduper, logger *log.Logger) {
	boards := newBoards(store, logger)

	e.GET("/api/board", getBoard(boards, auth, logger))
	e.POST("/api/board/reload", reloadBoard(boards, auth))
	e.GET("/api/board/stream", streamBoard(boards, auth))
	e.POST("/api/tasks", createTask(boards, auth, deduper))
	e.PATCH("/api/tasks/:id", updateTask(boards, auth, deduper))
	e.DELETE("/api/tasks/:id", deleteTask(boards, auth, deduper))
	e.POST("/api/tasks/:id/move", moveTask(boards, auth, deduper))
	e.GET("/healthz", healthz())

	initEventSender(store, logger)
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

// ensureLoaded performs the initial board load on first access. A failed
// load is page-level: the caller gets the error and may simply re-request
// to retry.
func ensureLoaded(c echo.Context, ctrl *board.Controller) error {
	if ctrl.Loaded() {
		return nil
	}
	return ctrl.Load(c.Request().Context())
}

func getBoard(boards *Boards, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		ctrl := boards.get(userID)
		loadStart := time.Now()
		loadErr := ensureLoaded(c, ctrl)
		metrics.ObserveLoad(time.Since(loadStart))
		if loadErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(loadErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Error: "board load failed"})
			return err
		}

		query := c.QueryParam("q")
		metrics.SetQueryProvided(query != "")
		ctrl.SetQuery(query)

		columns := ctrl.Columns()
		visible := 0
		for _, col := range columns {
			visible += col.Count
		}
		metrics.SetTasksVisible(visible)

		resp := boardResponse{
			Columns:     columns,
			Quarantined: len(ctrl.Quarantined()),
			Query:       query,
		}
		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, resp)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func reloadBoard(boards *Boards, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		ctrl := boards.get(userID)
		if err := ctrl.Load(c.Request().Context()); err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "board load failed"})
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func createTask(boards *Boards, auth Authenticator, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req createTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		release, dup, err := claimIdempotencyKey(c, deduper, userID)
		if err != nil {
			return c.String(http.StatusInternalServerError, "idempotency check failed")
		}
		if dup {
			return c.JSON(http.StatusConflict, errorResponse{Error: "duplicate request"})
		}

		ctrl := boards.get(userID)
		if err := ensureLoaded(c, ctrl); err != nil {
			release()
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "board load failed"})
		}
		task, err := ctrl.Create(c.Request().Context(), req.Column, req.Title, req.Description)
		if err != nil {
			release()
			return mutationError(c, err)
		}
		return c.JSON(http.StatusCreated, task)
	}
}

func updateTask(boards *Boards, auth Authenticator, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req updateTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		patch, ok := req.patch()
		if !ok {
			return c.String(http.StatusBadRequest, "invalid priority")
		}

		release, dup, err := claimIdempotencyKey(c, deduper, userID)
		if err != nil {
			return c.String(http.StatusInternalServerError, "idempotency check failed")
		}
		if dup {
			return c.JSON(http.StatusConflict, errorResponse{Error: "duplicate request"})
		}

		ctrl := boards.get(userID)
		if err := ensureLoaded(c, ctrl); err != nil {
			release()
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "board load failed"})
		}
		if err := ctrl.Edit(c.Request().Context(), c.Param("id"), patch); err != nil {
			release()
			return mutationError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func deleteTask(boards *Boards, auth Authenticator, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		release, dup, err := claimIdempotencyKey(c, deduper, userID)
		if err != nil {
			return c.String(http.StatusInternalServerError, "idempotency check failed")
		}
		if dup {
			return c.JSON(http.StatusConflict, errorResponse{Error: "duplicate request"})
		}

		ctrl := boards.get(userID)
		if err := ensureLoaded(c, ctrl); err != nil {
			release()
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "board load failed"})
		}
		if err := ctrl.Delete(c.Request().Context(), c.Param("id")); err != nil {
			release()
			return mutationError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func moveTask(boards *Boards, auth Authenticator, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req moveTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		release, dup, err := claimIdempotencyKey(c, deduper, userID)
		if err != nil {
			return c.String(http.StatusInternalServerError, "idempotency check failed")
		}
		if dup {
			return c.JSON(http.StatusConflict, errorResponse{Error: "duplicate request"})
		}

		ctrl := boards.get(userID)
		if err := ensureLoaded(c, ctrl); err != nil {
			release()
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "board load failed"})
		}
		// Unknown targets and same-column drops are deliberate no-ops, not
		// errors: the card just snaps back.
		if err := ctrl.Move(c.Request().Context(), c.Param("id"), req.To); err != nil {
			release()
			return mutationError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, mutationMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func mutationError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, board.ErrEmptyTitle):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "title must not be empty"})
	case errors.Is(err, board.ErrUnknownColumn):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown column"})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "operation failed"})
	}
}

// claimIdempotencyKey records the request's idempotency key, if any. The
// returned release function undoes the claim so a failed mutation can be
// retried with the same key.
func claimIdempotencyKey(c echo.Context, deduper Deduper, userID string) (release func(), dup bool, err error) {
	release = func() {}
	key := c.Request().Header.Get(idempotencyKeyHeader)
	if deduper == nil || key == "" {
		return release, false, nil
	}
	ctx := c.Request().Context()
	fresh, err := deduper.Add(ctx, userID, key)
	if err != nil {
		return release, false, err
	}
	if !fresh {
		return release, true, nil
	}
	release = func() {
		_ = deduper.Remove(bg, userID, key)
	}
	return release, false, nil
}

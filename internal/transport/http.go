package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/avvvet/rhoai-intent/internal/auth"
	"github.com/avvvet/rhoai-intent/internal/handlers"
	"github.com/avvvet/rhoai-intent/internal/memory"
	"github.com/avvvet/rhoai-intent/internal/models"
)

// ErrorBody is the JSON body of every non-2xx response.
type ErrorBody struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type HTTPServer struct {
	echo   *echo.Echo
	agent  *handlers.Agent
	health map[string]HealthCheck
	logger *zap.Logger
}

// NewHTTPServer registers the API routes. Everything under /v1 requires a
// bearer token and is rate limited per user.
func NewHTTPServer(agent *handlers.Agent, authn auth.Authenticator, limiter *auth.Limiter, gatherer prometheus.Gatherer, health map[string]HealthCheck, logger *zap.Logger) *HTTPServer {
	s := &HTTPServer{
		echo:   echo.New(),
		agent:  agent,
		health: health,
		logger: logger.Named("http"),
	}
	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError
	e.Use(s.logRequests)

	e.GET("/healthz", s.healthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := e.Group("/v1", auth.Middleware(authn, s.logger), limiter.Middleware())
	v1.POST("/query", s.query)
	v1.POST("/confirm", s.confirm)
	v1.POST("/sessions", s.createSession)
	v1.GET("/sessions", s.listSessions)
	v1.GET("/sessions/:id", s.getSession)
	v1.GET("/sessions/:id/history", s.history)
	v1.DELETE("/sessions/:id", s.archiveSession)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.echo
}

func (s *HTTPServer) Start(addr string) error {
	s.logger.Info("listening", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *HTTPServer) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		begin := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		s.logger.Info("request",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(begin)),
			zap.String("user_id", auth.UserID(c)))
		return nil
	}
}

func (s *HTTPServer) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, body := s.errorBody(err)
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		s.logger.Error("failed to write error response", zap.Error(err))
	}
}

func (s *HTTPServer) errorBody(err error) (int, ErrorBody) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code := models.ErrorInvalidRequest
		switch he.Code {
		case http.StatusUnauthorized:
			code = models.ErrorUnauthenticated
		case http.StatusTooManyRequests:
			code = models.ErrorRateLimited
		case http.StatusInternalServerError:
			code = models.ErrorInternal
		}
		return he.Code, ErrorBody{ErrorCode: code, ErrorMessage: fmt.Sprint(he.Message)}
	}

	status, code := handlers.Classify(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
		return status, ErrorBody{ErrorCode: code, ErrorMessage: "Query processing failed"}
	}
	return status, ErrorBody{ErrorCode: code, ErrorMessage: err.Error()}
}

func client(c echo.Context) handlers.Client {
	return handlers.Client{IPAddress: c.RealIP(), UserAgent: c.Request().UserAgent()}
}

func (s *HTTPServer) healthz(c echo.Context) error {
	checks := map[string]string{}
	healthy := true
	for name, check := range s.health {
		if err := check(c.Request().Context()); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, map[string]any{"healthy": healthy, "checks": checks})
}

func (s *HTTPServer) query(c echo.Context) error {
	var req models.QueryRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	// identity comes from the token only
	req.UserID = ""
	resp, err := s.agent.HandleQuery(c.Request().Context(), auth.UserID(c), &req, client(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) confirm(c echo.Context) error {
	var req models.ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	req.UserID = ""
	resp, err := s.agent.HandleConfirm(c.Request().Context(), auth.UserID(c), &req, client(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) createSession(c echo.Context) error {
	session, err := s.agent.CreateSession(c.Request().Context(), auth.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, session)
}

func (s *HTTPServer) listSessions(c echo.Context) error {
	opts := memory.ListOptions{Status: memory.Status(c.QueryParam("status"))}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		opts.Limit = limit
	}
	sessions, err := s.agent.ListSessions(c.Request().Context(), auth.UserID(c), opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"sessions": sessions, "count": len(sessions)})
}

func (s *HTTPServer) getSession(c echo.Context) error {
	detail, err := s.agent.GetSession(c.Request().Context(), c.Param("id"), auth.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, detail)
}

func (s *HTTPServer) history(c echo.Context) error {
	msgs, err := s.agent.History(c.Request().Context(), c.Param("id"), auth.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"session_id": c.Param("id"), "messages": msgs})
}

func (s *HTTPServer) archiveSession(c echo.Context) error {
	if err := s.agent.ArchiveSession(c.Request().Context(), c.Param("id"), auth.UserID(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

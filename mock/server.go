package mock

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aep/parsekit/api"
	"github.com/aep/parsekit/query"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/maypok86/otter"
	"golang.org/x/crypto/bcrypt"
)

type Options struct {
	ApplicationID string
	APIKey        string

	// SessionTTL is how long a session token stays valid. Defaults to 24h.
	SessionTTL time.Duration

	// BcryptCost is used to hash user passwords. Defaults to bcrypt.MinCost
	// so tests stay fast.
	BcryptCost int

	Logger *slog.Logger
}

// Server is an in-memory backend speaking the same REST dialect as the
// client package.
type Server struct {
	opts     Options
	store    *store
	sessions otter.Cache[string, string]
	metrics  *metrics
	echo     *echo.Echo
}

func New(opts Options) (*Server, error) {
	if opts.ApplicationID == "" || opts.APIKey == "" {
		return nil, errors.New("mock: application id and api key are required")
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.MinCost
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	sessions, err := otter.MustBuilder[string, string](10000).
		WithTTL(opts.SessionTTL).
		Build()
	if err != nil {
		return nil, err
	}

	s := &Server{
		opts:     opts,
		store:    newStore(),
		sessions: sessions,
		metrics:  newMetrics(),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Binder = &Binder{defaultBinder: &echo.DefaultBinder{}}
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		respondError(c, err)
	}

	e.Use(middleware.Recover())
	e.Use(s.requestLogger())
	e.Use(s.metrics.middleware)
	e.Use(TracingMiddleware)

	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(s.metrics.handler()))
	e.GET("/files/:app/:name", s.handleGetFile)

	v1 := e.Group("/1", s.authenticate, s.session)
	v1.POST("/classes/:class", s.handleCreate)
	v1.GET("/classes/:class", s.handleFind)
	v1.GET("/classes/:class/:id", s.handleGet)
	v1.PUT("/classes/:class/:id", s.handleUpdate)
	v1.DELETE("/classes/:class/:id", s.handleDelete)
	v1.POST("/batch", s.handleBatch)
	v1.POST("/files/:name", s.handleUploadFile)
	v1.POST("/users", s.handleSignUp)
	v1.GET("/users/me", s.handleMe)
	v1.GET("/login", s.handleLogin)
	v1.POST("/logout", s.handleLogout)

	s.echo = e
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.opts.Logger.Info("mock backend listening", "addr", addr, "applicationId", s.opts.ApplicationID)
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// RelationMembers lists the objects a relation field points to, ordered
// by object id.
func (s *Server) RelationMembers(className, objectID, field string) []api.Pointer {
	return s.store.relationMembers(className, objectID, field)
}

func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Request().Header
		if h.Get(query.HeaderApplicationID) != s.opts.ApplicationID ||
			h.Get(query.HeaderAPIKey) != s.opts.APIKey {
			return c.JSON(http.StatusUnauthorized, api.ErrorBody{Error: "unauthorized"})
		}
		return next(c)
	}
}

const userIDKey = "userId"

func (s *Server) session(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.Request().Header.Get(query.HeaderSessionToken)
		if token == "" {
			return next(c)
		}
		userID, ok := s.sessions.Get(token)
		if !ok {
			return respondError(c, errInvalidSession())
		}
		c.Set(userIDKey, userID)
		return next(c)
	}
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "path", v.URIPath, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				s.opts.Logger.Warn("request", append(attrs, "err", v.Error)...)
			} else {
				s.opts.Logger.Debug("request", attrs...)
			}
			return nil
		},
	})
}

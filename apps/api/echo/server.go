// Package echoapi serves activity sheets, responses and code runs over HTTP with echo.
package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/pogil/core"
	"github.com/trezcool/pogil/core/coderun"
	"github.com/trezcool/pogil/core/instance"
	"github.com/trezcool/pogil/core/responses"
	"github.com/trezcool/pogil/core/sheet"
)

type (
	Deps struct {
		Logger      core.Logger
		Parser      *sheet.Parser
		InstanceSvc *instance.Service
		ResponseSvc *responses.Service
		Hub         *Hub
		Runners     map[string]coderun.Runner // by language
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		address        string
		disableReqLogs bool
		app            *echo.Echo
		deps           *Deps
		shutdown       chan<- struct{}
	}
)

var _ Server = (*server)(nil)

// NewServer builds the API. shutdown, when not nil, is signalled once a
// shutdown error reaches the error handler.
func NewServer(address string, shutdown chan<- struct{}, deps *Deps, disableReqLogs ...bool) Server {
	s := &server{
		address:  address,
		app:      echo.New(),
		deps:     deps,
		shutdown: shutdown,
	}
	if len(disableReqLogs) > 0 {
		s.disableReqLogs = disableReqLogs[0]
	}
	s.setup()
	return s
}

func (s *server) signalShutdown() {
	if s.shutdown == nil {
		return
	}
	select {
	case s.shutdown <- struct{}{}:
	default:
	}
}

func (s *server) setup() {
	debug := core.Conf.Debug

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.disableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.BodyLimit("2M"))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.signalShutdown)
	s.app.Debug = debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(jwtConfig("header:" + echo.HeaderAuthorization))
	wsJWT := middleware.JWTWithConfig(jwtConfig("query:token"))

	registerSheetAPI(v1, jwt, s.deps)
	registerInstanceAPI(v1, jwt, wsJWT, s.deps)
	registerRunAPI(v1, jwt, s.deps)
}

func (s *server) Start() error {
	return s.app.Start(s.address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to the "+core.Conf.AppName+" activities API!")
}

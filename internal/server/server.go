package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

type HttpServerParams struct {
	fx.In

	Context context.Context

	Config HttpConfig

	Handlers    []*HttpHandler       `group:"handlers"`
	Middlewares []mux.MiddlewareFunc `group:"middlewares"`
	Logger      *zap.Logger
}

type HttpServer struct {
	addr    string
	handler http.Handler
	server  *http.Server
	log     *zap.Logger
}

func NewHttpServer(params HttpServerParams) *HttpServer {
	router := mux.NewRouter()

	for _, mw := range params.Middlewares {
		router.Use(mw)
	}

	for _, handler := range params.Handlers {
		route := router.Handle(handler.Name, handler.Handler)
		if len(handler.Methods) > 0 {
			route.Methods(handler.Methods...)
		}
	}

	var handler http.Handler = router
	if params.Config.H2c {
		handler = h2c.NewHandler(router, &http2.Server{})
	}

	addr := fmt.Sprintf("%s:%d", params.Config.Host, params.Config.Port)

	return &HttpServer{
		addr:    addr,
		handler: handler,
		server: &http.Server{
			Addr:    addr,
			Handler: handler,
			BaseContext: func(net.Listener) context.Context {
				return params.Context
			},
		},
		log: params.Logger.Named("server"),
	}
}

func NewLifecycleServer(params HttpServerParams, lc fx.Lifecycle) *HttpServer {
	server := NewHttpServer(params)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			listener, err := server.Listen(ctx)
			if err != nil {
				return err
			}
			go server.Serve(listener)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
	return server
}

// Handler returns the root handler of the server.
func (s *HttpServer) Handler() http.Handler {
	return s.handler
}

func (s *HttpServer) Listen(ctx context.Context) (net.Listener, error) {
	cfg := net.ListenConfig{}

	listener, err := cfg.Listen(ctx, "tcp", s.addr)
	if err != nil {
		s.log.With(zap.Error(err)).Error("failed to listen")
		return nil, fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.log.With(zap.String("address", listener.Addr().String())).Info("listening")

	return listener, nil
}

func (s *HttpServer) Serve(listener net.Listener) error {
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.With(zap.Error(err)).Error("failed to serve")
		return err
	}

	return nil
}

func (s *HttpServer) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		s.log.With(zap.Error(err)).Error("failed to shutdown")
		return err
	}

	return nil
}

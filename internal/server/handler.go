package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/fx"
)

type HttpHandler struct {
	Name    string
	Methods []string
	Handler http.Handler
}

type HttpHandlerResult struct {
	fx.Out

	Handler *HttpHandler `group:"handlers"`
}

// AsHttpHandler registers handler for the path template name. If methods
// are given, the route only matches requests with one of them.
func AsHttpHandler(
	name string,
	handler http.Handler,
	methods ...string,
) HttpHandlerResult {
	return HttpHandlerResult{
		Handler: &HttpHandler{
			Name:    name,
			Methods: methods,
			Handler: handler,
		},
	}
}

type MiddlewareResult struct {
	fx.Out

	Middleware mux.MiddlewareFunc `group:"middlewares"`
}

func AsMiddleware(mw mux.MiddlewareFunc) MiddlewareResult {
	return MiddlewareResult{Middleware: mw}
}

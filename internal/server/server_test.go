package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(handlers []*HttpHandler, middlewares ...mux.MiddlewareFunc) *HttpServer {
	return NewHttpServer(HttpServerParams{
		Context:     context.Background(),
		Config:      HttpConfig{Host: DefaultHost, Port: 0},
		Handlers:    handlers,
		Middlewares: middlewares,
		Logger:      zap.NewNop(),
	})
}

func text(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	})
}

func TestHttpServer_Routes(t *testing.T) {
	s := newTestServer([]*HttpHandler{
		AsHttpHandler("/chat", text("chat"), http.MethodPost).Handler,
		AsHttpHandler("/health", text("ok")).Handler,
	})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "chat", w.Body.String())

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "ok", w.Body.String())
}

func TestHttpServer_MethodMismatch(t *testing.T) {
	s := newTestServer([]*HttpHandler{
		AsHttpHandler("/chat", text("chat"), http.MethodPost).Handler,
	})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chat", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHttpServer_NotFound(t *testing.T) {
	s := newTestServer(nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHttpServer_Middleware(t *testing.T) {
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Test", "yes")
			next.ServeHTTP(w, r)
		})
	}

	s := newTestServer([]*HttpHandler{
		AsHttpHandler("/health", text("ok")).Handler,
	}, mw)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, "yes", w.Header().Get("X-Test"))
}

func TestHttpServer_ListenServe(t *testing.T) {
	s := newTestServer([]*HttpHandler{
		AsHttpHandler("/health", text("ok")).Handler,
	})

	listener, err := s.Listen(context.Background())
	require.NoError(t, err)

	go s.Serve(listener)
	defer s.Shutdown(context.Background())

	res, err := http.Get("http://" + listener.Addr().String() + "/health")
	require.NoError(t, err)
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	assert.Equal(t, "ok", string(body))
}

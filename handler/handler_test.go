package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AnushSomasundaram/Calendarllm/config"
	"github.com/AnushSomasundaram/Calendarllm/internal/sidecar/correlator"
	"github.com/AnushSomasundaram/Calendarllm/internal/sidecar/protocol"
	"github.com/AnushSomasundaram/Calendarllm/internal/sidecar/supervisor"
	"github.com/AnushSomasundaram/Calendarllm/internal/sidecar/worker"
	"github.com/AnushSomasundaram/Calendarllm/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mock runtime ---
type MockRuntime struct {
	mock.Mock
}

func (m *MockRuntime) Chat(ctx context.Context, message string) (string, error) {
	args := m.Called(ctx, message)
	return args.String(0), args.Error(1)
}

func (m *MockRuntime) OnCredentialChange(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockRuntime) Status() supervisor.State {
	return m.Called().Get(0).(supervisor.State)
}

func (m *MockRuntime) Start(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockRuntime) Shutdown(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// --- Mock settings store ---
type MockStore struct {
	mock.Mock
}

func (m *MockStore) APIKey(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockStore) SetAPIKey(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func params(rt runtime.Runtime, store *MockStore) HandlerParams {
	return HandlerParams{
		Runtime:  rt,
		Settings: store,
		Log:      zap.NewNop(),
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	body := decodeBody(t, w)
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, "missing error object")
	return errObj
}

// --- Chat ---
func TestChatHandler_Success(t *testing.T) {
	rt := new(MockRuntime)
	rt.On("Chat", mock.Anything, "hi").Return("hi there", nil)

	h := NewChatHandler(params(rt, nil))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi"}`)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"reply":"hi there"}`, w.Body.String())
	rt.AssertExpectations(t)
}

func TestChatHandler_EmptyMessageIsForwarded(t *testing.T) {
	rt := new(MockRuntime)
	rt.On("Chat", mock.Anything, "").Return("?", nil)

	h := NewChatHandler(params(rt, nil))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":""}`)))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestChatHandler_BadRequest(t *testing.T) {
	tests := map[string]string{
		"invalid json":    `{"message":`,
		"missing message": `{}`,
		"wrong type":      `{"message": 42}`,
		"unknown field":   `{"message":"hi","extra":true}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rt := new(MockRuntime)
			h := NewChatHandler(params(rt, nil))

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body)))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "invalid request", errorBody(t, w)["message"])
			rt.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything)
		})
	}
}

func TestChatHandler_Errors(t *testing.T) {
	code := 1

	tests := map[string]struct {
		err    error
		status int
	}{
		"not running":     {supervisor.ErrNotRunning, http.StatusServiceUnavailable},
		"spawn failure":   {&supervisor.SpawnError{Err: assert.AnError}, http.StatusServiceUnavailable},
		"timeout":         {runtime.ErrChatTimeout, http.StatusGatewayTimeout},
		"terminated":      {supervisor.ErrWorkerTerminated, http.StatusBadGateway},
		"unexpected exit": {&supervisor.ExitError{Event: worker.ExitEvent{Code: &code}}, http.StatusBadGateway},
		"reply error":     {&correlator.ReplyError{ID: 1, Message: "rate limited"}, http.StatusBadGateway},
		"malformed reply": {fmt.Errorf("%w: reply 1", protocol.ErrMalformed), http.StatusBadGateway},
		"other":           {assert.AnError, http.StatusInternalServerError},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rt := new(MockRuntime)
			rt.On("Chat", mock.Anything, "hi").Return("", tt.err)

			h := NewChatHandler(params(rt, nil))

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi"}`)))

			assert.Equal(t, tt.status, w.Code)

			errObj := errorBody(t, w)
			assert.Equal(t, unavailableMessage, errObj["message"])
			assert.Equal(t, tt.err.Error(), errObj["error"])
		})
	}
}

// --- API key ---
func TestAPIKeyHandler_Get(t *testing.T) {
	tests := map[string]struct {
		key        string
		configured bool
	}{
		"configured": {"sk-test", true},
		"unset":      {"", false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			store := new(MockStore)
			store.On("APIKey", mock.Anything).Return(tt.key, nil)

			h := NewAPIKeyHandler(params(new(MockRuntime), store))

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/settings/api-key", nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.configured, decodeBody(t, w)["configured"])
			assert.NotContains(t, w.Body.String(), "sk-test")
		})
	}
}

func TestAPIKeyHandler_Get_StoreError(t *testing.T) {
	store := new(MockStore)
	store.On("APIKey", mock.Anything).Return("", assert.AnError)

	h := NewAPIKeyHandler(params(new(MockRuntime), store))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/settings/api-key", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAPIKeyHandler_Put_StoresThenRestarts(t *testing.T) {
	var order []string

	store := new(MockStore)
	store.On("SetAPIKey", mock.Anything, "sk-new").
		Run(func(mock.Arguments) { order = append(order, "store") }).
		Return(nil)

	rt := new(MockRuntime)
	rt.On("OnCredentialChange", mock.Anything).
		Run(func(mock.Arguments) { order = append(order, "restart") }).
		Return(nil)

	h := NewAPIKeyHandler(params(rt, store))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/settings/api-key", strings.NewReader(`{"key":"sk-new"}`)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	assert.Equal(t, []string{"store", "restart"}, order)
}

func TestAPIKeyHandler_Put_StoreErrorSkipsRestart(t *testing.T) {
	store := new(MockStore)
	store.On("SetAPIKey", mock.Anything, "sk-new").Return(assert.AnError)

	rt := new(MockRuntime)

	h := NewAPIKeyHandler(params(rt, store))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/settings/api-key", strings.NewReader(`{"key":"sk-new"}`)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	rt.AssertNotCalled(t, "OnCredentialChange", mock.Anything)
}

func TestAPIKeyHandler_Put_RestartFailure(t *testing.T) {
	store := new(MockStore)
	store.On("SetAPIKey", mock.Anything, "sk-new").Return(nil)

	rt := new(MockRuntime)
	rt.On("OnCredentialChange", mock.Anything).Return(&supervisor.SpawnError{Err: assert.AnError})

	h := NewAPIKeyHandler(params(rt, store))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/settings/api-key", strings.NewReader(`{"key":"sk-new"}`)))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAPIKeyHandler_Put_MissingKey(t *testing.T) {
	store := new(MockStore)
	h := NewAPIKeyHandler(params(new(MockRuntime), store))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/settings/api-key", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	store.AssertNotCalled(t, "SetAPIKey", mock.Anything, mock.Anything)
}

func TestAPIKeyHandler_MethodNotAllowed(t *testing.T) {
	h := NewAPIKeyHandler(params(new(MockRuntime), new(MockStore)))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/settings/api-key", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

// --- Health ---
func TestHealthHandler(t *testing.T) {
	rt := new(MockRuntime)
	rt.On("Status").Return(supervisor.StateRunning)

	h := NewHealthHandler(params(rt, nil))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","worker":"running"}`, w.Body.String())
}

// --- Auth ---
func TestAuthMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := map[string]struct {
		configured string
		header     string
		status     int
	}{
		"no key configured": {"", "", http.StatusNoContent},
		"matching key":      {"secret", "secret", http.StatusNoContent},
		"wrong key":         {"secret", "wrong-key", http.StatusUnauthorized},
		"missing key":       {"secret", "", http.StatusUnauthorized},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			mw := NewAuthMiddleware(config.AuthConfig{Key: tt.configured}, zap.NewNop())

			req := httptest.NewRequest(http.MethodPost, "/chat", nil)
			if tt.header != "" {
				req.Header.Set(APIKeyHeader, tt.header)
			}

			w := httptest.NewRecorder()
			mw(next).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
		})
	}
}

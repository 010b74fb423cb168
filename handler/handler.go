package handler

import (
	"net/http"

	"github.com/AnushSomasundaram/Calendarllm/runtime"
	"github.com/AnushSomasundaram/Calendarllm/settings"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type HandlerParams struct {
	fx.In

	Runtime  runtime.Runtime
	Settings settings.Store
	Log      *zap.Logger
}

type chatRequest struct {
	Message *string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// ChatHandler forwards a chat message to the assistant.
type ChatHandler struct {
	runtime runtime.Runtime
	log     *zap.Logger
}

func NewChatHandler(params HandlerParams) *ChatHandler {
	return &ChatHandler{
		runtime: params.Runtime,
		log:     params.Log.Named("handler_chat"),
	}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log.Debug("invalid chat request", zap.Error(err))
		writeError(w, err, h.log)
		return
	}

	if req.Message == nil {
		writeError(w, &badRequestError{err: errMissingField("message")}, h.log)
		return
	}

	reply, err := h.runtime.Chat(r.Context(), *req.Message)
	if err != nil {
		h.log.Warn("chat failed", zap.Error(err))
		writeError(w, err, h.log)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Reply: reply}, h.log)
}

type apiKeyRequest struct {
	Key *string `json:"key"`
}

// APIKeyHandler reads and updates the assistant credential. Updating it
// restarts the assistant.
type APIKeyHandler struct {
	runtime  runtime.Runtime
	settings settings.Store
	log      *zap.Logger
}

func NewAPIKeyHandler(params HandlerParams) *APIKeyHandler {
	return &APIKeyHandler{
		runtime:  params.Runtime,
		settings: params.Settings,
		log:      params.Log.Named("handler_api_key"),
	}
}

func (h *APIKeyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.put(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *APIKeyHandler) get(w http.ResponseWriter, r *http.Request) {
	key, err := h.settings.APIKey(r.Context())
	if err != nil {
		h.log.Error("failed to read api key", zap.Error(err))
		writeError(w, err, h.log)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"configured": key != ""}, h.log)
}

func (h *APIKeyHandler) put(w http.ResponseWriter, r *http.Request) {
	var req apiKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err, h.log)
		return
	}

	if req.Key == nil {
		writeError(w, &badRequestError{err: errMissingField("key")}, h.log)
		return
	}

	if err := h.settings.SetAPIKey(r.Context(), *req.Key); err != nil {
		h.log.Error("failed to store api key", zap.Error(err))
		writeError(w, err, h.log)
		return
	}

	h.log.Info("api key updated, restarting assistant")

	if err := h.runtime.OnCredentialChange(r.Context()); err != nil {
		h.log.Error("failed to restart assistant", zap.Error(err))
		writeError(w, err, h.log)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true}, h.log)
}

// HealthHandler reports liveness of the host and the worker state.
type HealthHandler struct {
	runtime runtime.Runtime
	log     *zap.Logger
}

func NewHealthHandler(params HandlerParams) *HealthHandler {
	return &HealthHandler{
		runtime: params.Runtime,
		log:     params.Log.Named("handler_health"),
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"worker": h.runtime.Status().String(),
	}, h.log)
}

package handler

import (
	"net/http"

	"github.com/AnushSomasundaram/Calendarllm/config"
	"github.com/AnushSomasundaram/Calendarllm/internal/server"
	"go.uber.org/zap"
)

func NewChatRoute(handler *ChatHandler) server.HttpHandlerResult {
	return server.AsHttpHandler("/chat", handler, http.MethodPost)
}

func NewAPIKeyRoute(handler *APIKeyHandler) server.HttpHandlerResult {
	return server.AsHttpHandler("/settings/api-key", handler, http.MethodGet, http.MethodPut)
}

func NewHealthRoute(handler *HealthHandler) server.HttpHandlerResult {
	return server.AsHttpHandler("/health", handler, http.MethodGet)
}

func NewAuth(config config.Config, log *zap.Logger) server.MiddlewareResult {
	return server.AsMiddleware(NewAuthMiddleware(config.Auth, log))
}

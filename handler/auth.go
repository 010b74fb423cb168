package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/AnushSomasundaram/Calendarllm/config"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// APIKeyHeader carries the shared secret of the local API.
const APIKeyHeader = "api-key"

// NewAuthMiddleware rejects requests without the configured shared
// secret. Without a configured key every request is let through.
func NewAuthMiddleware(auth config.AuthConfig, log *zap.Logger) mux.MiddlewareFunc {
	log = log.Named("auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth.Key != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(APIKeyHeader)), []byte(auth.Key)) != 1 {
				log.Debug("unauthorized request",
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
				)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

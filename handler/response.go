package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AnushSomasundaram/Calendarllm/internal/sidecar/correlator"
	"github.com/AnushSomasundaram/Calendarllm/internal/sidecar/protocol"
	"github.com/AnushSomasundaram/Calendarllm/internal/sidecar/supervisor"
	"github.com/AnushSomasundaram/Calendarllm/runtime"
	"go.uber.org/zap"
)

// unavailableMessage is shown to callers for every assistant failure.
const unavailableMessage = "could not reach the assistant"

var wellKnownErrors = map[error]int{
	supervisor.ErrNotRunning:       http.StatusServiceUnavailable,
	supervisor.ErrWorkerTerminated: http.StatusBadGateway,
	supervisor.ErrUnexpectedExit:   http.StatusBadGateway,
	runtime.ErrChatTimeout:         http.StatusGatewayTimeout,
	protocol.ErrMalformed:          http.StatusBadGateway,
}

// badRequestError marks errors caused by the request itself.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string {
	return "invalid request: " + e.err.Error()
}

func (e *badRequestError) Unwrap() error {
	return e.err
}

// getErrorStatusCode returns the status code for the given error.
func getErrorStatusCode(err error) int {
	for known, status := range wellKnownErrors {
		if errors.Is(err, known) {
			return status
		}
	}

	var badRequest *badRequestError
	if errors.As(err, &badRequest) {
		return http.StatusBadRequest
	}

	var replyErr *correlator.ReplyError
	if errors.As(err, &replyErr) {
		return http.StatusBadGateway
	}

	var spawnErr *supervisor.SpawnError
	if errors.As(err, &spawnErr) {
		return http.StatusServiceUnavailable
	}

	return http.StatusInternalServerError
}

type responseError struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func writeError(w http.ResponseWriter, err error, log *zap.Logger) {
	status := getErrorStatusCode(err)

	message := unavailableMessage
	if status == http.StatusBadRequest {
		message = "invalid request"
	}

	writeJSON(w, status, struct {
		Error responseError `json:"error"`
	}{
		Error: responseError{
			Message: message,
			Error:   err.Error(),
		},
	}, log)
}

func writeJSON(w http.ResponseWriter, status int, body any, log *zap.Logger) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Debug("failed to encode response", zap.Error(err))
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(data); err != nil {
		log.Debug("failed to write response", zap.Error(err))
	}
}

func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		return &badRequestError{err: err}
	}

	return nil
}

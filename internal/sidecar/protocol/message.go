package protocol

import (
	"encoding/json"
	"errors"
)

var ErrMalformed = errors.New("malformed record")

// Request is a single outbound request to the worker.
type Request struct {
	// ID is the correlation id of the request
	ID int64 `json:"id"`

	// Message is the user message to process
	Message string `json:"message"`
}

// EncodeRequest encodes the request as a single-line JSON record.
func EncodeRequest(req Request) ([]byte, error) {
	return json.Marshal(req)
}

// Reply is the worker's answer to the request with the same ID.
type Reply struct {
	// ID is the correlation id of the request
	ID int64

	// Result is the reply payload, if the request succeeded
	Result string

	// Error is the error reported by the worker, if the request failed
	Error string

	// Invalid is set when the record named a request but carried no
	// usable reply or error. It wraps ErrMalformed.
	Invalid error
}

// Failed reports whether the worker reported an error.
func (r Reply) Failed() bool {
	return r.Error != ""
}

// DefaultLogLevel is used for log events without a level.
const DefaultLogLevel = "info"

// LogEvent is a diagnostic record emitted by the worker.
type LogEvent struct {
	Level   string
	Message string
}

type Kind int

const (
	// KindText is free-form output that is not a structured record
	KindText Kind = iota

	// KindMalformed is a record that could not be parsed or validated
	KindMalformed

	// KindLog is a log event
	KindLog

	// KindReply is a reply to a correlated request
	KindReply
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindMalformed:
		return "malformed"
	case KindLog:
		return "log"
	case KindReply:
		return "reply"
	default:
		return "unknown"
	}
}

// Message is a classified inbound line.
type Message struct {
	Kind Kind

	// Line is the raw line
	Line string

	// Log is set for KindLog
	Log LogEvent

	// Reply is set for KindReply
	Reply Reply

	// Err is the cause for KindMalformed, or for a KindReply whose record
	// was invalid
	Err error
}

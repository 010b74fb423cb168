package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Classifier sorts inbound lines into text, malformed records,
// log events and replies.
type Classifier struct {
	schema *Schema
}

// NewClassifier creates a classifier that validates records
// against the embedded schemas.
func NewClassifier() (*Classifier, error) {
	schema, err := NewSchema()
	if err != nil {
		return nil, err
	}

	return &Classifier{schema: schema}, nil
}

// Classify inspects a single trimmed, non-empty line. It never panics;
// any failure while parsing or extracting fields yields KindMalformed.
func (c *Classifier) Classify(line string) (msg Message) {
	msg.Line = line

	defer func() {
		if r := recover(); r != nil {
			msg = malformed(line, fmt.Errorf("panic: %v", r))
		}
	}()

	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
		msg.Kind = KindText
		return msg
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return malformed(line, err)
	}

	if kind, _ := record["type"].(string); kind == "log" {
		return c.classifyLog(line, record)
	}

	return c.classifyReply(line, record)
}

func (c *Classifier) classifyLog(line string, record map[string]any) Message {
	if err := c.schema.Validate(SchemaTypeLog, record); err != nil {
		return malformed(line, err)
	}

	level, _ := record["level"].(string)
	if level == "" {
		level = DefaultLogLevel
	}

	message, _ := record["message"].(string)

	return Message{
		Kind: KindLog,
		Line: line,
		Log: LogEvent{
			Level:   level,
			Message: message,
		},
	}
}

func (c *Classifier) classifyReply(line string, record map[string]any) Message {
	id, hasID := integralID(record["id"])

	if err := c.schema.Validate(SchemaTypeReply, record); err != nil {
		if hasID {
			return invalidReply(line, id, err)
		}
		return malformed(line, err)
	}

	if !hasID {
		return malformed(line, fmt.Errorf("invalid id: %v", record["id"]))
	}

	result, hasResult := record["reply"].(string)
	errMsg, _ := record["error"].(string)

	if errMsg == "" && !hasResult {
		return invalidReply(line, id, errors.New("neither reply nor error"))
	}

	return Message{
		Kind: KindReply,
		Line: line,
		Reply: Reply{
			ID:     id,
			Result: result,
			Error:  errMsg,
		},
	}
}

func integralID(v any) (int64, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}

	return int64(f), true
}

// invalidReply settles the request with the given id even though the
// record carries no usable payload.
func invalidReply(line string, id int64, err error) Message {
	err = fmt.Errorf("%w: reply %d: %v", ErrMalformed, id, err)

	return Message{
		Kind: KindReply,
		Line: line,
		Reply: Reply{
			ID:      id,
			Invalid: err,
		},
		Err: err,
	}
}

func malformed(line string, err error) Message {
	return Message{
		Kind: KindMalformed,
		Line: line,
		Err:  fmt.Errorf("%w: %v", ErrMalformed, err),
	}
}

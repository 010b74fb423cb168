package protocol

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type SchemaType int

const (
	SchemaTypeReply SchemaType = iota
	SchemaTypeLog
)

func (t SchemaType) String() string {
	switch t {
	case SchemaTypeReply:
		return "reply"
	case SchemaTypeLog:
		return "log"
	default:
		return "unknown"
	}
}

// Schema holds the compiled schemas of the inbound records.
type Schema struct {
	schemas map[SchemaType]*gojsonschema.Schema
}

//go:embed schema/reply.json
var replySchema []byte

//go:embed schema/log.json
var logSchema []byte

// NewSchema compiles the embedded inbound record schemas.
func NewSchema() (*Schema, error) {
	reply, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(replySchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile reply schema: %w", err)
	}

	log, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(logSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile log schema: %w", err)
	}

	return &Schema{
		schemas: map[SchemaType]*gojsonschema.Schema{
			SchemaTypeReply: reply,
			SchemaTypeLog:   log,
		},
	}, nil
}

// Validate validates the decoded record against the schema of the given type.
func (s *Schema) Validate(schemaType SchemaType, record map[string]any) error {
	schema, ok := s.schemas[schemaType]
	if !ok {
		return errors.New("schema not found")
	}

	res, err := schema.Validate(gojsonschema.NewGoLoader(record))
	if err != nil {
		return err
	}

	if res.Valid() {
		return nil
	}

	return &ValidationError{Type: schemaType, Result: res}
}

// ValidationError is returned when a record does not match its schema.
type ValidationError struct {
	Type   SchemaType
	Result *gojsonschema.Result
}

func (e *ValidationError) Error() string {
	details := make([]string, 0, len(e.Result.Errors()))
	for _, desc := range e.Result.Errors() {
		details = append(details, desc.String())
	}

	return fmt.Sprintf("invalid %s: %s", e.Type, strings.Join(details, "; "))
}

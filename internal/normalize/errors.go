package normalize

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a SchemaError.
type ErrorKind string

const (
	// KindMalformedPayload means the payload is not a JSON object.
	KindMalformedPayload ErrorKind = "malformed_payload"
	// KindMalformedEnvelope means the envelope field could not be unwrapped.
	KindMalformedEnvelope ErrorKind = "malformed_envelope"
	// KindMissingRequiredField means one or more required sections are absent.
	KindMissingRequiredField ErrorKind = "missing_required_field"
	// KindInvalidFieldType means a section or list has the wrong JSON type.
	KindInvalidFieldType ErrorKind = "invalid_field_type"
	// KindLegacyTranscode means a legacy-shaped payload could not be mapped.
	KindLegacyTranscode ErrorKind = "legacy_transcode"
)

// SchemaError reports malformed or incomplete analysis input.
type SchemaError struct {
	Kind   ErrorKind
	Fields []string
	Err    error
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("schema error (")
	b.WriteString(string(e.Kind))
	b.WriteString(")")
	if len(e.Fields) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Fields, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// AsSchemaError extracts a *SchemaError from err's chain.
func AsSchemaError(err error) (*SchemaError, bool) {
	var se *SchemaError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

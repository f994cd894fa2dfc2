// Package schema defines the request and response documents exchanged between
// regis clients and the daemon.
//
// Enumerations use the externally tagged JSON form understood by existing
// daemons: unit variants are bare strings ("Status") and data-carrying
// variants are single-key objects ({"Metrics":5}).
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrInvalidEnvelope = errors.New("schema: invalid envelope")
	ErrUnknownVariant  = errors.New("schema: unknown variant")
)

func marshalUnit(tag string) ([]byte, error) {
	return json.Marshal(tag)
}

func marshalTagged(tag string, body any) ([]byte, error) {
	return json.Marshal(map[string]any{tag: body})
}

// decodeTagged splits an externally tagged value into its tag and body. Unit
// variants return a nil body.
func decodeTagged(data []byte) (string, json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w: empty", ErrInvalidEnvelope)
	}
	if data[0] == '"' {
		var tag string
		if err := json.Unmarshal(data, &tag); err != nil {
			return "", nil, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
		}
		return tag, nil, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	if len(obj) != 1 {
		return "", nil, fmt.Errorf("%w: expected exactly one variant, got %d", ErrInvalidEnvelope, len(obj))
	}
	for tag, body := range obj {
		return tag, body, nil
	}
	return "", nil, ErrInvalidEnvelope
}

func requireBody(tag string, body json.RawMessage) error {
	if body == nil || bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return fmt.Errorf("%w: variant %q requires a value", ErrInvalidEnvelope, tag)
	}
	return nil
}

// rejectBody accepts a unit variant in either its bare form or as {"Tag":null}.
func rejectBody(tag string, body json.RawMessage) error {
	if body == nil || bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return nil
	}
	return fmt.Errorf("%w: variant %q carries no value, got %s", ErrInvalidEnvelope, tag, body)
}

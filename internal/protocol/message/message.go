// Package message carries typed values over the framed transport as UTF-8
// JSON documents, one document per frame.
package message

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"unicode/utf8"

	"github.com/danmuck/regis/internal/protocol/frame"
)

var (
	ErrSerialization   = errors.New("message: serialization error")
	ErrDeserialization = errors.New("message: deserialization error")
)

var jsonNull = []byte("null")

// Send encodes v as JSON and writes it as one frame.
func Send[T any](ctx context.Context, w io.Writer, v T, opts frame.Options) error {
	payload, err := Marshal(v)
	if err != nil {
		return err
	}
	return frame.SendBuffer(ctx, w, payload, opts)
}

// Receive reads one frame and decodes it into T. Transport errors are returned
// unchanged so framing and cancellation stay distinguishable.
func Receive[T any](ctx context.Context, r io.Reader, opts frame.Options) (T, error) {
	payload, err := frame.ReceiveBuffer(ctx, r, opts)
	if err != nil {
		var zero T
		return zero, err
	}
	return Unmarshal[T](payload)
}

// Marshal is the encode half of Send.
func Marshal(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return payload, nil
}

// Unmarshal is the decode half of Receive. A null document is only accepted
// when T can hold nil.
func Unmarshal[T any](payload []byte) (T, error) {
	var out T
	if !utf8.Valid(payload) {
		return out, fmt.Errorf("%w: payload is not valid utf-8", ErrDeserialization)
	}
	doc := bytes.TrimSpace(payload)
	if len(doc) == 0 {
		return out, fmt.Errorf("%w: empty payload", ErrDeserialization)
	}
	if bytes.Equal(doc, jsonNull) {
		if !nillable(reflect.TypeOf((*T)(nil)).Elem()) {
			return out, fmt.Errorf("%w: absent value for %s", ErrDeserialization, reflect.TypeOf((*T)(nil)).Elem())
		}
		return out, nil
	}
	if err := json.Unmarshal(doc, &out); err != nil {
		return out, fmt.Errorf("%w: %w", ErrDeserialization, err)
	}
	return out, nil
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return true
	default:
		return false
	}
}

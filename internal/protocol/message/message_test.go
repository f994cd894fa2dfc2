package message

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"testing"

	"github.com/danmuck/regis/internal/protocol/frame"
	"github.com/danmuck/regis/internal/testutil/testlog"
)

type sample struct {
	Name    string            `json:"name"`
	Count   int               `json:"count"`
	Ratio   float64           `json:"ratio"`
	Tags    []string          `json:"tags"`
	Labels  map[string]string `json:"labels"`
	Enabled bool              `json:"enabled"`
}

func TestSendReceiveRoundTrip(t *testing.T) {
	testlog.Start(t)
	in := sample{
		Name:    "regisd",
		Count:   42,
		Ratio:   0.75,
		Tags:    []string{"cpu", "mem"},
		Labels:  map[string]string{"host": "10.0.0.1"},
		Enabled: true,
	}
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- Send(context.Background(), client, in, frame.DefaultOptions())
	}()
	out, err := Receive[sample](context.Background(), server, frame.DefaultOptions())
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("send: %v", err)
	}
	if out.Name != in.Name || out.Count != in.Count || out.Ratio != in.Ratio || !out.Enabled {
		t.Fatalf("mismatch: in=%+v out=%+v", in, out)
	}
	if len(out.Tags) != 2 || out.Labels["host"] != "10.0.0.1" {
		t.Fatalf("collection mismatch: %+v", out)
	}
}

func TestSendWritesJSONFrame(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	if err := Send(context.Background(), &buf, map[string]int{"a": 1}, frame.DefaultOptions()); err != nil {
		t.Fatalf("send: %v", err)
	}
	want, _ := frame.Encode([]byte(`{"a":1}`))
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("unexpected wire bytes: %q", buf.Bytes())
	}
}

func TestSendRejectsNaN(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	err := Send(context.Background(), &buf, sample{Ratio: math.NaN()}, frame.DefaultOptions())
	if !errors.Is(err, ErrSerialization) {
		t.Fatalf("expected ErrSerialization, got %v", err)
	}
	var unsupported *json.UnsupportedValueError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected wrapped UnsupportedValueError, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing should be written on serialization failure")
	}
}

func TestReceiveRejectsInvalidJSON(t *testing.T) {
	testlog.Start(t)
	wire, _ := frame.Encode([]byte(`{"name":`))
	_, err := Receive[sample](context.Background(), bytes.NewReader(wire), frame.DefaultOptions())
	if !errors.Is(err, ErrDeserialization) {
		t.Fatalf("expected ErrDeserialization, got %v", err)
	}
}

func TestReceiveRejectsInvalidUTF8(t *testing.T) {
	testlog.Start(t)
	wire, _ := frame.Encode([]byte{'"', 0xff, 0xfe, '"'})
	_, err := Receive[string](context.Background(), bytes.NewReader(wire), frame.DefaultOptions())
	if !errors.Is(err, ErrDeserialization) {
		t.Fatalf("expected ErrDeserialization, got %v", err)
	}
}

func TestReceiveRejectsAbsentValue(t *testing.T) {
	testlog.Start(t)
	wire, _ := frame.Encode([]byte("null"))
	if _, err := Receive[sample](context.Background(), bytes.NewReader(wire), frame.DefaultOptions()); !errors.Is(err, ErrDeserialization) {
		t.Fatalf("struct: expected ErrDeserialization, got %v", err)
	}
	if _, err := Receive[int](context.Background(), bytes.NewReader(wire), frame.DefaultOptions()); !errors.Is(err, ErrDeserialization) {
		t.Fatalf("int: expected ErrDeserialization, got %v", err)
	}
	out, err := Receive[*sample](context.Background(), bytes.NewReader(wire), frame.DefaultOptions())
	if err != nil || out != nil {
		t.Fatalf("pointer: expected nil value, got %v err=%v", out, err)
	}
	if _, err := Unmarshal[sample]([]byte("  ")); !errors.Is(err, ErrDeserialization) {
		t.Fatalf("empty: expected ErrDeserialization, got %v", err)
	}
}

func TestReceivePassesTransportErrors(t *testing.T) {
	testlog.Start(t)
	_, err := Receive[sample](context.Background(), bytes.NewReader([]byte{0, 1}), frame.DefaultOptions())
	if !errors.Is(err, frame.ErrShortHeader) {
		t.Fatalf("expected frame.ErrShortHeader, got %v", err)
	}
	if errors.Is(err, ErrDeserialization) {
		t.Fatalf("transport failure must not be a deserialization error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Receive[sample](ctx, bytes.NewReader(nil), frame.DefaultOptions()); !errors.Is(err, frame.ErrCancelled) {
		t.Fatalf("expected frame.ErrCancelled, got %v", err)
	}
}

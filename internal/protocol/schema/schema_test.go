package schema

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/regis/internal/testutil/testlog"
)

func TestRequestWireForm(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		req  Request
		wire string
	}{
		{StatusRequest(), `"Status"`},
		{MetricsRequest(5), `{"Metrics":5}`},
	}
	for _, tc := range cases {
		raw, err := json.Marshal(tc.req)
		if err != nil {
			t.Fatalf("marshal %+v: %v", tc.req, err)
		}
		if string(raw) != tc.wire {
			t.Fatalf("wire mismatch: got=%s want=%s", raw, tc.wire)
		}
		var out Request
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if out != tc.req {
			t.Fatalf("round-trip mismatch: %+v != %+v", out, tc.req)
		}
	}
}

func TestRequestRejectsMalformed(t *testing.T) {
	testlog.Start(t)
	for _, raw := range []string{`"Reboot"`, `{"Metrics":-1}`, `{"Metrics":null}`, `{"Status":1,"Metrics":2}`, `{}`, `42`} {
		var out Request
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			t.Fatalf("%s: expected error", raw)
		}
	}
	var out Request
	if err := json.Unmarshal([]byte(`{"Bogus":1}`), &out); !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("expected ErrUnknownVariant, got %v", err)
	}
	if _, err := json.Marshal(MetricsRequest(-2)); !errors.Is(err, ErrInvalidEnvelope) {
		t.Fatalf("expected ErrInvalidEnvelope, got %v", err)
	}
	if err := json.Unmarshal([]byte(`{"Status":{"junk":1}}`), &out); !errors.Is(err, ErrInvalidEnvelope) {
		t.Fatalf("status with a body: expected ErrInvalidEnvelope, got %v", err)
	}
}

func TestRequestUnitVariantNullBody(t *testing.T) {
	testlog.Start(t)
	var out Request
	if err := json.Unmarshal([]byte(`{"Status":null}`), &out); err != nil || out != StatusRequest() {
		t.Fatalf("got %+v err=%v", out, err)
	}
}

func TestRequestMetricsCountBeyond32Bits(t *testing.T) {
	testlog.Start(t)
	var out Request
	if err := json.Unmarshal([]byte(`{"Metrics":5000000000}`), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Kind != RequestMetrics || uint64(out.Count) < 4294967295 {
		t.Fatalf("count was narrowed: %+v", out)
	}
	if err := json.Unmarshal([]byte(`{"Metrics":18446744073709551615}`), &out); err != nil || out.Count <= 0 {
		t.Fatalf("max count: %+v err=%v", out, err)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	testlog.Start(t)
	ts := time.Date(2025, 3, 19, 12, 0, 0, 0, time.UTC)
	cpu := &CPUMetric{User: Utilization{Inner: 12}, Idle: Utilization{Inner: 80}, Waiting: 3}
	snap := CollectedMetrics{
		Time:      ts,
		CPU:       cpu,
		ProcCount: &ProcessCount{Count: 211},
		Memory: &MultiValued[MemoryMetric]{Inner: []MemoryMetric{
			{Device: "Mem", Total: BinaryNumberFromBytes(16 << 30)},
		}},
	}

	raw, err := json.Marshal(StatusResponse(snap))
	if err != nil {
		t.Fatalf("marshal status: %v", err)
	}
	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if out.Kind() != RequestStatus || out.Status == nil {
		t.Fatalf("unexpected response: %+v", out)
	}
	got := out.Status.Info
	if !got.Time.Equal(ts) || got.CPU.User.Inner != 12 || got.ProcCount.Count != 211 {
		t.Fatalf("snapshot mismatch: %+v", got)
	}
	if got.Storage != nil || got.Network != nil {
		t.Fatalf("absent sections should stay nil")
	}
	if got.Memory.Inner[0].Total.Bracket != ScaleGiB || got.Memory.Inner[0].Total.Amount != 16 {
		t.Fatalf("memory mismatch: %+v", got.Memory.Inner[0].Total)
	}

	raw, err = json.Marshal(MetricsResponse(nil))
	if err != nil {
		t.Fatalf("marshal metrics: %v", err)
	}
	if string(raw) != `{"Metrics":{"info":[]}}` {
		t.Fatalf("unexpected empty metrics wire form: %s", raw)
	}
}

func TestResponseRequiresExactlyOneVariant(t *testing.T) {
	testlog.Start(t)
	if _, err := json.Marshal(Response{}); !errors.Is(err, ErrInvalidEnvelope) {
		t.Fatalf("expected ErrInvalidEnvelope, got %v", err)
	}
	var out Response
	if err := json.Unmarshal([]byte(`"Status"`), &out); !errors.Is(err, ErrInvalidEnvelope) {
		t.Fatalf("expected ErrInvalidEnvelope for bodiless status, got %v", err)
	}
}

func TestConsoleRequestWireForm(t *testing.T) {
	testlog.Start(t)
	cases := map[ConsoleKind]string{
		ConsoleShutdown:     `"Shutdown"`,
		ConsolePoll:         `"Poll"`,
		ConsoleConfigReload: `{"Config":"Reload"}`,
		ConsoleConfigGet:    `{"Config":"Get"}`,
	}
	for kind, wire := range cases {
		raw, err := json.Marshal(ConsoleRequest{Kind: kind})
		if err != nil {
			t.Fatalf("marshal %s: %v", kind, err)
		}
		if string(raw) != wire {
			t.Fatalf("wire mismatch: got=%s want=%s", raw, wire)
		}
		var out ConsoleRequest
		if err := json.Unmarshal(raw, &out); err != nil || out.Kind != kind {
			t.Fatalf("round-trip %s: %+v err=%v", kind, out, err)
		}
	}
	var out ConsoleRequest
	if err := json.Unmarshal([]byte(`{"Config":"Set"}`), &out); !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("expected ErrUnknownVariant, got %v", err)
	}
	if err := json.Unmarshal([]byte(`{"Poll":[1]}`), &out); !errors.Is(err, ErrInvalidEnvelope) {
		t.Fatalf("poll with a body: expected ErrInvalidEnvelope, got %v", err)
	}
}

func TestBinaryNumber(t *testing.T) {
	testlog.Start(t)
	n := BinaryNumberFromBytes(1536)
	if n.Bracket != ScaleKiB || n.Amount != 1.5 {
		t.Fatalf("unexpected number: %+v", n)
	}
	if n.Bytes() != 1536 {
		t.Fatalf("unexpected bytes: %d", n.Bytes())
	}
	if n.String() != "1.500 KiBs" {
		t.Fatalf("unexpected string: %q", n.String())
	}
	if s := BinaryNumberFromBytes(1).String(); s != "1.000 Byte" {
		t.Fatalf("unexpected singular string: %q", s)
	}
	if _, err := NewUtilization(101); err == nil {
		t.Fatalf("expected utilization range error")
	}
}

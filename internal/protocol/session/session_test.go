package session

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/regis/internal/address"
	"github.com/danmuck/regis/internal/protocol/frame"
	"github.com/danmuck/regis/internal/protocol/message"
	"github.com/danmuck/regis/internal/protocol/schema"
	"github.com/danmuck/regis/internal/testutil/testlog"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ConnectTimeout = time.Second
	cfg.ReadTimeout = 2 * time.Second
	cfg.WriteTimeout = 2 * time.Second
	cfg.Backoff.InitialDelay = time.Millisecond
	cfg.Backoff.MaxDelay = 5 * time.Millisecond
	cfg.Backoff.Jitter = false
	return cfg
}

func pipePair(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	a, b := net.Pipe()
	ca, cb := NewConn(a, testConfig()), NewConn(b, testConfig())
	t.Cleanup(func() {
		_ = ca.Close()
		_ = cb.Close()
	})
	return ca, cb
}

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
	}
	cases := map[int]time.Duration{
		0: 250 * time.Millisecond,
		1: 250 * time.Millisecond,
		2: 500 * time.Millisecond,
		3: time.Second,
		6: 5 * time.Second,
	}
	for attempt, want := range cases {
		if got := NextBackoffDelay(cfg, attempt, nil); got != want {
			t.Fatalf("attempt%d got=%v want=%v", attempt, got, want)
		}
	}
}

func TestNextBackoffDelayJitterBounds(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 2.0, Jitter: true}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 64; i++ {
		got := NextBackoffDelay(cfg, 2, rng)
		if got < 100*time.Millisecond || got >= 300*time.Millisecond {
			t.Fatalf("jittered delay out of range: %v", got)
		}
	}
	if got := NextBackoffDelay(BackoffConfig{}, 4, rng); got != 0 {
		t.Fatalf("zero initial delay got=%v", got)
	}
}

func TestSendReceiveOverPipe(t *testing.T) {
	testlog.Start(t)
	client, server := pipePair(t)
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() {
		errc <- Send(ctx, client, schema.MetricsRequest(3))
	}()
	req, err := Receive[schema.Request](ctx, server)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("send: %v", err)
	}
	if req.Kind != schema.RequestMetrics || req.Count != 3 {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestExchangePairsResponses(t *testing.T) {
	testlog.Start(t)
	client, server := pipePair(t)
	ctx := context.Background()

	go func() {
		for {
			req, err := Receive[schema.Request](ctx, server)
			if err != nil {
				return
			}
			snap := schema.CollectedMetrics{ProcCount: &schema.ProcessCount{Count: uint64(len(req.Kind))}}
			if err := Send(ctx, server, schema.StatusResponse(snap)); err != nil {
				return
			}
		}
	}()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := Exchange[schema.Request, schema.Response](ctx, client, schema.StatusRequest())
			if err != nil {
				errs <- err
				return
			}
			if resp.Status == nil || resp.Status.Info.ProcCount == nil || resp.Status.Info.ProcCount.Count != 6 {
				errs <- errors.New("malformed status response")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("exchange: %v", err)
	}
}

func TestDecodeFailureKeepsConnUsable(t *testing.T) {
	testlog.Start(t)
	client, server := pipePair(t)
	ctx := context.Background()

	go func() {
		_ = client.SendBuffer(ctx, []byte("not json"))
		_ = Send(ctx, client, schema.StatusRequest())
	}()
	if _, err := Receive[schema.Request](ctx, server); !errors.Is(err, message.ErrDeserialization) {
		t.Fatalf("expected deserialization error, got %v", err)
	}
	if server.Broken() {
		t.Fatalf("decode failure must not retire the connection")
	}
	req, err := Receive[schema.Request](ctx, server)
	if err != nil {
		t.Fatalf("second receive: %v", err)
	}
	if req.Kind != schema.RequestStatus {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestCancelledReceiveRetiresConn(t *testing.T) {
	testlog.Start(t)
	_, server := pipePair(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := server.ReceiveBuffer(ctx)
	if !errors.Is(err, frame.ErrCancelled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if !server.Broken() {
		t.Fatalf("expected broken connection")
	}
	if _, err := server.ReceiveBuffer(context.Background()); !errors.Is(err, ErrConnBroken) {
		t.Fatalf("expected ErrConnBroken, got %v", err)
	}
	if err := server.SendBuffer(context.Background(), nil); !errors.Is(err, ErrConnBroken) {
		t.Fatalf("expected ErrConnBroken on send, got %v", err)
	}
}

func TestReadTimeoutSurfacesDeadline(t *testing.T) {
	testlog.Start(t)
	a, b := net.Pipe()
	defer a.Close()
	cfg := testConfig()
	cfg.ReadTimeout = 20 * time.Millisecond
	conn := NewConn(b, cfg)
	defer conn.Close()

	_, err := conn.ReceiveBuffer(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestClosedConnRejectsUse(t *testing.T) {
	testlog.Start(t)
	client, _ := pipePair(t)
	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := Send(context.Background(), client, schema.StatusRequest()); !errors.Is(err, ErrConnClosed) {
		t.Fatalf("expected ErrConnClosed, got %v", err)
	}
}

func TestDialConnectsToListener(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	ep, err := address.ParseEndpoint("127.0.0.1", uint16(port))
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	conn, err := Dial(context.Background(), ep, testConfig())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	select {
	case c := <-accepted:
		_ = c.Close()
	case <-time.After(2 * time.Second):
		t.Fatalf("listener never accepted")
	}
}

func TestDialExhaustsAttempts(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	ep, err := address.ParseEndpoint("127.0.0.1", uint16(port))
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	cfg := testConfig()
	cfg.MaxConnectAttempts = 2
	if _, err := Dial(context.Background(), ep, cfg); err == nil {
		t.Fatalf("expected dial failure")
	}
}

func TestDialHonorsCancelledContext(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ep, err := address.ParseEndpoint("127.0.0.1", 1)
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	if _, err := Dial(ctx, ep, testConfig()); !errors.Is(err, frame.ErrCancelled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{gate: make(chan struct{})}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

type panicSink struct {
	calls chan string
}

func (s *panicSink) Emit(_ context.Context, e Event) {
	s.calls <- e.Type
	if e.Type == "boom" {
		panic("sink failure")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{}, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{Type: "ignored"})
	d.Close()
	if d.Dropped() != 0 || d.Delivered() != 0 {
		t.Fatal("expected zero counters on nil dispatcher")
	}
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink, nil)
	defer d.Close()

	for _, typ := range []string{"register", "login_success", "logout"} {
		d.Emit(context.Background(), Event{Type: typ})
	}

	for _, want := range []string{"register", "login_success", "logout"} {
		select {
		case got := <-sink.Events():
			if got.Type != want {
				t.Fatalf("event = %q, want %q", got.Type, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestDropIfFullDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink, nil)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{Type: "e1"})
	d.Emit(context.Background(), Event{Type: "e2"})

	start := time.Now()
	d.Emit(context.Background(), Event{Type: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestBlockingEmitWaitsForSpace(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink, nil)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{Type: "e1"})
	d.Emit(context.Background(), Event{Type: "e2"})

	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), Event{Type: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestBlockingEmitHonorsContext(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink, nil)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{Type: "e1"})
	d.Emit(context.Background(), Event{Type: "e2"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	d.Emit(ctx, Event{Type: "e3"})
	if d.Dropped() != 1 {
		t.Fatalf("Dropped() = %d, want 1", d.Dropped())
	}
}

func TestCloseDrainsBufferedEvents(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink, nil)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{Type: "e"})
	}
	d.Close()
	d.Close()

	if got := d.Delivered(); got != 10 {
		t.Fatalf("Delivered() = %d, want 10", got)
	}
	d.Emit(context.Background(), Event{Type: "after-close"})
	if got := len(sink.Events()); got != 10 {
		t.Fatalf("sink holds %d events, want 10", got)
	}
}

func TestSinkPanicDoesNotStopDelivery(t *testing.T) {
	sink := &panicSink{calls: make(chan string, 4)}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink, nil)
	defer d.Close()

	d.Emit(context.Background(), Event{Type: "boom"})
	d.Emit(context.Background(), Event{Type: "after"})

	for _, want := range []string{"boom", "after"} {
		select {
		case got := <-sink.calls:
			if got != want {
				t.Fatalf("call = %q, want %q", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{Type: "login_success", UserID: 7, IP: "127.0.0.1", Success: true})
	sink.Emit(context.Background(), Event{Type: "login_failure", Error: "invalid_credentials"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}

	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if first.Type != "login_success" || first.UserID != 7 || !first.Success {
		t.Fatalf("unexpected first event: %+v", first)
	}
	if !strings.Contains(lines[1], `"error":"invalid_credentials"`) {
		t.Fatalf("expected error code in second line: %s", lines[1])
	}
}

func TestSlogSinkLevels(t *testing.T) {
	var buf syncBuffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := NewSlogSink(logger)

	sink.Emit(context.Background(), Event{Type: "logout", UserID: 3, Success: true})
	sink.Emit(context.Background(), Event{Type: "login_failure", Error: "invalid_credentials"})

	out := buf.String()
	if !strings.Contains(out, `"level":"INFO"`) || !strings.Contains(out, `"event_type":"logout"`) {
		t.Fatalf("expected info record for success: %s", out)
	}
	if !strings.Contains(out, `"level":"WARN"`) || !strings.Contains(out, `"error":"invalid_credentials"`) {
		t.Fatalf("expected warn record for failure: %s", out)
	}
}

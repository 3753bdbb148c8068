package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/hemanthhhhhh/API-Server/internal/broker"
	"github.com/hemanthhhhhh/API-Server/internal/domain"
	"github.com/hemanthhhhhh/API-Server/internal/ws"
)

type recordingHub struct {
	mu     sync.Mutex
	frames map[string][][]byte
	online map[string]int
}

func newRecordingHub() *recordingHub {
	return &recordingHub{frames: map[string][][]byte{}, online: map[string]int{}}
}

func (h *recordingHub) Broadcast(room string, payload []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames[room] = append(h.frames[room], payload)
	return h.online[room]
}

func (h *recordingHub) count(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.frames[room])
}

func (h *recordingHub) data(t *testing.T, room string, i int) any {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	var frame ws.Frame
	if err := json.Unmarshal(h.frames[room][i], &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if frame.Event != ws.EventMessage {
		t.Fatalf("expected message event, got %q", frame.Event)
	}
	var v any
	if err := json.Unmarshal(frame.Data, &v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return v
}

type fakeStream struct {
	messages chan domain.LogMessage
	fail     chan error
}

func newFakeStream() *fakeStream {
	return &fakeStream{messages: make(chan domain.LogMessage, 8), fail: make(chan error, 1)}
}

func (s *fakeStream) Receive(ctx context.Context) (domain.LogMessage, error) {
	select {
	case <-ctx.Done():
		return domain.LogMessage{}, ctx.Err()
	case err := <-s.fail:
		return domain.LogMessage{}, err
	case msg := <-s.messages:
		return msg, nil
	}
}

func (s *fakeStream) Close() error { return nil }

type fakeSource struct {
	mu       sync.Mutex
	streams  []*fakeStream
	patterns []string
	subs     chan *fakeStream
}

func newFakeSource(streams ...*fakeStream) *fakeSource {
	return &fakeSource{streams: streams, subs: make(chan *fakeStream, len(streams))}
}

func (f *fakeSource) PSubscribe(ctx context.Context, pattern string) (broker.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patterns = append(f.patterns, pattern)
	if len(f.streams) == 0 {
		return nil, errors.New("no more streams")
	}
	s := f.streams[0]
	f.streams = f.streams[1:]
	f.subs <- s
	return s, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandleForwardsJSONToSlugRoom(t *testing.T) {
	hub := newRecordingHub()
	r := New(nil, hub, Options{}, quietLogger())

	r.Handle(domain.LogMessage{Channel: "logs:abc123", Payload: []byte(`{"step":"clone"}`)})

	if hub.count("abc123") != 1 {
		t.Fatalf("expected one frame for abc123, got %d", hub.count("abc123"))
	}
	got := hub.data(t, "abc123", 0)
	if !reflect.DeepEqual(got, map[string]any{"step": "clone"}) {
		t.Fatalf("unexpected data %v", got)
	}
}

func TestHandleWrapsNonJSONPayload(t *testing.T) {
	hub := newRecordingHub()
	r := New(nil, hub, Options{}, quietLogger())

	r.Handle(domain.LogMessage{Channel: "logs:abc123", Payload: []byte("build started")})

	want := map[string]any{"error": domain.NonJSONMessage, "rawMessage": "build started"}
	if got := hub.data(t, "abc123", 0); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected envelope %v", got)
	}
}

func TestHandleWithoutViewers(t *testing.T) {
	hub := newRecordingHub()
	r := New(nil, hub, Options{}, quietLogger())

	if n := r.Handle(domain.LogMessage{Channel: "logs:nobody", Payload: []byte(`1`)}); n != 0 {
		t.Fatalf("expected zero deliveries, got %d", n)
	}
}

func TestPrefixFromPattern(t *testing.T) {
	r := New(nil, newRecordingHub(), Options{Pattern: "build:*"}, quietLogger())
	if r.Prefix() != "build:" {
		t.Fatalf("unexpected prefix %q", r.Prefix())
	}
}

func TestRunSurvivesMalformedAndResubscribes(t *testing.T) {
	first, second := newFakeStream(), newFakeStream()
	source := newFakeSource(first, second)
	hub := newRecordingHub()
	r := New(source, hub, Options{InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	<-source.subs
	first.messages <- domain.LogMessage{Channel: "logs:p1", Payload: []byte("not json")}
	first.messages <- domain.LogMessage{Channel: "logs:p1", Payload: []byte(`{"n":1}`)}
	waitFor(t, func() bool { return hub.count("p1") == 2 })

	first.fail <- errors.New("connection reset")
	<-source.subs
	second.messages <- domain.LogMessage{Channel: "logs:p1", Payload: []byte(`{"n":2}`)}
	waitFor(t, func() bool { return hub.count("p1") == 3 })

	if got := hub.data(t, "p1", 2); !reflect.DeepEqual(got, map[string]any{"n": float64(2)}) {
		t.Fatalf("unexpected data after resubscribe %v", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop after cancel")
	}

	source.mu.Lock()
	defer source.mu.Unlock()
	for _, p := range source.patterns {
		if p != DefaultPattern {
			t.Fatalf("unexpected pattern %q", p)
		}
	}
}

func TestRunStopsWhileWaitingToReconnect(t *testing.T) {
	source := newFakeSource()
	r := New(source, newRecordingHub(), Options{InitialBackoff: time.Hour, MaxBackoff: time.Hour}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	waitFor(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return len(source.patterns) > 0
	})
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop during backoff")
	}
}

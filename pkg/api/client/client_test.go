package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestDeploySendsRepositoryAndSlug(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/project" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"queued","data":{"projectSlug":"abc123","url":"http://abc123.localhost:8000"}}`))
	}))
	defer srv.Close()

	cli, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	dep, err := cli.Deploy(context.Background(), "https://github.com/x/y", "abc123")
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if got["gitURL"] != "https://github.com/x/y" || got["slug"] != "abc123" {
		t.Fatalf("unexpected body %v", got)
	}
	if dep.ProjectSlug != "abc123" || dep.URL != "http://abc123.localhost:8000" {
		t.Fatalf("unexpected deployment %+v", dep)
	}
}

func TestDeployOmitsEmptySlug(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"status":"queued","data":{"projectSlug":"x","url":"u"}}`))
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	if _, err := cli.Deploy(context.Background(), "https://github.com/x/y", " "); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if _, ok := got["slug"]; ok {
		t.Fatalf("slug should be omitted, got %v", got)
	}
}

func TestDeployReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"status":"error","error":"dispatch: submission failed"}`))
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	_, err := cli.Deploy(context.Background(), "https://github.com/x/y", "")
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadGateway || apiErr.Message != "dispatch: submission failed" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestRealtimeURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:9000":    "ws://localhost:9000/ws",
		"https://api.example.com/": "wss://api.example.com/ws",
		"localhost:9000":           "ws://localhost:9000/ws",
	}
	for base, want := range cases {
		cli, err := New(base)
		if err != nil {
			t.Fatalf("new client %q: %v", base, err)
		}
		if got := cli.RealtimeURL(); got != want {
			t.Fatalf("RealtimeURL(%q) = %q, want %q", base, got, want)
		}
	}
}

func TestTailSubscribesAndDeliversMessages(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var sub frame
		if err := conn.ReadJSON(&sub); err != nil || sub.Event != "subscribe" || sub.Channel != "abc123" {
			return
		}
		_ = conn.WriteJSON(frame{Event: "message", Data: json.RawMessage(`"Joined abc123"`)})
		_ = conn.WriteJSON(frame{Event: "message", Data: json.RawMessage(`{"step":"clone"}`)})
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	var got []string
	err := cli.Tail(context.Background(), "abc123", func(data json.RawMessage) error {
		got = append(got, string(data))
		return nil
	})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	want := []string{`"Joined abc123"`, `{"step":"clone"}`}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected messages %v", got)
	}
}

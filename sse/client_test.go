package sse

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func sseServer(t *testing.T, handler func(w http.ResponseWriter, flush func())) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		handler(w, func() {
			if flusher != nil {
				flusher.Flush()
			}
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_NextMessage(t *testing.T) {
	srv := sseServer(t, func(w http.ResponseWriter, flush func()) {
		fmt.Fprint(w, "data: first\n\n")
		fmt.Fprint(w, "event: heartbeat\ndata: skip\n\n")
		fmt.Fprint(w, "data: second\n\n")
		flush()
	})

	s, err := NewClient(nil, time.Second).Dial(t.Context(), srv.URL)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer s.Close()

	for _, want := range []string{"first", "second"} {
		got, err := s.NextMessage()
		if err != nil {
			t.Fatalf("NextMessage: %v", err)
		}
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
	if _, err := s.NextMessage(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestClient_CloseUnblocksNext(t *testing.T) {
	release := make(chan struct{})
	srv := sseServer(t, func(w http.ResponseWriter, flush func()) {
		fmt.Fprint(w, ": open\n\n")
		flush()
		<-release
	})
	defer close(release)

	s, err := NewClient(nil, time.Second).Dial(t.Context(), srv.URL)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := s.Next()
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	select {
	case err := <-errc:
		if err == nil {
			t.Error("expected error after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after Close")
	}
}

func TestClient_DialErrors(t *testing.T) {
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()

	plain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	}))
	defer plain.Close()

	c := NewClient(nil, time.Second)

	_, err := c.Dial(t.Context(), notFound.URL)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Errorf("404: got %v", err)
	}

	if _, err := c.Dial(t.Context(), plain.URL); !errors.Is(err, ErrNotEventStream) {
		t.Errorf("json: got %v", err)
	}

	if _, err := c.Dial(t.Context(), "ws://example.invalid/stream"); err == nil {
		t.Error("expected scheme error")
	}
}

func TestClient_ConnectTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(nil, 50*time.Millisecond).Dial(t.Context(), srv.URL)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

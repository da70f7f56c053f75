// Package sse is a minimal server-sent events client.
//
// It opens one long-lived GET and parses the event-stream format. There is no
// automatic reconnection: the caller decides what a closed stream means.
package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/pithecene-io/fleetview/iox"
)

// DefaultConnectTimeout bounds the wait for response headers.
const DefaultConnectTimeout = 10 * time.Second

// ErrNotEventStream is returned when the server answers with another
// content type.
var ErrNotEventStream = errors.New("response is not text/event-stream")

// StatusError is returned when the server answers the open request with a
// non-2xx status.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("event stream: unexpected status %s", e.Status)
}

// Client opens event streams.
type Client struct {
	httpClient     *http.Client
	connectTimeout time.Duration
}

// NewClient creates a client. A nil httpClient uses a client without an
// overall timeout, since streams are long-lived.
func NewClient(httpClient *http.Client, connectTimeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	return &Client{httpClient: httpClient, connectTimeout: connectTimeout}
}

// Dial opens the stream at address. The returned Stream must be closed.
func (c *Client) Dial(ctx context.Context, address string) (*Stream, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("invalid stream address %q: %w", address, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid stream address %q: scheme must be http or https", address)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// Headers must arrive within the connect timeout; the body may then
	// stay open indefinitely.
	timer := time.AfterFunc(c.connectTimeout, cancel)
	resp, err := c.httpClient.Do(req)
	stopped := timer.Stop()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open event stream: %w", err)
	}
	if !stopped {
		iox.DrainClose(resp.Body)
		cancel()
		return nil, fmt.Errorf("open event stream: %w", context.DeadlineExceeded)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		iox.DrainClose(resp.Body)
		cancel()
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "text/event-stream" {
		iox.DrainClose(resp.Body)
		cancel()
		return nil, fmt.Errorf("%w: got %q", ErrNotEventStream, resp.Header.Get("Content-Type"))
	}

	return newStream(resp.Body, cancel), nil
}

// Stream is an open event stream. Next must be called from one goroutine;
// Close may be called from any goroutine and unblocks a pending Next.
type Stream struct {
	body   io.ReadCloser
	cancel context.CancelFunc
	parser *Parser
}

func newStream(body io.ReadCloser, cancel context.CancelFunc) *Stream {
	return &Stream{body: body, cancel: cancel, parser: NewParser(body)}
}

// Next returns the next dispatched event. It returns io.EOF when the server
// ends the stream.
func (s *Stream) Next() (Event, error) {
	return s.parser.Next()
}

// NextMessage returns the data of the next event of the default "message"
// type, skipping named events.
func (s *Stream) NextMessage() (string, error) {
	for {
		ev, err := s.Next()
		if err != nil {
			return "", err
		}
		if ev.Type == DefaultEventType {
			return ev.Data, nil
		}
	}
}

// LastEventID returns the last seen event id.
func (s *Stream) LastEventID() string {
	return s.parser.LastEventID()
}

// Close ends the stream. Safe to call more than once.
func (s *Stream) Close() error {
	s.cancel()
	return s.body.Close()
}

package sse

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"
)

// DefaultEventType is the type of events without an event field.
const DefaultEventType = "message"

// maxLineSize caps a single event-stream line.
const maxLineSize = 1024 * 1024

// Event is one dispatched server-sent event.
type Event struct {
	Type string
	Data string
	ID   string
	// Retry is the server's requested reconnection delay, if it sent one
	// with this event. Recorded only.
	Retry time.Duration
}

// Parser reads events from an event-stream body.
type Parser struct {
	scanner     *bufio.Scanner
	first       bool
	lastEventID string
}

// NewParser wraps r.
func NewParser(r io.Reader) *Parser {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(scanLines)
	return &Parser{scanner: scanner, first: true}
}

// LastEventID returns the id carried by the most recent dispatched event,
// or set by an id field since.
func (p *Parser) LastEventID() string {
	return p.lastEventID
}

// Next blocks until an event is dispatched. An event still being assembled
// when the stream ends is discarded and io.EOF returned.
func (p *Parser) Next() (Event, error) {
	var (
		eventType string
		data      strings.Builder
		hasData   bool
		retry     time.Duration
	)

	for p.scanner.Scan() {
		line := p.scanner.Text()
		if p.first {
			line = strings.TrimPrefix(line, "\ufeff")
			p.first = false
		}

		if line == "" {
			if !hasData {
				eventType, retry = "", 0
				continue
			}
			if eventType == "" {
				eventType = DefaultEventType
			}
			return Event{
				Type:  eventType,
				Data:  strings.TrimSuffix(data.String(), "\n"),
				ID:    p.lastEventID,
				Retry: retry,
			}, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if found {
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "event":
			eventType = value
		case "data":
			data.WriteString(value)
			data.WriteByte('\n')
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				p.lastEventID = value
			}
		case "retry":
			if ms, err := strconv.ParseUint(value, 10, 63); err == nil {
				retry = time.Duration(ms) * time.Millisecond
			}
		}
	}

	if err := p.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

// scanLines splits on LF, CRLF or a lone CR.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		// A trailing CR may be the first half of CRLF.
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func collect(t *testing.T, input string) []Event {
	t.Helper()
	p := NewParser(strings.NewReader(input))
	var out []Event
	for {
		ev, err := p.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, ev)
	}
}

func TestParser(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Event
	}{
		{
			name:  "single message",
			input: "data: speed=42\n\n",
			want:  []Event{{Type: "message", Data: "speed=42"}},
		},
		{
			name:  "multi-line data joined",
			input: "data: a\ndata: b\n\n",
			want:  []Event{{Type: "message", Data: "a\nb"}},
		},
		{
			name:  "named event",
			input: "event: ping\ndata: x\n\n",
			want:  []Event{{Type: "ping", Data: "x"}},
		},
		{
			name:  "comments ignored",
			input: ": keepalive\n\ndata: y\n\n",
			want:  []Event{{Type: "message", Data: "y"}},
		},
		{
			name:  "no data not dispatched",
			input: "event: ping\n\ndata: z\n\n",
			want:  []Event{{Type: "message", Data: "z"}},
		},
		{
			name:  "crlf and cr line endings",
			input: "data: one\r\n\r\ndata: two\r\r",
			want:  []Event{{Type: "message", Data: "one"}, {Type: "message", Data: "two"}},
		},
		{
			name:  "no space after colon",
			input: "data:tight\n\n",
			want:  []Event{{Type: "message", Data: "tight"}},
		},
		{
			name:  "id and retry",
			input: "id: 7\nretry: 1500\ndata: r\n\n",
			want:  []Event{{Type: "message", Data: "r", ID: "7", Retry: 1500 * time.Millisecond}},
		},
		{
			name:  "incomplete trailing event discarded",
			input: "data: done\n\ndata: partial\n",
			want:  []Event{{Type: "message", Data: "done"}},
		},
		{
			name:  "leading bom stripped",
			input: "\ufeffdata: bom\n\n",
			want:  []Event{{Type: "message", Data: "bom"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(t, tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events %+v, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("event %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParser_LastEventIDPersists(t *testing.T) {
	p := NewParser(strings.NewReader("id: 1\ndata: a\n\ndata: b\n\n"))

	first, err := p.Next()
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.Next()
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != "1" || second.ID != "1" {
		t.Errorf("ids = %q, %q; want both 1", first.ID, second.ID)
	}
	if p.LastEventID() != "1" {
		t.Errorf("LastEventID = %q", p.LastEventID())
	}
}

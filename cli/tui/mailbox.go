package tui

import tea "github.com/charmbracelet/bubbletea"

// Mailbox is a single-slot channel that keeps only the newest value.
// Push never blocks, so it is safe to call from observers running on the
// coordinator's or the viewer's goroutines.
type Mailbox[T any] struct {
	ch chan T
}

// NewMailbox creates an empty mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{ch: make(chan T, 1)}
}

// Push replaces any unread value with v.
func (m *Mailbox[T]) Push(v T) {
	for {
		select {
		case m.ch <- v:
			return
		default:
		}
		select {
		case <-m.ch:
		default:
		}
	}
}

// C returns the receive side.
func (m *Mailbox[T]) C() <-chan T {
	return m.ch
}

// waitFor blocks until the next value arrives and wraps it as a message.
func waitFor[T any](ch <-chan T, wrap func(T) tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		return wrap(v)
	}
}

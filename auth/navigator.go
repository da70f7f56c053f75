package auth

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os/exec"
	"runtime"
)

// Navigator takes the user to an external address.
type Navigator interface {
	Navigate(ctx context.Context, target string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, target string) error

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(ctx context.Context, target string) error {
	return f(ctx, target)
}

// BrowserNavigator opens the address in the system browser.
type BrowserNavigator struct {
	goos  string
	start func(name string, args ...string) error
}

// NewBrowserNavigator returns a navigator for the running OS.
func NewBrowserNavigator() *BrowserNavigator {
	return &BrowserNavigator{goos: runtime.GOOS, start: startDetached}
}

// Navigate launches the platform opener. It does not wait for the browser.
func (b *BrowserNavigator) Navigate(_ context.Context, target string) error {
	if err := validateTarget(target); err != nil {
		return err
	}
	name, args := openerCommand(b.goos, target)
	if err := b.start(name, args...); err != nil {
		return fmt.Errorf("launch %s: %w", name, err)
	}
	return nil
}

func openerCommand(goos, target string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{target}
	case "windows":
		return "cmd", []string{"/c", "start", "", target}
	default:
		return "xdg-open", []string{target}
	}
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// PrintNavigator writes the address for the user to open by hand.
type PrintNavigator struct {
	W io.Writer
}

// Navigate implements Navigator.
func (p PrintNavigator) Navigate(_ context.Context, target string) error {
	if err := validateTarget(target); err != nil {
		return err
	}
	_, err := fmt.Fprintf(p.W, "Open this URL in your browser to continue:\n\n  %s\n\n", target)
	return err
}

func validateTarget(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("invalid authorize URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid authorize URL %q: scheme must be http or https", target)
	}
	return nil
}

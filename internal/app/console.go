package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/aussiebroadwan/authsession/pkg/webauth"
)

// errReadAbandoned is returned to a read whose caller stopped waiting.
var errReadAbandoned = errors.New("console read abandoned")

// Console is the terminal the CLI talks through. A single goroutine reads
// input lines, so prompts and pasted callbacks share one buffer and a read
// that is given up on leaves the next line for the next prompt.
type Console struct {
	in  *bufio.Reader
	out io.Writer

	once    sync.Once
	lines   chan string
	readErr error // set before lines is closed
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out, lines: make(chan string)}
}

func (c *Console) Printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// Prompt prints label and returns the next trimmed input line.
func (c *Console) Prompt(label string) (string, error) {
	c.Printf("%s: ", label)
	return c.readLine(nil)
}

// readLine returns the next line, or errReadAbandoned once stop is closed.
func (c *Console) readLine(stop <-chan struct{}) (string, error) {
	c.once.Do(func() { go c.pump() })

	select {
	case <-stop:
		return "", errReadAbandoned
	default:
	}

	select {
	case line, ok := <-c.lines:
		if !ok {
			return "", c.readErr
		}
		return strings.TrimSpace(line), nil
	case <-stop:
		return "", errReadAbandoned
	}
}

func (c *Console) pump() {
	for {
		line, err := c.in.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && line != "" {
				c.lines <- line
			}
			c.readErr = err
			close(c.lines)
			return
		}
		c.lines <- line
	}
}

// ReadCallback prompts for a pasted redirect URL. An empty line is
// webauth.ErrUserCanceled.
func (c *Console) ReadCallback(scheme string) (*url.URL, error) {
	return c.readCallback(scheme, nil)
}

func (c *Console) readCallback(scheme string, stop <-chan struct{}) (*url.URL, error) {
	c.Printf("Paste the %s:// URL you were redirected to (empty to cancel): ", scheme)
	line, err := c.readLine(stop)
	if err != nil {
		return nil, err
	}
	if line == "" {
		return nil, webauth.ErrUserCanceled
	}

	u, err := url.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("callback is not a URL: %w", err)
	}
	if scheme != "" && !strings.EqualFold(u.Scheme, scheme) {
		return nil, fmt.Errorf("callback scheme %q, want %q", u.Scheme, scheme)
	}
	return u, nil
}

// SessionFactory returns a webauth.SessionFactory that asks the user to
// open the start URL in a browser and paste back the callback.
func (c *Console) SessionFactory() webauth.SessionFactory {
	return webauth.SessionFactoryFunc(func(req webauth.SessionRequest, done webauth.CompletionFunc) webauth.Session {
		return &consoleSession{console: c, req: req, done: done, stop: make(chan struct{})}
	})
}

type consoleSession struct {
	console *Console
	req     webauth.SessionRequest
	done    webauth.CompletionFunc

	stopOnce sync.Once
	stop     chan struct{}
}

func (s *consoleSession) Start() error {
	if s.req.URL == nil {
		return errors.New("no start URL")
	}

	s.console.Printf("Open this URL in your browser to sign in:\n\n  %s\n\n", s.req.URL)
	if s.req.PreferEphemeral {
		s.console.Printf("A private window avoids reusing an existing browser session.\n")
	}

	go func() {
		u, err := s.console.readCallback(s.req.CallbackScheme, s.stop)
		if errors.Is(err, errReadAbandoned) {
			return
		}
		s.done(u, err)
	}()
	return nil
}

// Cancel completes the session. The pending read gives up without taking
// a line, so later prompts still see the next input.
func (s *consoleSession) Cancel() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.done(nil, webauth.ErrUserCanceled)
}

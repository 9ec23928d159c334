package console

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Console serializes all terminal output.
type Console struct {
	mu      sync.Mutex
	term    Terminal
	reading bool
	closed  bool
}

// New returns a console writing to term.
func New(term Terminal) *Console {
	return &Console{term: term}
}

// ReadLine reads one line with prompt. Output from other goroutines may
// be printed while it waits.
func (c *Console) ReadLine(prompt string) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", io.EOF
	}
	c.term.SetPrompt(prompt)
	c.reading = true
	c.mu.Unlock()

	line, err := c.term.Readline()

	c.mu.Lock()
	c.reading = false
	c.mu.Unlock()
	return line, err
}

// Println writes a line from the input goroutine.
func (c *Console) Println(args ...any) {
	c.print(fmt.Sprintln(args...))
}

// Printf writes formatted output from the input goroutine.
func (c *Console) Printf(format string, args ...any) {
	c.print(fmt.Sprintf(format, args...))
}

// Async prints text that did not originate from the current command. While
// a line is being edited the prompt is erased first and redrawn after.
func (c *Console) Async(text string) {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	c.print(text)
}

// Asyncf is Async with formatting.
func (c *Console) Asyncf(format string, args ...any) {
	c.Async(fmt.Sprintf(format, args...))
}

func (c *Console) print(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.reading {
		c.term.Clean()
		_, _ = io.WriteString(c.term, text)
		c.term.Refresh()
		return
	}
	_, _ = io.WriteString(c.term, text)
}

// Writer returns an io.Writer that prints through Async, for log handlers.
func (c *Console) Writer() io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		c.print(string(p))
		return len(p), nil
	})
}

// Close closes the terminal. Later output is discarded.
func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.term.Close()
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

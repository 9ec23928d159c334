package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/chzyer/readline"
)

// ErrInterrupt is returned by ReadLine when the user presses Ctrl-C.
var ErrInterrupt = errors.New("interrupt")

// Terminal is a line editor.
type Terminal interface {
	// Readline shows the prompt and reads one line. It returns
	// ErrInterrupt on Ctrl-C and io.EOF at end of input.
	Readline() (string, error)

	// SetPrompt changes the prompt for the next read.
	SetPrompt(prompt string)

	// Clean erases the prompt line.
	Clean()

	// Refresh redraws the prompt and the partial input.
	Refresh()

	// Write writes output without touching the prompt.
	io.Writer

	Close() error
}

// ReadlineConfig configures NewReadline.
type ReadlineConfig struct {
	Prompt      string
	HistoryFile string
	Commands    []string

	Stdin  io.ReadCloser
	Stdout io.Writer
}

// readlineTerminal adapts chzyer/readline.
type readlineTerminal struct {
	rl  *readline.Instance
	out io.Writer
}

// NewReadline returns a terminal backed by readline with history and
// completion of the given command names.
func NewReadline(cfg ReadlineConfig) (Terminal, error) {
	items := make([]readline.PrefixCompleterInterface, len(cfg.Commands))
	for i, c := range cfg.Commands {
		items[i] = readline.PcItem(c)
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          cfg.Prompt,
		HistoryFile:     cfg.HistoryFile,
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           cfg.Stdin,
		Stdout:          cfg.Stdout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	out := cfg.Stdout
	if out == nil {
		out = readline.Stdout
	}
	return &readlineTerminal{rl: rl, out: out}, nil
}

func (t *readlineTerminal) Readline() (string, error) {
	line, err := t.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return line, ErrInterrupt
	}
	return line, err
}

func (t *readlineTerminal) SetPrompt(p string)          { t.rl.SetPrompt(p) }
func (t *readlineTerminal) Clean()                      { t.rl.Clean() }
func (t *readlineTerminal) Refresh()                    { t.rl.Refresh() }
func (t *readlineTerminal) Write(p []byte) (int, error) { return t.out.Write(p) }
func (t *readlineTerminal) Close() error                { return t.rl.Close() }

// IsTerminal reports whether standard input and output are a terminal.
func IsTerminal() bool { return readline.DefaultIsTerminal() }

// LineTerminal reads plain lines without editing, for input that is not a
// terminal such as a pipe or a script. The prompt is written before each
// read.
type LineTerminal struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
	out     io.Writer
	prompt  string
	closer  io.Closer
	closed  atomic.Bool
}

// NewLineTerminal reads lines from in and writes to out.
func NewLineTerminal(in io.Reader, out io.Writer, prompt string) *LineTerminal {
	t := &LineTerminal{scanner: bufio.NewScanner(in), out: out, prompt: prompt}
	if c, ok := in.(io.Closer); ok {
		t.closer = c
	}
	return t
}

// Readline implements Terminal.
func (t *LineTerminal) Readline() (string, error) {
	t.mu.Lock()
	_, _ = io.WriteString(t.out, t.prompt)
	t.mu.Unlock()

	if !t.scanner.Scan() {
		if err := t.scanner.Err(); err != nil && !t.closed.Load() {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimRight(t.scanner.Text(), "\r"), nil
}

// SetPrompt implements Terminal.
func (t *LineTerminal) SetPrompt(p string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prompt = p
}

// Clean implements Terminal. Plain output cannot erase, so it starts a
// new line instead.
func (t *LineTerminal) Clean() {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.out, "\n")
}

// Refresh implements Terminal.
func (t *LineTerminal) Refresh() {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.out, t.prompt)
}

// Write implements Terminal.
func (t *LineTerminal) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.out.Write(p)
}

// Close implements Terminal. A pending Readline returns io.EOF.
func (t *LineTerminal) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

package console_test

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshnode/meshnode-go/pkg/console"
)

// recordingTerminal records terminal operations in order. Readline blocks
// until a line is sent on lines.
type recordingTerminal struct {
	mu     sync.Mutex
	ops    []string
	lines  chan string
	inRead chan struct{}
}

func newRecordingTerminal() *recordingTerminal {
	return &recordingTerminal{lines: make(chan string), inRead: make(chan struct{}, 1)}
}

func (t *recordingTerminal) record(op string) {
	t.mu.Lock()
	t.ops = append(t.ops, op)
	t.mu.Unlock()
}

func (t *recordingTerminal) Readline() (string, error) {
	t.inRead <- struct{}{}
	line, ok := <-t.lines
	if !ok {
		return "", io.EOF
	}
	return line, nil
}

func (t *recordingTerminal) SetPrompt(string) {}
func (t *recordingTerminal) Clean()           { t.record("clean") }
func (t *recordingTerminal) Refresh()         { t.record("refresh") }
func (t *recordingTerminal) Close() error     { return nil }
func (t *recordingTerminal) Write(p []byte) (int, error) {
	t.record("write:" + string(p))
	return len(p), nil
}

func (t *recordingTerminal) snapshot() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.ops...)
}

func TestAsyncWhileReading(t *testing.T) {
	term := newRecordingTerminal()
	c := console.New(term)

	done := make(chan string)
	go func() {
		line, _ := c.ReadLine("> ")
		done <- line
	}()
	<-term.inRead

	c.Async("Message from !deadbeef on channel Ops: hi")
	term.lines <- "send hello"
	assert.Equal(t, "send hello", <-done)

	assert.Equal(t, []string{
		"clean",
		"write:Message from !deadbeef on channel Ops: hi\n",
		"refresh",
	}, term.snapshot())
}

func TestPrintOutsideReadDoesNotRedraw(t *testing.T) {
	term := newRecordingTerminal()
	c := console.New(term)

	c.Printf("Sent to %s\n", "Ops")
	c.Async("late event")
	assert.Equal(t, []string{"write:Sent to Ops\n", "write:late event\n"}, term.snapshot())
}

func TestConcurrentAsyncNeverInterleaves(t *testing.T) {
	term := newRecordingTerminal()
	c := console.New(term)

	go func() { _, _ = c.ReadLine("> ") }()
	<-term.inRead

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 25 {
				c.Asyncf("g%d-%d", g, i)
			}
		}()
	}
	wg.Wait()
	close(term.lines)

	ops := term.snapshot()
	require.Len(t, ops, 8*25*3)
	for i := 0; i < len(ops); i += 3 {
		assert.Equal(t, "clean", ops[i])
		assert.True(t, strings.HasPrefix(ops[i+1], "write:g"), ops[i+1])
		assert.Equal(t, "refresh", ops[i+2])
	}
}

func TestWriterAndClose(t *testing.T) {
	var out bytes.Buffer
	term := console.NewLineTerminal(strings.NewReader(""), &out, "> ")
	c := console.New(term)

	_, err := io.WriteString(c.Writer(), "level=INFO msg=hello\n")
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	c.Println("dropped")
	_, err = c.ReadLine("> ")
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "level=INFO msg=hello\n", out.String())
}

func TestLineTerminal(t *testing.T) {
	var out bytes.Buffer
	term := console.NewLineTerminal(strings.NewReader("list\r\nexit\n"), &out, "> ")
	c := console.New(term)

	line, err := c.ReadLine("> ")
	require.NoError(t, err)
	assert.Equal(t, "list", line)
	line, err = c.ReadLine("> ")
	require.NoError(t, err)
	assert.Equal(t, "exit", line)
	_, err = c.ReadLine("> ")
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "> > > ", out.String())
}

func TestLineTerminalCloseUnblocksRead(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	term := console.NewLineTerminal(r, io.Discard, "> ")

	errc := make(chan error, 1)
	go func() {
		_, err := term.Readline()
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, term.Close())
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(2 * time.Second):
		t.Fatal("Readline still blocked after Close")
	}
}

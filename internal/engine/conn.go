package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// Conn is a line-oriented channel to a UCI engine.
type Conn interface {
	// Send writes one command line.
	Send(cmd string) error

	// Lines returns engine output, one line per value. The channel is
	// closed when the engine exits.
	Lines() <-chan string

	// Close stops the engine and releases its resources.
	Close() error
}

// Compile-time checks that the connections implement Conn.
var (
	_ Conn = (*Process)(nil)
	_ Conn = (*Pipe)(nil)
)

const quitGrace = 2 * time.Second

// Process is a Conn to an engine subprocess speaking UCI on stdio.
type Process struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	lines chan string

	mu     sync.Mutex
	w      *bufio.Writer
	closed bool
}

// StartProcess launches the engine binary at path.
func StartProcess(ctx context.Context, path string, args ...string) (*Process, error) {
	cmd := exec.CommandContext(ctx, path, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &OpError{Op: "start", Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &OpError{Op: "start", Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &OpError{Op: "start", Err: fmt.Errorf("%s: %w", path, err)}
	}

	p := &Process{
		cmd:   cmd,
		stdin: stdin,
		w:     bufio.NewWriter(stdin),
		lines: make(chan string, 64),
	}
	go p.read(stdout)
	return p, nil
}

func (p *Process) read(r io.Reader) {
	defer close(p.lines)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.lines <- scanner.Text()
	}
}

// Send writes cmd followed by a newline and flushes it.
func (p *Process) Send(cmd string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosedConn
	}
	if _, err := p.w.WriteString(cmd + "\n"); err != nil {
		return &OpError{Op: "send", Err: err}
	}
	if err := p.w.Flush(); err != nil {
		return &OpError{Op: "send", Err: err}
	}
	return nil
}

// Lines returns the engine's stdout lines.
func (p *Process) Lines() <-chan string {
	return p.lines
}

// Close asks the engine to quit and kills it if it does not exit promptly.
func (p *Process) Close() error {
	if err := p.Send("quit"); err != nil && !errors.Is(err, ErrClosedConn) {
		_ = p.cmd.Process.Kill()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosedConn
	}
	p.closed = true
	p.mu.Unlock()
	_ = p.stdin.Close()

	waitErr := make(chan error, 1)
	go func() { waitErr <- p.cmd.Wait() }()

	select {
	case err := <-waitErr:
		if err != nil {
			return &OpError{Op: "wait", Err: err}
		}
		return nil
	case <-time.After(quitGrace):
		_ = p.cmd.Process.Kill()
		<-waitErr
		return nil
	}
}

// Pipe is an in-memory Conn. Lines passed to Emit, and lines returned by
// the responder for each sent command, are delivered in order on Lines.
type Pipe struct {
	respond func(cmd string) []string

	mu     sync.Mutex
	queue  []string
	sent   []string
	closed bool
	wake   chan struct{}
	out    chan string
}

// NewPipe returns a Pipe that answers commands with respond, which may be nil.
func NewPipe(respond func(cmd string) []string) *Pipe {
	p := &Pipe{
		respond: respond,
		wake:    make(chan struct{}, 1),
		out:     make(chan string),
	}
	go p.run()
	return p
}

func (p *Pipe) run() {
	defer close(p.out)
	for {
		p.mu.Lock()
		if len(p.queue) > 0 {
			line := p.queue[0]
			p.queue = p.queue[1:]
			p.mu.Unlock()
			p.out <- line
			continue
		}
		closed := p.closed
		p.mu.Unlock()
		if closed {
			return
		}
		<-p.wake
	}
}

// Send records cmd and queues the responder's reply.
func (p *Pipe) Send(cmd string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosedConn
	}
	p.sent = append(p.sent, cmd)
	p.mu.Unlock()

	if p.respond != nil {
		p.Emit(p.respond(cmd)...)
	}
	return nil
}

// Emit queues lines as if the engine had printed them.
func (p *Pipe) Emit(lines ...string) {
	if len(lines) == 0 {
		return
	}
	p.mu.Lock()
	p.queue = append(p.queue, lines...)
	p.mu.Unlock()
	p.signal()
}

// Sent returns a copy of every command sent so far.
func (p *Pipe) Sent() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sent...)
}

// Lines returns the queued output.
func (p *Pipe) Lines() <-chan string {
	return p.out
}

// Close ends the output once queued lines are delivered.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosedConn
	}
	p.closed = true
	p.mu.Unlock()
	p.signal()
	return nil
}

func (p *Pipe) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Package client is the interactive side of the relay: it announces a name,
// forwards terminal lines and echoes what the relay broadcasts.
package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gookit/color"
)

// Exit codes for the client application.
const (
	ExitOK      = 0
	ExitSend    = 1
	ExitReceive = 2
)

// MinNameLength is the shortest display name the client accepts.
const MinNameLength = 3

type Config struct {
	ServerAddress string
	Colours       bool
}

type Client struct {
	log    *slog.Logger
	config Config
	in     io.Reader
	out    io.Writer
}

func New(log *slog.Logger, config Config, in io.Reader, out io.Writer) *Client {
	return &Client{log: log, config: config, in: in, out: &lockedWriter{w: out}}
}

// lockedWriter keeps prompts and echoed lines from interleaving mid-line.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

type result struct {
	code int
	err  error
}

// Run connects to the relay and blocks until the user ends input, the relay closes
// the stream, or ctx is cancelled. The returned code tells which path failed.
func (c *Client) Run(ctx context.Context) (int, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", c.config.ServerAddress)
	if err != nil {
		return ExitSend, fmt.Errorf("could not connect to %s: %w", c.config.ServerAddress, err)
	}
	defer func() {
		c.log.Debug("Closing connection...")
		_ = conn.Close()
	}()

	results := make(chan result, 2)
	go func() { results <- c.receive(conn) }()
	go func() { results <- c.send(conn) }()

	select {
	case <-ctx.Done():
		return ExitOK, nil
	case res := <-results:
		return res.code, res.err
	}
}

// receive echoes every line the relay sends until the stream ends.
func (c *Client) receive(conn io.Reader) result {
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			fmt.Fprintln(c.out, strings.TrimRight(line, "\r\n"))
		}
		if err == io.EOF {
			c.status("disconnected")
			return result{code: ExitOK}
		}
		if err != nil {
			return result{code: ExitReceive, err: fmt.Errorf("receive: %w", err)}
		}
	}
}

// send asks for a name, then forwards each input line.
func (c *Client) send(conn io.Writer) result {
	scanner := bufio.NewScanner(c.in)

	c.prompt("What is your name?")
	var name string
	for {
		if !scanner.Scan() {
			return c.inputEnded(scanner.Err())
		}
		name = strings.TrimSpace(scanner.Text())
		if utf8.RuneCountInString(name) >= MinNameLength {
			break
		}
		c.prompt(fmt.Sprintf("name length must be at least %d characters. Try again", MinNameLength))
	}
	if _, err := fmt.Fprintln(conn, name); err != nil {
		return result{code: ExitSend, err: fmt.Errorf("send: %w", err)}
	}

	for scanner.Scan() {
		if _, err := fmt.Fprintln(conn, strings.TrimSpace(scanner.Text())); err != nil {
			return result{code: ExitSend, err: fmt.Errorf("send: %w", err)}
		}
	}
	return c.inputEnded(scanner.Err())
}

func (c *Client) inputEnded(err error) result {
	if err != nil {
		return result{code: ExitSend, err: fmt.Errorf("reading input: %w", err)}
	}
	return result{code: ExitOK}
}

func (c *Client) prompt(msg string) {
	if c.config.Colours {
		msg = color.New(color.FgCyan, color.OpBold).Render(msg)
	}
	fmt.Fprintln(c.out, msg)
}

func (c *Client) status(msg string) {
	if c.config.Colours {
		msg = color.New(color.FgYellow).Render(msg)
	}
	fmt.Fprintln(c.out, msg)
}

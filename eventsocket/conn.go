// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package eventsocket

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// EventQueueSize bounds how many events can wait for a consumer.
	// On overflow oldest events are dropped.
	EventQueueSize = 64

	// CommandTimeout bounds every command round trip on the socket.
	CommandTimeout = 10 * time.Second
)

var (
	ErrClosed     = errors.New("eventsocket: connection closed")
	ErrAuthFailed = errors.New("eventsocket: authentication failed")
	ErrTimeout    = errors.New("eventsocket: command timeout")
)

// frame is one protocol unit: a header block and optional body of
// Content-Length bytes.
type frame struct {
	headers map[string]string
	body    []byte
}

func (f *frame) contentType() string { return f.headers["Content-Type"] }
func (f *frame) replyText() string   { return f.headers["Reply-Text"] }

// Conn is a single event socket connection to the switch. Commands are
// serialized; events are demultiplexed onto an internal queue consumed
// with RecvEventTimed. Safe for concurrent use, though a call session
// drives it strictly sequentially.
type Conn struct {
	conn net.Conn
	log  zerolog.Logger

	cmdMu   sync.Mutex
	replies chan *frame
	events  chan *Event

	// channel info from the connect handshake, inbound mode only
	info *Event

	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(nc net.Conn) *Conn {
	c := &Conn{
		conn:    nc,
		log:     log.With().Str("raddr", nc.RemoteAddr().String()).Logger(),
		replies: make(chan *frame, 1),
		events:  make(chan *Event, EventQueueSize),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Dial connects to the switch event socket and authenticates.
func Dial(ctx context.Context, addr string, password string) (*Conn, error) {
	d := net.Dialer{}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	c := newConn(nc)

	f, err := c.awaitReply()
	if err != nil {
		c.Close()
		return nil, err
	}
	if f.contentType() != "auth/request" {
		c.Close()
		return nil, fmt.Errorf("eventsocket: expected auth request, got %q", f.contentType())
	}

	f, err = c.command("auth " + password)
	if err != nil {
		c.Close()
		return nil, err
	}
	if !strings.HasPrefix(f.replyText(), "+OK") {
		c.Close()
		return nil, ErrAuthFailed
	}
	return c, nil
}

// NewConn wraps an accepted outbound-socket connection and performs the
// connect handshake. The reply carries the channel info headers
// (Unique-ID, Caller-Caller-ID-Number, ...) available via Info.
func NewConn(nc net.Conn) (*Conn, error) {
	c := newConn(nc)
	f, err := c.command("connect")
	if err != nil {
		c.Close()
		return nil, err
	}
	c.info = &Event{headers: f.headers}
	return c, nil
}

// Info returns channel info captured at connect time. Nil for dialed
// connections.
func (c *Conn) Info() *Event { return c.info }

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
	return nil
}

// API issues a blocking api command and returns the response body.
// The switch reports failures inside the body with an -ERR prefix,
// interpreting that is left to the caller.
func (c *Conn) API(cmd string) (string, error) {
	f, err := c.command("api " + cmd)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(f.body)), nil
}

// Execute runs a dialplan application on the connected channel.
func (c *Conn) Execute(app string, arg string) error {
	var b strings.Builder
	b.WriteString("sendmsg\ncall-command: execute\nexecute-app-name: ")
	b.WriteString(app)
	if arg != "" {
		b.WriteString("\nexecute-app-arg: ")
		b.WriteString(arg)
	}
	f, err := c.command(b.String())
	if err != nil {
		return err
	}
	if reply := f.replyText(); strings.HasPrefix(reply, "-ERR") {
		return fmt.Errorf("eventsocket: execute %s failed: %s", app, reply)
	}
	return nil
}

// Events subscribes to plain events by name.
func (c *Conn) Events(names ...string) error {
	f, err := c.command("event plain " + strings.Join(names, " "))
	if err != nil {
		return err
	}
	if reply := f.replyText(); strings.HasPrefix(reply, "-ERR") {
		return fmt.Errorf("eventsocket: event subscribe failed: %s", reply)
	}
	return nil
}

// RecvEventTimed returns the next queued event, or (nil, nil) if none
// arrives within d. An empty poll is not an error. Never blocks past d.
func (c *Conn) RecvEventTimed(d time.Duration) (*Event, error) {
	// Queued events are delivered even during teardown.
	select {
	case ev := <-c.events:
		return ev, nil
	default:
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case ev := <-c.events:
		return ev, nil
	case <-timer.C:
		return nil, nil
	case <-c.closed:
		return nil, ErrClosed
	}
}

func (c *Conn) command(cmd string) (*frame, error) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	// Drop any stale reply from an abandoned round trip.
	select {
	case <-c.replies:
	default:
	}

	if _, err := c.conn.Write([]byte(cmd + "\n\n")); err != nil {
		return nil, fmt.Errorf("eventsocket: write failed: %w", err)
	}
	return c.awaitReply()
}

func (c *Conn) awaitReply() (*frame, error) {
	timer := time.NewTimer(CommandTimeout)
	defer timer.Stop()
	select {
	case f := <-c.replies:
		return f, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-c.closed:
		return nil, ErrClosed
	}
}

func (c *Conn) readLoop() {
	br := bufio.NewReader(c.conn)
	for {
		f, err := readFrame(br)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.log.Debug().Err(err).Msg("Event socket read ended")
			}
			c.Close()
			return
		}

		switch f.contentType() {
		case "text/event-plain":
			ev, err := parseEventBody(f.body)
			if err != nil {
				c.log.Debug().Err(err).Msg("Dropping malformed event")
				continue
			}
			c.enqueue(ev)
		case "text/disconnect-notice":
			c.Close()
			return
		default:
			// auth/request, command/reply, api/response
			select {
			case c.replies <- f:
			case <-c.closed:
				return
			}
		}
	}
}

func (c *Conn) enqueue(ev *Event) {
	for {
		select {
		case c.events <- ev:
			return
		default:
		}
		// Queue full. Drop the oldest so waiters observe fresh state.
		select {
		case old := <-c.events:
			c.log.Debug().Str("event", old.Name()).Msg("Event queue overflow, dropping oldest")
		default:
		}
	}
}

func readFrame(br *bufio.Reader) (*frame, error) {
	headers, err := parseHeaderBlock(br)
	if err != nil {
		return nil, err
	}
	f := &frame{headers: headers}

	if cl := headers["Content-Length"]; cl != "" {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("eventsocket: bad content length %q", cl)
		}
		f.body = make([]byte, n)
		if _, err := io.ReadFull(br, f.body); err != nil {
			return nil, err
		}
	}
	return f, nil
}

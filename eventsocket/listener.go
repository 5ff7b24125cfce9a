// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package eventsocket

import (
	"context"
	"errors"
	"net"

	"github.com/rs/zerolog/log"
)

// HandlerFunc runs one accepted switch connection. The connection is
// closed when the handler returns.
type HandlerFunc func(c *Conn)

// Listener accepts outbound-socket connections from the switch, one per
// inbound call.
type Listener struct {
	ln net.Listener
}

func Listen(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln}, nil
}

func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

func (l *Listener) Close() error { return l.ln.Close() }

// Serve accepts connections until ctx is done or the listener closes.
// Each connection gets its own goroutine; sessions share nothing.
func (l *Listener) Serve(ctx context.Context, handler HandlerFunc) error {
	go func() {
		<-ctx.Done()
		l.ln.Close()
	}()

	for {
		nc, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("Accepting connection failed")
			continue
		}

		go func() {
			conn, err := NewConn(nc)
			if err != nil {
				log.Error().Err(err).Str("raddr", nc.RemoteAddr().String()).Msg("Connect handshake failed")
				nc.Close()
				return
			}
			defer conn.Close()
			handler(conn)
		}()
	}
}

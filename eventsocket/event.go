// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package eventsocket

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Event names the switch emits that callers typically subscribe to.
const (
	EventChannelAnswer = "CHANNEL_ANSWER"
	EventChannelHangup = "CHANNEL_HANGUP"
	EventRecordStart   = "RECORD_START"
	EventRecordStop    = "RECORD_STOP"
	EventPlaybackStop  = "PLAYBACK_STOP"
)

// Event is one asynchronous notification from the switch. Headers are
// decoded from the plain event body. Consumed exactly once by whichever
// waiter is blocked on the connection.
type Event struct {
	headers map[string]string
}

// NewEvent builds an event from a name and extra headers. Mostly useful
// for tests and for synthesizing channel info on inbound connections.
func NewEvent(name string, headers map[string]string) *Event {
	h := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		h[k] = v
	}
	h["Event-Name"] = name
	return &Event{headers: h}
}

// Name returns the Event-Name header, ex CHANNEL_ANSWER.
func (e *Event) Name() string {
	return e.headers["Event-Name"]
}

// Get returns a raw event header value or empty string.
func (e *Event) Get(header string) string {
	return e.headers[header]
}

// Variable returns a channel variable header, ex Variable("record_ms")
// reads the variable_record_ms header.
func (e *Event) Variable(name string) string {
	if v, ok := e.headers["variable_"+name]; ok {
		return v
	}
	return ""
}

// parseEventBody parses a text/event-plain body. Values are URL encoded
// per the wire protocol; a value that fails decoding is kept raw.
func parseEventBody(body []byte) (*Event, error) {
	headers, err := parseHeaderBlock(bufio.NewReader(strings.NewReader(string(body))))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("malformed event body: %w", err)
	}
	for k, v := range headers {
		if dec, err := url.QueryUnescape(v); err == nil {
			headers[k] = dec
		}
	}
	return &Event{headers: headers}, nil
}

// parseHeaderBlock reads Key: Value lines until an empty line or EOF.
func parseHeaderBlock(r *bufio.Reader) (map[string]string, error) {
	headers := map[string]string{}
	for {
		line, err := r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return headers, err
		}
		k, v, found := strings.Cut(line, ":")
		if found {
			headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
		if err != nil {
			return headers, err
		}
	}
}

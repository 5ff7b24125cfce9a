// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package callbot

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/emiago/callbot/eventsocket"
	"github.com/emiago/callbot/speech"
)

// fakeTransport scripts the switch side of a call. Commands push the
// events a real switch would emit, so ordering stays natural.
type fakeTransport struct {
	mu     sync.Mutex
	uuid   string
	active bool
	cmds   []string
	events chan *eventsocket.Event

	// onAPI intercepts a command before default handling. Second return
	// false falls through.
	onAPI func(cmd string) (string, bool)

	// recvErrs are returned by RecvEventTimed, one per call, before any
	// queued events.
	recvErrs []error
}

func newFakeTransport(uuid string) *fakeTransport {
	return &fakeTransport{
		uuid:   uuid,
		active: true,
		events: make(chan *eventsocket.Event, 64),
	}
}

func (f *fakeTransport) push(name string) {
	f.events <- eventsocket.NewEvent(name, map[string]string{"Unique-ID": f.uuid})
}

func (f *fakeTransport) API(cmd string) (string, error) {
	f.mu.Lock()
	f.cmds = append(f.cmds, cmd)
	onAPI := f.onAPI
	f.mu.Unlock()

	if onAPI != nil {
		if res, ok := onAPI(cmd); ok {
			return res, nil
		}
	}

	switch {
	case strings.HasPrefix(cmd, "uuid_exists"):
		f.mu.Lock()
		defer f.mu.Unlock()
		return fmt.Sprintf("%t", f.active), nil
	case strings.HasPrefix(cmd, "uuid_record") && strings.Contains(cmd, " start "):
		if strings.Contains(cmd, "turn_") {
			// Behave like the switch: the file exists once recording ran.
			if fields := strings.Fields(cmd); len(fields) > 3 {
				os.WriteFile(fields[3], bytes.Repeat([]byte{1}, 2048), 0o644)
			}
			f.push(eventsocket.EventRecordStart)
			f.push(eventsocket.EventRecordStop)
		}
		return "+OK", nil
	case strings.HasPrefix(cmd, "uuid_broadcast"):
		f.push(eventsocket.EventPlaybackStop)
		return "+OK", nil
	case strings.HasPrefix(cmd, "uuid_kill"):
		f.mu.Lock()
		f.active = false
		f.mu.Unlock()
		return "+OK", nil
	}
	return "+OK", nil
}

func (f *fakeTransport) Execute(app string, arg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, "execute "+app+" "+arg)
	return nil
}

func (f *fakeTransport) RecvEventTimed(d time.Duration) (*eventsocket.Event, error) {
	f.mu.Lock()
	if len(f.recvErrs) > 0 {
		err := f.recvErrs[0]
		f.recvErrs = f.recvErrs[1:]
		f.mu.Unlock()
		return nil, err
	}
	f.mu.Unlock()

	select {
	case ev := <-f.events:
		return ev, nil
	case <-time.After(d):
		return nil, nil
	}
}

func (f *fakeTransport) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.cmds...)
}

func (f *fakeTransport) hangup() {
	f.mu.Lock()
	f.active = false
	f.mu.Unlock()
}

// fakeSpeech provides scriptable speech services. Synthesize writes a
// stub file so playback has something to reference.
type fakeSpeech struct {
	mu          sync.Mutex
	transcripts []string
	transErr    []error
	replyErr    []error
	nTrans      int
	nReply      int
}

func (s *fakeSpeech) Transcribe(ctx context.Context, audioPath string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.nTrans
	s.nTrans++
	if n < len(s.transErr) && s.transErr[n] != nil {
		return "", s.transErr[n]
	}
	if n < len(s.transcripts) {
		return s.transcripts[n], nil
	}
	return fmt.Sprintf("turn %d input", n+1), nil
}

func (s *fakeSpeech) Respond(ctx context.Context, history []speech.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.nReply
	s.nReply++
	if n < len(s.replyErr) && s.replyErr[n] != nil {
		return "", s.replyErr[n]
	}
	return fmt.Sprintf("reply %d", n+1), nil
}

func (s *fakeSpeech) Synthesize(ctx context.Context, text string, outPath string) error {
	return os.WriteFile(outPath, []byte(text), 0o644)
}

// passPrep skips fetching and normalization in tests.
type passPrep struct{}

func (passPrep) Prepare(ctx context.Context, ref string, dir string) (string, error) {
	return ref, nil
}

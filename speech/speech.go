// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

// Package speech holds the AI service surface used during a call:
// transcribing caller audio, generating a reply and synthesizing it.
// Implementations must be safe for use from a single call session
// goroutine; they do not need to be safe for concurrent calls.
package speech

import (
	"context"
	"errors"
)

var (
	// ErrNoSpeech is returned by a Transcriber when the recording decodes
	// fine but contains no usable speech.
	ErrNoSpeech = errors.New("speech: no speech detected")
)

// Roles of conversation history entries.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a call conversation history.
type Message struct {
	Role    string
	Content string
}

// Transcriber turns a recorded caller wav into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Responder generates the next assistant reply from the conversation so
// far. History is ordered oldest first and already includes the latest
// user message.
type Responder interface {
	Respond(ctx context.Context, history []Message) (string, error)
}

// Synthesizer renders reply text into a wav file at outPath.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, outPath string) error
}

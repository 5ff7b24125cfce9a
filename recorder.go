// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package callbot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/emiago/callbot/eventsocket"
)

var (
	// ErrHangup is returned when the caller hangs up while an operation
	// is waiting on the channel.
	ErrHangup = errors.New("caller hung up")

	// ErrNoRecording is returned when a turn recording produced nothing
	// usable, silence or no file at all.
	ErrNoRecording = errors.New("no usable recording")
)

// Recorder captures one caller turn into a wav file using the switch
// recorder. Silence detection on the switch side ends the recording when
// the caller stops talking.
type Recorder struct {
	// MaxDuration bounds one turn recording.
	MaxDuration time.Duration
	// SilenceThreshold is the switch energy level below which audio
	// counts as silence.
	SilenceThreshold int
	// SilenceDuration of continuous silence ends the recording.
	SilenceDuration time.Duration
	// MinBytes is the floor below which a recording counts as empty.
	MinBytes int64
	// SettleDelay is slept before arming the recorder so playback echo
	// does not leak into the turn.
	SettleDelay time.Duration

	log zerolog.Logger
}

func NewRecorder() *Recorder {
	return &Recorder{
		MaxDuration:      20 * time.Second,
		SilenceThreshold: 30,
		SilenceDuration:  3 * time.Second,
		MinBytes:         1024,
		SettleDelay:      2 * time.Second,
		log:              log.With().Str("component", "recorder").Logger(),
	}
}

// RecordStopMargin is added on top of MaxDuration for the stop wait
// budget. Must stay above zero so a full length turn is not cut off by
// the waiter instead of the switch.
var RecordStopMargin = 5 * time.Second

// Record captures the caller into path and returns it. The wait budget
// is MaxDuration plus margin; the switch normally ends the recording
// earlier on silence.
func (r *Recorder) Record(ctx context.Context, call *Call, path string) (string, error) {
	if r.SettleDelay > 0 {
		select {
		case <-time.After(r.SettleDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	cmd := fmt.Sprintf("uuid_record %s start %s %d %d %d",
		call.UUID, path,
		int(r.MaxDuration.Milliseconds()),
		r.SilenceThreshold,
		int(r.SilenceDuration.Milliseconds()),
	)
	if _, err := call.tr.API(cmd); err != nil {
		return "", fmt.Errorf("starting turn recording: %w", err)
	}

	budget := r.MaxDuration + RecordStopMargin

	started := false
	deadline := time.Now().Add(budget)
	for {
		remain := time.Until(deadline)
		if remain <= 0 {
			break
		}

		ev, err := awaitSignal(ctx, call.tr, call.UUID, remain,
			eventsocket.EventRecordStart, eventsocket.EventRecordStop, eventsocket.EventChannelHangup)
		if err != nil {
			if errors.Is(err, errSignalTimeout) {
				break
			}
			return "", err
		}

		switch ev.Name() {
		case eventsocket.EventRecordStart:
			started = true
		case eventsocket.EventRecordStop:
			r.log.Debug().Str("path", path).Msg("Turn recording stopped by switch")
			return r.validate(path)
		case eventsocket.EventChannelHangup:
			return "", ErrHangup
		}
	}

	// Budget exhausted. Stop explicitly, the command is idempotent when
	// the switch already stopped on its own.
	stop := fmt.Sprintf("uuid_record %s stop %s", call.UUID, path)
	if _, err := call.tr.API(stop); err != nil {
		r.log.Debug().Err(err).Msg("Manual recording stop failed")
	}
	if !started {
		r.log.Debug().Str("path", path).Msg("Recording never started within budget")
	}

	return r.validate(path)
}

// validate applies the minimum size floor. Anything below it is noise,
// not speech, regardless of how the recording was stopped.
func (r *Recorder) validate(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil || fi.Size() < r.MinBytes {
		return "", ErrNoRecording
	}
	relaxPerms(path)
	return path, nil
}

// relaxPerms makes switch-owned recordings readable for the
// transcription step. Advisory, different-owner files stay as they are.
func relaxPerms(path string) {
	if err := os.Chmod(path, 0o644); err != nil {
		log.Debug().Err(err).Str("path", path).Msg("chmod on recording failed")
	}
}

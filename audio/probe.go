// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audio

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// Wav audio format codes relevant for telephony recordings.
const (
	FormatPCM  = 1
	FormatAlaw = 6
	FormatUlaw = 7
)

// Info describes a wav file header.
type Info struct {
	SampleRate  int
	NumChans    int
	BitDepth    int
	AudioFormat int
	Duration    time.Duration
}

// Telephony reports whether the file can be fed to the switch as is.
func (i Info) Telephony() bool {
	return i.AudioFormat == FormatPCM && i.SampleRate == 8000 && i.NumChans == 1 && i.BitDepth == 16
}

// Probe reads wav headers of the file. Fails on anything that is not a
// valid wav container.
func Probe(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return Info{}, fmt.Errorf("reading wav info: %w", err)
	}
	if dec.SampleRate == 0 {
		return Info{}, fmt.Errorf("not a wav file: %s", path)
	}

	info := Info{
		SampleRate:  int(dec.SampleRate),
		NumChans:    int(dec.NumChans),
		BitDepth:    int(dec.BitDepth),
		AudioFormat: int(dec.WavAudioFormat),
	}
	// Duration is best effort, callers fall back to a fixed margin.
	if dur, err := dec.Duration(); err == nil {
		info.Duration = dur
	}
	return info, nil
}

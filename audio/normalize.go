// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audio

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-audio/riff"
	"github.com/rs/zerolog/log"
	"github.com/zaf/g711"
)

// NormalizeTelephony converts an audio file into 8kHz mono 16bit PCM
// wav the switch can broadcast. Files already in that shape are
// returned untouched. G.711 wav recordings are transcoded natively,
// everything else goes through ffmpeg.
func NormalizeTelephony(ctx context.Context, path string) (string, error) {
	info, err := Probe(path)
	if err != nil {
		// Not a wav container (mp3, m4a, ...). Let ffmpeg deal with it.
		return ffmpegTelephony(ctx, path)
	}

	if info.Telephony() {
		return path, nil
	}

	if (info.AudioFormat == FormatAlaw || info.AudioFormat == FormatUlaw) && info.NumChans == 1 {
		return transcodeG711(path, info)
	}
	return ffmpegTelephony(ctx, path)
}

// transcodeG711 rewrites an A-law/u-law wav as 16bit LPCM. The switch
// records in the negotiated codec, while speech services want LPCM.
func transcodeG711(path string, info Info) (string, error) {
	raw, err := readDataChunk(path)
	if err != nil {
		return "", err
	}

	var lpcm []byte
	switch info.AudioFormat {
	case FormatAlaw:
		lpcm = g711.DecodeAlaw(raw)
	case FormatUlaw:
		lpcm = g711.DecodeUlaw(raw)
	default:
		return "", fmt.Errorf("unexpected audio format %d", info.AudioFormat)
	}

	out := outPath(path)
	f, err := os.OpenFile(out, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}
	defer f.Close()

	ww := NewWavWriter(f)
	ww.SampleRate = info.SampleRate
	if _, err := ww.Write(lpcm); err != nil {
		return "", err
	}
	if err := ww.Close(); err != nil {
		return "", err
	}
	log.Debug().Str("in", path).Str("out", out).Msg("Transcoded G711 recording")
	return out, nil
}

// readDataChunk returns the raw payload of the wav data chunk.
func readDataChunk(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p := riff.New(f)
	if err := p.ParseHeaders(); err != nil {
		return nil, err
	}
	for {
		chunk, err := p.NextChunk()
		if err != nil {
			return nil, err
		}
		if chunk.ID != riff.DataFormatID {
			chunk.Drain()
			continue
		}
		data := make([]byte, chunk.Size)
		if _, err := io.ReadFull(chunk, data); err != nil {
			return nil, err
		}
		return data, nil
	}
}

func ffmpegTelephony(ctx context.Context, path string) (string, error) {
	out := outPath(path)
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", path,
		"-ar", "8000", // telephone quality
		"-ac", "1",
		"-f", "wav",
		out,
		"-y",
	)
	if outBytes, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("ffmpeg conversion of %s failed: %w: %s", path, err, tail(string(outBytes)))
	}
	return out, nil
}

func outPath(path string) string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	return base + ".8k.wav"
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 300 {
		return s[len(s)-300:]
	}
	return s
}

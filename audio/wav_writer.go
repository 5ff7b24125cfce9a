// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audio

import (
	"encoding/binary"
	"io"
)

// WavWriter streams samples into a wav container. Headers are written
// lazily on first Write and finalized with the real data size on Close.
// Defaults are telephony grade: 8kHz mono 16bit PCM.
type WavWriter struct {
	SampleRate  int
	BitDepth    int
	NumChans    int
	AudioFormat int

	W              io.WriteSeeker
	headersWritten bool
	dataSize       int64
}

func NewWavWriter(w io.WriteSeeker) *WavWriter {
	return &WavWriter{
		SampleRate:  8000,
		BitDepth:    16,
		NumChans:    1,
		AudioFormat: 1, // 1 PCM
		W:           w,
	}
}

func (ww *WavWriter) Write(samples []byte) (int, error) {
	if !ww.headersWritten {
		if _, err := ww.writeHeader(); err != nil {
			return 0, err
		}
		ww.headersWritten = true
	}
	n, err := ww.W.Write(samples)
	ww.dataSize += int64(n)
	return n, err
}

func (ww *WavWriter) writeHeader() (int, error) {
	const (
		headerSize   = 44
		fmtChunkSize = 16
	)

	// RIFF size and data size are filled with what is known so far,
	// Close rewrites them once streaming is done.
	fileSize := ww.dataSize + headerSize - 8

	header := make([]byte, headerSize)
	copy(header[0:4], []byte("RIFF"))
	binary.LittleEndian.PutUint32(header[4:8], uint32(fileSize))
	copy(header[8:12], []byte("WAVE"))

	copy(header[12:16], []byte("fmt "))
	binary.LittleEndian.PutUint32(header[16:20], fmtChunkSize)
	binary.LittleEndian.PutUint16(header[20:22], uint16(ww.AudioFormat))
	binary.LittleEndian.PutUint16(header[22:24], uint16(ww.NumChans))
	binary.LittleEndian.PutUint32(header[24:28], uint32(ww.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(ww.SampleRate*ww.BitDepth*ww.NumChans/8))
	binary.LittleEndian.PutUint16(header[32:34], uint16(ww.BitDepth*ww.NumChans/8))
	binary.LittleEndian.PutUint16(header[34:36], uint16(ww.BitDepth))

	copy(header[36:40], []byte("data"))
	binary.LittleEndian.PutUint32(header[40:44], uint32(ww.dataSize))

	return ww.W.Write(header)
}

// Close finalizes the container by rewriting the header with the final
// data size. The underlying writer is not closed.
func (ww *WavWriter) Close() error {
	if _, err := ww.W.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := ww.writeHeader()
	return err
}

// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("RIFFfake"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path, err := Fetch(context.Background(), srv.URL+"/greeting.wav", dir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "RIFFfake", string(data))
	assert.Contains(t, path, "greeting.wav")
}

func TestFetchNon200(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := Fetch(context.Background(), srv.URL+"/nope.wav", t.TempDir())
	require.Error(t, err)
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://example.com/a.wav"))
	assert.True(t, IsRemote("http://example.com/a.wav"))
	assert.False(t, IsRemote("/tmp/a.wav"))
}

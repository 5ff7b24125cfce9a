// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var fetchClient = &http.Client{
	Timeout: 10 * time.Second,
}

// Fetch downloads a remote audio reference into destDir and returns the
// local path. Filename is taken from the URL path, falling back to a
// generated one.
func Fetch(ctx context.Context, rawURL string, destDir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported audio url scheme %q", u.Scheme)
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = uuid.NewString() + ".audio"
	}
	dest := filepath.Join(destDir, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	res, err := fetchClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: non 200 received. code=%d", rawURL, res.StatusCode)
	}

	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, res.Body); err != nil {
		return "", fmt.Errorf("downloading %s: %w", rawURL, err)
	}
	return dest, nil
}

// IsRemote reports whether the audio reference needs fetching first.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

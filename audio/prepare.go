// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audio

import "context"

// Preparer resolves an audio reference, local path or URL, into a local
// telephony-grade wav path inside dir.
type Preparer struct{}

func (Preparer) Prepare(ctx context.Context, ref string, dir string) (string, error) {
	if IsRemote(ref) {
		local, err := Fetch(ctx, ref, dir)
		if err != nil {
			return "", err
		}
		ref = local
	}
	return NormalizeTelephony(ctx, ref)
}

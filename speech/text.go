// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package speech

import (
	"regexp"
	"strings"
)

var (
	parenRe = regexp.MustCompile(`\([^)]*\)`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// CleanSpoken strips text that should not be spoken out loud. Chat models
// like to add stage directions in parentheses even when told not to.
func CleanSpoken(text string) string {
	text = parenRe.ReplaceAllString(text, "")
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanSpoken(t *testing.T) {
	assert.Equal(t, "Hello there!", CleanSpoken("Hello there!"))
	assert.Equal(t, "Hello there!", CleanSpoken("(laughs) Hello   there!"))
	assert.Equal(t, "Sure, one moment.", CleanSpoken("Sure, (pauses to think) one moment. (smiles)"))
	assert.Equal(t, "", CleanSpoken("(silence)"))
}

func TestChatRole(t *testing.T) {
	assert.Equal(t, "assistant", chatRole(RoleAssistant))
	assert.Equal(t, "user", chatRole(RoleUser))
	assert.Equal(t, "user", chatRole("something-else"))
}

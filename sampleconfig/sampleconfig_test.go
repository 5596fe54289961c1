// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sampleconfig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFileContents ensures the sample config only holds the application
// options section and that every option is commented out.
func TestFileContents(t *testing.T) {
	t.Parallel()

	lines := strings.Split(FileContents, "\n")
	require.Equal(t, "[Application Options]", lines[0])
	for i, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		require.True(t, strings.HasPrefix(line, ";"),
			"line %d is not commented: %q", i+2, line)
	}
}

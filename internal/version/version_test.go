// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNormalize ensures characters outside the semantic versioning
// alphabets are stripped.
func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in        string
		preRel    string
		buildMeta string
	}{
		{"pre", "pre", "pre"},
		{"rc.1", "rc1", "rc.1"},
		{"a b+c_d", "abcd", "abcd"},
		{"", "", ""},
	}

	t.Logf("Running %d tests", len(tests))
	for _, test := range tests {
		require.Equal(t, test.preRel, NormalizePreRelString(test.in), test.in)
		require.Equal(t, test.buildMeta, NormalizeBuildString(test.in),
			test.in)
	}
}

// TestUserAgent ensures the user agent carries the application name and
// version.
func TestUserAgent(t *testing.T) {
	t.Parallel()

	require.Equal(t, "msgpoold/"+String(), UserAgent())
	require.Contains(t, String(), "0.1.0")
}

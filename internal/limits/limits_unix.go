// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build !windows && !plan9

package limits

import (
	"fmt"
	"syscall"
)

const (
	// fileLimitWant is the open file limit requested for the gossip host
	// and its peer connections.
	fileLimitWant = 8192

	// fileLimitMin is the lowest open file limit the daemon runs with.
	fileLimitMin = 1024
)

// SetLimits raises the open file limit of the process toward fileLimitWant
// and returns the limit in effect afterwards.
func SetLimits() (uint64, error) {
	var rLimit syscall.Rlimit

	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		return 0, err
	}
	if rLimit.Cur >= fileLimitWant {
		return uint64(rLimit.Cur), nil
	}
	if rLimit.Max < fileLimitMin {
		return uint64(rLimit.Cur), fmt.Errorf("need at least %v file "+
			"descriptors, hard limit is %v", fileLimitMin, rLimit.Max)
	}

	rLimit.Cur = min(rLimit.Max, fileLimitWant)
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		// Fall back to the minimum.
		rLimit.Cur = fileLimitMin
		if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
			return 0, err
		}
	}

	return uint64(rLimit.Cur), nil
}

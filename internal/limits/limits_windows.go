// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package limits

// SetLimits is a no-op on Windows since it's not required there.  The
// returned limit is zero since it is unknown.
func SetLimits() (uint64, error) {
	return 0, nil
}

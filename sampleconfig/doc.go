// Copyright (c) 2017 The Decred developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package sampleconfig provides a single constant that contains the contents of
the sample configuration file for msgpoold.  The daemon writes it as the
default configuration file on first start so every option is documented in
place.
*/
package sampleconfig

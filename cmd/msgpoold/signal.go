// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"os/signal"
)

// interruptSignals defines the default signals to catch in order to do a proper
// shutdown.  This may be modified during init depending on the platform.
var interruptSignals = []os.Signal{os.Interrupt}

// interruptListener listens for OS signals such as SIGINT (Ctrl+C).  It
// returns a channel that is closed when a signal is received.
func interruptListener() <-chan struct{} {
	c := make(chan struct{})

	go func() {
		interruptChannel := make(chan os.Signal, 1)
		signal.Notify(interruptChannel, interruptSignals...)

		sig := <-interruptChannel
		mpldLog.Infof("Received signal (%s).  Shutting down...", sig)
		close(c)

		// Listen for repeated signals and display a message so the user
		// knows the shutdown is in progress and the process is not
		// hung.
		for sig := range interruptChannel {
			mpldLog.Infof("Received signal (%s).  Already shutting down...",
				sig)
		}
	}()

	return c
}

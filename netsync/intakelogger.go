// Copyright (c) 2015-2017 The btcsuite developers
// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netsync

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/btcsuite/btclog"
)

// intakeProgressLogger provides periodic logging of the messages received
// from the network so the user sees the intake progress without one line
// per message.
type intakeProgressLogger struct {
	receivedLogMsgs uint64
	acceptedLogMsgs uint64
	lastMsgLogTime  time.Time
	logInterval     time.Duration
	clock           clock.Clock
	subsystemLogger btclog.Logger
	progressAction  string
	sync.Mutex
}

// newIntakeProgressLogger returns a new intake progress logger.
// The progress message is templated as follows:
//
//	{progressAction} {numProcessed} {messages|message} in the last {timePeriod}
//	({numAccepted} accepted)
func newIntakeProgressLogger(progressMessage string, logger btclog.Logger,
	clk clock.Clock) *intakeProgressLogger {

	return &intakeProgressLogger{
		lastMsgLogTime:  clk.Now(),
		logInterval:     10 * time.Second,
		clock:           clk,
		progressAction:  progressMessage,
		subsystemLogger: logger,
	}
}

// LogMessage records a received message and logs the totals as an
// information message to show progress to the user.  In order to prevent
// spam, it limits logging to one message every 10 seconds with duration
// and totals included.
func (l *intakeProgressLogger) LogMessage(accepted bool) {
	l.Lock()
	defer l.Unlock()

	l.receivedLogMsgs++
	if accepted {
		l.acceptedLogMsgs++
	}

	now := l.clock.Now()
	duration := now.Sub(l.lastMsgLogTime)
	if duration < l.logInterval {
		return
	}

	// Truncate the duration to 10s of milliseconds.
	tDuration := duration.Truncate(10 * time.Millisecond)

	l.subsystemLogger.Infof("%s %d %s in the last %s (%d accepted)",
		l.progressAction, l.receivedLogMsgs,
		pickNoun(l.receivedLogMsgs, "message", "messages"), tDuration,
		l.acceptedLogMsgs)

	l.receivedLogMsgs = 0
	l.acceptedLogMsgs = 0
	l.lastMsgLogTime = now
}

/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package utils

import (
	"os"
	"os/signal"
	"syscall"
)

// WaitForQuit blocks until mgmd or fstd receives SIGHUP, SIGINT, SIGQUIT, or
// SIGTERM, and returns the received signal. SIGKILL is not included: the
// kernel delivers it directly and a process can never trap it.
func WaitForQuit() os.Signal {
	quitSig := make(chan os.Signal, 1)
	defer close(quitSig)
	signal.Notify(quitSig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	return <-quitSig
}

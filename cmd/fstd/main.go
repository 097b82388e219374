/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package main

import (
	"os"

	"github.com/eoscore/metacore/cmd/fstd/cmd"
	"github.com/eoscore/metacore/debug"
)

func init() {
	go debug.HandleDebugSignals("fstd")
}

func main() {
	cmd.Execute()
	os.Exit(0)
}

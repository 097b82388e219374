/*************************************************************************
 * Copyright 2020 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package jobqueue

import "os"

// fileCounter wraps an *os.File with a running byte count, used by Queue to
// report how much of its spillover backlog is sitting on disk.
type fileCounter struct {
	*os.File
	count int
}

func newFileCounter(f *os.File) (*fileCounter, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return &fileCounter{File: f, count: int(fi.Size())}, nil
}

func (f *fileCounter) Write(b []byte) (n int, err error) {
	f.count += len(b)
	return f.File.Write(b)
}

func (f *fileCounter) Read(b []byte) (n int, err error) {
	n, err = f.File.Read(b)
	f.count -= n
	return
}

func (f *fileCounter) Count() int {
	return f.count
}

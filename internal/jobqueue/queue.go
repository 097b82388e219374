/*************************************************************************
 * Copyright 2020 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package jobqueue implements the bounded, optionally disk-backed job
// queue used by the FSCK repair dispatcher (§4.5, "queue saturation: the
// dispatcher blocks when in-flight exceeds max_queued_jobs"). A Queue is a
// pipeline of channels (In->Out) with a bounded in-memory buffer; once the
// buffer is full, producers either block or, if disk spillover is
// configured, overflow to a pair of gob-encoded files so an in-flight
// backlog survives a daemon restart.
package jobqueue

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// MaxDepth bounds the in-memory buffer so a runaway producer cannot exhaust
// memory; pass -1 to NewQueue to request it.
const MaxDepth = 1_000_000

// Job is the unit of work carried by a Queue (a fsck repair request), left
// opaque to this package.
type Job interface{}

// Queue is a pipeline of channels with a variable-sized internal buffer
// that can additionally overflow to disk.
type Queue struct {
	In      chan Job
	Out     chan Job
	runDone bool
	maxSize int

	cachePath      string
	cache          bool
	cacheR         *fileCounter
	cacheW         *fileCounter
	cacheEnc       *gob.Encoder
	cacheModified  bool
	cacheLock      sync.Mutex
	cacheReading   bool
	cachePaused    chan bool
	cacheDone      chan bool
	cacheAck       chan bool
	cacheIsDone    bool
	cacheCommitted bool
}

// NewQueue creates a Queue with the given maximum in-memory depth (0 means
// unbuffered, -1 means MaxDepth). If backingPath is non-empty, jobs that
// overflow the in-memory buffer spill to two gob-encoded files under it
// (named cache_a/cache_b) and are replayed from there on construction,
// recovering any backlog left behind by an unclean shutdown. maxDiskBytes
// caps how much spillover is allowed before producers block outright.
func NewQueue(maxDepth int, backingPath string, maxDiskBytes int) (*Queue, error) {
	if backingPath != "" {
		fi, err := os.Stat(backingPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if fi != nil && !fi.IsDir() {
			return nil, fmt.Errorf("jobqueue: backing path %q is not a directory", backingPath)
		}
	}
	if maxDepth == -1 || maxDepth > MaxDepth {
		maxDepth = MaxDepth
	}
	q := &Queue{
		In:          make(chan Job),
		Out:         make(chan Job, maxDepth),
		cachePath:   backingPath,
		cache:       backingPath != "",
		cachePaused: make(chan bool),
		cacheDone:   make(chan bool),
		cacheAck:    make(chan bool),
		maxSize:     maxDiskBytes,
	}
	close(q.cachePaused) // start unpaused

	if q.cache {
		if err := q.openBacking(); err != nil {
			return nil, err
		}
		go q.cacheHandler()
	}
	go q.run()
	return q, nil
}

func (q *Queue) openBacking() error {
	if err := os.MkdirAll(q.cachePath, 0755); err != nil {
		return err
	}
	a := filepath.Join(q.cachePath, "cache_a")
	b := filepath.Join(q.cachePath, "cache_b")

	var sizeA, sizeB int64
	if fi, err := os.Stat(a); err == nil {
		sizeA = fi.Size()
	}
	if fi, err := os.Stat(b); err == nil {
		sizeB = fi.Size()
	}
	if sizeB != 0 && sizeA == 0 {
		if err := os.Rename(b, a); err != nil {
			return err
		}
	} else if sizeB != 0 && sizeA != 0 {
		if err := mergeBacking(a, b); err != nil {
			return err
		}
	}

	r, err := os.OpenFile(a, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	w, err := os.OpenFile(b, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	if q.cacheR, err = newFileCounter(r); err != nil {
		return err
	}
	if q.cacheW, err = newFileCounter(w); err != nil {
		return err
	}
	q.cacheEnc = gob.NewEncoder(q.cacheW)

	fi, err := q.cacheW.Stat()
	if err != nil {
		return err
	}
	if fi.Size() != 0 {
		q.cacheModified = true
	}
	return nil
}

// run connects In->Out, spilling to disk (if configured) once Out fills.
func (q *Queue) run() {
	for v := range q.In {
		select {
		case q.Out <- v:
		default:
			if !q.cache {
				q.Out <- v
			} else {
				select {
				case q.Out <- v:
				case <-q.cachePaused:
					q.spill(v)
				}
			}
		}
	}
	q.runDone = true

	if q.cache {
		for q.HasBacklog() && !q.cacheCommitted {
			time.Sleep(100 * time.Millisecond)
		}
		q.finishCache()
		<-q.cacheAck
	}
	close(q.Out)
}

func (q *Queue) cacheHandler() {
	q.cacheReading = true
	for {
		dec := gob.NewDecoder(q.cacheR)
		var v Job
		var err error
		for {
			err = dec.Decode(&v)
			if err != nil {
				break
			}
			if v == nil {
				continue
			}
			q.Out <- v
		}
		q.cacheReading = false

		select {
		case <-q.cacheDone:
			close(q.cacheAck)
			return
		default:
		}

		q.cacheR.Seek(0, 0)
		q.cacheR.Truncate(0)

		for !q.cacheModified {
			select {
			case <-q.cacheDone:
				close(q.cacheAck)
				return
			case <-time.After(time.Second):
			}
		}

		q.cacheLock.Lock()
		q.cacheR, q.cacheW = q.cacheW, q.cacheR
		q.cacheR.Seek(0, 0)
		q.cacheEnc = gob.NewEncoder(q.cacheW)
		q.cacheModified = false
		q.cacheReading = true
		q.cacheLock.Unlock()
	}
}

func (q *Queue) spill(v Job) {
	for q.maxSize != 0 && q.DiskBytes() >= q.maxSize {
		time.Sleep(100 * time.Millisecond)
	}
	q.cacheLock.Lock()
	defer q.cacheLock.Unlock()
	_ = q.cacheEnc.Encode(&v)
	q.cacheModified = true
}

// HasBacklog reports whether the disk spillover holds jobs not yet handed
// to Out.
func (q *Queue) HasBacklog() bool {
	return q.cacheModified || q.cacheReading
}

// Depth returns the number of jobs currently buffered in memory.
func (q *Queue) Depth() int {
	return len(q.Out)
}

// DiskBytes returns how many bytes of spillover are on disk.
func (q *Queue) DiskBytes() int {
	if !q.cache {
		return 0
	}
	return q.cacheR.Count() + q.cacheW.Count()
}

func (q *Queue) finishCache() {
	q.cacheLock.Lock()
	defer q.cacheLock.Unlock()
	if !q.cacheIsDone {
		close(q.cacheDone)
		q.cacheIsDone = true
	}
}

// Shutdown closes In and, if disk-backed, drains the remaining buffer to
// disk so it survives the next restart. Callers should range over Out
// until it closes after calling Shutdown.
func (q *Queue) Shutdown() {
	close(q.In)
	if !q.cache {
		q.cacheCommitted = true
		return
	}
	q.finishCache()
	readerStopped := false
	for !q.runDone || len(q.Out) != 0 || !readerStopped {
		select {
		case <-q.cacheAck:
			readerStopped = true
		case v := <-q.Out:
			q.spill(v)
		}
	}
	q.cacheR.Close()
	q.cacheW.Close()
	q.cacheCommitted = true
}

func mergeBacking(a, b string) error {
	fa, err := os.Open(a)
	if err != nil {
		return err
	}
	defer fa.Close()
	fb, err := os.Open(b)
	if err != nil {
		return err
	}
	defer fb.Close()

	t, err := os.CreateTemp(filepath.Dir(a), "jobqueue-merge")
	if err != nil {
		return err
	}
	defer t.Close()
	defer os.Remove(t.Name())

	enc := gob.NewEncoder(t)
	for _, r := range []io.Reader{fa, fb} {
		dec := gob.NewDecoder(r)
		var v Job
		for {
			if err := dec.Decode(&v); err != nil {
				if err != io.EOF {
					return err
				}
				break
			}
			if v == nil {
				continue
			}
			if err := enc.Encode(&v); err != nil {
				return err
			}
		}
	}

	fa.Close()
	os.Remove(a)
	fb.Close()
	os.Remove(b)
	t.Close()
	return os.Rename(t.Name(), a)
}

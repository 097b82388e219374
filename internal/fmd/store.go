/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fmd

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	bolt "go.etcd.io/bbolt"
)

const (
	dbMmapSize = 4 * 1024 * 1024
	dbTimeout  = 100 * time.Millisecond
	dbOpenMode = os.FileMode(0660)
)

var recordBucket = []byte("fmd")

var (
	ErrNoSuchShard       = errors.New("no open shard for that fsid")
	ErrShardAlreadyOpen  = errors.New("shard already open for that fsid")
	ErrRecordNotFound    = errors.New("no record for that fid")
	ErrInconsistent      = errors.New("record disagrees with disk/mgm observation")
	ErrBoltLockFailed    = errors.New("failed to acquire lock for fmd store; file held by another process")
	ErrShardNotWritable  = errors.New("shard is not open for writing")
	ErrFileLockHeld      = errors.New("fmd store directory is locked by another process")
)

// shard is one fsid's durable record set: a single bbolt file with one
// bucket, guarded by its own lock so that one busy filesystem never blocks
// lookups against another (spec §9: single-level per-fsid lock, replacing
// the teacher's single flat mutex in IngestCache).
type shard struct {
	mu    sync.RWMutex
	db    *bolt.DB
	fsid  uint32
	flock *flock.Flock
	dirty bool
}

// Handler is the per-FST file-metadata store: a map of fsid to its shard,
// behind an outer lock that only ever guards the map itself.
type Handler struct {
	mtx    sync.RWMutex
	dir    string
	shards map[uint32]*shard
}

// New creates a Handler rooted at dir, which holds one "<fsid>.fmd" bbolt
// file per open shard, the fsid written as 8 hex digits.
func New(dir string) *Handler {
	return &Handler{dir: dir, shards: make(map[uint32]*shard)}
}

func (h *Handler) dbPath(fsid uint32) string {
	return h.dir + "/" + fileidHex(fsid) + ".fmd"
}

func fileidHex(fsid uint32) string {
	const hextable = "0123456789abcdef"
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = hextable[fsid&0xF]
		fsid >>= 4
	}
	return string(b)
}

// Open opens (creating if absent) the shard for fsid. An advisory flock on
// the shard's lock file guards against a second process opening the same
// fsid concurrently, mirroring the teacher's bolt.Timeout/ErrTimeout ->
// ErrBoltLockFailed translation in cache.go.
func (h *Handler) Open(fsid uint32) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	if _, ok := h.shards[fsid]; ok {
		return ErrShardAlreadyOpen
	}

	fl := flock.New(h.dbPath(fsid) + ".lock")
	locked, err := fl.TryLock()
	if err != nil {
		return err
	}
	if !locked {
		return ErrFileLockHeld
	}

	db, err := bolt.Open(h.dbPath(fsid), dbOpenMode, &bolt.Options{
		InitialMmapSize: dbMmapSize,
		Timeout:         dbTimeout,
	})
	if err != nil {
		fl.Unlock()
		if err == bolt.ErrTimeout {
			return ErrBoltLockFailed
		}
		return err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordBucket)
		return err
	}); err != nil {
		db.Close()
		fl.Unlock()
		return err
	}

	h.shards[fsid] = &shard{db: db, fsid: fsid, flock: fl}
	return nil
}

// Close closes the shard for fsid, flushing any pending writes bbolt is
// holding and releasing the advisory lock.
func (h *Handler) Close(fsid uint32) error {
	h.mtx.Lock()
	sh, ok := h.shards[fsid]
	if ok {
		delete(h.shards, fsid)
	}
	h.mtx.Unlock()
	if !ok {
		return ErrNoSuchShard
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	err := sh.db.Close()
	sh.flock.Unlock()
	return err
}

// Trim reports the number of records stored for fsid without loading them.
func (h *Handler) Trim(fsid uint32) (int, error) {
	sh, err := h.getShard(fsid)
	if err != nil {
		return 0, err
	}
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	var n int
	err = sh.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(recordBucket)
		if bkt == nil {
			return nil
		}
		n = bkt.Stats().KeyN
		return nil
	})
	return n, err
}

func (h *Handler) getShard(fsid uint32) (*shard, error) {
	h.mtx.RLock()
	defer h.mtx.RUnlock()
	sh, ok := h.shards[fsid]
	if !ok {
		return nil, ErrNoSuchShard
	}
	return sh, nil
}

func recordKey(fid uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, fid)
	return b
}

func encodeRecord(r Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRecord(b []byte) (Record, error) {
	var r Record
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&r); err != nil {
		return Record{}, err
	}
	return r, nil
}

// Exists reports whether a record exists for fid on fsid.
func (h *Handler) Exists(fsid uint32, fid uint64) (bool, error) {
	sh, err := h.getShard(fsid)
	if err != nil {
		return false, err
	}
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	var found bool
	err = sh.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(recordBucket)
		if bkt == nil {
			return nil
		}
		found = bkt.Get(recordKey(fid)) != nil
		return nil
	})
	return found, err
}

// Get loads the record for fid on fsid. Unless force is true, Get refuses
// to return a record whose non-sentinel disk/mgm-observed fields disagree
// with its authoritative size/checksum (spec §8 property 1 / scenario S6);
// callers that want the raw, possibly-inconsistent record must pass force.
func (h *Handler) Get(fsid uint32, fid uint64, force bool) (Record, error) {
	sh, err := h.getShard(fsid)
	if err != nil {
		return Record{}, err
	}
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	var raw []byte
	err = sh.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(recordBucket)
		if bkt == nil {
			return nil
		}
		if v := bkt.Get(recordKey(fid)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	if raw == nil {
		return Record{}, ErrRecordNotFound
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return Record{}, err
	}
	if !force && !rec.Consistent() {
		return Record{}, ErrInconsistent
	}
	return rec, nil
}

// Put writes (overwrites) the record for r.Fid on r.Fsid.
func (h *Handler) Put(r Record) error {
	sh, err := h.getShard(r.Fsid)
	if err != nil {
		return err
	}
	buf, err := encodeRecord(r)
	if err != nil {
		return err
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.dirty = true
	return sh.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(recordBucket)
		if bkt == nil {
			return ErrNoSuchShard
		}
		return bkt.Put(recordKey(r.Fid), buf)
	})
}

// Delete removes the record for fid on fsid, if present.
func (h *Handler) Delete(fsid uint32, fid uint64) error {
	sh, err := h.getShard(fsid)
	if err != nil {
		return err
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(recordBucket)
		if bkt == nil {
			return ErrNoSuchShard
		}
		return bkt.Delete(recordKey(fid))
	})
}

// CreateIfWritable inserts r only if no record for its fid exists yet on
// its fsid, and returns the stored record (the existing one, or r). Errors
// from bbolt are returned unchanged; ErrShardNotWritable is never returned.
func (h *Handler) CreateIfWritable(r Record) (Record, error) {
	sh, err := h.getShard(r.Fsid)
	if err != nil {
		return Record{}, err
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	var out Record
	err = sh.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(recordBucket)
		if bkt == nil {
			return ErrNoSuchShard
		}
		key := recordKey(r.Fid)
		if bkt.Get(key) != nil {
			existing, derr := decodeRecord(bkt.Get(key))
			if derr != nil {
				return derr
			}
			out = existing
			return nil
		}
		buf, eerr := encodeRecord(r)
		if eerr != nil {
			return eerr
		}
		out = r
		return bkt.Put(key, buf)
	})
	if err != nil {
		return Record{}, err
	}
	sh.dirty = true
	return out, nil
}

// Commit clears the shard's dirty flag, acknowledging that the caller has
// observed and persisted whatever state change it cared about (bbolt
// itself already fsyncs on every Update; this is a higher-level
// "has-been-reconciled" marker consumed by the resync sweep).
func (h *Handler) Commit(fsid uint32) error {
	sh, err := h.getShard(fsid)
	if err != nil {
		return err
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.dirty = false
	return nil
}

// ResetDisk clears every disk-observed field (DiskSize, DiskChecksum,
// FileCXError/BlockCXError) across fsid's entire table in one sweep,
// called at the start of a disk resync (§4.4 step 1).
func (h *Handler) ResetDisk(fsid uint32) error {
	return h.mutateAll(fsid, func(r *Record) {
		r.DiskSize = Undef
		r.DiskChecksum = ""
		r.FileCXError = false
		r.BlockCXError = false
	})
}

// ResetMgm clears every MGM-observed field (MgmSize, MgmChecksum,
// Locations, LayoutError) across fsid's entire table in one sweep, called
// at the start of an MGM resync (§4.4 step 1 of the second sweep).
func (h *Handler) ResetMgm(fsid uint32) error {
	return h.mutateAll(fsid, func(r *Record) {
		r.MgmSize = Undef
		r.MgmChecksum = ""
		r.Locations = ""
		r.LayoutError = ErrNone
	})
}

// ResetDiskOne and ResetMgmOne apply the same field-clearing to a single
// fid, used by targeted re-derivation (e.g. after a checksum mismatch
// repair) instead of a whole-table sweep.
func (h *Handler) ResetDiskOne(fsid uint32, fid uint64) error {
	return h.mutateOne(fsid, fid, func(r *Record) {
		r.DiskSize = Undef
		r.DiskChecksum = ""
		r.FileCXError = false
		r.BlockCXError = false
	})
}

func (h *Handler) ResetMgmOne(fsid uint32, fid uint64) error {
	return h.mutateOne(fsid, fid, func(r *Record) {
		r.MgmSize = Undef
		r.MgmChecksum = ""
		r.Locations = ""
		r.LayoutError = ErrNone
	})
}

func (h *Handler) mutateOne(fsid uint32, fid uint64, f func(*Record)) error {
	sh, err := h.getShard(fsid)
	if err != nil {
		return err
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(recordBucket)
		if bkt == nil {
			return ErrNoSuchShard
		}
		key := recordKey(fid)
		v := bkt.Get(key)
		if v == nil {
			return ErrRecordNotFound
		}
		rec, err := decodeRecord(v)
		if err != nil {
			return err
		}
		f(&rec)
		buf, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		return bkt.Put(key, buf)
	})
}

// mutateAll applies f to every record in fsid's table, in place.
func (h *Handler) mutateAll(fsid uint32, f func(*Record)) error {
	sh, err := h.getShard(fsid)
	if err != nil {
		return err
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(recordBucket)
		if bkt == nil {
			return ErrNoSuchShard
		}
		c := bkt.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			rec, err := decodeRecord(v)
			if err != nil {
				continue
			}
			f(&rec)
			buf, err := encodeRecord(rec)
			if err != nil {
				return err
			}
			if err := bkt.Put(k, buf); err != nil {
				return err
			}
		}
		return nil
	})
}

// DiskObservation is one file's disk-derived metadata, as read by the
// resync disk sweep.
type DiskObservation struct {
	Size         uint64
	ChecksumHex  string
	CheckTime    Timestamp
	FileCXError  bool
	BlockCXError bool
}

// ApplyDiskObservation merges a disk sweep's findings for fid into its
// record (creating one if absent), making the disk the authoritative
// source for Size/Checksum per §4.4 step 3. If flagOrphan is set the
// record's LayoutError is seeded with ErrOrphan so that any fid the MGM
// sweep does not subsequently claim stays flagged.
func (h *Handler) ApplyDiskObservation(fsid uint32, fid uint64, obs DiskObservation, flagOrphan bool) error {
	sh, err := h.getShard(fsid)
	if err != nil {
		return err
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(recordBucket)
		if bkt == nil {
			return ErrNoSuchShard
		}
		key := recordKey(fid)
		var rec Record
		if v := bkt.Get(key); v != nil {
			if rec, err = decodeRecord(v); err != nil {
				rec = Record{}
			}
		}
		rec.Fid = fid
		rec.Fsid = fsid
		rec.Size = obs.Size
		rec.DiskSize = uint32(obs.Size)
		rec.Checksum = obs.ChecksumHex
		rec.DiskChecksum = obs.ChecksumHex
		rec.CheckTime = obs.CheckTime
		rec.FileCXError = obs.FileCXError
		rec.BlockCXError = obs.BlockCXError
		if flagOrphan {
			rec.LayoutError = ErrOrphan
		}
		buf, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		return bkt.Put(key, buf)
	})
}

// ForEach iterates every record stored for fsid in key order, stopping (and
// returning f's error) on the first error f returns.
func (h *Handler) ForEach(fsid uint32, f func(Record) error) error {
	sh, err := h.getShard(fsid)
	if err != nil {
		return err
	}
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(recordBucket)
		if bkt == nil {
			return nil
		}
		return bkt.ForEach(func(_, v []byte) error {
			rec, err := decodeRecord(v)
			if err != nil {
				return err
			}
			return f(rec)
		})
	})
}

// OpenFsids returns the fsids currently open, for diagnostics.
func (h *Handler) OpenFsids() []uint32 {
	h.mtx.RLock()
	defer h.mtx.RUnlock()
	out := make([]uint32, 0, len(h.shards))
	for fsid := range h.shards {
		out = append(out, fsid)
	}
	return out
}

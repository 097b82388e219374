/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package fmd implements the per-FST file-metadata store (C3): a durable
// key-value record of every replica a storage node hosts, keyed by
// (fsid, fid), backed by one bbolt bucket per fsid. The sharded-map design
// (one *bolt.DB/shard per fsid, each owning its own RWMutex) replaces the
// teacher's single bolt-backed IngestCache with the two-level locking the
// spec calls for: an outer map lock for fsid lookup, an inner per-fsid lock
// for record access, grounded on cache.go's bolt.Open/db.Update pattern but
// sharded instead of singular.
package fmd

import (
	"time"
)

// Undef is the sentinel for an unset size/checksum observation (2^32-15).
const Undef uint32 = 0xFFFFFFF1

// LayoutKind is the layout family packed into Lid.
type LayoutKind uint8

const (
	LayoutPlain   LayoutKind = 0
	LayoutReplica LayoutKind = 1
	LayoutRaid6   LayoutKind = 2 // erasure-coded
)

// ChecksumKind enumerates the supported whole-file/block checksum
// algorithms; the algorithms themselves are an external collaborator
// (spec.md §1 non-goals) and are consumed only as an opaque tag here.
type ChecksumKind uint8

const (
	ChecksumNone ChecksumKind = iota
	ChecksumAdler
	ChecksumCRC32
	ChecksumCRC32C
	ChecksumMD5
	ChecksumSHA1
)

// Lid is the packed layout descriptor: layout kind, stripe count, whole-file
// checksum kind, block checksum kind.
type Lid uint32

const (
	lidKindShift    = 0
	lidKindMask     = 0xF
	lidStripeShift  = 4
	lidStripeMask   = 0x3F
	lidXsShift      = 10
	lidXsMask       = 0xF
	lidBlockXsShift = 14
	lidBlockXsMask  = 0xF
)

// MakeLid packs a layout descriptor. replicas is the number of copies (for
// LayoutPlain/LayoutReplica) or data+parity stripes (for LayoutRaid6).
func MakeLid(kind LayoutKind, replicas int, xs, blockXs ChecksumKind) Lid {
	stripeNumber := replicas - 1
	if stripeNumber < 0 {
		stripeNumber = 0
	}
	return Lid(uint32(kind)&lidKindMask |
		(uint32(stripeNumber)&lidStripeMask)<<lidStripeShift |
		(uint32(xs)&lidXsMask)<<lidXsShift |
		(uint32(blockXs)&lidBlockXsMask)<<lidBlockXsShift)
}

func (l Lid) Kind() LayoutKind { return LayoutKind((uint32(l) >> lidKindShift) & lidKindMask) }

// StripeNumber returns replicas-1 (the "stripe number", per the original
// naming); the expected replica/stripe count is StripeNumber()+1.
func (l Lid) StripeNumber() int { return int((uint32(l) >> lidStripeShift) & lidStripeMask) }

func (l Lid) ChecksumKind() ChecksumKind {
	return ChecksumKind((uint32(l) >> lidXsShift) & lidXsMask)
}

func (l Lid) BlockChecksumKind() ChecksumKind {
	return ChecksumKind((uint32(l) >> lidBlockXsShift) & lidBlockXsMask)
}

func (l Lid) IsErasure() bool { return l.Kind() == LayoutRaid6 }
func (l Lid) IsReplica() bool { return l.Kind() == LayoutReplica }

// WithChecksumKind returns a copy of l with its whole-file/block checksum
// kinds replaced, used by the balance scheduler's transfer-layout mask
// (spec §4.7 step 5) which forces block checksum (and, for erasure,
// whole-file checksum too) to none for single-stripe pulls.
func (l Lid) WithChecksumKind(xs, blockXs ChecksumKind) Lid {
	return MakeLid(l.Kind(), l.StripeNumber()+1, xs, blockXs)
}

// LayoutError is the three-bit orphan|unregistered|replica-wrong bitfield.
type LayoutError uint8

const (
	ErrNone         LayoutError = 0
	ErrOrphan       LayoutError = 1 << 0
	ErrReplicaWrong LayoutError = 1 << 1
	ErrUnregistered LayoutError = 1 << 2
)

func (e LayoutError) Has(bit LayoutError) bool { return e&bit != 0 }

func (e LayoutError) String() string {
	if e == ErrNone {
		return "ok"
	}
	s := ""
	if e.Has(ErrOrphan) {
		s += "orphan|"
	}
	if e.Has(ErrReplicaWrong) {
		s += "replica_wrong|"
	}
	if e.Has(ErrUnregistered) {
		s += "unregistered|"
	}
	if n := len(s); n > 0 {
		s = s[:n-1]
	}
	return s
}

// Timestamp is a unix-seconds-plus-nanoseconds pair, matching ctime/mtime/
// atime/checktime's on-wire shape.
type Timestamp struct {
	Sec  int64
	Nsec int64
}

func Now() Timestamp {
	t := time.Now()
	return Timestamp{Sec: t.Unix(), Nsec: int64(t.Nanosecond())}
}

func (t Timestamp) Time() time.Time { return time.Unix(t.Sec, t.Nsec) }

func (t Timestamp) Before(o Timestamp) bool {
	if t.Sec != o.Sec {
		return t.Sec < o.Sec
	}
	return t.Nsec < o.Nsec
}

// Record is the unit of per-replica metadata (FileRecord / Fmd, §3.1).
type Record struct {
	Fid  uint64
	Fsid uint32

	Size     uint64
	DiskSize uint32
	MgmSize  uint32

	Checksum     string
	DiskChecksum string
	MgmChecksum  string

	CTime     Timestamp
	MTime     Timestamp
	ATime     Timestamp
	CheckTime Timestamp

	Lid Lid

	Uid uint32
	Gid uint32
	Cid uint64

	FileCXError  bool
	BlockCXError bool
	LayoutError  LayoutError

	// Locations is the comma-separated fsid list as observed by the MGM;
	// entries may be prefixed "!" to mark an unlinked stripe.
	Locations string
}

// sizeDisagrees reports whether a non-sentinel observed size differs from
// the authoritative Size.
func sizeDisagrees(observed uint32, authoritative uint64) bool {
	return observed != Undef && uint64(observed) != authoritative
}

// checksumDisagrees reports whether a non-empty observed checksum differs
// from the authoritative one. An empty observed checksum means no
// observation yet and never counts as a disagreement.
func checksumDisagrees(observed, authoritative string) bool {
	return observed != "" && observed != authoritative
}

// Consistent reports whether every non-sentinel disk/mgm-observed field
// agrees with the authoritative size/checksum (the invariant guarded by
// Get without force=true).
func (r Record) Consistent() bool {
	if sizeDisagrees(r.DiskSize, r.Size) || sizeDisagrees(r.MgmSize, r.Size) {
		return false
	}
	if checksumDisagrees(r.DiskChecksum, r.Checksum) || checksumDisagrees(r.MgmChecksum, r.Checksum) {
		return false
	}
	return true
}

// ParseLocations splits a Locations string into fsids, stripping any "!"
// unlinked-stripe marker, and reports whether fsid appears (stripped).
func ParseLocations(locations string, fsid uint32) (ids []uint32, present bool) {
	if locations == "" {
		return nil, false
	}
	start := 0
	for i := 0; i <= len(locations); i++ {
		if i == len(locations) || locations[i] == ',' {
			tok := locations[start:i]
			start = i + 1
			if tok == "" {
				continue
			}
			if tok[0] == '!' {
				tok = tok[1:]
			}
			var v uint32
			for _, c := range tok {
				if c < '0' || c > '9' {
					v = 0
					goto skip
				}
				v = v*10 + uint32(c-'0')
			}
			ids = append(ids, v)
			if v == fsid {
				present = true
			}
		skip:
		}
	}
	return
}

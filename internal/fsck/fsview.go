package fsck

// FsInfo is the subset of a filesystem's fs-view state the collector needs
// to decide booted/drain/online status for show_offline (§4.5, §4.8).
type FsInfo struct {
	Fsid          uint32
	Booted        bool
	ConfigAtLeast string // "off" | "drain" | "on" - compared against "drain"
	Online        bool
}

// inDrainOrBetter reports whether a FsInfo satisfies "booted and
// config>=drain and online" - the set show_offline excludes.
func (fi FsInfo) inDrainOrBetter() bool {
	if !fi.Booted || !fi.Online {
		return false
	}
	switch fi.ConfigAtLeast {
	case "drain", "on":
		return true
	default:
		return false
	}
}

// FsViewReader is what the FSCK collector consumes to run show_offline and
// zero_replica. Filesystems is backed by the fs-view façade (C8,
// internal/fsview); the remaining methods model the external namespace
// view (file placement/replica metadata) that C8 does not own but that
// the original system also treats as an always-consumed dependency. fsck
// never mutates either.
type FsViewReader interface {
	// Filesystems returns a snapshot of every registered filesystem,
	// sourced from the C8 façade.
	Filesystems() []FsInfo
	// LocationsOf returns the fsids a fid is currently registered on,
	// mirroring fmd.ParseLocations's view of the namespace-side record.
	LocationsOf(fid uint64) (fsids []uint32, stripeCount int, parityStripes int, ok bool)
	// FidsOnFilesystem streams, in FID_CACHE_LIST_SZ-sized batches, the
	// fids the namespace currently places on fsid. yield returning false
	// stops the stream early.
	FidsOnFilesystem(fsid uint32, yield func(fid uint64) bool)
	// ZeroReplicaFids streams fids the namespace believes have zero
	// replicas, via a namespace view iterator (§4.5).
	ZeroReplicaFids(yield func(fid uint64) bool)
}

// offlineFsids returns the fsids in view that are NOT {booted, config>=drain,
// online} - the set show_offline walks to mark fids rep_offline (§4.5).
func offlineFsids(view FsViewReader) map[uint32]bool {
	offline := make(map[uint32]bool)
	for _, fi := range view.Filesystems() {
		if !fi.inDrainOrBetter() {
			offline[fi.Fsid] = true
		}
	}
	return offline
}

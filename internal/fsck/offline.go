package fsck

// ApplyShowOffline walks view for filesystems that are not {booted, config
// >= drain, online}, marks every fid placed on one of them rep_offline,
// then cross-checks the union of rep_offline and rep_diff_n fids: a fid
// with every replica offline goes to file_offline, one with only some
// offline goes to adjust_replica. For an erasure layout "all offline" means
// the offline count exceeds the parity stripe count (§4.5).
func ApplyShowOffline(e *ErrorMap, view FsViewReader) {
	offline := offlineFsids(view)
	if len(offline) == 0 {
		return
	}

	repOffline := make(map[uint64]bool)
	for fsid := range offline {
		view.FidsOnFilesystem(fsid, func(fid uint64) bool {
			repOffline[fid] = true
			e.Add("rep_offline", fsid, fid)
			return true
		})
	}

	candidates := make(map[uint64]bool, len(repOffline))
	for fid := range repOffline {
		candidates[fid] = true
	}
	for _, fsid := range e.Fsids("rep_diff_n") {
		for _, fid := range e.Fids("rep_diff_n", fsid) {
			candidates[fid] = true
		}
	}

	for fid := range candidates {
		locs, _, parity, ok := view.LocationsOf(fid)
		if !ok || len(locs) == 0 {
			continue
		}
		var offlineCount int
		for _, fsid := range locs {
			if offline[fsid] {
				offlineCount++
			}
		}
		if offlineCount == 0 {
			continue
		}
		allOffline := offlineCount >= len(locs)
		if parity > 0 {
			allOffline = offlineCount > parity
		}
		anyFsid := locs[0]
		if allOffline {
			e.Add("file_offline", anyFsid, fid)
		} else {
			e.Add("adjust_replica", anyFsid, fid)
		}
	}
}

// ApplyZeroReplica adds every fid view reports as having zero replicas
// under the zero_replica[0] class (§4.5).
func ApplyZeroReplica(e *ErrorMap, view FsViewReader) {
	view.ZeroReplicaFids(func(fid uint64) bool {
		e.Add("zero_replica", 0, fid)
		return true
	})
}

package resync

import "github.com/eoscore/metacore/internal/fmd"

// InconsistencyStats is the result of get_inconsistency_statistics(fsid)
// (§4.4): counters plus the fid sets backing each class.
type InconsistencyStats struct {
	MemN       int
	DSyncN     int
	MSyncN     int
	DMemSzDiff int
	MMemSzDiff int
	DCxDiff    int
	MCxDiff    int
	OrphansN   int
	UnregN     int
	RepDiffN   int

	DSyncFids     []uint64
	MSyncFids     []uint64
	OrphanFids    []uint64
	UnregFids     []uint64
	RepDiffFids   []uint64
	DMemSzFids    []uint64
	MMemSzFids    []uint64
	DCxDiffFids   []uint64
	MCxDiffFids   []uint64
}

// Classes returns the non-empty err-tag -> fid-set pairs, in the vocabulary
// the FSCK collector expects back from a cmd=fsck broadcast (§4.5).
func (s InconsistencyStats) Classes() map[string][]uint64 {
	out := make(map[string][]uint64)
	add := func(tag string, fids []uint64) {
		if len(fids) > 0 {
			out[tag] = fids
		}
	}
	add("d_sync_n", s.DSyncFids)
	add("m_sync_n", s.MSyncFids)
	add("orphans_n", s.OrphanFids)
	add("unreg_n", s.UnregFids)
	add("rep_diff_n", s.RepDiffFids)
	add("d_mem_sz_diff", s.DMemSzFids)
	add("m_mem_sz_diff", s.MMemSzFids)
	add("d_cx_diff", s.DCxDiffFids)
	add("m_cx_diff", s.MCxDiffFids)
	return out
}

// Stats computes get_inconsistency_statistics(fsid) by scanning fsid's
// table. While the fsid is marked syncing, every counter is zero (§4.4).
func (e *Engine) Stats(fsid uint32) (InconsistencyStats, error) {
	var s InconsistencyStats
	if e.Syncing.Is(fsid) {
		return s, nil
	}
	err := e.Store.ForEach(fsid, func(r fmd.Record) error {
		s.MemN++
		if r.DiskSize == fmd.Undef {
			s.DSyncN++
			s.DSyncFids = append(s.DSyncFids, r.Fid)
		} else if uint64(r.DiskSize) != r.Size {
			s.DMemSzDiff++
			s.DMemSzFids = append(s.DMemSzFids, r.Fid)
		}
		if r.MgmSize == fmd.Undef {
			s.MSyncN++
			s.MSyncFids = append(s.MSyncFids, r.Fid)
		} else if uint64(r.MgmSize) != r.Size {
			s.MMemSzDiff++
			s.MMemSzFids = append(s.MMemSzFids, r.Fid)
		}
		if r.DiskChecksum != "" && r.DiskChecksum != r.Checksum {
			s.DCxDiff++
			s.DCxDiffFids = append(s.DCxDiffFids, r.Fid)
		}
		if r.MgmChecksum != "" && r.MgmChecksum != r.Checksum {
			s.MCxDiff++
			s.MCxDiffFids = append(s.MCxDiffFids, r.Fid)
		}
		if r.LayoutError.Has(fmd.ErrOrphan) {
			s.OrphansN++
			s.OrphanFids = append(s.OrphanFids, r.Fid)
		}
		if r.LayoutError.Has(fmd.ErrUnregistered) {
			s.UnregN++
			s.UnregFids = append(s.UnregFids, r.Fid)
		}
		if r.LayoutError.Has(fmd.ErrReplicaWrong) {
			s.RepDiffN++
			s.RepDiffFids = append(s.RepDiffFids, r.Fid)
		}
		return nil
	})
	return s, err
}

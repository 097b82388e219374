package fsck

import "github.com/eoscore/metacore/internal/fsview"

// ViewAdapter satisfies FsViewReader's Filesystems method directly from the
// C8 façade; the namespace-side methods (LocationsOf, FidsOnFilesystem,
// ZeroReplicaFids) are supplied by the caller's namespace component, which
// this type embeds so cmd/mgmd can construct one FsViewReader value without
// a second adapter layer.
type ViewAdapter struct {
	*fsview.Handler
	Namespace interface {
		LocationsOf(fid uint64) (fsids []uint32, stripeCount int, parityStripes int, ok bool)
		FidsOnFilesystem(fsid uint32, yield func(fid uint64) bool)
		ZeroReplicaFids(yield func(fid uint64) bool)
	}
}

// Filesystems snapshots every registered filesystem from the façade,
// translated into the collector's narrower view.
func (a ViewAdapter) Filesystems() []FsInfo {
	snapshots := a.Handler.AllFilesystems()
	out := make([]FsInfo, 0, len(snapshots))
	for _, fs := range snapshots {
		out = append(out, FsInfo{
			Fsid:          fs.Fsid,
			Booted:        fs.Booted,
			ConfigAtLeast: fs.ConfigStatus,
			Online:        fs.Online,
		})
	}
	return out
}

func (a ViewAdapter) LocationsOf(fid uint64) ([]uint32, int, int, bool) {
	return a.Namespace.LocationsOf(fid)
}

func (a ViewAdapter) FidsOnFilesystem(fsid uint32, yield func(fid uint64) bool) {
	a.Namespace.FidsOnFilesystem(fsid, yield)
}

func (a ViewAdapter) ZeroReplicaFids(yield func(fid uint64) bool) {
	a.Namespace.ZeroReplicaFids(yield)
}

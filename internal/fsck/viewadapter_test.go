package fsck

import (
	"testing"

	"github.com/eoscore/metacore/internal/fsview"
)

type fakeNamespaceView struct{}

func (fakeNamespaceView) LocationsOf(fid uint64) ([]uint32, int, int, bool) {
	return []uint32{1}, 0, 0, true
}
func (fakeNamespaceView) FidsOnFilesystem(fsid uint32, yield func(fid uint64) bool) {}
func (fakeNamespaceView) ZeroReplicaFids(yield func(fid uint64) bool)               {}

func TestViewAdapterFilesystemsFromFacade(t *testing.T) {
	h := fsview.New()
	h.DefineSpace(fsview.Space{Name: "default", GroupSize: 4})
	h.Register(fsview.FileSystem{Fsid: 1, UUID: "u1", Queue: "/a", Space: "default", Booted: true, Online: true, ConfigStatus: "on"})

	adapter := ViewAdapter{Handler: h, Namespace: fakeNamespaceView{}}
	fis := adapter.Filesystems()
	if len(fis) != 1 || fis[0].Fsid != 1 || !fis[0].Booted || !fis[0].Online {
		t.Fatalf("unexpected filesystems snapshot: %+v", fis)
	}

	locs, _, _, ok := adapter.LocationsOf(42)
	if !ok || len(locs) != 1 {
		t.Fatalf("expected LocationsOf to delegate to namespace")
	}
}

var _ FsViewReader = ViewAdapter{}

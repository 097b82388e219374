package resync

import (
	"testing"

	"github.com/eoscore/metacore/internal/fmd"
)

func TestClassifyLayoutErrorOrphan(t *testing.T) {
	if got := ClassifyLayoutError(7, 0, ""); got != fmd.ErrOrphan {
		t.Fatalf("got %v, want ErrOrphan", got)
	}
}

func TestClassifyLayoutErrorConsistentReplica(t *testing.T) {
	lid := fmd.MakeLid(fmd.LayoutReplica, 2, fmd.ChecksumNone, fmd.ChecksumNone)
	if got := ClassifyLayoutError(7, lid, "7,8"); got != fmd.ErrNone {
		t.Fatalf("got %v, want ErrNone", got)
	}
}

func TestClassifyLayoutErrorUnlinkedMarkerStillCounts(t *testing.T) {
	lid := fmd.MakeLid(fmd.LayoutReplica, 3, fmd.ChecksumNone, fmd.ChecksumNone)
	if got := ClassifyLayoutError(7, lid, "7,!8,9"); got != fmd.ErrNone {
		t.Fatalf("got %v, want ErrNone", got)
	}
}

// TestClassifyLayoutErrorCountMismatch matches the independent-checks
// algorithm from §4.4: a short location list sets ErrReplicaWrong, and
// since fsid 7 is also absent from the list, ErrUnregistered is set too
// (the two checks are independent, not mutually exclusive). See
// DESIGN.md for why this diverges from one inconsistent worked example.
func TestClassifyLayoutErrorCountMismatch(t *testing.T) {
	lid := fmd.MakeLid(fmd.LayoutReplica, 2, fmd.ChecksumNone, fmd.ChecksumNone)
	got := ClassifyLayoutError(7, lid, "8")
	want := fmd.ErrReplicaWrong | fmd.ErrUnregistered
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestClassifyLayoutErrorUnregisteredOnly(t *testing.T) {
	lid := fmd.MakeLid(fmd.LayoutReplica, 2, fmd.ChecksumNone, fmd.ChecksumNone)
	got := ClassifyLayoutError(7, lid, "8,9")
	want := fmd.ErrUnregistered
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

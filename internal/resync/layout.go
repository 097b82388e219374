package resync

import "github.com/eoscore/metacore/internal/fmd"

// ClassifyLayoutError implements the §4.4 step-3 pseudocode verbatim: the
// two checks are independent and their results are OR'd together. lid==0
// short-circuits to kOrphan alone, since an absent layout id makes the
// stripe-count/registration checks meaningless.
//
// Two of the worked examples in the originating design note
// (layouterror(fsid=7, lid=replica-2, locs="8") and locs="8,9") are
// internally inconsistent with this verbatim reading once replica-N is
// taken to mean "N expected copies": both have fsid 7 absent from
// locations, yet one example omits kUnregistered from the result. This
// implementation follows the stated algorithm rather than the
// inconsistent examples; see DESIGN.md.
func ClassifyLayoutError(fsid uint32, lid fmd.Lid, locations string) fmd.LayoutError {
	if lid == 0 {
		return fmd.ErrOrphan
	}
	ids, present := fmd.ParseLocations(locations, fsid)
	var e fmd.LayoutError
	if lid.StripeNumber()+1 != len(ids) {
		e |= fmd.ErrReplicaWrong
	}
	if !present {
		e |= fmd.ErrUnregistered
	}
	return e
}

package fsck

import (
	"strconv"

	"github.com/eoscore/metacore/internal/fileid"
	"github.com/eoscore/metacore/utils/weave"
)

// ReportRow is one (err_tag, fsid, fid) entry, rendered for output. Fid is
// decimal by default; FidExpand controls hex/lfn expansion (§4.5).
type ReportRow struct {
	ErrTag string
	Fsid   uint32
	Fid    string
}

// FidExpand selects how a ReportRow's Fid column is rendered.
type FidExpand int

const (
	FidDecimal FidExpand = iota
	FidHex
	FidLFN
)

// LFNResolver looks up a fid's logical file name, performing one namespace
// lookup per fid (§4.5) - only used when FidExpand is FidLFN.
type LFNResolver interface {
	LookupLFN(fid uint64) (string, error)
}

// BuildReport flattens em into rows, optionally restricted to one fsid
// (fsidFilter == nil means aggregate across all fsids).
func BuildReport(em *ErrorMap, fsidFilter *uint32, expand FidExpand, lfn LFNResolver) []ReportRow {
	var rows []ReportRow
	em.Walk(func(errTag string, fsid uint32, fid uint64) {
		if fsidFilter != nil && fsid != *fsidFilter {
			return
		}
		rows = append(rows, ReportRow{ErrTag: errTag, Fsid: fsid, Fid: renderFid(fid, expand, lfn)})
	})
	return rows
}

func renderFid(fid uint64, expand FidExpand, lfn LFNResolver) string {
	switch expand {
	case FidHex:
		return fileid.ToHex(fid)
	case FidLFN:
		if lfn != nil {
			if name, err := lfn.LookupLFN(fid); err == nil {
				return name
			}
		}
		fallthrough
	default:
		return strconv.FormatUint(fid, 10)
	}
}

// reportColumns is the fixed column order for monitor-text/JSON rendering.
var reportColumns = []string{"ErrTag", "Fsid", "Fid"}

// RenderTable renders rows as a monitor-style table (§4.5).
func RenderTable(rows []ReportRow) string {
	if len(rows) == 0 {
		return ""
	}
	return weave.ToTable(rows, reportColumns)
}

// RenderJSON renders rows as a JSON array (§4.5).
func RenderJSON(rows []ReportRow) (string, error) {
	if len(rows) == 0 {
		return "[]", nil
	}
	return weave.ToJSON(rows, reportColumns)
}

package resync

import (
	"fmt"
	"strconv"
	"strings"
)

// RenderFsckReply formats stats as the plain-text reply lines a FST sends
// back to a cmd=fsck broadcast: one "err_tag=fsid:fid1,fid2,..." line per
// non-empty class (§4.5).
func RenderFsckReply(fsid uint32, stats InconsistencyStats) []string {
	classes := stats.Classes()
	lines := make([]string, 0, len(classes))
	for tag, fids := range classes {
		parts := make([]string, len(fids))
		for i, f := range fids {
			parts[i] = strconv.FormatUint(f, 10)
		}
		lines = append(lines, fmt.Sprintf("%s=%d:%s", tag, fsid, strings.Join(parts, ",")))
	}
	return lines
}

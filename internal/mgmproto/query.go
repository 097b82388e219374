package mgmproto

import "fmt"

// GetFMDQuery builds the opaque query string for "pcmd=getfmd&fid=<n>".
func GetFMDQuery(fid uint64) string {
	return fmt.Sprintf("pcmd=getfmd&fid=%d", fid)
}

// DumpMDQuery builds "pcmd=dumpmd&fsid=<n>&option=<opt>". option is
// typically "m" (metadata dump, one env-encoded record per line).
func DumpMDQuery(fsid uint32, option string) string {
	return fmt.Sprintf("pcmd=dumpmd&fsid=%d&option=%s", fsid, option)
}

// GetXAttrQuery builds "pcmd=getxattr&key=<k>&path=<p>".
func GetXAttrQuery(key, path string) string {
	return fmt.Sprintf("pcmd=getxattr&key=%s&path=%s", key, path)
}

// RewriteQuery builds "pcmd=rewrite&fxid=<hex>", the auto-repair trigger.
func RewriteQuery(fxidHex string) string {
	return fmt.Sprintf("pcmd=rewrite&fxid=%s", fxidHex)
}

// FsckBroadcastQuery builds the fsck broadcast command FSTs answer with
// their per-err-tag fid lists (§4.5).
func FsckBroadcastQuery(replyQueue string) string {
	return fmt.Sprintf("cmd=fsck&replyqueue=%s", replyQueue)
}

// The queries below carry the namespace-facing operations the rebalancer,
// drainer, and balance scheduler consume (§4.6, §4.7): the namespace
// implementation itself is out of scope (§1 Non-goals), so mgmd reaches it
// the same way it reaches an FST - an opaque query over the shared
// Transport, answered by whatever process actually owns the namespace.

// RandomFidQuery builds "pcmd=randomfid&fsid=<n>", the
// approximately_random_fid_on_fs(fsid) namespace operation.
func RandomFidQuery(fsid uint32) string {
	return fmt.Sprintf("pcmd=randomfid&fsid=%d", fsid)
}

// NumFilesQuery builds "pcmd=numfiles&fsid=<n>", the num_files_on_fs(fsid)
// namespace operation.
func NumFilesQuery(fsid uint32) string {
	return fmt.Sprintf("pcmd=numfiles&fsid=%d", fsid)
}

// FileRecordQuery builds "pcmd=filerecord&fid=<n>", fetching the namespace
// FileRecord a balance transfer candidate needs.
func FileRecordQuery(fid uint64) string {
	return fmt.Sprintf("pcmd=filerecord&fid=%d", fid)
}

// LocationsQuery builds "pcmd=locations&fid=<n>".
func LocationsQuery(fid uint64) string {
	return fmt.Sprintf("pcmd=locations&fid=%d", fid)
}

// FidsOnFsQuery builds "pcmd=fidsonfs&fsid=<n>&cursor=<c>", one
// FID_CACHE_LIST_SZ-bounded page of the streaming fids_on_filesystem
// iterator.
func FidsOnFsQuery(fsid uint32, cursor uint64) string {
	return fmt.Sprintf("pcmd=fidsonfs&fsid=%d&cursor=%d", fsid, cursor)
}

// ZeroReplicaQuery builds "pcmd=zeroreplica&cursor=<c>", one page of the
// zero-replica-files namespace view iterator.
func ZeroReplicaQuery(cursor uint64) string {
	return fmt.Sprintf("pcmd=zeroreplica&cursor=%d", cursor)
}

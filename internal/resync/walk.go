package resync

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/eoscore/metacore/internal/fileid"
	"github.com/eoscore/metacore/internal/fmd"
)

// DiskResync performs §4.4's disk sweep for fsid: reset every disk-observed
// field, depth-first walk mountPrefix skipping dotfiles and "*.xsmap"
// siblings, and merge each replica file's stat+xattrs into the FMD store.
// flagLayoutError seeds every touched record's LayoutError with
// ErrOrphan, relying on a subsequent MGM resync to clear entries the MGM
// still claims.
func DiskResync(store *fmd.Handler, xr XattrReader, fsid uint32, mountPrefix string, flagLayoutError bool) error {
	if err := store.ResetDisk(fsid); err != nil {
		return err
	}
	return filepath.WalkDir(mountPrefix, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".xsmap") {
			return nil
		}
		fid, ferr := fileid.FromHex(name)
		if ferr != nil {
			return nil // not a replica file, ignore
		}
		info, serr := d.Info()
		if serr != nil {
			return nil
		}
		attrs := readDiskAttrs(xr, path)
		obs := fmd.DiskObservation{
			Size:         uint64(info.Size()),
			ChecksumHex:  attrs.checksumHex,
			CheckTime:    fmd.Timestamp{Sec: attrs.timestampUs / 1_000_000, Nsec: (attrs.timestampUs % 1_000_000) * 1000},
			FileCXError:  attrs.fileCXError,
			BlockCXError: attrs.blockCXError,
		}
		return store.ApplyDiskObservation(fsid, fid, obs, flagLayoutError)
	})
}

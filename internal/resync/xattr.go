/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package resync implements the FMD resync engine (C4): the disk and MGM
// sweeps that keep internal/fmd aligned with what a storage node actually
// holds and with what the MGM believes it holds.
package resync

import (
	"encoding/hex"
	"strconv"

	"github.com/pkg/xattr"
)

const (
	xattrChecksum     = "user.eos.checksum"
	xattrChecksumType = "user.eos.checksumtype"
	xattrTimestamp    = "user.eos.timestamp"
	xattrFileCXError  = "user.eos.filecxerror"
	xattrBlockCXError = "user.eos.blockcxerror"
)

// XattrReader abstracts the extended-attribute reads the disk sweep needs,
// so tests can run against a fake filesystem instead of real xattrs (most
// CI filesystems/tmpfs either lack xattr support or need root).
type XattrReader interface {
	Get(path, name string) ([]byte, error)
}

// osXattrReader reads real extended attributes via github.com/pkg/xattr.
type osXattrReader struct{}

func (osXattrReader) Get(path, name string) ([]byte, error) {
	return xattr.Get(path, name)
}

// OSXattrReader is the production XattrReader.
var OSXattrReader XattrReader = osXattrReader{}

// diskAttrs is the decoded form of a replica file's extended attributes.
type diskAttrs struct {
	checksumHex  string
	timestampUs  int64
	fileCXError  bool
	blockCXError bool
}

func boolAttr(b []byte) bool {
	return string(b) == "1"
}

func readDiskAttrs(r XattrReader, path string) diskAttrs {
	var a diskAttrs
	if raw, err := r.Get(path, xattrChecksum); err == nil {
		a.checksumHex = hex.EncodeToString(raw)
	}
	if raw, err := r.Get(path, xattrTimestamp); err == nil {
		if ts, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
			a.timestampUs = ts
		}
	}
	if raw, err := r.Get(path, xattrFileCXError); err == nil {
		a.fileCXError = boolAttr(raw)
	}
	if raw, err := r.Get(path, xattrBlockCXError); err == nil {
		a.blockCXError = boolAttr(raw)
	}
	return a
}

// WriteChecksumAttr stores a hex checksum back onto a replica file's
// extended attributes, used by repair tasks that re-derive a checksum.
func WriteChecksumAttr(path string, checksumHex string) error {
	raw, err := hex.DecodeString(checksumHex)
	if err != nil {
		return err
	}
	return xattr.Set(path, xattrChecksum, raw)
}

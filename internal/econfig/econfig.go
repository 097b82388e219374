/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package econfig loads the ini-style config files consumed by mgmd and
// fstd. Parsing is delegated to gcfg so that config structs are declared as
// plain Go structs with gcfg section tags; this package only adds the
// byte-size-suffix helper and file-size guarding the teacher's config
// loader carried around gcfg.
package econfig

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gravwell/gcfg"
	"github.com/spf13/viper"
)

const (
	kb = 1024
	mb = 1024 * kb
	gb = 1024 * mb

	// maxConfigSize bounds the config file we'll read into memory.
	maxConfigSize int64 = 4 * mb
)

var (
	ErrConfigFileTooLarge = errors.New("config file is too large")
	ErrFailedFileRead     = errors.New("failed to read entire config file")
)

// LoadFile reads p and unmarshals it into v via gcfg's ini-style decoder.
func LoadFile(v interface{}, p string) (err error) {
	var fin *os.File
	var fi os.FileInfo
	var n int64
	if fin, err = os.Open(p); err != nil {
		return
	}
	defer fin.Close()
	if fi, err = fin.Stat(); err != nil {
		return
	} else if fi.Size() > maxConfigSize {
		return ErrConfigFileTooLarge
	}
	bb := bytes.NewBuffer(nil)
	if n, err = io.Copy(bb, fin); err != nil {
		return
	} else if n != fi.Size() {
		return ErrFailedFileRead
	}
	return LoadBytes(v, bb.Bytes())
}

// LoadBytes unmarshals the ini-style contents of b into v.
func LoadBytes(v interface{}, b []byte) error {
	if int64(len(b)) > maxConfigSize {
		return ErrConfigFileTooLarge
	}
	return gcfg.ReadStringInto(v, string(b))
}

// AppendDefaultPort appends defPort to bstr if bstr has no port component,
// used to normalize FileSystem "host:port" fields read from config or the
// fs-view.
func AppendDefaultPort(bstr string, defPort uint16) string {
	if _, _, err := net.SplitHostPort(bstr); err != nil {
		if strings.HasSuffix(err.Error(), `missing port in address`) {
			return bstr + ":" + strconv.FormatUint(uint64(defPort), 10)
		}
	}
	return bstr
}

type multSuff struct {
	mult int64
	sfx  string
}

var sizeSuffix = []multSuff{
	{gb, `gb`}, {gb, `g`},
	{mb, `mb`}, {mb, `m`},
	{kb, `kb`}, {kb, `k`},
}

// ParseSize parses a byte-size string with optional k/m/g (or kb/mb/gb)
// suffix, e.g. "512mb" -> 512*1024*1024.
func ParseSize(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	ls := strings.ToLower(strings.TrimSpace(s))
	for _, v := range sizeSuffix {
		if strings.HasSuffix(ls, v.sfx) {
			n, err := strconv.ParseInt(strings.TrimSuffix(ls, v.sfx), 10, 64)
			if err != nil {
				return 0, err
			}
			return n * v.mult, nil
		}
	}
	return strconv.ParseInt(ls, 10, 64)
}

// ParseDuration is a thin wrapper over time.ParseDuration kept here so that
// config structs only need to import this package for all scalar coercions.
func ParseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}

// ApplyEnvOverlay overrides the given gcfg-loaded fields from environment
// variables named prefix_KEY (viper's AutomaticEnv convention, e.g.
// "MGMD_LISTENADDR"), the same config-file-plus-env-overlay shape the apfs
// disk loader applies on top of its own file config. Keys with no matching,
// non-empty environment variable are left untouched.
func ApplyEnvOverlay(prefix string, fields map[string]*string) {
	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	for key, dest := range fields {
		if val := v.GetString(key); val != "" {
			*dest = val
		}
	}
}

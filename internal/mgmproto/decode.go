package mgmproto

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/eoscore/metacore/internal/fmd"
)

var (
	ErrMalformedReply = errors.New("mgmproto: malformed reply line")
	ErrNotFound        = errors.New("mgmproto: ENODATA")
)

// ParseGetFMDReply parses a single "getfmd: retc=<n> <env>" or "ERROR..."
// reply line. retc=2 (ENOENT) is reported as ErrNotFound per §4.4's
// single-fid MGM resync contract.
func ParseGetFMDReply(line string) (Env, error) {
	line = strings.TrimSpace(line)
	if IsError(line) {
		return nil, ErrMalformedReply
	}
	rest := strings.TrimPrefix(line, "getfmd: ")
	if rest == line {
		return nil, ErrMalformedReply
	}
	fields := strings.SplitN(rest, " ", 2)
	if len(fields) != 2 || !strings.HasPrefix(fields[0], "retc=") {
		return nil, ErrMalformedReply
	}
	retc, err := strconv.Atoi(strings.TrimPrefix(fields[0], "retc="))
	if err != nil {
		return nil, ErrMalformedReply
	}
	if retc == 2 {
		return nil, ErrNotFound
	}
	if retc != 0 {
		return nil, ErrMalformedReply
	}
	return DecodeEnv(fields[1])
}

// requiredDumpMDKeys are the keys §4.4 step 2 requires in every dumpmd
// line.
var requiredDumpMDKeys = []string{
	"id", "cid", "ctime", "ctime_ns", "mtime", "mtime_ns", "size", "checksum", "lid", "uid", "gid", "location",
}

// RecordFromEnv builds a partial fmd.Record (MGM-observed fields only) from
// one dumpmd/getfmd env. fsid is the fsid this dump was requested for.
func RecordFromEnv(fsid uint32, e Env) (fmd.Record, error) {
	for _, k := range requiredDumpMDKeys {
		if _, ok := e[k]; !ok {
			return fmd.Record{}, ErrMalformedReply
		}
	}
	fid, _ := e.Uint64("id")
	cid, _ := e.Uint64("cid")
	ctime, _ := e.Int64("ctime")
	ctimeNs, _ := e.Int64("ctime_ns")
	mtime, _ := e.Int64("mtime")
	mtimeNs, _ := e.Int64("mtime_ns")
	size, _ := e.Uint64("size")
	lidRaw, _ := e.Uint32("lid")
	uid, _ := e.Uint32("uid")
	gid, _ := e.Uint32("gid")

	return fmd.Record{
		Fid:         fid,
		Fsid:        fsid,
		Size:        size,
		MgmSize:     uint32(size),
		Checksum:    e["checksum"],
		MgmChecksum: e["checksum"],
		CTime:       fmd.Timestamp{Sec: ctime, Nsec: ctimeNs},
		MTime:       fmd.Timestamp{Sec: mtime, Nsec: mtimeNs},
		Lid:         fmd.Lid(lidRaw),
		Uid:         uid,
		Gid:         gid,
		Cid:         cid,
		Locations:   e["location"],
	}, nil
}

// DumpMDStream decodes one env-encoded record per line from r, calling f
// for each successfully-parsed record. A line that fails to parse is
// skipped rather than aborting the whole stream, since a single corrupt
// line from a large dump should not discard the rest.
func DumpMDStream(r io.Reader, fsid uint32, f func(fmd.Record) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || IsError(line) {
			continue
		}
		env, err := DecodeEnv(line)
		if err != nil {
			continue
		}
		rec, err := RecordFromEnv(fsid, env)
		if err != nil {
			continue
		}
		if err := f(rec); err != nil {
			return err
		}
	}
	return sc.Err()
}

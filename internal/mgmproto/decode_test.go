package mgmproto

import (
	"strings"
	"testing"

	"github.com/eoscore/metacore/internal/fmd"
)

func TestParseGetFMDReplyOK(t *testing.T) {
	env, err := ParseGetFMDReply("getfmd: retc=0 id=42&cid=1&size=100")
	if err != nil {
		t.Fatalf("ParseGetFMDReply: %v", err)
	}
	if env["id"] != "42" {
		t.Fatalf("unexpected env: %+v", env)
	}
}

func TestParseGetFMDReplyNotFound(t *testing.T) {
	if _, err := ParseGetFMDReply("getfmd: retc=2 id=42"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDumpMDStreamSkipsBadLines(t *testing.T) {
	in := strings.Join([]string{
		"id=1&cid=1&ctime=1&ctime_ns=0&mtime=1&mtime_ns=0&size=10&checksum=aa&lid=1&uid=0&gid=0&location=1,2",
		"garbage line with no required keys",
		"id=2&cid=1&ctime=1&ctime_ns=0&mtime=1&mtime_ns=0&size=20&checksum=bb&lid=1&uid=0&gid=0&location=1,2",
	}, "\n")

	var got []uint64
	err := DumpMDStream(strings.NewReader(in), 1, func(r fmd.Record) error {
		got = append(got, r.Fid)
		return nil
	})
	if err != nil {
		t.Fatalf("DumpMDStream: %v", err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("unexpected records: %v", got)
	}
}

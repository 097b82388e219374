package fsck

import "testing"

func TestParseReplyLine(t *testing.T) {
	tag, fsid, fids, err := ParseReplyLine("d_mem_sz_diff=5:10,11,12")
	if err != nil {
		t.Fatalf("ParseReplyLine: %v", err)
	}
	if tag != "d_mem_sz_diff" || fsid != 5 {
		t.Fatalf("unexpected tag/fsid: %s %d", tag, fsid)
	}
	if len(fids) != 3 || fids[0] != 10 || fids[2] != 12 {
		t.Fatalf("unexpected fids: %v", fids)
	}
}

func TestParseReplyLineEmptyFidList(t *testing.T) {
	tag, fsid, fids, err := ParseReplyLine("orphans_n=2:")
	if err != nil {
		t.Fatalf("ParseReplyLine: %v", err)
	}
	if tag != "orphans_n" || fsid != 2 || len(fids) != 0 {
		t.Fatalf("unexpected: %s %d %v", tag, fsid, fids)
	}
}

func TestParseReplyLineMalformed(t *testing.T) {
	if _, _, _, err := ParseReplyLine("garbage"); err == nil {
		t.Fatalf("expected error for malformed line")
	}
	if _, _, _, err := ParseReplyLine("tag=nofid"); err == nil {
		t.Fatalf("expected error for missing colon")
	}
}

func TestErrorMapMergeLineAndWalk(t *testing.T) {
	em := NewErrorMap()
	if err := em.MergeLine("unreg_n=1:100,101"); err != nil {
		t.Fatalf("MergeLine: %v", err)
	}
	if err := em.MergeLine("unreg_n=2:200"); err != nil {
		t.Fatalf("MergeLine: %v", err)
	}
	if em.Count() != 3 {
		t.Fatalf("expected 3 entries, got %d", em.Count())
	}
	fids := em.Fids("unreg_n", 1)
	if len(fids) != 2 {
		t.Fatalf("expected 2 fids for fsid=1, got %v", fids)
	}
}

func TestErrorMapMergeLineDeduplicates(t *testing.T) {
	em := NewErrorMap()
	em.MergeLine("orphans_n=1:5")
	em.MergeLine("orphans_n=1:5")
	if em.Count() != 1 {
		t.Fatalf("expected dedup to 1 entry, got %d", em.Count())
	}
}

package fsck

import "testing"

func TestBuildReportFiltersByFsid(t *testing.T) {
	em := NewErrorMap()
	em.Add("orphans_n", 1, 10)
	em.Add("orphans_n", 2, 20)

	fsid := uint32(1)
	rows := BuildReport(em, &fsid, FidDecimal, nil)
	if len(rows) != 1 || rows[0].Fid != "10" {
		t.Fatalf("expected filtered single row, got %+v", rows)
	}

	all := BuildReport(em, nil, FidDecimal, nil)
	if len(all) != 2 {
		t.Fatalf("expected aggregate rows, got %d", len(all))
	}
}

func TestBuildReportHexExpansion(t *testing.T) {
	em := NewErrorMap()
	em.Add("unreg_n", 1, 255)
	rows := BuildReport(em, nil, FidHex, nil)
	if len(rows) != 1 || rows[0].Fid != "000000ff" {
		t.Fatalf("unexpected hex rendering: %+v", rows)
	}
}

type fakeLFN struct{}

func (fakeLFN) LookupLFN(fid uint64) (string, error) { return "/eos/file", nil }

func TestBuildReportLFNExpansion(t *testing.T) {
	em := NewErrorMap()
	em.Add("unreg_n", 1, 1)
	rows := BuildReport(em, nil, FidLFN, fakeLFN{})
	if rows[0].Fid != "/eos/file" {
		t.Fatalf("expected lfn expansion, got %q", rows[0].Fid)
	}
}

func TestRenderTableAndJSON(t *testing.T) {
	rows := []ReportRow{{ErrTag: "orphans_n", Fsid: 1, Fid: "10"}}
	if tbl := RenderTable(rows); tbl == "" {
		t.Fatalf("expected non-empty table")
	}
	js, err := RenderJSON(rows)
	if err != nil {
		t.Fatalf("RenderJSON: %v", err)
	}
	if js == "" || js == "[]" {
		t.Fatalf("expected non-empty JSON, got %q", js)
	}
}

func TestRenderEmptyRows(t *testing.T) {
	if tbl := RenderTable(nil); tbl != "" {
		t.Fatalf("expected empty table for no rows")
	}
	js, err := RenderJSON(nil)
	if err != nil || js != "[]" {
		t.Fatalf("expected empty JSON array, got %q err=%v", js, err)
	}
}

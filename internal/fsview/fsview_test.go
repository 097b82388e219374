package fsview

import "testing"

func TestRegisterAppliesSpaceDefaultGroup(t *testing.T) {
	h := New()
	h.DefineSpace(Space{Name: "default", GroupSize: 2, GroupMod: 0})

	if err := h.Register(FileSystem{Fsid: 1, UUID: "u1", Queue: "/fst01", Host: "fst01", Space: "default"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	fs, ok := h.Snapshot(1)
	if !ok || fs.Group == "" {
		t.Fatalf("expected auto-assigned group, got %+v ok=%v", fs, ok)
	}
	if fs.Group != "default.0" {
		t.Fatalf("expected first group default.0, got %s", fs.Group)
	}
}

func TestRegisterAvoidsSameHostInGroup(t *testing.T) {
	h := New()
	h.DefineSpace(Space{Name: "default", GroupSize: 2})

	if err := h.Register(FileSystem{Fsid: 1, UUID: "u1", Queue: "/a", Host: "fst01", Space: "default"}); err != nil {
		t.Fatal(err)
	}
	if err := h.Register(FileSystem{Fsid: 2, UUID: "u2", Queue: "/b", Host: "fst01", Space: "default"}); err != nil {
		t.Fatal(err)
	}
	fs2, _ := h.Snapshot(2)
	if fs2.Group == "default.0" {
		t.Fatalf("expected second fs on same host to avoid group default.0, got %s", fs2.Group)
	}
}

func TestRegisterFillsGroupBeforeMintingNew(t *testing.T) {
	h := New()
	h.DefineSpace(Space{Name: "default", GroupSize: 2})

	h.Register(FileSystem{Fsid: 1, UUID: "u1", Queue: "/a", Host: "h1", Space: "default"})
	h.Register(FileSystem{Fsid: 2, UUID: "u2", Queue: "/b", Host: "h2", Space: "default"})
	fs2, _ := h.Snapshot(2)
	if fs2.Group != "default.0" {
		t.Fatalf("expected second distinct-host fs to fill group default.0, got %s", fs2.Group)
	}
}

func TestRegisterRejectsDuplicateFsidAndQueue(t *testing.T) {
	h := New()
	h.DefineSpace(Space{Name: "default", GroupSize: 2})
	if err := h.Register(FileSystem{Fsid: 1, UUID: "u1", Queue: "/a", Space: "default"}); err != nil {
		t.Fatal(err)
	}
	if err := h.Register(FileSystem{Fsid: 1, UUID: "u2", Queue: "/b", Space: "default"}); err != ErrFilesystemExists {
		t.Fatalf("expected ErrFilesystemExists, got %v", err)
	}
	if err := h.Register(FileSystem{Fsid: 2, UUID: "u2", Queue: "/a", Space: "default"}); err != ErrQueuePathInUse {
		t.Fatalf("expected ErrQueuePathInUse, got %v", err)
	}
}

func TestUnregisterRemovesFromGroup(t *testing.T) {
	h := New()
	h.DefineSpace(Space{Name: "default", GroupSize: 2})
	h.Register(FileSystem{Fsid: 1, UUID: "u1", Queue: "/a", Space: "default"})
	if err := h.Unregister(1); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if _, ok := h.Snapshot(1); ok {
		t.Fatalf("expected fs gone after unregister")
	}
	g, _ := h.GroupSnapshot("default.0")
	if len(g.Members) != 0 {
		t.Fatalf("expected group emptied, got %v", g.Members)
	}
}

func TestCreateMappingIdempotent(t *testing.T) {
	h := New()
	a, err := h.CreateMapping("uuid-1")
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.CreateMapping("uuid-1")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("expected idempotent mapping, got %d and %d", a, b)
	}
}

func TestMoveToGroup(t *testing.T) {
	h := New()
	h.DefineSpace(Space{Name: "default", GroupSize: 2})
	h.Register(FileSystem{Fsid: 1, UUID: "u1", Queue: "/a", Space: "default", Group: "g1"})

	if err := h.MoveToGroup(1, "g2"); err != nil {
		t.Fatalf("MoveToGroup: %v", err)
	}
	fs, _ := h.Snapshot(1)
	if fs.Group != "g2" {
		t.Fatalf("expected group g2, got %s", fs.Group)
	}
	g1, _ := h.GroupSnapshot("g1")
	if len(g1.Members) != 0 {
		t.Fatalf("expected g1 emptied")
	}
}

func TestGroupFullReturnsErrorWhenGroupModExhausted(t *testing.T) {
	h := New()
	h.DefineSpace(Space{Name: "default", GroupSize: 1, GroupMod: 1})
	if err := h.Register(FileSystem{Fsid: 1, UUID: "u1", Queue: "/a", Host: "h1", Space: "default"}); err != nil {
		t.Fatal(err)
	}
	if err := h.Register(FileSystem{Fsid: 2, UUID: "u2", Queue: "/b", Host: "h2", Space: "default"}); err != ErrGroupFull {
		t.Fatalf("expected ErrGroupFull once groupmod is exhausted, got %v", err)
	}
}

func TestFindByQueuePath(t *testing.T) {
	h := New()
	h.DefineSpace(Space{Name: "default", GroupSize: 2})
	h.Register(FileSystem{Fsid: 1, UUID: "u1", Queue: "/fst01:1095/fst", Space: "default"})
	fs, ok := h.FindByQueuePath("/fst01:1095/fst")
	if !ok || fs.Fsid != 1 {
		t.Fatalf("expected to find fs by queue path, got %+v ok=%v", fs, ok)
	}
}

func TestAllFilesystemsSortedByFsid(t *testing.T) {
	h := New()
	h.DefineSpace(Space{Name: "default", GroupSize: 4})
	h.Register(FileSystem{Fsid: 3, UUID: "u3", Queue: "/c", Space: "default"})
	h.Register(FileSystem{Fsid: 1, UUID: "u1", Queue: "/a", Space: "default"})
	h.Register(FileSystem{Fsid: 2, UUID: "u2", Queue: "/b", Space: "default"})

	all := h.AllFilesystems()
	if len(all) != 3 {
		t.Fatalf("expected 3 filesystems, got %d", len(all))
	}
	for i, want := range []uint32{1, 2, 3} {
		if all[i].Fsid != want {
			t.Fatalf("expected sorted fsid order, got %+v", all)
		}
	}
}

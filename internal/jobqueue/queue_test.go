package jobqueue

import "testing"

func TestQueueInMemoryRoundTrip(t *testing.T) {
	q, err := NewQueue(4, "", 0)
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	q.In <- "job-1"
	q.In <- "job-2"
	got1 := <-q.Out
	got2 := <-q.Out
	if got1 != "job-1" || got2 != "job-2" {
		t.Fatalf("unexpected jobs: %v %v", got1, got2)
	}
	q.Shutdown()
	if _, ok := <-q.Out; ok {
		t.Fatalf("expected Out closed after Shutdown")
	}
}

func TestQueueDiskSpillSurvivesOverflow(t *testing.T) {
	dir := t.TempDir()
	q, err := NewQueue(1, dir, 0)
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	// fill the in-memory buffer, then push more so they spill to disk.
	q.In <- "a"
	q.In <- "b"
	q.In <- "c"

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		v := <-q.Out
		seen[v.(string)] = true
	}
	if !seen["a"] || !seen["b"] || !seen["c"] {
		t.Fatalf("missing jobs after spill: %v", seen)
	}
	q.Shutdown()
}

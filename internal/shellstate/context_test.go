package shellstate

import "testing"

func TestJobTableAddAssignsIncrementingIDs(t *testing.T) {
	jt := NewJobTable()
	a := jt.Add(111, "sleep 10")
	b := jt.Add(222, "sleep 20")
	if a.ID != 1 || b.ID != 2 {
		t.Fatalf("want IDs 1,2, got %d,%d", a.ID, b.ID)
	}
	if jt.Current().ID != b.ID {
		t.Fatalf("want current job %d, got %d", b.ID, jt.Current().ID)
	}
}

func TestJobTableMarkDoneAndNotices(t *testing.T) {
	jt := NewJobTable()
	j := jt.Add(111, "sleep 10")
	jt.MarkDone(j.ID, 0)

	if got := jt.Get(j.ID).State; got != JobDone {
		t.Fatalf("want JobDone, got %v", got)
	}

	notices := jt.PendingNotices()
	if len(notices) != 1 || notices[0].ID != j.ID {
		t.Fatalf("want one pending notice for job %d, got %v", j.ID, notices)
	}

	if notices := jt.PendingNotices(); len(notices) != 0 {
		t.Fatalf("want no repeated notices, got %v", notices)
	}
}

func TestJobTableCleanupReportedKeepsUnreported(t *testing.T) {
	jt := NewJobTable()
	done := jt.Add(111, "done job")
	running := jt.Add(222, "running job")
	jt.MarkDone(done.ID, 0)
	jt.PendingNotices()

	jt.CleanupReported()

	if jt.Get(done.ID) != nil {
		t.Fatalf("want reported Done job removed")
	}
	if jt.Get(running.ID) == nil {
		t.Fatalf("want running job kept")
	}
}

func TestJobTableAllIsOrderedByID(t *testing.T) {
	jt := NewJobTable()
	jt.Add(1, "a")
	jt.Add(2, "b")
	jt.Add(3, "c")

	all := jt.All()
	for i, j := range all {
		if j.ID != i+1 {
			t.Fatalf("want ordered IDs, got %v", all)
		}
	}
}

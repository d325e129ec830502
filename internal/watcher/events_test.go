package watcher

import (
	"fmt"
	"reflect"
	"testing"
	"time"
)

func TestApplyCoalescesCreateAndWrites(t *testing.T) {
	p := newPending()
	now := time.Now()

	// An editor creating a file and flushing it twice is one creation.
	p.apply(kindCreated, "/m/a.jpg", now)
	p.apply(kindModified, "/m/a.jpg", now)
	p.apply(kindModified, "/m/a.jpg", now)

	if p.size() != 1 {
		t.Fatalf("pending size = %d, want 1", p.size())
	}
	deleted, created, modified := p.drain(maxPending)
	if len(deleted) != 0 || len(modified) != 0 {
		t.Errorf("drain = del %v mod %v, want only created", deleted, modified)
	}
	if !reflect.DeepEqual(created, []string{"/m/a.jpg"}) {
		t.Errorf("created = %v", created)
	}
}

func TestApplyDeleteClaimsPendingCreate(t *testing.T) {
	p := newPending()
	now := time.Now()

	p.apply(kindCreated, "/m/tmp.jpg", now)
	p.apply(kindDeleted, "/m/tmp.jpg", now)

	deleted, created, modified := p.drain(maxPending)
	if len(created) != 0 || len(modified) != 0 {
		t.Errorf("drain kept created %v / modified %v", created, modified)
	}
	if !reflect.DeepEqual(deleted, []string{"/m/tmp.jpg"}) {
		t.Errorf("deleted = %v", deleted)
	}
}

func TestApplyDeleteThenCreateIsCreate(t *testing.T) {
	p := newPending()
	now := time.Now()

	// Replace-by-rename shows up as delete followed by create; the final
	// state on disk is a fresh file.
	p.apply(kindDeleted, "/m/b.jpg", now)
	p.apply(kindCreated, "/m/b.jpg", now)

	deleted, created, modified := p.drain(maxPending)
	if len(deleted) != 0 || len(modified) != 0 {
		t.Errorf("drain = del %v mod %v, want only created", deleted, modified)
	}
	if !reflect.DeepEqual(created, []string{"/m/b.jpg"}) {
		t.Errorf("created = %v", created)
	}
}

func TestApplyDeleteDropsPendingModify(t *testing.T) {
	p := newPending()
	now := time.Now()

	p.apply(kindModified, "/m/c.jpg", now)
	p.apply(kindDeleted, "/m/c.jpg", now)

	deleted, created, modified := p.drain(maxPending)
	if len(created) != 0 || len(modified) != 0 {
		t.Errorf("drain kept created %v / modified %v", created, modified)
	}
	if !reflect.DeepEqual(deleted, []string{"/m/c.jpg"}) {
		t.Errorf("deleted = %v", deleted)
	}
}

func TestApplyModifyAfterDeleteReingests(t *testing.T) {
	p := newPending()
	now := time.Now()

	// A write arriving after a pending delete means the file is back on
	// disk, so the path must be re-ingested rather than removed.
	p.apply(kindDeleted, "/m/d.jpg", now)
	p.apply(kindModified, "/m/d.jpg", now)

	deleted, _, modified := p.drain(maxPending)
	if len(deleted) != 0 {
		t.Errorf("deleted = %v, want empty", deleted)
	}
	if !reflect.DeepEqual(modified, []string{"/m/d.jpg"}) {
		t.Errorf("modified = %v", modified)
	}
}

func TestApplyCreateClaimsPendingModify(t *testing.T) {
	p := newPending()
	now := time.Now()

	p.apply(kindModified, "/m/e.jpg", now)
	p.apply(kindCreated, "/m/e.jpg", now)

	_, created, modified := p.drain(maxPending)
	if len(modified) != 0 {
		t.Errorf("modified = %v, want empty", modified)
	}
	if !reflect.DeepEqual(created, []string{"/m/e.jpg"}) {
		t.Errorf("created = %v", created)
	}
}

func TestApplyMoveDecomposes(t *testing.T) {
	p := newPending()
	now := time.Now()

	p.applyMove("/m/old.jpg", "/m/new.jpg", now)

	deleted, created, _ := p.drain(maxPending)
	if !reflect.DeepEqual(deleted, []string{"/m/old.jpg"}) {
		t.Errorf("deleted = %v", deleted)
	}
	if !reflect.DeepEqual(created, []string{"/m/new.jpg"}) {
		t.Errorf("created = %v", created)
	}
}

func TestDrainOrderOldestFirst(t *testing.T) {
	p := newPending()
	now := time.Now()

	p.apply(kindCreated, "/m/1.jpg", now)
	p.apply(kindCreated, "/m/2.jpg", now.Add(time.Millisecond))
	p.apply(kindCreated, "/m/3.jpg", now.Add(2*time.Millisecond))
	p.apply(kindCreated, "/m/2.jpg", now.Add(3*time.Millisecond)) // duplicate

	_, created, _ := p.drain(maxPending)
	want := []string{"/m/1.jpg", "/m/2.jpg", "/m/3.jpg"}
	if !reflect.DeepEqual(created, want) {
		t.Errorf("created = %v, want %v", created, want)
	}
}

func TestDrainCapsBatchSize(t *testing.T) {
	p := newPending()
	now := time.Now()
	for i := 0; i < maxPending+20; i++ {
		p.apply(kindCreated, fmt.Sprintf("/m/%03d.jpg", i), now)
	}

	_, created, _ := p.drain(maxPending)
	if len(created) != maxPending {
		t.Fatalf("first drain = %d paths, want %d", len(created), maxPending)
	}
	if created[0] != "/m/000.jpg" {
		t.Errorf("first drained = %s, want oldest", created[0])
	}
	if p.size() != 20 {
		t.Errorf("remaining = %d, want 20", p.size())
	}
	if p.age(now.Add(settleWindow)) == 0 {
		t.Error("remainder should keep its age so the next cycle drains it")
	}

	_, created, _ = p.drain(maxPending)
	if len(created) != 20 {
		t.Errorf("second drain = %d paths, want 20", len(created))
	}
	if p.size() != 0 {
		t.Errorf("remaining after second drain = %d, want 0", p.size())
	}
}

func TestAgeTracksOldestEvent(t *testing.T) {
	p := newPending()
	start := time.Now()

	if p.age(start) != 0 {
		t.Error("empty set should have zero age")
	}

	p.apply(kindCreated, "/m/a.jpg", start)
	p.apply(kindCreated, "/m/b.jpg", start.Add(time.Second))

	if got := p.age(start.Add(2 * time.Second)); got != 2*time.Second {
		t.Errorf("age = %v, want 2s (measured from first event)", got)
	}

	p.drain(maxPending)
	if p.age(start.Add(3*time.Second)) != 0 {
		t.Error("age should reset after drain")
	}

	// A new first event restarts the clock.
	p.apply(kindModified, "/m/c.jpg", start.Add(4*time.Second))
	if got := p.age(start.Add(5 * time.Second)); got != time.Second {
		t.Errorf("age after restart = %v, want 1s", got)
	}
}

func TestDrainEmptiesSets(t *testing.T) {
	p := newPending()
	now := time.Now()
	p.apply(kindCreated, "/m/a.jpg", now)
	p.apply(kindDeleted, "/m/b.jpg", now)
	p.apply(kindModified, "/m/c.jpg", now)

	p.drain(maxPending)
	if p.size() != 0 {
		t.Errorf("size after drain = %d, want 0", p.size())
	}
	deleted, created, modified := p.drain(maxPending)
	if len(deleted)+len(created)+len(modified) != 0 {
		t.Error("second drain should be empty")
	}
}

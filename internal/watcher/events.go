package watcher

import "time"

// eventKind classifies a filesystem change for coalescing.
type eventKind int

const (
	kindCreated eventKind = iota
	kindModified
	kindDeleted
)

func (k eventKind) String() string {
	switch k {
	case kindCreated:
		return "created"
	case kindModified:
		return "modified"
	case kindDeleted:
		return "deleted"
	}
	return "unknown"
}

// pending coalesces raw filesystem events until a drain. One path appears
// in at most one set, and repeated events on a path collapse into a single
// entry, so an editor writing a file in many chunks costs one ingest.
type pending struct {
	created  *orderedSet
	modified *orderedSet
	deleted  *orderedSet
	firstAt  time.Time
}

func newPending() *pending {
	return &pending{
		created:  newOrderedSet(),
		modified: newOrderedSet(),
		deleted:  newOrderedSet(),
	}
}

// apply folds one event into the pending sets.
//
// Each event kind claims the path for its own set: a create or delete
// clears the path from the other two sets, and a modify of a pending
// create stays a create (the first ingest sees the final content anyway).
// A modify after a pending delete means the file is back on disk, so the
// delete is dropped in favor of a re-ingest.
func (p *pending) apply(kind eventKind, path string, now time.Time) {
	if p.size() == 0 {
		p.firstAt = now
	}

	switch kind {
	case kindCreated:
		p.deleted.remove(path)
		p.modified.remove(path)
		p.created.add(path)

	case kindModified:
		if p.created.has(path) {
			return
		}
		p.deleted.remove(path)
		p.modified.add(path)

	case kindDeleted:
		p.created.remove(path)
		p.modified.remove(path)
		p.deleted.add(path)
	}
}

// applyMove decomposes a rename into a delete of the source and a create of
// the destination.
func (p *pending) applyMove(from, to string, now time.Time) {
	p.apply(kindDeleted, from, now)
	p.apply(kindCreated, to, now)
}

func (p *pending) size() int {
	return p.created.len() + p.modified.len() + p.deleted.len()
}

// drain removes up to limit entries from each pending set and returns the
// work in processing order: deletions first so replaced paths free their
// rows, then creations oldest first, then modifications. Anything beyond
// the limit stays queued for the next cycle.
func (p *pending) drain(limit int) (deleted, created, modified []string) {
	deleted = p.deleted.take(limit)
	created = p.created.take(limit)
	modified = p.modified.take(limit)
	if p.size() == 0 {
		p.firstAt = time.Time{}
	}
	return deleted, created, modified
}

// age reports how long the oldest pending event has been waiting.
func (p *pending) age(now time.Time) time.Duration {
	if p.size() == 0 {
		return 0
	}
	return now.Sub(p.firstAt)
}

// orderedSet is a set of paths that remembers insertion order.
type orderedSet struct {
	order []string
	index map[string]bool
}

func newOrderedSet() *orderedSet {
	return &orderedSet{index: make(map[string]bool)}
}

func (s *orderedSet) add(path string) {
	if s.index[path] {
		return
	}
	s.index[path] = true
	s.order = append(s.order, path)
}

func (s *orderedSet) has(path string) bool {
	return s.index[path]
}

func (s *orderedSet) remove(path string) bool {
	if !s.index[path] {
		return false
	}
	delete(s.index, path)
	for i, p := range s.order {
		if p == path {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *orderedSet) len() int {
	return len(s.order)
}

// take removes and returns up to n entries in insertion order.
func (s *orderedSet) take(n int) []string {
	if n >= len(s.order) {
		out := s.order
		s.order = nil
		s.index = make(map[string]bool)
		return out
	}
	out := s.order[:n:n]
	s.order = s.order[n:]
	for _, p := range out {
		delete(s.index, p)
	}
	return out
}

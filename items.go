package draft

import (
	"fmt"
	"sort"

	"github.com/goliatone/go-draft/structural"
)

// AddItem appends item to the working collection and returns the id it was
// stored under. An item without an id gets one minted from AssignID when
// WithItemID is configured; otherwise the add is refused with ErrMissingID.
// Ids already present in the collection are refused with ErrDuplicateID.
func (s *Session[E, F, S]) AddItem(item S) (string, error) {
	s.mu.Lock()
	id := s.cfg.ItemID(item)
	if id == "" {
		if s.cfg.WithItemID == nil {
			s.mu.Unlock()
			return "", ErrMissingID
		}
		id = s.cfg.AssignID()
		item = s.cfg.WithItemID(item, id)
	}
	if s.indexOfLocked(id) >= 0 {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	s.items = append(s.items, s.cloneItem(item))
	signal := s.captureDirtySignal()
	s.mu.Unlock()
	runSignal(signal)
	return id, nil
}

// UpdateItem hands fn a copy of the item stored under id and stores what it
// returns. It reports whether the update was applied: false when the id is
// unknown, and false when fn changed the item id and the session has no
// WithItemID to restore it. With WithItemID configured the original id is
// always reinstated.
func (s *Session[E, F, S]) UpdateItem(id string, fn func(item S) S) bool {
	if fn == nil {
		return false
	}
	s.mu.Lock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	updated := fn(s.cloneItem(s.items[idx]))
	if s.cfg.ItemID(updated) != id {
		if s.cfg.WithItemID == nil {
			s.mu.Unlock()
			return false
		}
		updated = s.cfg.WithItemID(updated, id)
	}
	s.items[idx] = s.cloneItem(updated)
	signal := s.captureDirtySignal()
	s.mu.Unlock()
	runSignal(signal)
	return true
}

// PatchItem assigns the given fields on the item stored under id, matching
// names the same way SetField does. It reports whether the item was found;
// a field that cannot be assigned leaves the item untouched and returns the
// assignment error. A patch that would change the item id is refused with
// ErrImmutableID unless WithItemID can reinstate it.
func (s *Session[E, F, S]) PatchItem(id string, fields map[string]any) (bool, error) {
	s.mu.Lock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false, nil
	}
	patched := s.cloneItem(s.items[idx])
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := structural.SetField(&patched, name, fields[name]); err != nil {
			s.mu.Unlock()
			return true, err
		}
	}
	if s.cfg.ItemID(patched) != id {
		if s.cfg.WithItemID == nil {
			s.mu.Unlock()
			return true, fmt.Errorf("%w: %s", ErrImmutableID, id)
		}
		patched = s.cfg.WithItemID(patched, id)
	}
	s.items[idx] = patched
	signal := s.captureDirtySignal()
	s.mu.Unlock()
	runSignal(signal)
	return true, nil
}

// RemoveItem deletes the item stored under id, closing the gap. It reports
// whether anything was removed.
func (s *Session[E, F, S]) RemoveItem(id string) bool {
	s.mu.Lock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	out := make([]S, 0, len(s.items)-1)
	out = append(out, s.items[:idx]...)
	out = append(out, s.items[idx+1:]...)
	s.items = out
	signal := s.captureDirtySignal()
	s.mu.Unlock()
	runSignal(signal)
	return true
}

// MoveItem lifts the item stored under fromID out of the collection and
// reinserts it at the position toID currently occupies, shifting the items
// in between by one slot. It reports whether both ids were found.
func (s *Session[E, F, S]) MoveItem(fromID, toID string) bool {
	s.mu.Lock()
	from := s.indexOfLocked(fromID)
	to := s.indexOfLocked(toID)
	if from < 0 || to < 0 {
		s.mu.Unlock()
		return false
	}
	s.moveLocked(from, to)
	signal := s.captureDirtySignal()
	s.mu.Unlock()
	runSignal(signal)
	return true
}

// MoveItemIndex is MoveItem addressed by position instead of id.
func (s *Session[E, F, S]) MoveItemIndex(from, to int) bool {
	s.mu.Lock()
	if from < 0 || from >= len(s.items) || to < 0 || to >= len(s.items) {
		s.mu.Unlock()
		return false
	}
	s.moveLocked(from, to)
	signal := s.captureDirtySignal()
	s.mu.Unlock()
	runSignal(signal)
	return true
}

func (s *Session[E, F, S]) moveLocked(from, to int) {
	if from == to {
		return
	}
	item := s.items[from]
	rest := append(append(make([]S, 0, len(s.items)-1), s.items[:from]...), s.items[from+1:]...)
	out := make([]S, 0, len(s.items))
	out = append(out, rest[:to]...)
	out = append(out, item)
	out = append(out, rest[to:]...)
	s.items = out
}

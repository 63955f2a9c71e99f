package draft

import (
	"context"
	"time"

	"github.com/goliatone/go-draft/pkg/activity"
)

// Load fetches id from the source and rebases the session onto the result,
// discarding any unsaved edits. An empty id puts the session in create
// mode: no fetch happens, the snapshot stays nil and the projections run
// against a nil entity to produce their defaults.
//
// Overlapping loads are allowed and the most recent call wins; results of
// superseded fetches are dropped. A fetch failure surfaces on Err and
// leaves the previous snapshot and the working edits untouched, as does a
// fetch that resolves to no entity, which returns ErrNotFound.
func (s *Session[E, F, S]) Load(ctx context.Context, id string) error {
	start := time.Now()
	if id == "" {
		s.mu.Lock()
		s.loadGen++
		s.loading = false
		s.fetching = false
		s.installBaselineLocked(nil, "")
		dirty := s.dirtyLocked()
		signal := s.captureDirtySignal()
		s.mu.Unlock()
		runSignal(signal)
		s.logOp("load", "", dirty, start, nil)
		s.notifyActivity(ctx, activity.BuildLoadedEvent(s.eventInput("", map[string]any{
			"mode": "create",
		})))
		return nil
	}

	if s.cfg.Source == nil {
		return ErrNoSource
	}

	s.mu.Lock()
	s.loadGen++
	gen := s.loadGen
	s.fetching = true
	if s.snap == nil || s.entityID != id {
		s.loading = true
	}
	s.mu.Unlock()

	entity, fetchErr := s.cfg.Source.Fetch(ctx, id)

	s.mu.Lock()
	if gen != s.loadGen {
		// A newer Load owns the session state now.
		s.mu.Unlock()
		return nil
	}
	s.fetching = false
	s.loading = false
	if fetchErr != nil {
		err := &FetchError{EntityID: id, Err: fetchErr}
		s.err = err
		dirty := s.dirtyLocked()
		s.mu.Unlock()
		s.logOp("load", id, dirty, start, err)
		return err
	}
	if entity == nil {
		s.err = ErrNotFound
		dirty := s.dirtyLocked()
		s.mu.Unlock()
		s.logOp("load", id, dirty, start, ErrNotFound)
		return ErrNotFound
	}

	s.installBaselineLocked(entity, s.resolveEntityID(entity, id))
	loadedID := s.entityID
	dirty := s.dirtyLocked()
	signal := s.captureDirtySignal()
	s.mu.Unlock()
	runSignal(signal)
	s.logOp("load", loadedID, dirty, start, nil)
	s.notifyActivity(ctx, activity.BuildLoadedEvent(s.eventInput(loadedID, nil)))
	return nil
}
